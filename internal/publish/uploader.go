package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"clipforge/internal/config"
	"clipforge/internal/logging"
	"clipforge/internal/services"
)

// errSessionExpired signals that the platform no longer recognizes the
// resumable session and a new one must be requested.
var errSessionExpired = errors.New("upload session expired")

// Metadata describes the video being published.
type Metadata struct {
	Title         string
	Description   string
	Tags          []string
	PrivacyStatus string
	ShortsMode    bool
}

// Uploader drives the platform's resumable upload protocol.
type Uploader struct {
	client         HTTPDoer
	uploadURL      string
	resumeAttempts int
	logger         *slog.Logger
}

// UploaderOption customises Uploader construction.
type UploaderOption func(*Uploader)

// WithUploadClient overrides the HTTP client used for uploads.
func WithUploadClient(client HTTPDoer) UploaderOption {
	return func(u *Uploader) {
		if client != nil {
			u.client = client
		}
	}
}

// WithUploadURL overrides the session initiation endpoint (used in tests).
func WithUploadURL(uploadURL string) UploaderOption {
	return func(u *Uploader) {
		if strings.TrimSpace(uploadURL) != "" {
			u.uploadURL = uploadURL
		}
	}
}

// NewUploader builds an uploader from configuration. Uploads use a client
// without a request timeout since a highlight stream can legitimately take
// longer than any fixed deadline; cancellation comes from the context.
func NewUploader(cfg config.YouTube, logger *slog.Logger, opts ...UploaderOption) (*Uploader, error) {
	if strings.TrimSpace(cfg.UploadURL) == "" {
		return nil, errors.New("upload endpoint required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	attempts := cfg.ResumeAttempts
	if attempts <= 0 {
		attempts = 3
	}
	uploader := &Uploader{
		client:         &http.Client{},
		uploadURL:      cfg.UploadURL,
		resumeAttempts: attempts,
		logger:         logger.With(logging.String(logging.FieldComponent, "publish")),
	}
	for _, opt := range opts {
		opt(uploader)
	}
	return uploader, nil
}

type snippetBody struct {
	Snippet struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Tags        []string `json:"tags,omitempty"`
	} `json:"snippet"`
	Status struct {
		PrivacyStatus string `json:"privacyStatus"`
	} `json:"status"`
}

// StartSession requests a resumable upload session and returns its URL.
func (u *Uploader) StartSession(ctx context.Context, accessToken string, metadata Metadata) (string, error) {
	var body snippetBody
	body.Snippet.Title = metadata.Title
	body.Snippet.Description = metadata.Description
	body.Snippet.Tags = metadata.Tags
	privacy := metadata.PrivacyStatus
	if privacy == "" {
		privacy = "unlisted"
	}
	body.Status.PrivacyStatus = privacy

	payload, err := json.Marshal(body)
	if err != nil {
		return "", services.Wrap(services.ErrUploadFailed, "publish", "session", "encode metadata", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.uploadURL, bytes.NewReader(payload))
	if err != nil {
		return "", services.Wrap(services.ErrUploadFailed, "publish", "session", u.uploadURL, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("X-Upload-Content-Type", "video/mp4")

	resp, err := u.client.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrUploadInterrupted, "publish", "session", u.uploadURL, err)
	}
	defer resp.Body.Close()
	drain(resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", services.Wrap(services.ErrAuthExpired, "publish", "session",
			fmt.Sprintf("session request rejected (status %d)", resp.StatusCode), nil)
	case resp.StatusCode >= 500:
		return "", services.Wrap(services.ErrUploadInterrupted, "publish", "session",
			fmt.Sprintf("session request returned status %d", resp.StatusCode), nil)
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated:
		return "", services.Wrap(services.ErrUploadFailed, "publish", "session",
			fmt.Sprintf("session request returned status %d", resp.StatusCode), nil)
	}

	session := resp.Header.Get("Location")
	if session == "" {
		return "", services.Wrap(services.ErrUploadFailed, "publish", "session",
			"platform returned no resumable session URL", nil)
	}
	return session, nil
}

type uploadResponse struct {
	ID string `json:"id"`
}

// Upload streams the file to a resumable session. Interruptions are resumed
// from the platform-reported byte offset up to the configured attempt count;
// an expired session surfaces as errSessionExpired so the caller can restart
// it.
func (u *Uploader) Upload(ctx context.Context, session, accessToken, filePath string) (string, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "publish", "upload", filePath, err)
	}
	size := info.Size()
	if size == 0 {
		return "", services.Wrap(services.ErrValidation, "publish", "upload",
			fmt.Sprintf("%s is empty", filePath), nil)
	}

	var offset int64
	interruptions := 0
	for {
		videoID, err := u.putFrom(ctx, session, accessToken, filePath, offset, size)
		if err == nil {
			return videoID, nil
		}
		if errors.Is(err, errSessionExpired) || !services.IsRetryable(err) {
			return "", err
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		interruptions++
		if interruptions > u.resumeAttempts {
			return "", services.Wrap(services.ErrUploadInterrupted, "publish", "upload",
				fmt.Sprintf("upload interrupted %d times", interruptions), err)
		}

		offset, err = u.probeOffset(ctx, session, accessToken, size)
		if err != nil {
			return "", err
		}
		u.logger.Info("resuming interrupted upload",
			logging.Int("attempt", interruptions),
			logging.Int64("offset", offset),
			logging.Int64("size", size))
	}
}

// putFrom streams [offset, size) of the file to the session.
func (u *Uploader) putFrom(ctx context.Context, session, accessToken, filePath string, offset, size int64) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "publish", "upload", filePath, err)
	}
	defer file.Close()
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return "", services.Wrap(services.ErrUploadFailed, "publish", "upload", "seek resume offset", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, session, file)
	if err != nil {
		return "", services.Wrap(services.ErrUploadFailed, "publish", "upload", session, err)
	}
	req.ContentLength = size - offset
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "video/mp4")
	switch {
	case offset >= size:
		// Everything arrived in an earlier attempt; finalize to collect
		// the completed response.
		req.Body = http.NoBody
		req.ContentLength = 0
		req.Header.Set("Content-Range", fmt.Sprintf("bytes */%d", size))
	case offset > 0:
		req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, size-1, size))
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrUploadInterrupted, "publish", "upload", "stream interrupted", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var parsed uploadResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil && !errors.Is(err, io.EOF) {
			return "", services.Wrap(services.ErrUploadFailed, "publish", "upload", "decode response", err)
		}
		return parsed.ID, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		drain(resp.Body)
		return "", errSessionExpired
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		drain(resp.Body)
		return "", services.Wrap(services.ErrAuthExpired, "publish", "upload",
			fmt.Sprintf("upload rejected (status %d)", resp.StatusCode), nil)
	case resp.StatusCode >= 500:
		drain(resp.Body)
		return "", services.Wrap(services.ErrUploadInterrupted, "publish", "upload",
			fmt.Sprintf("upload returned status %d", resp.StatusCode), nil)
	default:
		drain(resp.Body)
		return "", services.Wrap(services.ErrUploadFailed, "publish", "upload",
			fmt.Sprintf("upload returned status %d", resp.StatusCode), nil)
	}
}

// probeOffset asks the session how many bytes it has durably received. The
// platform answers 308 with a Range header covering bytes 0 through N; the
// next write starts at N+1. No Range header means nothing arrived.
func (u *Uploader) probeOffset(ctx context.Context, session, accessToken string, size int64) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, session, nil)
	if err != nil {
		return 0, services.Wrap(services.ErrUploadFailed, "publish", "probe", session, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Range", fmt.Sprintf("bytes */%d", size))

	resp, err := u.client.Do(req)
	if err != nil {
		return 0, services.Wrap(services.ErrUploadInterrupted, "publish", "probe", "offset probe failed", err)
	}
	defer resp.Body.Close()
	drain(resp.Body)

	switch {
	case resp.StatusCode == http.StatusPermanentRedirect:
		return parseReceivedRange(resp.Header.Get("Range"))
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return 0, errSessionExpired
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		// Everything already arrived; a zero-length resume write will
		// surface the completed response.
		return size, nil
	default:
		return 0, services.Wrap(services.ErrUploadInterrupted, "publish", "probe",
			fmt.Sprintf("offset probe returned status %d", resp.StatusCode), nil)
	}
}

// parseReceivedRange extracts the next write offset from "bytes=0-N".
func parseReceivedRange(header string) (int64, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0, nil
	}
	idx := strings.LastIndex(header, "-")
	if idx < 0 {
		return 0, services.Wrap(services.ErrUploadFailed, "publish", "probe",
			fmt.Sprintf("unparseable range header %q", header), nil)
	}
	last, err := strconv.ParseInt(header[idx+1:], 10, 64)
	if err != nil {
		return 0, services.Wrap(services.ErrUploadFailed, "publish", "probe",
			fmt.Sprintf("unparseable range header %q", header), err)
	}
	return last + 1, nil
}

func drain(body io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 1<<20))
}
