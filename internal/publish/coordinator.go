package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"clipforge/internal/logging"
	"clipforge/internal/services"
	"clipforge/internal/tier"
)

// State tracks a publish request through its lifecycle.
type State string

const (
	StatePending     State = "pending"
	StateAuthorizing State = "authorizing"
	StateUploading   State = "uploading"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
)

// Request carries one publish run.
type Request struct {
	JobID         int64
	UserID        string
	Plan          string
	HighlightPath string
	// HighlightSeconds is the total highlight duration, re-checked against
	// the plan's short-form cap before tagging.
	HighlightSeconds float64
	Metadata         Metadata
}

// Result reports the published video reference.
type Result struct {
	VideoID  string
	VideoURL string
	State    State
}

// Coordinator walks a publish request through authorizing, uploading, and
// completion. An upload session that expires mid-stream is restarted once;
// a second expiry fails the request.
type Coordinator struct {
	tokens   *TokenManager
	uploader *Uploader
	policy   *tier.Policy
	logger   *slog.Logger
}

// NewCoordinator builds a publish coordinator.
func NewCoordinator(tokens *TokenManager, uploader *Uploader, policy *tier.Policy, logger *slog.Logger) (*Coordinator, error) {
	if tokens == nil {
		return nil, errors.New("token manager required")
	}
	if uploader == nil {
		return nil, errors.New("uploader required")
	}
	if policy == nil {
		return nil, errors.New("tier policy required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Coordinator{
		tokens:   tokens,
		uploader: uploader,
		policy:   policy,
		logger:   logger.With(logging.String(logging.FieldComponent, "publish")),
	}, nil
}

// Publish uploads the highlight and returns its external reference.
func (c *Coordinator) Publish(ctx context.Context, req Request) (Result, error) {
	log := c.logger.With(logging.Int64(logging.FieldJobID, req.JobID))
	state := StatePending

	state = StateAuthorizing
	log.Info("publish state change", logging.String("state", string(state)))
	credential, err := c.tokens.EnsureFresh(ctx, req.UserID)
	if err != nil {
		return Result{State: StateFailed}, err
	}

	metadata := c.applyShortsPolicy(req, log)

	state = StateUploading
	log.Info("publish state change", logging.String("state", string(state)))
	session, err := c.uploader.StartSession(ctx, credential.AccessToken, metadata)
	if err != nil {
		return Result{State: StateFailed}, err
	}

	videoID, err := c.uploader.Upload(ctx, session, credential.AccessToken, req.HighlightPath)
	if errors.Is(err, errSessionExpired) {
		// The platform dropped the session; one full restart is allowed.
		log.Warn("upload session expired, restarting")
		session, err = c.uploader.StartSession(ctx, credential.AccessToken, metadata)
		if err != nil {
			return Result{State: StateFailed}, err
		}
		videoID, err = c.uploader.Upload(ctx, session, credential.AccessToken, req.HighlightPath)
		if errors.Is(err, errSessionExpired) {
			return Result{State: StateFailed}, services.Wrap(services.ErrUploadFailed, "publish", "upload",
				"restarted session expired again", nil)
		}
	}
	if err != nil {
		return Result{State: StateFailed}, err
	}
	if videoID == "" {
		return Result{State: StateFailed}, services.Wrap(services.ErrUploadFailed, "publish", "upload",
			"platform returned no video id", nil)
	}

	state = StateCompleted
	url := fmt.Sprintf("https://youtu.be/%s", videoID)
	log.Info("publish state change",
		logging.String("state", string(state)),
		logging.String("video_url", url))
	return Result{VideoID: videoID, VideoURL: url, State: state}, nil
}

// applyShortsPolicy re-checks the short-form cap before tagging. Admission
// already validated the duration, but the composed highlight is what actually
// ships, so the check repeats against it.
func (c *Coordinator) applyShortsPolicy(req Request, log *slog.Logger) Metadata {
	metadata := req.Metadata
	if !metadata.ShortsMode {
		return metadata
	}
	rules := c.policy.Resolve(req.Plan)
	if rules.ShortsCapSeconds > 0 && req.HighlightSeconds > float64(rules.ShortsCapSeconds) {
		log.Warn("highlight exceeds short-form cap, publishing without shorts tag",
			logging.Float64("duration_seconds", req.HighlightSeconds),
			logging.Int("cap_seconds", rules.ShortsCapSeconds))
		metadata.ShortsMode = false
		return metadata
	}
	metadata.Tags = ensureShortsTag(metadata.Tags)
	return metadata
}

func ensureShortsTag(tags []string) []string {
	for _, tag := range tags {
		lowered := strings.ToLower(tag)
		if lowered == "shorts" || lowered == "#shorts" {
			return tags
		}
	}
	return append(append([]string(nil), tags...), "shorts")
}
