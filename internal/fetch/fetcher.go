package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"clipforge/internal/logging"
	"clipforge/internal/media/ffmpeg"
	"clipforge/internal/services"
)

// sourceFileName is the fixed name each identifier workspace materializes.
const sourceFileName = "source.mp4"

// unavailableMarkers are yt-dlp output fragments that mean the source is gone
// or access-restricted rather than temporarily unreachable.
var unavailableMarkers = []string{
	"video unavailable",
	"private video",
	"this video is not available",
	"account associated with this video has been terminated",
	"http error 404",
	"http error 410",
	"members-only",
}

// Option configures the fetcher.
type Option func(*Fetcher)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec ffmpeg.Executor) Option {
	return func(f *Fetcher) {
		if exec != nil {
			f.exec = exec
		}
	}
}

// WithInspector injects a custom media inspector.
func WithInspector(inspector ffmpeg.Inspector) Option {
	return func(f *Fetcher) {
		if inspector != nil {
			f.inspector = inspector
		}
	}
}

type inflight struct {
	done chan struct{}
	path string
	err  error
}

// Fetcher downloads source videos and deduplicates concurrent requests for
// the same identifier. In-process callers share an inflight entry; a file
// lock guards against a second daemon fetching the same identifier.
type Fetcher struct {
	binary      string
	downloadDir string
	exec        ffmpeg.Executor
	inspector   ffmpeg.Inspector
	logger      *slog.Logger

	mu       sync.Mutex
	inFlight map[string]*inflight
}

// New constructs a fetcher.
func New(binary, downloadDir string, inspector ffmpeg.Inspector, logger *slog.Logger, opts ...Option) (*Fetcher, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("yt-dlp binary required")
	}
	if strings.TrimSpace(downloadDir) == "" {
		return nil, errors.New("download directory required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	fetcher := &Fetcher{
		binary:      binary,
		downloadDir: downloadDir,
		exec:        ffmpeg.NewExecutor(),
		inspector:   inspector,
		logger:      logger.With(logging.String(logging.FieldComponent, "fetch")),
		inFlight:    make(map[string]*inflight),
	}
	for _, opt := range opts {
		opt(fetcher)
	}
	return fetcher, nil
}

// Fetch returns the absolute path of the downloaded source for a video
// identifier, downloading it first when necessary. Calls for an identifier
// whose fetch is already in flight wait for that fetch instead of starting
// their own.
func (f *Fetcher) Fetch(ctx context.Context, videoID string) (string, error) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" || strings.ContainsAny(videoID, "/\\") {
		return "", services.Wrap(services.ErrValidation, "fetch", "identifier",
			fmt.Sprintf("invalid source video identifier %q", videoID), nil)
	}

	f.mu.Lock()
	if entry, ok := f.inFlight[videoID]; ok {
		f.mu.Unlock()
		select {
		case <-entry.done:
			return entry.path, entry.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	entry := &inflight{done: make(chan struct{})}
	f.inFlight[videoID] = entry
	f.mu.Unlock()

	path, err := f.fetchLocked(ctx, videoID)
	entry.path, entry.err = path, err
	close(entry.done)

	f.mu.Lock()
	delete(f.inFlight, videoID)
	f.mu.Unlock()

	return path, err
}

func (f *Fetcher) fetchLocked(ctx context.Context, videoID string) (string, error) {
	workspace := filepath.Join(f.downloadDir, videoID)
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return "", services.Wrap(services.ErrFetchFailed, "fetch", "workspace",
			fmt.Sprintf("create workspace for %s", videoID), err)
	}

	lock := flock.New(filepath.Join(workspace, ".fetch.lock"))
	locked, err := lock.TryLockContext(ctx, 250*time.Millisecond)
	if err != nil {
		return "", services.Wrap(services.ErrFetchFailed, "fetch", "lock",
			fmt.Sprintf("acquire fetch lock for %s", videoID), err)
	}
	if !locked {
		return "", services.Wrap(services.ErrFetchFailed, "fetch", "lock",
			fmt.Sprintf("fetch lock for %s held elsewhere", videoID), nil)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	target := filepath.Join(workspace, sourceFileName)
	if materialized(target) {
		f.logger.Info("reusing fetched source",
			logging.String("video_id", videoID),
			logging.String("path", target))
		return target, nil
	}

	f.logger.Info("fetching source", logging.String("video_id", videoID))

	args := []string{
		"--no-playlist",
		"--no-progress",
		"-f", "bv*+ba/b",
		"--merge-output-format", "mp4",
		"-o", filepath.Join(workspace, "source.%(ext)s"),
		"--", videoID,
	}

	var outMu sync.Mutex
	var output []string
	err = f.exec.Run(ctx, f.binary, args, func(line string) {
		outMu.Lock()
		output = append(output, line)
		outMu.Unlock()
	})
	if err != nil {
		outMu.Lock()
		combined := strings.Join(output, "\n")
		outMu.Unlock()
		return "", classifyFetchError(videoID, combined, err)
	}

	if !materialized(target) {
		return "", services.Wrap(services.ErrFetchFailed, "fetch", "materialize",
			fmt.Sprintf("yt-dlp reported success but %s is missing", target), nil)
	}
	if err := f.verifyStreams(ctx, target); err != nil {
		return "", err
	}

	f.logger.Info("fetch complete",
		logging.String("video_id", videoID),
		logging.String("path", target))
	return target, nil
}

// verifyStreams confirms the fetched container carries both audio and video.
func (f *Fetcher) verifyStreams(ctx context.Context, path string) error {
	if f.inspector == nil {
		return nil
	}
	result, err := f.inspector.Inspect(ctx, path)
	if err != nil {
		return services.Wrap(services.ErrFetchFailed, "fetch", "inspect", path, err)
	}
	if result.VideoStreamCount() == 0 || result.AudioStreamCount() == 0 {
		return services.Wrap(services.ErrFetchFailed, "fetch", "inspect",
			fmt.Sprintf("%s is missing an audio or video stream", path), nil)
	}
	return nil
}

func materialized(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

func classifyFetchError(videoID, output string, err error) error {
	lowered := strings.ToLower(output)
	for _, marker := range unavailableMarkers {
		if strings.Contains(lowered, marker) {
			return services.Wrap(services.ErrUnavailableMedia, "fetch", "download",
				fmt.Sprintf("source %s is unavailable", videoID), err)
		}
	}
	message := fmt.Sprintf("download %s", videoID)
	if tail := lastLine(output); tail != "" {
		message = fmt.Sprintf("download %s: %s", videoID, tail)
	}
	return services.Wrap(services.ErrFetchFailed, "fetch", "download", message, err)
}

func lastLine(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
