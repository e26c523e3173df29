package cutting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"clipforge/internal/config"
	"clipforge/internal/logging"
	"clipforge/internal/media/ffmpeg"
	"clipforge/internal/segments"
	"clipforge/internal/services"
)

// Cutter produces ordered part files from a source video.
type Cutter struct {
	runner    *ffmpeg.Runner
	inspector ffmpeg.Inspector
	logger    *slog.Logger

	copyTolerance float64
	videoCodec    string
	audioCodec    string
}

// New constructs a cutter from configuration.
func New(cfg *config.Config, runner *ffmpeg.Runner, inspector ffmpeg.Inspector, logger *slog.Logger) (*Cutter, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	if runner == nil {
		return nil, errors.New("ffmpeg runner required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Cutter{
		runner:        runner,
		inspector:     inspector,
		logger:        logger.With(logging.String(logging.FieldComponent, "cutting")),
		copyTolerance: float64(cfg.FFmpeg.CopyCutToleranceMs) / 1000.0,
		videoCodec:    cfg.FFmpeg.VideoCodec,
		audioCodec:    cfg.FFmpeg.AudioCodec,
	}, nil
}

// PartName returns the zero-padded file name for a part position. Downstream
// joining sorts parts lexically, so the padding is a correctness requirement.
func PartName(position int) string {
	return fmt.Sprintf("part_%02d.mp4", position)
}

// Cut extracts every planned segment into trimDir in position order. A
// segment whose stream-copy cut misses the requested duration beyond the
// configured tolerance is re-encoded individually; siblings keep their copy
// cuts. All segments are attempted before a failure is reported.
func (c *Cutter) Cut(ctx context.Context, sourcePath string, planned []segments.Segment, trimDir string) ([]string, error) {
	if len(planned) == 0 {
		return nil, services.Wrap(services.ErrCutFailed, "cut", "plan", "no segments to cut", nil)
	}
	if err := os.MkdirAll(trimDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrCutFailed, "cut", "workspace", trimDir, err)
	}

	parts := make([]string, len(planned))
	var failures []string
	for i, segment := range planned {
		target := filepath.Join(trimDir, PartName(segment.Position))
		if err := c.cutSegment(ctx, sourcePath, segment, target); err != nil {
			c.logger.Error("segment cut failed",
				logging.Int("position", segment.Position),
				logging.Error(err))
			failures = append(failures, fmt.Sprintf("segment %d: %v", segment.Position, err))
			continue
		}
		parts[i] = target
	}

	if len(failures) > 0 {
		return nil, services.Wrap(services.ErrCutFailed, "cut", "segments",
			strings.Join(failures, "; "), nil)
	}
	return parts, nil
}

func (c *Cutter) cutSegment(ctx context.Context, sourcePath string, segment segments.Segment, target string) error {
	want := segment.Duration()

	if err := c.runner.Run(ctx, copyCutArgs(sourcePath, segment, target)...); err != nil {
		return fmt.Errorf("stream copy: %w", err)
	}

	precise, err := c.copyCutPrecise(ctx, target, want)
	if err != nil {
		return err
	}
	if precise {
		return nil
	}

	c.logger.Info("re-encoding segment for exact boundaries",
		logging.Int("position", segment.Position),
		logging.Float64("requested_seconds", want))
	if err := c.runner.Run(ctx, reencodeArgs(sourcePath, segment, target, c.videoCodec, c.audioCodec)...); err != nil {
		return fmt.Errorf("re-encode: %w", err)
	}
	return nil
}

// copyCutPrecise checks whether the stream-copy output landed within the
// configured tolerance of the requested duration. Without an inspector the
// copy is trusted as-is.
func (c *Cutter) copyCutPrecise(ctx context.Context, target string, want float64) (bool, error) {
	if c.inspector == nil {
		return true, nil
	}
	result, err := c.inspector.Inspect(ctx, target)
	if err != nil {
		return false, fmt.Errorf("inspect cut: %w", err)
	}
	got := result.DurationSeconds()
	if math.IsNaN(got) {
		return false, nil
	}
	return math.Abs(got-want) <= c.copyTolerance, nil
}

func copyCutArgs(sourcePath string, segment segments.Segment, target string) []string {
	return []string{
		"-ss", formatSeconds(segment.Start),
		"-i", sourcePath,
		"-t", formatSeconds(segment.Duration()),
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		target,
	}
}

func reencodeArgs(sourcePath string, segment segments.Segment, target, videoCodec, audioCodec string) []string {
	return []string{
		"-ss", formatSeconds(segment.Start),
		"-i", sourcePath,
		"-t", formatSeconds(segment.Duration()),
		"-c:v", videoCodec,
		"-preset", "veryfast",
		"-crf", "18",
		"-c:a", audioCodec,
		"-b:a", "192k",
		target,
	}
}

func formatSeconds(value float64) string {
	return strconv.FormatFloat(value, 'f', 3, 64)
}
