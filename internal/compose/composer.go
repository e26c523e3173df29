package compose

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
	"clipforge/internal/services"
)

// StyleCut concatenates without any boundary effect.
const StyleCut = "cut"

// transitionNameMap translates caller-facing style names to the xfade
// transition applied at each boundary.
var transitionNameMap = map[string]string{
	"fade":      "fade",
	"fadeblack": "fadeblack",
	"crossfade": "fade",
	"slide":     "slideleft",
	"zoom":      "zoom",
	"wipe":      "wipeleft",
	"auto":      "fade",
}

// ResolveStyle maps a style name to the underlying ffmpeg transition.
// StyleCut resolves to itself; unknown styles are rejected.
func ResolveStyle(style string) (string, error) {
	style = strings.ToLower(strings.TrimSpace(style))
	if style == "" {
		style = "auto"
	}
	if style == StyleCut {
		return StyleCut, nil
	}
	if resolved, ok := transitionNameMap[style]; ok {
		return resolved, nil
	}
	return "", services.Wrap(services.ErrUnsupportedTransition, "compose", "style",
		fmt.Sprintf("unknown transition style %q", style), nil)
}

// Composer joins ordered parts into a single merged file.
type Composer struct {
	runner    *ffmpeg.Runner
	inspector ffmpeg.Inspector
	logger    *slog.Logger

	transitionSeconds float64
	driftTolerance    float64
	videoCodec        string
	audioCodec        string
}

// New constructs a composer from configuration.
func New(cfg *config.Config, runner *ffmpeg.Runner, inspector ffmpeg.Inspector, logger *slog.Logger) (*Composer, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	if runner == nil {
		return nil, errors.New("ffmpeg runner required")
	}
	if inspector == nil {
		return nil, errors.New("inspector required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Composer{
		runner:            runner,
		inspector:         inspector,
		logger:            logger.With(logging.String(logging.FieldComponent, "compose")),
		transitionSeconds: cfg.FFmpeg.TransitionSeconds,
		driftTolerance:    float64(cfg.FFmpeg.DurationToleranceMs) / 1000.0,
		videoCodec:        cfg.FFmpeg.VideoCodec,
		audioCodec:        cfg.FFmpeg.AudioCodec,
	}, nil
}

// Compose joins the ordered parts with the requested style and writes the
// result to outputPath. Work happens in temporary files next to the output;
// the output is only promoted by an atomic rename once the full join chain
// succeeds, so an earlier merge is never partially overwritten.
func (c *Composer) Compose(ctx context.Context, parts []string, style, outputPath string) (string, error) {
	if len(parts) == 0 {
		return "", services.Wrap(services.ErrCompositionFailed, "compose", "plan", "no parts to join", nil)
	}
	resolved, err := ResolveStyle(style)
	if err != nil {
		return "", err
	}
	workDir := filepath.Dir(outputPath)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrCompositionFailed, "compose", "workspace", workDir, err)
	}

	var intermediates []string
	defer func() {
		for _, path := range intermediates {
			_ = os.Remove(path)
		}
	}()
	step := 0
	nextTemp := func() string {
		step++
		path := filepath.Join(workDir, fmt.Sprintf(".compose_step_%02d.mp4", step))
		intermediates = append(intermediates, path)
		return path
	}

	var merged string
	switch {
	case len(parts) == 1:
		merged = nextTemp()
		if err := c.runner.Run(ctx, "-i", parts[0], "-c", "copy", merged); err != nil {
			return "", services.Wrap(services.ErrCompositionFailed, "compose", "copy", parts[0], err)
		}
	case resolved == StyleCut:
		merged, err = c.concatAll(ctx, parts, nextTemp)
		if err != nil {
			return "", err
		}
	default:
		merged, err = c.joinWithTransitions(ctx, parts, resolved, nextTemp)
		if err != nil {
			return "", err
		}
	}

	if err := os.Rename(merged, outputPath); err != nil {
		return "", services.Wrap(services.ErrCompositionFailed, "compose", "promote", outputPath, err)
	}
	return outputPath, nil
}

// concatAll joins every part in one pass with the concat demuxer, stream
// copy only, then verifies the audio and video timelines agree.
func (c *Composer) concatAll(ctx context.Context, parts []string, nextTemp func() string) (string, error) {
	merged := nextTemp()
	if err := c.concatInto(ctx, parts, merged); err != nil {
		return "", err
	}
	return c.realign(ctx, merged, nextTemp)
}

// joinWithTransitions folds the parts left to right, one boundary per ffmpeg
// invocation, verifying alignment after every join. A boundary whose parts
// cannot absorb the overlap is hard-cut instead.
func (c *Composer) joinWithTransitions(ctx context.Context, parts []string, transition string, nextTemp func() string) (string, error) {
	current := parts[0]
	currentDuration, err := c.duration(ctx, current)
	if err != nil {
		return "", err
	}

	for i := 1; i < len(parts); i++ {
		next := parts[i]
		nextDuration, err := c.duration(ctx, next)
		if err != nil {
			return "", err
		}

		target := nextTemp()
		overlap := c.transitionSeconds
		if math.Min(currentDuration, nextDuration) < 2*overlap {
			// The overlap would consume one side entirely; fall back to a
			// hard cut at this boundary.
			c.logger.Info("part too short for transition, hard-cutting boundary",
				logging.Int("boundary", i),
				logging.Float64("current_seconds", currentDuration),
				logging.Float64("next_seconds", nextDuration))
			if err := c.concatInto(ctx, []string{current, next}, target); err != nil {
				return "", err
			}
		} else {
			offset := math.Max(currentDuration-overlap, 0)
			filter := fmt.Sprintf(
				"[0:v][1:v]xfade=transition=%s:duration=%s:offset=%s[v];[0:a][1:a]acrossfade=d=%s[a]",
				transition, formatSeconds(overlap), formatSeconds(offset), formatSeconds(overlap))
			err := c.runner.Run(ctx,
				"-i", current,
				"-i", next,
				"-filter_complex", filter,
				"-map", "[v]",
				"-map", "[a]",
				"-c:v", c.videoCodec,
				"-c:a", c.audioCodec,
				target,
			)
			if err != nil {
				return "", services.Wrap(services.ErrCompositionFailed, "compose", "join",
					fmt.Sprintf("boundary %d", i), err)
			}
		}

		aligned, err := c.realign(ctx, target, nextTemp)
		if err != nil {
			return "", err
		}
		current = aligned
		currentDuration, err = c.duration(ctx, current)
		if err != nil {
			return "", err
		}
	}
	return current, nil
}

// concatInto joins parts losslessly with the concat demuxer.
func (c *Composer) concatInto(ctx context.Context, parts []string, target string) error {
	listPath := target + ".txt"
	var list strings.Builder
	for _, part := range parts {
		fmt.Fprintf(&list, "file '%s'\n", strings.ReplaceAll(part, "'", `'\''`))
	}
	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return services.Wrap(services.ErrCompositionFailed, "compose", "concat-list", listPath, err)
	}
	defer func() {
		_ = os.Remove(listPath)
	}()

	err := c.runner.Run(ctx,
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		target,
	)
	if err != nil {
		return services.Wrap(services.ErrCompositionFailed, "compose", "concat", target, err)
	}
	return nil
}

// realign verifies the audio and video stream durations agree within the
// configured tolerance and corrects the audio timeline when they do not.
// Correction pads or trims audio against the video duration; video is never
// altered.
func (c *Composer) realign(ctx context.Context, path string, nextTemp func() string) (string, error) {
	result, err := c.inspector.Inspect(ctx, path)
	if err != nil {
		return "", services.Wrap(services.ErrCompositionFailed, "compose", "inspect", path, err)
	}
	drift := result.DriftSeconds()
	if drift <= c.driftTolerance {
		return path, nil
	}

	video := result.VideoDurationSeconds()
	c.logger.Info("correcting audio drift",
		logging.String("path", path),
		logging.Float64("drift_seconds", drift),
		logging.Float64("video_seconds", video))

	corrected := nextTemp()
	err = c.runner.Run(ctx,
		"-i", path,
		"-c:v", "copy",
		"-c:a", c.audioCodec,
		"-af", "apad",
		"-t", formatSeconds(video),
		corrected,
	)
	if err != nil {
		return "", services.Wrap(services.ErrCompositionFailed, "compose", "realign", path, err)
	}

	verify, err := c.inspector.Inspect(ctx, corrected)
	if err != nil {
		return "", services.Wrap(services.ErrCompositionFailed, "compose", "inspect", corrected, err)
	}
	if remaining := verify.DriftSeconds(); remaining > c.driftTolerance {
		return "", services.Wrap(services.ErrCompositionFailed, "compose", "realign",
			fmt.Sprintf("audio drift of %.3fs persists after correction", remaining), nil)
	}
	return corrected, nil
}

func (c *Composer) duration(ctx context.Context, path string) (float64, error) {
	result, err := c.inspector.Inspect(ctx, path)
	if err != nil {
		return 0, services.Wrap(services.ErrCompositionFailed, "compose", "inspect", path, err)
	}
	duration := result.DurationSeconds()
	if math.IsNaN(duration) || duration <= 0 {
		return 0, services.Wrap(services.ErrCompositionFailed, "compose", "inspect",
			fmt.Sprintf("%s reports no duration", path), nil)
	}
	return duration, nil
}

func formatSeconds(value float64) string {
	return strconv.FormatFloat(value, 'f', 3, 64)
}
