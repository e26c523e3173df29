package finish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"clipforge/internal/config"
	"clipforge/internal/fileutil"
	"clipforge/internal/logging"
	"clipforge/internal/media/ffmpeg"
	"clipforge/internal/services"
	"clipforge/internal/storage"
)

// Request carries one finishing run.
type Request struct {
	JobID       int64
	VideoID     string
	MergedPath  string
	Watermarked bool
	// CleanupDirs are the fetch/trim/merge workspaces removed after a
	// confirmed upload.
	CleanupDirs []string
}

// Result reports the staged artifact and its stored reference.
type Result struct {
	HighlightPath string
	ArtifactURL   string
}

// Finisher produces the final stored highlight artifact.
type Finisher struct {
	runner *ffmpeg.Runner
	store  storage.ArtifactStore
	logger *slog.Logger

	highlightDir string
	watermark    config.Watermark
}

// New constructs a finisher from configuration.
func New(cfg *config.Config, runner *ffmpeg.Runner, store storage.ArtifactStore, logger *slog.Logger) (*Finisher, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	if runner == nil {
		return nil, errors.New("ffmpeg runner required")
	}
	if store == nil {
		return nil, errors.New("artifact store required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Finisher{
		runner:       runner,
		store:        store,
		logger:       logger.With(logging.String(logging.FieldComponent, "finish")),
		highlightDir: cfg.Paths.HighlightDir,
		watermark:    cfg.Watermark,
	}, nil
}

// Finish stages the merged file, applies the watermark when the plan requires
// it, uploads the artifact, and removes upstream workspaces. Cleanup only
// runs after the upload is confirmed and never fails the job.
func (f *Finisher) Finish(ctx context.Context, req Request) (Result, error) {
	staged, err := f.stage(req)
	if err != nil {
		return Result{}, err
	}

	if req.Watermarked {
		staged, err = f.applyWatermark(ctx, staged)
		if err != nil {
			return Result{}, err
		}
	}

	objectName := fmt.Sprintf("%s/%s", req.VideoID, filepath.Base(staged))
	url, err := f.store.Put(ctx, objectName, staged, "video/mp4")
	if err != nil {
		return Result{}, services.Wrap(services.ErrUploadFailed, "finish", "store", objectName, err)
	}

	f.cleanup(req.CleanupDirs)

	f.logger.Info("highlight finished",
		logging.Int64(logging.FieldJobID, req.JobID),
		logging.String("artifact_url", url),
		logging.Bool("watermarked", req.Watermarked))
	return Result{HighlightPath: staged, ArtifactURL: url}, nil
}

func (f *Finisher) stage(req Request) (string, error) {
	if _, err := os.Stat(req.MergedPath); err != nil {
		return "", services.Wrap(services.ErrValidation, "finish", "stage",
			fmt.Sprintf("merged file %s", req.MergedPath), err)
	}
	targetDir := filepath.Join(f.highlightDir, req.VideoID)
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrTransient, "finish", "stage", targetDir, err)
	}
	target := filepath.Join(targetDir, fmt.Sprintf("job-%d_highlight.mp4", req.JobID))
	if err := fileutil.CopyFileVerified(req.MergedPath, target); err != nil {
		return "", services.Wrap(services.ErrTransient, "finish", "stage", target, err)
	}
	return target, nil
}

// applyWatermark stamps the configured overlay and replaces the staged file.
func (f *Finisher) applyWatermark(ctx context.Context, staged string) (string, error) {
	output := strings.TrimSuffix(staged, filepath.Ext(staged)) + "_watermarked" + filepath.Ext(staged)

	var err error
	if strings.TrimSpace(f.watermark.ImagePath) != "" {
		err = f.runner.Run(ctx,
			"-i", staged,
			"-i", f.watermark.ImagePath,
			"-filter_complex", fmt.Sprintf("overlay=%s", f.positionExpr()),
			"-codec:a", "copy",
			output,
		)
	} else {
		err = f.runner.Run(ctx,
			"-i", staged,
			"-vf", f.drawtextFilter(),
			"-codec:a", "copy",
			output,
		)
	}
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "finish", "watermark", staged, err)
	}

	if err := os.Remove(staged); err != nil && !errors.Is(err, os.ErrNotExist) {
		f.logger.Warn("could not remove unwatermarked intermediate",
			logging.String("path", staged),
			logging.Error(err))
	}
	return output, nil
}

// positionExpr maps the configured corner to ffmpeg coordinate expressions.
func (f *Finisher) positionExpr() string {
	margin := f.watermark.Margin
	positions := map[string]string{
		"top-left":     fmt.Sprintf("%d:%d", margin, margin),
		"top-right":    fmt.Sprintf("W-w-%d:%d", margin, margin),
		"bottom-left":  fmt.Sprintf("%d:H-h-%d", margin, margin),
		"bottom-right": fmt.Sprintf("W-w-%d:H-h-%d", margin, margin),
	}
	if expr, ok := positions[strings.ToLower(strings.TrimSpace(f.watermark.Position))]; ok {
		return expr
	}
	return positions["top-right"]
}

func (f *Finisher) drawtextFilter() string {
	text := strings.ReplaceAll(f.watermark.Text, "'", `\'`)
	return fmt.Sprintf(
		"drawtext=text='%s':fontcolor=white@%.2f:fontsize=%d:box=1:boxcolor=black@0.35:boxborderw=6:x=%s:y=%s",
		text, f.watermark.Opacity, f.watermark.FontSize, f.xExpr(), f.yExpr())
}

func (f *Finisher) xExpr() string {
	parts := strings.SplitN(f.positionExpr(), ":", 2)
	return parts[0]
}

func (f *Finisher) yExpr() string {
	parts := strings.SplitN(f.positionExpr(), ":", 2)
	if len(parts) == 2 {
		return parts[1]
	}
	return fmt.Sprintf("%d", f.watermark.Margin)
}

// cleanup removes upstream workspaces. Failures are logged, never escalated:
// a cleanup problem must not mask a successful highlight.
func (f *Finisher) cleanup(dirs []string) {
	for _, dir := range dirs {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			f.logger.Warn("workspace cleanup failed",
				logging.String("path", dir),
				logging.Error(err))
			continue
		}
		f.logger.Info("workspace removed", logging.String("path", dir))
	}
}
