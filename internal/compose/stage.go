package compose

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"clipforge/internal/config"
	"clipforge/internal/cutting"
	"clipforge/internal/logging"
	"clipforge/internal/queue"
	"clipforge/internal/services"
	"clipforge/internal/stage"
)

// Stage adapts the composer to the workflow handler contract.
type Stage struct {
	composer *Composer
	mergeDir string
	binary   string
	logger   *slog.Logger
}

// NewStage constructs the compose stage handler.
func NewStage(cfg *config.Config, composer *Composer, logger *slog.Logger) *Stage {
	return &Stage{
		composer: composer,
		mergeDir: cfg.Paths.MergeDir,
		binary:   cfg.FFmpeg.FFmpegBinary,
		logger:   logging.NewComponentLogger(logger, "compose"),
	}
}

func (s *Stage) Prepare(ctx context.Context, job *queue.Job) error {
	job.SetProgress("Composing", "joining parts", 0)
	return nil
}

func (s *Stage) Execute(ctx context.Context, job *queue.Job) error {
	if job.TrimDir == "" {
		return services.Wrap(services.ErrValidation, "compose", "inputs",
			"no trim workspace present; cut must run first", nil)
	}
	parts, err := cutting.ListParts(job.TrimDir)
	if err != nil {
		return services.Wrap(services.ErrCompositionFailed, "compose", "parts", job.TrimDir, err)
	}
	if len(parts) == 0 {
		return services.Wrap(services.ErrValidation, "compose", "parts",
			fmt.Sprintf("no cut parts found under %s", job.TrimDir), nil)
	}

	// Compose resolves the style itself; check here only so an invalid
	// style fails before the merge workspace is created.
	if _, err := ResolveStyle(job.Transition); err != nil {
		return err
	}

	outputDir := filepath.Join(s.mergeDir, fmt.Sprintf("job-%d", job.ID))
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return services.Wrap(services.ErrCompositionFailed, "compose", "workspace", outputDir, err)
	}
	output := filepath.Join(outputDir, "highlight_merged.mp4")

	merged, err := s.composer.Compose(ctx, parts, job.Transition, output)
	if err != nil {
		return err
	}
	job.MergedFile = merged
	job.SetProgress("Composing", "highlight assembled", 100)
	logging.WithContext(ctx, s.logger).Info("parts composed",
		logging.Int("parts", len(parts)),
		logging.String("style", job.Transition),
		logging.String("merged_file", merged))
	return nil
}

func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	return stage.CheckBinary("compose", s.binary)
}
