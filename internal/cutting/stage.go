package cutting

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"clipforge/internal/config"
	"clipforge/internal/logging"
	"clipforge/internal/queue"
	"clipforge/internal/services"
	"clipforge/internal/stage"
)

// Stage adapts the cutter to the workflow handler contract.
type Stage struct {
	cutter  *Cutter
	trimDir string
	binary  string
	logger  *slog.Logger
}

// NewStage constructs the cutting stage handler.
func NewStage(cfg *config.Config, cutter *Cutter, logger *slog.Logger) *Stage {
	return &Stage{
		cutter:  cutter,
		trimDir: cfg.Paths.TrimDir,
		binary:  cfg.FFmpeg.FFmpegBinary,
		logger:  logging.NewComponentLogger(logger, "cut"),
	}
}

func (s *Stage) Prepare(ctx context.Context, job *queue.Job) error {
	job.SetProgress("Cutting", "cutting planned segments", 0)
	return nil
}

func (s *Stage) Execute(ctx context.Context, job *queue.Job) error {
	if job.SourceFile == "" {
		return services.Wrap(services.ErrValidation, "cut", "inputs",
			"no source file present; fetch must run first", nil)
	}
	planned, err := job.Segments()
	if err != nil {
		return services.Wrap(services.ErrValidation, "cut", "segments", "decode planned segments", err)
	}
	if len(planned) == 0 {
		return services.Wrap(services.ErrValidation, "cut", "segments", "job has no planned segments", nil)
	}

	trimDir := filepath.Join(s.trimDir, fmt.Sprintf("job-%d", job.ID))
	parts, err := s.cutter.Cut(ctx, job.SourceFile, planned, trimDir)
	if err != nil {
		return err
	}
	job.TrimDir = trimDir
	job.SetProgress("Cutting", fmt.Sprintf("%d parts cut", len(parts)), 100)
	logging.WithContext(ctx, s.logger).Info("segments cut",
		logging.Int("parts", len(parts)),
		logging.String("trim_dir", trimDir))
	return nil
}

func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	return stage.CheckBinary("cut", s.binary)
}

// ListParts returns the cut part files in position order.
func ListParts(trimDir string) ([]string, error) {
	entries, err := os.ReadDir(trimDir)
	if err != nil {
		return nil, fmt.Errorf("read trim dir: %w", err)
	}
	parts := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, "part_") && strings.HasSuffix(name, ".mp4") {
			parts = append(parts, filepath.Join(trimDir, name))
		}
	}
	sort.Strings(parts)
	return parts, nil
}
