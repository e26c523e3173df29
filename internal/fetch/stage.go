package fetch

import (
	"context"
	"log/slog"

	"clipforge/internal/config"
	"clipforge/internal/logging"
	"clipforge/internal/queue"
	"clipforge/internal/stage"
)

// Stage adapts the fetcher to the workflow handler contract.
type Stage struct {
	fetcher *Fetcher
	binary  string
	logger  *slog.Logger
}

// NewStage constructs the fetch stage handler.
func NewStage(cfg *config.Config, fetcher *Fetcher, logger *slog.Logger) *Stage {
	return &Stage{
		fetcher: fetcher,
		binary:  cfg.FFmpeg.YtDlpBinary,
		logger:  logging.NewComponentLogger(logger, "fetch"),
	}
}

func (s *Stage) Prepare(ctx context.Context, job *queue.Job) error {
	job.SetProgress("Fetching", "downloading source video", 0)
	logging.WithContext(ctx, s.logger).Info("starting fetch",
		logging.String("source_video", job.SourceVideoID))
	return nil
}

func (s *Stage) Execute(ctx context.Context, job *queue.Job) error {
	path, err := s.fetcher.Fetch(ctx, job.SourceVideoID)
	if err != nil {
		return err
	}
	job.SourceFile = path
	job.SetProgress("Fetching", "source video ready", 100)
	return nil
}

func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	return stage.CheckBinary("fetch", s.binary)
}
