package finish

import (
	"context"
	"log/slog"
	"path/filepath"

	"clipforge/internal/config"
	"clipforge/internal/logging"
	"clipforge/internal/queue"
	"clipforge/internal/services"
	"clipforge/internal/stage"
	"clipforge/internal/tier"
)

// Stage adapts the finisher to the workflow handler contract.
type Stage struct {
	finisher *Finisher
	policy   *tier.Policy
	binary   string
	logger   *slog.Logger
}

// NewStage constructs the finishing stage handler.
func NewStage(cfg *config.Config, finisher *Finisher, policy *tier.Policy, logger *slog.Logger) *Stage {
	return &Stage{
		finisher: finisher,
		policy:   policy,
		binary:   cfg.FFmpeg.FFmpegBinary,
		logger:   logging.NewComponentLogger(logger, "finish"),
	}
}

func (s *Stage) Prepare(ctx context.Context, job *queue.Job) error {
	job.SetProgress("Finishing", "preparing final artifact", 0)
	return nil
}

func (s *Stage) Execute(ctx context.Context, job *queue.Job) error {
	if job.MergedFile == "" {
		return services.Wrap(services.ErrValidation, "finish", "inputs",
			"no merged file present; compose must run first", nil)
	}

	// Paid highlights ship clean; everything else carries the overlay.
	rules := s.policy.Resolve(job.Plan)
	req := Request{
		JobID:       job.ID,
		VideoID:     job.SourceVideoID,
		MergedPath:  job.MergedFile,
		Watermarked: rules.Plan != tier.PlanPaid,
	}
	if job.TrimDir != "" {
		req.CleanupDirs = append(req.CleanupDirs, job.TrimDir)
	}
	req.CleanupDirs = append(req.CleanupDirs, filepath.Dir(job.MergedFile))

	result, err := s.finisher.Finish(ctx, req)
	if err != nil {
		return err
	}
	job.HighlightFile = result.HighlightPath
	job.ArtifactURL = result.ArtifactURL
	job.SetProgress("Finishing", "artifact stored", 100)
	logging.WithContext(ctx, s.logger).Info("highlight finished",
		logging.String("highlight_file", result.HighlightPath),
		logging.String("artifact_url", result.ArtifactURL))
	return nil
}

func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	return stage.CheckBinary("finish", s.binary)
}
