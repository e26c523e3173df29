package publish

import (
	"context"
	"fmt"
	"log/slog"

	"clipforge/internal/logging"
	"clipforge/internal/media/ffmpeg"
	"clipforge/internal/queue"
	"clipforge/internal/services"
	"clipforge/internal/stage"
)

// Stage adapts the publish coordinator to the workflow handler contract.
type Stage struct {
	coordinator *Coordinator
	inspector   ffmpeg.Inspector
	logger      *slog.Logger
}

// NewStage constructs the publish stage handler.
func NewStage(coordinator *Coordinator, inspector ffmpeg.Inspector, logger *slog.Logger) *Stage {
	return &Stage{
		coordinator: coordinator,
		inspector:   inspector,
		logger:      logging.NewComponentLogger(logger, "publish"),
	}
}

func (s *Stage) Prepare(ctx context.Context, job *queue.Job) error {
	job.SetProgress("Publishing", "uploading highlight", 0)
	return nil
}

func (s *Stage) Execute(ctx context.Context, job *queue.Job) error {
	if job.HighlightFile == "" {
		return services.Wrap(services.ErrValidation, "publish", "inputs",
			"no highlight file present; finish must run first", nil)
	}

	metadata, err := s.metadataFor(job)
	if err != nil {
		return err
	}

	var highlightSeconds float64
	if s.inspector != nil {
		probe, probeErr := s.inspector.Inspect(ctx, job.HighlightFile)
		if probeErr != nil {
			return services.Wrap(services.ErrValidation, "publish", "probe", job.HighlightFile, probeErr)
		}
		highlightSeconds = probe.DurationSeconds()
	}

	result, err := s.coordinator.Publish(ctx, Request{
		JobID:            job.ID,
		UserID:           job.UserID,
		Plan:             job.Plan,
		HighlightPath:    job.HighlightFile,
		HighlightSeconds: highlightSeconds,
		Metadata:         metadata,
	})
	if err != nil {
		return err
	}
	job.PublishURL = result.VideoURL
	job.SetProgress("Publishing", "highlight published", 100)
	logging.WithContext(ctx, s.logger).Info("highlight published",
		logging.String("video_url", result.VideoURL))
	return nil
}

func (s *Stage) metadataFor(job *queue.Job) (Metadata, error) {
	tags, err := job.Tags()
	if err != nil {
		return Metadata{}, services.Wrap(services.ErrValidation, "publish", "metadata", "decode tags", err)
	}
	title := job.Title
	if title == "" {
		title = fmt.Sprintf("Highlight %s", job.SourceVideoID)
	}
	return Metadata{
		Title:         title,
		Description:   job.Description,
		Tags:          tags,
		PrivacyStatus: job.PrivacyStatus,
		ShortsMode:    job.ShortsMode,
	}, nil
}

func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	if s.coordinator == nil {
		return stage.Unhealthy("publish", "coordinator not configured")
	}
	return stage.Healthy("publish")
}
