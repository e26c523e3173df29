package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"clipforge/internal/logging"
	"clipforge/internal/queue"
	"clipforge/internal/segments"
	"clipforge/internal/services"
	"clipforge/internal/tier"
)

var validPrivacyStatuses = map[string]struct{}{
	"":         {},
	"private":  {},
	"public":   {},
	"unlisted": {},
}

// Service runs admission and exposes queue operations to the CLI and the
// daemon HTTP surface.
type Service struct {
	store  *queue.Store
	policy *tier.Policy
	logger *slog.Logger
}

// NewService constructs the shared service facade.
func NewService(store *queue.Store, policy *tier.Policy, logger *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("queue store required")
	}
	if policy == nil {
		return nil, errors.New("tier policy required")
	}
	return &Service{
		store:  store,
		policy: policy,
		logger: logging.NewComponentLogger(logger, "api"),
	}, nil
}

// Submit runs the admission pipeline and persists an accepted request as a
// pending job. Rejections carry the admission-class error taxonomy and leave
// no partial state behind.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (JobView, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return JobView{}, services.Wrap(services.ErrValidation, "admission", "user",
			"user identifier required", nil)
	}
	videoID := strings.TrimSpace(req.SourceVideoID)
	if videoID == "" || strings.ContainsAny(videoID, "/\\") {
		return JobView{}, services.Wrap(services.ErrValidation, "admission", "source",
			fmt.Sprintf("invalid source video identifier %q", req.SourceVideoID), nil)
	}
	privacy := strings.ToLower(strings.TrimSpace(req.PrivacyStatus))
	if _, ok := validPrivacyStatuses[privacy]; !ok {
		return JobView{}, services.Wrap(services.ErrValidation, "admission", "privacy",
			fmt.Sprintf("privacy status %q must be private, public, or unlisted", req.PrivacyStatus), nil)
	}

	planned, err := segments.Plan(req.Ranges, req.SourceDuration)
	if err != nil {
		return JobView{}, err
	}

	transition, err := s.policy.ResolveTransition(req.Plan, req.Transition)
	if err != nil {
		return JobView{}, err
	}

	completed, err := s.store.CountCompletedSince(ctx, userID, startOfMonth(time.Now().UTC()))
	if err != nil {
		return JobView{}, services.Wrap(services.ErrTransient, "admission", "quota", "count completed highlights", err)
	}
	if err := s.policy.EnsureQuota(req.Plan, completed); err != nil {
		return JobView{}, err
	}

	if req.ShortsMode {
		if err := s.policy.EnsureShortsCap(req.Plan, planned); err != nil {
			return JobView{}, err
		}
	}

	segmentsJSON, err := json.Marshal(planned)
	if err != nil {
		return JobView{}, services.Wrap(services.ErrValidation, "admission", "segments", "encode planned segments", err)
	}
	tagsJSON := ""
	if len(req.Tags) > 0 {
		data, err := json.Marshal(req.Tags)
		if err != nil {
			return JobView{}, services.Wrap(services.ErrValidation, "admission", "tags", "encode tags", err)
		}
		tagsJSON = string(data)
	}

	job, err := s.store.NewJob(ctx, queue.NewJobParams{
		UserID:        userID,
		SourceVideoID: videoID,
		SegmentsJSON:  string(segmentsJSON),
		Transition:    transition,
		Plan:          s.policy.Resolve(req.Plan).Plan,
		Lane:          s.policy.LaneFor(req.Plan),
		ShortsMode:    req.ShortsMode,
		Title:         strings.TrimSpace(req.Title),
		Description:   req.Description,
		TagsJSON:      tagsJSON,
		PrivacyStatus: privacy,
	})
	if err != nil {
		return JobView{}, services.Wrap(services.ErrTransient, "admission", "persist", "create job", err)
	}

	s.logger.Info("job admitted",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldLane, string(job.Lane)),
		logging.String("transition", transition),
		logging.String("plan", job.Plan),
	)
	return FromJob(job), nil
}

// Enqueue re-arms an existing job. Active jobs are returned untouched;
// failed and cancelled jobs reset to pending.
func (s *Service) Enqueue(ctx context.Context, id int64) (JobView, error) {
	job, err := s.store.Enqueue(ctx, id)
	if err != nil {
		return JobView{}, err
	}
	if job == nil {
		return JobView{}, services.Wrap(services.ErrValidation, "queue", "enqueue",
			fmt.Sprintf("job %d not found", id), nil)
	}
	return FromJob(job), nil
}

// Describe fetches a single job.
func (s *Service) Describe(ctx context.Context, id int64) (*JobView, error) {
	job, err := s.store.GetByID(ctx, id)
	if err != nil || job == nil {
		return nil, err
	}
	view := FromJob(job)
	return &view, nil
}

// List returns all jobs ordered by creation time.
func (s *Service) List(ctx context.Context) ([]JobView, error) {
	jobs, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return FromJobs(jobs), nil
}

// Stats returns queue summary counts keyed by status string.
func (s *Service) Stats(ctx context.Context) (map[string]int, error) {
	stats, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	return MergeQueueStats(stats), nil
}

// Cancel requests cooperative cancellation of a job.
func (s *Service) Cancel(ctx context.Context, id int64) (bool, error) {
	return s.store.RequestCancel(ctx, id)
}

// Remove deletes a job record.
func (s *Service) Remove(ctx context.Context, id int64) (bool, error) {
	return s.store.Remove(ctx, id)
}

// ClearCompleted removes completed jobs and returns the count.
func (s *Service) ClearCompleted(ctx context.Context) (int64, error) {
	return s.store.ClearCompleted(ctx)
}

func startOfMonth(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}
