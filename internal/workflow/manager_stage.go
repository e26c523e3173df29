package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"clipforge/internal/logging"
	"clipforge/internal/queue"
	"clipforge/internal/services"
	"clipforge/internal/stage"
)

// processJob runs the stage registered for the job's processing status. The
// job arrives already claimed, so the processing transition is persisted.
func (m *Manager) processJob(ctx context.Context, workerLogger *slog.Logger, job *queue.Job) error {
	stg, ok := m.stageByProcessing[job.Status]
	if !ok {
		workerLogger.Warn("no stage registered for status", logging.String("status", string(job.Status)))
		return nil
	}

	requestID := uuid.NewString()
	stageCtx := withStageContext(ctx, stg.name, job, requestID)
	stageLogger := m.stageLogger(stageCtx, workerLogger)

	if m.cancelled(stageCtx, stageLogger, job) {
		return nil
	}

	return m.executeStage(stageCtx, stageLogger, stg, job)
}

func (m *Manager) executeStage(ctx context.Context, stageLogger *slog.Logger, stg pipelineStage, job *queue.Job) error {
	stageStart := time.Now()
	stageLogger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("processing_status", string(stg.processingStatus)),
		logging.String("source_video", job.SourceVideoID),
	)

	handler := stg.handler
	if handler == nil {
		stageLogger.Warn("missing stage handler", logging.String(logging.FieldStage, stg.name))
		job.SetFailed(fmt.Sprintf("stage %s missing handler", stg.name))
		if err := m.store.Update(ctx, job); err != nil {
			stageLogger.Error("failed to persist missing handler failure", logging.Error(err))
		}
		err := errors.New("stage handler unavailable")
		m.setLastError(err)
		return err
	}

	m.setJobProcessingState(job, stg.processingStatus)
	if err := handler.Prepare(ctx, job); err != nil {
		m.handleStageFailure(ctx, stg.name, job, err)
		m.setLastError(err)
		return err
	}
	if err := m.store.Update(ctx, job); err != nil {
		wrapped := fmt.Errorf("persist stage preparation: %w", err)
		stageLogger.Error("failed to persist stage preparation", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}

	execErr := m.executeWithRetry(ctx, stageLogger, handler, job)
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) {
			stageLogger.Debug("stage interrupted by shutdown")
			return execErr
		}
		m.handleStageFailure(ctx, stg.name, job, execErr)
		m.setLastError(execErr)
		return execErr
	}

	if m.cancelled(ctx, stageLogger, job) {
		return nil
	}

	if job.Status == stg.processingStatus || job.Status == "" {
		job.Status = stg.doneStatus
	}
	job.LastHeartbeat = nil
	if job.Status == queue.StatusCompleted {
		job.SetProgress(deriveStageLabel(queue.StatusCompleted), deriveStageLabel(queue.StatusCompleted), 100)
	}
	if err := m.store.Update(ctx, job); err != nil {
		wrapped := fmt.Errorf("persist stage result: %w", err)
		stageLogger.Error("failed to persist stage result", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}
	stageLogger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(job.Status)),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	m.setLastJob(job)
	if job.Status == queue.StatusCompleted {
		m.notifyPublished(ctx, job)
	}
	return nil
}

// executeWithRetry runs the handler under the heartbeat loop, retrying
// retryable failures with linear backoff up to the configured attempt count.
func (m *Manager) executeWithRetry(ctx context.Context, stageLogger *slog.Logger, handler stage.Handler, job *queue.Job) error {
	var lastErr error
	for attempt := 1; attempt <= m.retryAttempts; attempt++ {
		lastErr = m.executeWithHeartbeat(ctx, handler, job)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || !services.IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == m.retryAttempts {
			break
		}

		backoff := m.retryBackoff * time.Duration(attempt)
		stageLogger.Warn("stage attempt failed; retrying",
			logging.Error(lastErr),
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", m.retryAttempts),
			logging.Duration("backoff", backoff),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return lastErr
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, handler stage.Handler, job *queue.Job) error {
	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, job.ID)

	execErr := handler.Execute(ctx, job)
	hbCancel()
	hbWG.Wait()
	return execErr
}

// cancelled honors a cancellation request at the stage boundary: the stage in
// flight finishes, the job never advances.
func (m *Manager) cancelled(ctx context.Context, stageLogger *slog.Logger, job *queue.Job) bool {
	current, err := m.store.GetByID(ctx, job.ID)
	if err != nil {
		stageLogger.Warn("failed to refresh cancellation state", logging.Error(err))
		return false
	}
	if current == nil || !current.CancelRequested {
		return false
	}

	job.CancelRequested = true
	job.Status = queue.StatusCancelled
	job.LastHeartbeat = nil
	job.SetProgress("Cancelled", "cancelled by request", job.ProgressPercent)
	if err := m.store.Update(ctx, job); err != nil {
		stageLogger.Error("failed to persist cancellation", logging.Error(err))
		return false
	}
	stageLogger.Info("job cancelled at stage boundary",
		logging.String(logging.FieldEventType, "job_cancelled"))
	m.setLastJob(job)
	return true
}

func (m *Manager) setJobProcessingState(job *queue.Job, processing queue.Status) {
	now := time.Now().UTC()
	job.Status = processing
	job.SetProgress(deriveStageLabel(processing), fmt.Sprintf("%s started", deriveStageLabel(processing)), 0)
	job.ErrorMessage = ""
	job.LastHeartbeat = &now
}

func (m *Manager) notifyPublished(ctx context.Context, job *queue.Job) {
	title := job.Title
	if title == "" {
		title = job.SourceVideoID
	}
	if err := m.notifier.NotifyPublishCompleted(ctx, title, job.PublishURL); err != nil {
		m.logger.Warn("publish notification failed", logging.Error(err))
	}
}
