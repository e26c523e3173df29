package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"clipforge/internal/logging"
	"clipforge/internal/queue"
	"clipforge/internal/services"
)

func (m *Manager) handleStageFailure(ctx context.Context, stageName string, job *queue.Job, stageErr error) {
	logger := m.stageLogger(ctx, m.logger)

	message := classifyStageFailure(stageName, stageErr)
	job.SetFailed(message)

	logger.Error("stage failed",
		logging.Error(stageErr),
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String("resolved_status", string(queue.StatusFailed)),
		logging.String("error_message", message),
	)

	if err := m.store.Update(ctx, job); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not update stage failure")
		} else {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
	}

	m.setLastJob(job)
	if err := m.notifier.NotifyJobFailed(ctx, job.ID, stageName, message); err != nil {
		logger.Warn("failure notification failed", logging.Error(err))
	}
}

func classifyStageFailure(stageName string, stageErr error) string {
	if stageErr == nil {
		return fmt.Sprintf("%s failed without error detail", stageName)
	}
	message := strings.TrimSpace(services.Details(stageErr).Message)
	if message == "" {
		message = strings.TrimSpace(stageErr.Error())
	}
	if message == "" {
		message = fmt.Sprintf("%s failed", stageName)
	}
	return message
}
