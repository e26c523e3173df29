package workflow

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"clipforge/internal/logging"
	"clipforge/internal/queue"
	"clipforge/internal/services"
)

var stageLabelCaser = cases.Title(language.English)

func withStageContext(ctx context.Context, stageName string, job *queue.Job, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if job != nil {
		ctx = services.WithJobID(ctx, job.ID)
		ctx = services.WithLane(ctx, string(job.Lane))
	}
	if stageName != "" {
		ctx = services.WithStage(ctx, stageName)
	}
	if requestID != "" {
		ctx = services.WithRequestID(ctx, requestID)
	}
	return ctx
}

func (m *Manager) stageLogger(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = m.logger
	}
	return logging.WithContext(ctx, base)
}

func deriveStageLabel(status queue.Status) string {
	if status == "" {
		return ""
	}
	return stageLabelCaser.String(strings.ReplaceAll(string(status), "_", " "))
}
