package workflow

import (
	"context"

	"clipforge/internal/logging"
	"clipforge/internal/queue"
	"clipforge/internal/stage"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool
	LastError   string
	LastJob     *queue.Job
	QueueStats  map[queue.Status]int
	StageHealth map[string]stage.Health
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastJob := m.lastJob
	m.mu.RUnlock()

	stats, err := m.store.CountByStatus(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}

	health := make(map[string]stage.Health, len(m.pipeline))
	for _, stg := range m.pipeline {
		if stg.handler == nil {
			continue
		}
		health[stg.name] = stg.handler.HealthCheck(ctx)
	}

	summary := StatusSummary{Running: running, QueueStats: stats, StageHealth: health}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastJob != nil {
		cp := *lastJob
		summary.LastJob = &cp
	}
	return summary
}

// Healthy reports whether every registered stage passes its health check.
func (m *Manager) Healthy(ctx context.Context) bool {
	for _, stg := range m.pipeline {
		if stg.handler == nil {
			return false
		}
		if health := stg.handler.HealthCheck(ctx); !health.Ready {
			return false
		}
	}
	return true
}
