package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"clipforge/internal/logging"
	"clipforge/internal/queue"
)

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(m.workers + 1)
	m.mu.Unlock()

	go m.runJanitor(runCtx)
	for i := 0; i < m.workers; i++ {
		go m.runWorker(runCtx, i)
	}
	return nil
}

// Stop terminates background processing and waits for in-flight stages to
// return at the next cancellation point.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// runJanitor periodically rolls abandoned processing jobs back to their
// ready statuses so another worker can pick them up.
func (m *Manager) runJanitor(ctx context.Context) {
	defer m.wg.Done()
	interval := m.heartbeat.Timeout() / 2
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.heartbeat.ReclaimStale(ctx); err != nil && !errors.Is(err, context.Canceled) {
				m.logger.Warn("reclaim stale processing failed; stuck jobs may remain",
					logging.Error(err),
					logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
					logging.String(logging.FieldErrorHint, "check queue database access"),
				)
			}
		}
	}
}

func (m *Manager) runWorker(ctx context.Context, index int) {
	defer m.wg.Done()
	logger := m.logger.With(logging.Int("worker", index))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := m.claimNext(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.handleClaimError(ctx, logger, err)
			continue
		}
		if job == nil {
			m.waitForJobOrShutdown(ctx)
			continue
		}

		if err := m.processJob(ctx, logger, job); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

// claimNext tries both lanes in weighted order. The shared round counter
// gives the expedited lane the first look in expeditedWeight out of every
// expeditedWeight+1 rounds, so standard work always drains eventually.
func (m *Manager) claimNext(ctx context.Context) (*queue.Job, error) {
	round := m.claimRound.Add(1) - 1
	order := [2]queue.Lane{queue.LaneExpedited, queue.LaneStandard}
	if round%uint64(m.expeditedWeight+1) == uint64(m.expeditedWeight) {
		order = [2]queue.Lane{queue.LaneStandard, queue.LaneExpedited}
	}

	for _, lane := range order {
		job, err := m.store.ClaimNext(ctx, lane, m.claimTransitions)
		if err != nil {
			return nil, err
		}
		if job != nil {
			return job, nil
		}
	}
	return nil, nil
}

func (m *Manager) handleClaimError(ctx context.Context, logger *slog.Logger, err error) {
	m.setLastError(err)
	logger.Error("failed to claim next queue job",
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_claim_failed"),
		logging.String(logging.FieldErrorHint, "check queue database access"),
	)
	select {
	case <-ctx.Done():
	case <-time.After(m.errorRetry):
	}
}

func (m *Manager) waitForJobOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(m.pollInterval):
	}
}
