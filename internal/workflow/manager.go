package workflow

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"clipforge/internal/config"
	"clipforge/internal/logging"
	"clipforge/internal/notifications"
	"clipforge/internal/queue"
)

// Manager coordinates queue processing using the registered stage handlers.
type Manager struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	notifier notifications.Service

	heartbeat *HeartbeatMonitor

	pipeline          []pipelineStage
	stageByProcessing map[queue.Status]pipelineStage
	claimTransitions  map[queue.Status]queue.Status

	pollInterval    time.Duration
	errorRetry      time.Duration
	workers         int
	expeditedWeight int
	retryAttempts   int
	retryBackoff    time.Duration

	claimRound atomic.Uint64

	mu      sync.RWMutex
	running bool
	cancel  func()
	wg      sync.WaitGroup
	lastErr error
	lastJob *queue.Job
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithNotifier overrides the notification service (used in tests).
func WithNotifier(notifier notifications.Service) ManagerOption {
	return func(m *Manager) {
		if notifier != nil {
			m.notifier = notifier
		}
	}
}

// NewManager constructs a workflow manager around the given stage handlers.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, set StageSet, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	pipeline := buildPipeline(set)
	stageByProcessing := make(map[queue.Status]pipelineStage, len(pipeline))
	claimTransitions := make(map[queue.Status]queue.Status, len(pipeline))
	for _, stg := range pipeline {
		stageByProcessing[stg.processingStatus] = stg
		claimTransitions[stg.startStatus] = stg.processingStatus
	}

	workers := cfg.Workflow.Workers
	if workers <= 0 {
		workers = 1
	}
	weight := cfg.Workflow.ExpeditedWeight
	if weight <= 0 {
		weight = 1
	}
	attempts := cfg.Workflow.StageRetryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	m := &Manager{
		cfg:               cfg,
		store:             store,
		logger:            logger.With(logging.String(logging.FieldComponent, "workflow-manager")),
		notifier:          notifications.NewService(cfg),
		pipeline:          pipeline,
		stageByProcessing: stageByProcessing,
		claimTransitions:  claimTransitions,
		pollInterval:      time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		errorRetry:        time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		workers:           workers,
		expeditedWeight:   weight,
		retryAttempts:     attempts,
		retryBackoff:      time.Duration(cfg.Workflow.StageRetryBackoff) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
	}
	if m.pollInterval <= 0 {
		m.pollInterval = time.Second
	}
	if m.errorRetry <= 0 {
		m.errorRetry = m.pollInterval
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(job *queue.Job) {
	m.mu.Lock()
	if job != nil {
		cp := *job
		m.lastJob = &cp
	} else {
		m.lastJob = nil
	}
	m.mu.Unlock()
}
