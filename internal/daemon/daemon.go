package daemon

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/gofrs/flock"

	"clipforge/internal/api"
	"clipforge/internal/config"
	"clipforge/internal/logging"
	"clipforge/internal/notifications"
	"clipforge/internal/queue"
	"clipforge/internal/staging"
	"clipforge/internal/tier"
	"clipforge/internal/workflow"
)

const (
	// workspaceMaxAge is how long abandoned stage workspaces survive
	// before the janitor removes them.
	workspaceMaxAge = 24 * time.Hour

	workspaceSweepInterval = time.Hour
)

// Daemon coordinates background processing and enforces single-instance
// execution through a lock file under the log directory.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	jobs     *api.Service
	server   *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Workflow     workflow.StatusSummary
	QueueDBPath  string
	LockFilePath string
	APIBind      string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, logger, and workflow manager")
	}

	jobs, err := api.NewService(store, tier.NewPolicy(cfg.Tiers), logger)
	if err != nil {
		return nil, err
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "clipforged.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		workflow: wf,
		jobs:     jobs,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.server = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock and launches the workflow manager, the
// workspace janitor, and the HTTP API when configured.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another clipforge daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.workflow.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start workflow: %w", err)
	}

	if err := d.server.start(d.ctx); err != nil {
		d.workflow.Stop()
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return err
	}

	d.wg.Add(1)
	go d.runWorkspaceJanitor(d.ctx)

	d.running.Store(true)
	d.logger.Info("clipforge daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.server.stop()
	d.workflow.Stop()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("clipforge daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Jobs exposes the admission service backing both the CLI and the HTTP API.
func (d *Daemon) Jobs() *api.Service {
	return d.jobs
}

// TestNotification sends a test push through the configured ntfy topic.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg.Notifications.NtfyTopic == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		Workflow:     d.workflow.Status(ctx),
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		APIBind:      d.cfg.Paths.APIBind,
	}
}

// runWorkspaceJanitor ages out orphaned stage workspaces left behind by
// crashed or removed jobs. Per-job directories are normally cleaned by the
// finish stage; the janitor is the backstop.
func (d *Daemon) runWorkspaceJanitor(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(workspaceSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result := staging.CleanWorkspaces(ctx, d.cfg.WorkspaceRoots(), workspaceMaxAge, d.logger)
			if len(result.Removed) > 0 || len(result.Errors) > 0 {
				d.logger.Info("workspace sweep finished",
					logging.Int("removed", len(result.Removed)),
					logging.Int("errors", len(result.Errors)),
				)
			}
		}
	}
}
