package daemon

import (
	"context"
	"testing"
	"time"

	"clipforge/internal/config"
	"clipforge/internal/logging"
	"clipforge/internal/queue"
	"clipforge/internal/stage"
	"clipforge/internal/testsupport"
	"clipforge/internal/workflow"
)

type idleHandler struct {
	name string
}

func (h idleHandler) Prepare(context.Context, *queue.Job) error { return nil }

func (h idleHandler) Execute(context.Context, *queue.Job) error { return nil }

func (h idleHandler) HealthCheck(context.Context) stage.Health { return stage.Healthy(h.name) }

func idleStageSet() workflow.StageSet {
	return workflow.StageSet{
		Fetcher:   idleHandler{name: "fetch"},
		Cutter:    idleHandler{name: "cut"},
		Composer:  idleHandler{name: "compose"},
		Finisher:  idleHandler{name: "finish"},
		Publisher: idleHandler{name: "publish"},
	}
}

func newTestDaemon(t *testing.T, cfg *config.Config) *Daemon {
	t.Helper()
	store := testsupport.MustOpenStore(t, cfg)
	manager := workflow.NewManager(cfg, store, logging.NewNop(), idleStageSet())
	d, err := New(cfg, store, logging.NewNop(), manager)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newTestDaemon(t, cfg)
	defer d.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.LockFilePath == "" {
		t.Fatal("expected lock file path in status")
	}
	if status.QueueDBPath != d.store.Path() {
		t.Fatalf("queue db path = %q, want %q", status.QueueDBPath, d.store.Path())
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second Start on a running daemon to fail")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to report stopped")
	}
}

func TestDaemonRejectsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	first := newTestDaemon(t, cfg)
	defer first.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}

	second := newTestDaemon(t, cfg)
	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("expected second instance to be rejected by the lock file")
	}

	first.Stop()
	if err := second.Start(ctx); err != nil {
		t.Fatalf("expected lock to be free after Stop, got %v", err)
	}
	second.Stop()
}

func TestTestNotificationWithoutTopic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newTestDaemon(t, cfg)

	sent, detail, err := d.TestNotification(context.Background())
	if err != nil {
		t.Fatalf("TestNotification failed: %v", err)
	}
	if sent {
		t.Fatal("expected no notification without a configured topic")
	}
	if detail == "" {
		t.Fatal("expected an explanation detail")
	}
}
