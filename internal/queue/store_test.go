package queue_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"clipforge/internal/queue"
	"clipforge/internal/testsupport"
)

func TestOpenCreatesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job, err := store.NewJob(ctx, queue.NewJobParams{
		UserID:        "user-1",
		SourceVideoID: "dQw4w9WgXcQ",
		SegmentsJSON:  `[{"start":5,"end":20}]`,
		Transition:    "fade",
		Plan:          "free",
		Lane:          queue.LaneStandard,
		Title:         "First Highlight",
	})
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	if job.ID == 0 {
		t.Fatal("expected job ID to be assigned")
	}
	if job.Status != queue.StatusPending {
		t.Fatalf("expected pending status, got %s", job.Status)
	}
	if job.PrivacyStatus != "unlisted" {
		t.Fatalf("expected default privacy unlisted, got %q", job.PrivacyStatus)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.SourceVideoID != "dQw4w9WgXcQ" {
		t.Fatalf("unexpected fetched job: %#v", fetched)
	}
}

func TestUpdatePersistsFields(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, "user-1", "vid-1")

	job.Status = queue.StatusFetched
	job.SourceFile = "/tmp/source.mp4"
	job.SetProgress("Fetching", "download complete", 100)
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != queue.StatusFetched {
		t.Fatalf("expected fetched status, got %s", fetched.Status)
	}
	if fetched.SourceFile != "/tmp/source.mp4" {
		t.Fatalf("unexpected source file: %q", fetched.SourceFile)
	}
	if fetched.ProgressStage != "Fetching" || fetched.ProgressPercent != 100 {
		t.Fatalf("unexpected progress: %q %f", fetched.ProgressStage, fetched.ProgressPercent)
	}
}

func TestUpdateStampsCompletedAt(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, "user-1", "vid-1")
	job.Status = queue.StatusCompleted
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.CompletedAt == nil {
		t.Fatal("expected completed_at to be stamped")
	}
}

func TestEnqueueIsIdempotentForActiveJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, "user-1", "vid-1")
	job.Status = queue.StatusComposing
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	requeued, err := store.Enqueue(ctx, job.ID)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if requeued.Status != queue.StatusComposing {
		t.Fatalf("expected enqueue to leave active job untouched, got %s", requeued.Status)
	}
}

func TestEnqueueResetsFailedJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, "user-1", "vid-1")
	job.SetFailed("cut failed: exit status 1")
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	requeued, err := store.Enqueue(ctx, job.ID)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if requeued.Status != queue.StatusPending {
		t.Fatalf("expected failed job to reset to pending, got %s", requeued.Status)
	}
	if requeued.ErrorMessage != "" {
		t.Fatalf("expected error message cleared, got %q", requeued.ErrorMessage)
	}
}

func TestClaimNextRespectsLaneAndOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	transitions := map[queue.Status]queue.Status{
		queue.StatusPending: queue.StatusFetching,
	}

	first := testsupport.NewJob(t, store, "user-1", "vid-1")
	second := testsupport.NewJob(t, store, "user-2", "vid-2")
	expedited, err := store.NewJob(ctx, queue.NewJobParams{
		UserID:        "user-3",
		SourceVideoID: "vid-3",
		SegmentsJSON:  `[{"start":0,"end":5}]`,
		Transition:    "zoom",
		Plan:          "paid",
		Lane:          queue.LaneExpedited,
	})
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}

	claimed, err := store.ClaimNext(ctx, queue.LaneExpedited, transitions)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if claimed == nil || claimed.ID != expedited.ID {
		t.Fatalf("expected expedited job, got %#v", claimed)
	}
	if claimed.Status != queue.StatusFetching {
		t.Fatalf("expected fetching status, got %s", claimed.Status)
	}
	if claimed.LastHeartbeat == nil {
		t.Fatal("expected heartbeat stamped on claim")
	}

	claimed, err = store.ClaimNext(ctx, queue.LaneStandard, transitions)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if claimed == nil || claimed.ID != first.ID {
		t.Fatalf("expected oldest standard job %d, got %#v", first.ID, claimed)
	}

	claimed, err = store.ClaimNext(ctx, queue.LaneStandard, transitions)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if claimed == nil || claimed.ID != second.ID {
		t.Fatalf("expected second standard job %d, got %#v", second.ID, claimed)
	}

	claimed, err = store.ClaimNext(ctx, queue.LaneStandard, transitions)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if claimed != nil {
		t.Fatalf("expected empty lane, got %#v", claimed)
	}
}

func TestReclaimStaleRollsBackProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	cases := []struct {
		name          string
		initialStatus queue.Status
		expected      queue.Status
	}{
		{"fetching", queue.StatusFetching, queue.StatusPending},
		{"cutting", queue.StatusCutting, queue.StatusFetched},
		{"composing", queue.StatusComposing, queue.StatusCut},
		{"finishing", queue.StatusFinishing, queue.StatusComposed},
		{"publishing", queue.StatusPublishing, queue.StatusFinished},
	}

	stale := time.Now().Add(-10 * time.Minute)
	var ids []int64
	for i, tc := range cases {
		job := testsupport.NewJob(t, store, fmt.Sprintf("user-%d", i), fmt.Sprintf("vid-%s", tc.name))
		job.Status = tc.initialStatus
		job.LastHeartbeat = &stale
		if err := store.Update(ctx, job); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		ids = append(ids, job.ID)
	}

	reclaimed, err := store.ReclaimStale(ctx, time.Minute)
	if err != nil {
		t.Fatalf("ReclaimStale failed: %v", err)
	}
	if reclaimed != int64(len(cases)) {
		t.Fatalf("expected %d reclaimed jobs, got %d", len(cases), reclaimed)
	}

	for i, tc := range cases {
		job, err := store.GetByID(ctx, ids[i])
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if job.Status != tc.expected {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.expected, job.Status)
		}
		if job.LastHeartbeat != nil {
			t.Fatalf("%s: expected heartbeat cleared", tc.name)
		}
	}
}

func TestReclaimStaleSkipsLiveJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, "user-1", "vid-1")
	job.Status = queue.StatusCutting
	now := time.Now()
	job.LastHeartbeat = &now
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	reclaimed, err := store.ReclaimStale(ctx, time.Minute)
	if err != nil {
		t.Fatalf("ReclaimStale failed: %v", err)
	}
	if reclaimed != 0 {
		t.Fatalf("expected no reclaimed jobs, got %d", reclaimed)
	}
}

func TestCountCompletedSince(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	monthStart := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)

	inWindow := testsupport.NewJob(t, store, "user-1", "vid-1")
	inWindow.Status = queue.StatusCompleted
	completed := monthStart.Add(48 * time.Hour)
	inWindow.CompletedAt = &completed
	if err := store.Update(ctx, inWindow); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	before := testsupport.NewJob(t, store, "user-1", "vid-2")
	before.Status = queue.StatusCompleted
	earlier := monthStart.Add(-time.Hour)
	before.CompletedAt = &earlier
	if err := store.Update(ctx, before); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	otherUser := testsupport.NewJob(t, store, "user-2", "vid-3")
	otherUser.Status = queue.StatusCompleted
	otherUser.CompletedAt = &completed
	if err := store.Update(ctx, otherUser); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	count, err := store.CountCompletedSince(ctx, "user-1", monthStart)
	if err != nil {
		t.Fatalf("CountCompletedSince failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 completed job in window, got %d", count)
	}
}

func TestRequestCancelSkipsTerminalJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	active := testsupport.NewJob(t, store, "user-1", "vid-1")
	flagged, err := store.RequestCancel(ctx, active.ID)
	if err != nil {
		t.Fatalf("RequestCancel failed: %v", err)
	}
	if !flagged {
		t.Fatal("expected active job to be flagged for cancellation")
	}

	fetched, err := store.GetByID(ctx, active.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !fetched.CancelRequested {
		t.Fatal("expected cancel_requested set")
	}

	done := testsupport.NewJob(t, store, "user-1", "vid-2")
	done.Status = queue.StatusCompleted
	if err := store.Update(ctx, done); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	flagged, err = store.RequestCancel(ctx, done.ID)
	if err != nil {
		t.Fatalf("RequestCancel failed: %v", err)
	}
	if flagged {
		t.Fatal("expected terminal job to be skipped")
	}
}

func TestClearCompletedRemovesOnlyCompleted(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	pending := testsupport.NewJob(t, store, "user-1", "vid-1")
	done := testsupport.NewJob(t, store, "user-1", "vid-2")
	done.Status = queue.StatusCompleted
	if err := store.Update(ctx, done); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	removed, err := store.ClearCompleted(ctx)
	if err != nil {
		t.Fatalf("ClearCompleted failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed job, got %d", removed)
	}

	remaining, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != pending.ID {
		t.Fatalf("unexpected remaining jobs: %#v", remaining)
	}
}

func TestCountByStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewJob(t, store, "user-1", "vid-1")
	testsupport.NewJob(t, store, "user-1", "vid-2")
	failed := testsupport.NewJob(t, store, "user-1", "vid-3")
	failed.SetFailed("boom")
	if err := store.Update(ctx, failed); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	counts, err := store.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus failed: %v", err)
	}
	if counts[queue.StatusPending] != 2 {
		t.Fatalf("expected 2 pending, got %d", counts[queue.StatusPending])
	}
	if counts[queue.StatusFailed] != 1 {
		t.Fatalf("expected 1 failed, got %d", counts[queue.StatusFailed])
	}
}

func TestSegmentsRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	job := testsupport.NewJob(t, store, "user-1", "vid-1")
	planned, err := job.Segments()
	if err != nil {
		t.Fatalf("Segments failed: %v", err)
	}
	if len(planned) != 1 || planned[0].Start != 0 || planned[0].End != 10 {
		t.Fatalf("unexpected segments: %#v", planned)
	}
}
