package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"clipforge/internal/config"
	"clipforge/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyPublishCompleted(context.Background(), "Example", "https://youtu.be/abc"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

type capturedNotification struct {
	title    string
	tags     string
	priority string
	body     string
}

func captureServer(t *testing.T, captured *capturedNotification, calls *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		*calls++
		captured.title = r.Header.Get("Title")
		captured.tags = r.Header.Get("Tags")
		captured.priority = r.Header.Get("Priority")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		captured.body = string(body)
		w.WriteHeader(http.StatusOK)
	}))
}

func TestNtfyServiceFormatsPublishCompleted(t *testing.T) {
	var captured capturedNotification
	calls := 0
	server := captureServer(t, &captured, &calls)
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Publish = true

	svc := notifications.NewService(&cfg)
	if err := svc.NotifyPublishCompleted(context.Background(), "Best Moments", "https://youtu.be/abc"); err != nil {
		t.Fatalf("notification returned error: %v", err)
	}

	if captured.title != "ClipForge - Published" {
		t.Fatalf("unexpected title %q", captured.title)
	}
	if captured.body != "Highlight published: Best Moments\nhttps://youtu.be/abc" {
		t.Fatalf("unexpected message %q", captured.body)
	}
	if captured.tags != "clipforge,publish,completed" {
		t.Fatalf("unexpected tags %q", captured.tags)
	}
	if captured.priority != "high" {
		t.Fatalf("unexpected priority %q", captured.priority)
	}
}

func TestNtfyServiceFormatsJobFailed(t *testing.T) {
	var captured capturedNotification
	calls := 0
	server := captureServer(t, &captured, &calls)
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Errors = true

	svc := notifications.NewService(&cfg)
	if err := svc.NotifyJobFailed(context.Background(), 42, "compose", "boundary drift persisted"); err != nil {
		t.Fatalf("notification returned error: %v", err)
	}

	if captured.title != "ClipForge - Job Failed" {
		t.Fatalf("unexpected title %q", captured.title)
	}
	if captured.body != "Job 42 failed during compose: boundary drift persisted" {
		t.Fatalf("unexpected message %q", captured.body)
	}
}

func TestNtfyServiceSuppressesDisabledEvents(t *testing.T) {
	var captured capturedNotification
	calls := 0
	server := captureServer(t, &captured, &calls)
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Publish = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(&cfg)
	if err := svc.NotifyPublishCompleted(context.Background(), "Clip", "url"); err != nil {
		t.Fatalf("suppressed publish returned error: %v", err)
	}
	if err := svc.NotifyJobFailed(context.Background(), 1, "fetch", "boom"); err != nil {
		t.Fatalf("suppressed error event returned error: %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no requests for suppressed events, got %d", calls)
	}
}
