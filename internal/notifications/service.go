package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"clipforge/internal/config"
)

const userAgent = "ClipForge/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyPublishCompleted(ctx context.Context, title, videoURL string) error
	NotifyJobFailed(ctx context.Context, jobID int64, stageName, message string) error
	NotifyQueueCompleted(ctx context.Context, processed, failed int, duration time.Duration) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:      topic,
		client:        &http.Client{Timeout: timeout},
		sendPublishes: cfg.Notifications.Publish,
		sendErrors:    cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint      string
	client        *http.Client
	sendPublishes bool
	sendErrors    bool
}

func (n *ntfyService) NotifyPublishCompleted(ctx context.Context, title, videoURL string) error {
	if !n.sendPublishes {
		return nil
	}
	title = strings.TrimSpace(title)
	message := fmt.Sprintf("Highlight published: %s", title)
	if videoURL = strings.TrimSpace(videoURL); videoURL != "" {
		message = fmt.Sprintf("%s\n%s", message, videoURL)
	}
	data := payload{
		title:    "ClipForge - Published",
		message:  message,
		tags:     []string{"clipforge", "publish", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, jobID int64, stageName, message string) error {
	if !n.sendErrors {
		return nil
	}
	message = strings.TrimSpace(message)
	if message == "" {
		message = "no error detail"
	}
	data := payload{
		title:    "ClipForge - Job Failed",
		message:  fmt.Sprintf("Job %d failed during %s: %s", jobID, stageName, message),
		tags:     []string{"clipforge", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyQueueCompleted(ctx context.Context, processed, failed int, duration time.Duration) error {
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}

	var title, message string
	if failed == 0 {
		title = "ClipForge - Queue Complete"
		message = fmt.Sprintf("Queue drained: %d jobs processed in %s", processed, duration)
	} else {
		title = "ClipForge - Queue Complete (with errors)"
		message = fmt.Sprintf("Queue drained: %d succeeded, %d failed in %s", processed, failed, duration)
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"clipforge", "queue", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "ClipForge - Test",
		message:  "Notification system test",
		tags:     []string{"clipforge", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyPublishCompleted(context.Context, string, string) error        { return nil }
func (noopService) NotifyJobFailed(context.Context, int64, string, string) error        { return nil }
func (noopService) NotifyQueueCompleted(context.Context, int, int, time.Duration) error { return nil }
func (noopService) TestNotification(context.Context) error                              { return nil }
