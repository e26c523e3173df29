package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"clipforge/internal/api"
	"clipforge/internal/queue"
	"clipforge/internal/segments"
	"clipforge/internal/testsupport"
)

func newTestAPI(t *testing.T, token string) (*Daemon, *httptest.Server) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Paths.APIToken = token
	d := newTestDaemon(t, cfg)
	if d.server == nil {
		t.Fatal("expected api server to be configured")
	}
	server := httptest.NewServer(d.server.server.Handler)
	t.Cleanup(server.Close)
	return d, server
}

func submitBody(t *testing.T, videoID string) *bytes.Reader {
	t.Helper()
	payload, err := json.Marshal(api.SubmitRequest{
		UserID:         "alice",
		SourceVideoID:  videoID,
		SourceDuration: 120,
		Ranges:         []segments.Range{{Start: 0, End: 10}},
		Transition:     "fade",
		Plan:           "free",
		Title:          "Best Moments",
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return bytes.NewReader(payload)
}

func TestAPIRequiresBearerToken(t *testing.T) {
	_, server := newTestAPI(t, "secret-token")

	resp, err := http.Get(server.URL + "/api/stats")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/api/stats", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", resp.StatusCode)
	}
}

func TestAPISubmitAndFetchJob(t *testing.T) {
	_, server := newTestAPI(t, "")

	resp, err := http.Post(server.URL+"/api/jobs", "application/json", submitBody(t, "video-1"))
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created api.JobResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.Job.Status != string(queue.StatusPending) {
		t.Fatalf("expected pending job, got %s", created.Job.Status)
	}

	resp, err = http.Get(fmt.Sprintf("%s/api/jobs/%d", server.URL, created.Job.ID))
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var fetched api.JobResponse
	if err := json.NewDecoder(resp.Body).Decode(&fetched); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if fetched.Job.ID != created.Job.ID {
		t.Fatalf("expected job %d, got %d", created.Job.ID, fetched.Job.ID)
	}
}

func TestAPIRejectsInvalidSubmission(t *testing.T) {
	_, server := newTestAPI(t, "")

	payload := []byte(`{"userId":"alice","sourceVideoId":"video-1","sourceDuration":60,"segments":[{"start":30,"end":10}]}`)
	resp, err := http.Post(server.URL+"/api/jobs", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for invalid segments, got %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body["error"] == "" {
		t.Fatal("expected an error message in the response body")
	}
}

func TestAPIMapsQuotaToTooManyRequests(t *testing.T) {
	d, server := newTestAPI(t, "")

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		job := testsupport.NewJob(t, d.store, "alice", "old-video")
		job.Status = queue.StatusCompleted
		if err := d.store.Update(ctx, job); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}

	resp, err := http.Post(server.URL+"/api/jobs", "application/json", submitBody(t, "video-2"))
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 when over quota, got %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body["error"] == "" {
		t.Fatal("expected an error message in the response body")
	}
}

func TestAPICancelAndRetry(t *testing.T) {
	d, server := newTestAPI(t, "")

	job := testsupport.NewJob(t, d.store, "alice", "video-1")

	resp, err := http.Post(fmt.Sprintf("%s/api/jobs/%d/cancel", server.URL, job.ID), "application/json", nil)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for cancel, got %d", resp.StatusCode)
	}

	job.SetFailed("cut failed")
	if err := d.store.Update(context.Background(), job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	resp, err = http.Post(fmt.Sprintf("%s/api/jobs/%d/retry", server.URL, job.ID), "application/json", nil)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for retry, got %d", resp.StatusCode)
	}
	var retried api.JobResponse
	if err := json.NewDecoder(resp.Body).Decode(&retried); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if retried.Job.Status != string(queue.StatusPending) {
		t.Fatalf("expected pending after retry, got %s", retried.Job.Status)
	}
}

func TestAPIHealthReflectsStageReadiness(t *testing.T) {
	_, server := newTestAPI(t, "")

	resp, err := http.Get(server.URL + "/api/health")
	if err != nil {
		t.Fatalf("health failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from healthy stages, got %d", resp.StatusCode)
	}
}
