package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clipforge/internal/api"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	content := fmt.Sprintf(`[paths]
download_dir = %q
trim_dir = %q
merge_dir = %q
highlight_dir = %q
log_dir = %q
`,
		filepath.Join(base, "download"),
		filepath.Join(base, "trim"),
		filepath.Join(base, "merge"),
		filepath.Join(base, "highlight"),
		filepath.Join(base, "log"),
	)
	path := filepath.Join(base, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestParseSegmentFlags(t *testing.T) {
	ranges, err := parseSegmentFlags([]string{"0-10", " 12.5-30 "})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(ranges) != 2 || ranges[1].Start != 12.5 || ranges[1].End != 30 {
		t.Fatalf("unexpected ranges %+v", ranges)
	}

	for _, bad := range []string{"10", "a-b", "5-"} {
		if _, err := parseSegmentFlags([]string{bad}); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestParseJobID(t *testing.T) {
	if _, err := parseJobID("0"); err == nil {
		t.Fatal("expected error for non-positive id")
	}
	if _, err := parseJobID("abc"); err == nil {
		t.Fatal("expected error for non-numeric id")
	}
	id, err := parseJobID(" 42 ")
	if err != nil || id != 42 {
		t.Fatalf("expected 42, got %d (%v)", id, err)
	}
}

func TestSubmitAndQueueList(t *testing.T) {
	configPath := writeTestConfig(t)

	out, err := runCLI(t, "--config", configPath,
		"submit", "video-1",
		"--user", "alice",
		"--duration", "120",
		"--segment", "0-10",
		"--segment", "20-30",
		"--json",
	)
	if err != nil {
		t.Fatalf("submit failed: %v\n%s", err, out)
	}
	var created api.JobResponse
	if err := json.Unmarshal([]byte(out), &created); err != nil {
		t.Fatalf("decode submit output: %v\n%s", err, out)
	}
	if created.Job.Status != "pending" {
		t.Fatalf("expected pending job, got %s", created.Job.Status)
	}
	if created.Job.Transition != "fade" {
		t.Fatalf("expected auto transition to resolve to fade, got %s", created.Job.Transition)
	}

	out, err = runCLI(t, "--config", configPath, "queue", "list", "--json")
	if err != nil {
		t.Fatalf("queue list failed: %v\n%s", err, out)
	}
	var listed api.JobListResponse
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("decode list output: %v\n%s", err, out)
	}
	if len(listed.Jobs) != 1 || listed.Jobs[0].ID != created.Job.ID {
		t.Fatalf("unexpected list %+v", listed.Jobs)
	}
}

func TestQueueShowMissingJob(t *testing.T) {
	configPath := writeTestConfig(t)

	out, err := runCLI(t, "--config", configPath, "queue", "show", "99")
	if err == nil {
		t.Fatalf("expected error for missing job, got output:\n%s", out)
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCLI(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init failed: %v\n%s", err, out)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[paths]") {
		t.Fatal("expected sample config to contain a paths section")
	}

	if _, err := runCLI(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected second init without --overwrite to fail")
	}
}
