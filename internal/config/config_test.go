package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"clipforge/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatalf("expected missing config, got exists for %s", resolved)
	}
	if cfg.FFmpeg.TransitionSeconds != 1.0 {
		t.Errorf("TransitionSeconds = %v, want 1.0", cfg.FFmpeg.TransitionSeconds)
	}
	if cfg.Tiers.Free.MonthlyQuota != 2 {
		t.Errorf("free quota = %d, want 2", cfg.Tiers.Free.MonthlyQuota)
	}
	if cfg.Tiers.Paid.MonthlyQuota != config.UnlimitedQuota {
		t.Errorf("paid quota = %d, want unlimited sentinel", cfg.Tiers.Paid.MonthlyQuota)
	}
}

func TestLoadAppliesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
download_dir = "` + filepath.Join(dir, "dl") + `"
trim_dir = "` + filepath.Join(dir, "trim") + `"
merge_dir = "` + filepath.Join(dir, "merge") + `"
highlight_dir = "` + filepath.Join(dir, "hl") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[ffmpeg]
transition_seconds = 0.5

[tiers.free]
transitions = ["Fade", "fade", "cut"]
monthly_quota = 5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be detected")
	}
	if cfg.FFmpeg.TransitionSeconds != 0.5 {
		t.Errorf("TransitionSeconds = %v, want 0.5", cfg.FFmpeg.TransitionSeconds)
	}
	if got := cfg.Tiers.Free.Transitions; len(got) != 2 || got[0] != "fade" || got[1] != "cut" {
		t.Errorf("free transitions = %v, want deduplicated [fade cut]", got)
	}
	if cfg.Tiers.Free.MonthlyQuota != 5 {
		t.Errorf("free quota = %d, want 5", cfg.Tiers.Free.MonthlyQuota)
	}
}

func TestValidateRejectsSharedWorkspaces(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DownloadDir = "/tmp/clipforge-test/shared"
	cfg.Paths.TrimDir = "/tmp/clipforge-test/shared"
	cfg.Paths.MergeDir = "/tmp/clipforge-test/merge"
	cfg.Paths.HighlightDir = "/tmp/clipforge-test/hl"
	cfg.Paths.LogDir = "/tmp/clipforge-test/logs"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation failure for shared workspace directories")
	}
}

func TestValidateRejectsBadWatermarkPosition(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DownloadDir = "/tmp/a"
	cfg.Paths.TrimDir = "/tmp/b"
	cfg.Paths.MergeDir = "/tmp/c"
	cfg.Paths.HighlightDir = "/tmp/d"
	cfg.Paths.LogDir = "/tmp/e"
	cfg.Watermark.Position = "center"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation failure for unknown watermark position")
	}
}

func TestValidateHeartbeatOrdering(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DownloadDir = "/tmp/a"
	cfg.Paths.TrimDir = "/tmp/b"
	cfg.Paths.MergeDir = "/tmp/c"
	cfg.Paths.HighlightDir = "/tmp/d"
	cfg.Paths.LogDir = "/tmp/e"
	cfg.Workflow.HeartbeatInterval = 30
	cfg.Workflow.HeartbeatTimeout = 30
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation failure when heartbeat timeout <= interval")
	}
}
