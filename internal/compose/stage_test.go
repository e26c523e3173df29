package compose

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"clipforge/internal/config"
	"clipforge/internal/media/ffmpeg"
	"clipforge/internal/queue"
	"clipforge/internal/services"
	"clipforge/internal/testsupport"
)

func newComposerWithConfig(t *testing.T, cfg *config.Config, fake *fakeMedia) *Composer {
	t.Helper()
	runner, err := ffmpeg.NewRunner("ffmpeg", ffmpeg.WithExecutor(fake))
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	composer, err := New(cfg, runner, fake, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return composer
}

// TestStageExecuteAcceptsEveryStyle drives the full stage entry point for
// each caller-facing style name, as the workflow manager does with the
// job's transition field. A style admitted for a plan must compose without
// surfacing an admission-class error here.
func TestStageExecuteAcceptsEveryStyle(t *testing.T) {
	styles := []string{"cut", "fade", "fadeblack", "crossfade", "slide", "wipe", "zoom", "auto"}

	for _, style := range styles {
		t.Run(style, func(t *testing.T) {
			cfg := testsupport.NewConfig(t)
			trimDir := filepath.Join(cfg.Paths.TrimDir, "job-7")
			if err := os.MkdirAll(trimDir, 0o755); err != nil {
				t.Fatalf("mkdir trim dir: %v", err)
			}
			parts := writeParts(t, trimDir, 2)

			fake := &fakeMedia{t: t, durations: map[string][2]float64{}}
			for _, part := range parts {
				fake.setAligned(part, 10)
			}
			workDir := filepath.Join(cfg.Paths.MergeDir, "job-7")
			fake.setAligned(filepath.Join(workDir, ".compose_step_01.mp4"), 19)

			stg := NewStage(cfg, newComposerWithConfig(t, cfg, fake), nil)
			job := &queue.Job{ID: 7, Transition: style, TrimDir: trimDir}

			if err := stg.Execute(context.Background(), job); err != nil {
				t.Fatalf("Execute(%q) failed: %v", style, err)
			}
			want := filepath.Join(workDir, "highlight_merged.mp4")
			if job.MergedFile != want {
				t.Fatalf("merged file = %q, want %q", job.MergedFile, want)
			}
			if _, err := os.Stat(job.MergedFile); err != nil {
				t.Fatalf("merged file missing: %v", err)
			}
		})
	}
}

func TestStageExecuteRejectsUnknownStyle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	trimDir := filepath.Join(cfg.Paths.TrimDir, "job-9")
	if err := os.MkdirAll(trimDir, 0o755); err != nil {
		t.Fatalf("mkdir trim dir: %v", err)
	}
	writeParts(t, trimDir, 2)

	fake := &fakeMedia{t: t, durations: map[string][2]float64{}}
	stg := NewStage(cfg, newComposerWithConfig(t, cfg, fake), nil)
	job := &queue.Job{ID: 9, Transition: "spin", TrimDir: trimDir}

	err := stg.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrUnsupportedTransition) {
		t.Fatalf("expected unsupported transition, got %v", err)
	}
	if len(fake.calls) != 0 {
		t.Fatalf("expected no ffmpeg runs, got %d", len(fake.calls))
	}
}
