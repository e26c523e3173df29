package cutting

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"clipforge/internal/media/ffmpeg"
	"clipforge/internal/media/ffprobe"
	"clipforge/internal/segments"
	"clipforge/internal/services"
	"clipforge/internal/testsupport"
)

type recordingExecutor struct {
	calls [][]string
	fail  map[int]error
}

func (r *recordingExecutor) Run(ctx context.Context, binary string, args []string, onLine func(string)) error {
	index := len(r.calls)
	r.calls = append(r.calls, append([]string(nil), args...))
	if err, ok := r.fail[index]; ok {
		return err
	}
	return nil
}

type durationInspector struct {
	// durations maps target path to reported duration.
	durations map[string]float64
}

func (d durationInspector) Inspect(ctx context.Context, path string) (ffprobe.Result, error) {
	duration, ok := d.durations[path]
	if !ok {
		return ffprobe.Result{}, fmt.Errorf("unexpected inspect of %s", path)
	}
	return ffprobe.Result{Format: ffprobe.Format{Duration: fmt.Sprintf("%.3f", duration)}}, nil
}

func newCutter(t *testing.T, exec ffmpeg.Executor, inspector ffmpeg.Inspector) *Cutter {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	runner, err := ffmpeg.NewRunner("ffmpeg", ffmpeg.WithExecutor(exec))
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	cutter, err := New(cfg, runner, inspector, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return cutter
}

func hasFlag(args []string, flag, value string) bool {
	for i, arg := range args {
		if arg == flag && i+1 < len(args) && args[i+1] == value {
			return true
		}
	}
	return false
}

func TestCutUsesStreamCopyWhenPrecise(t *testing.T) {
	trimDir := t.TempDir()
	exec := &recordingExecutor{}
	inspector := durationInspector{durations: map[string]float64{
		filepath.Join(trimDir, "part_00.mp4"): 10.0,
		filepath.Join(trimDir, "part_01.mp4"): 5.1,
	}}
	cutter := newCutter(t, exec, inspector)

	planned := []segments.Segment{
		{Start: 0, End: 10, Position: 0},
		{Start: 20, End: 25.1, Position: 1},
	}
	parts, err := cutter.Cut(context.Background(), "/tmp/source.mp4", planned, trimDir)
	if err != nil {
		t.Fatalf("Cut failed: %v", err)
	}
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	if filepath.Base(parts[0]) != "part_00.mp4" || filepath.Base(parts[1]) != "part_01.mp4" {
		t.Fatalf("unexpected part names: %v", parts)
	}
	if len(exec.calls) != 2 {
		t.Fatalf("expected 2 ffmpeg runs, got %d", len(exec.calls))
	}
	for _, call := range exec.calls {
		if !hasFlag(call, "-c", "copy") {
			t.Fatalf("expected stream copy args, got %v", call)
		}
	}
}

func TestCutFallsBackToReencodePerSegment(t *testing.T) {
	trimDir := t.TempDir()
	exec := &recordingExecutor{}
	// First part lands half a second long; second is exact.
	inspector := durationInspector{durations: map[string]float64{
		filepath.Join(trimDir, "part_00.mp4"): 10.5,
		filepath.Join(trimDir, "part_01.mp4"): 5.0,
	}}
	cutter := newCutter(t, exec, inspector)

	planned := []segments.Segment{
		{Start: 0, End: 10, Position: 0},
		{Start: 20, End: 25, Position: 1},
	}
	if _, err := cutter.Cut(context.Background(), "/tmp/source.mp4", planned, trimDir); err != nil {
		t.Fatalf("Cut failed: %v", err)
	}

	// copy part 0, re-encode part 0, copy part 1.
	if len(exec.calls) != 3 {
		t.Fatalf("expected 3 ffmpeg runs, got %d", len(exec.calls))
	}
	if !hasFlag(exec.calls[0], "-c", "copy") {
		t.Fatalf("expected first run to be a copy, got %v", exec.calls[0])
	}
	if !hasFlag(exec.calls[1], "-c:v", "libx264") {
		t.Fatalf("expected second run to re-encode, got %v", exec.calls[1])
	}
	if !hasFlag(exec.calls[2], "-c", "copy") {
		t.Fatalf("expected third run to be a copy, got %v", exec.calls[2])
	}
}

func TestCutReportsFailedSegmentsAfterAttemptingAll(t *testing.T) {
	trimDir := t.TempDir()
	exec := &recordingExecutor{fail: map[int]error{0: errors.New("exit status 1")}}
	inspector := durationInspector{durations: map[string]float64{
		filepath.Join(trimDir, "part_01.mp4"): 5.0,
	}}
	cutter := newCutter(t, exec, inspector)

	planned := []segments.Segment{
		{Start: 0, End: 10, Position: 0},
		{Start: 20, End: 25, Position: 1},
	}
	_, err := cutter.Cut(context.Background(), "/tmp/source.mp4", planned, trimDir)
	if !errors.Is(err, services.ErrCutFailed) {
		t.Fatalf("expected ErrCutFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "segment 0") {
		t.Fatalf("expected failing segment named, got %v", err)
	}
	// The second segment was still attempted.
	if len(exec.calls) != 2 {
		t.Fatalf("expected both segments attempted, got %d runs", len(exec.calls))
	}
}

func TestPartNamePreservesLexicalOrder(t *testing.T) {
	if PartName(0) != "part_00.mp4" || PartName(11) != "part_11.mp4" {
		t.Fatalf("unexpected names: %s %s", PartName(0), PartName(11))
	}
	if PartName(2) >= PartName(10) {
		t.Fatal("expected zero padding to keep lexical order")
	}
}
