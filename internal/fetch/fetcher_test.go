package fetch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"clipforge/internal/media/ffprobe"
	"clipforge/internal/services"
)

type scriptedExecutor struct {
	mu    sync.Mutex
	runs  int32
	lines []string
	err   error
	onRun func(args []string)
}

func (s *scriptedExecutor) Run(ctx context.Context, binary string, args []string, onLine func(string)) error {
	atomic.AddInt32(&s.runs, 1)
	if s.onRun != nil {
		s.onRun(args)
	}
	s.mu.Lock()
	lines := append([]string(nil), s.lines...)
	err := s.err
	s.mu.Unlock()
	for _, line := range lines {
		onLine(line)
	}
	return err
}

type staticInspector struct {
	result ffprobe.Result
	err    error
}

func (s staticInspector) Inspect(ctx context.Context, path string) (ffprobe.Result, error) {
	return s.result, s.err
}

func avResult() ffprobe.Result {
	return ffprobe.Result{Streams: []ffprobe.Stream{
		{CodecType: "video", Duration: "30"},
		{CodecType: "audio", Duration: "30"},
	}}
}

func writeSource(t *testing.T, dir, videoID string) string {
	t.Helper()
	target := filepath.Join(dir, videoID, sourceFileName)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(target, []byte("media"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return target
}

func TestFetchDownloadsAndVerifies(t *testing.T) {
	dir := t.TempDir()
	exec := &scriptedExecutor{onRun: func(args []string) {
		// Simulate yt-dlp materializing the merged output.
		if err := os.WriteFile(filepath.Join(dir, "vid-1", sourceFileName), []byte("media"), 0o644); err != nil {
			t.Errorf("write output: %v", err)
		}
	}}
	fetcher, err := New("yt-dlp", dir, staticInspector{result: avResult()}, nil, WithExecutor(exec))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	path, err := fetcher.Fetch(context.Background(), "vid-1")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if path != filepath.Join(dir, "vid-1", sourceFileName) {
		t.Fatalf("unexpected path: %s", path)
	}
	if exec.runs != 1 {
		t.Fatalf("expected one run, got %d", exec.runs)
	}
}

func TestFetchReusesMaterializedFile(t *testing.T) {
	dir := t.TempDir()
	want := writeSource(t, dir, "vid-1")

	exec := &scriptedExecutor{}
	fetcher, err := New("yt-dlp", dir, staticInspector{result: avResult()}, nil, WithExecutor(exec))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	path, err := fetcher.Fetch(context.Background(), "vid-1")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if path != want {
		t.Fatalf("unexpected path: %s", path)
	}
	if exec.runs != 0 {
		t.Fatalf("expected no downloads, got %d", exec.runs)
	}
}

func TestFetchDeduplicatesConcurrentCallers(t *testing.T) {
	dir := t.TempDir()
	release := make(chan struct{})
	exec := &scriptedExecutor{onRun: func(args []string) {
		<-release
		if err := os.WriteFile(filepath.Join(dir, "vid-1", sourceFileName), []byte("media"), 0o644); err != nil {
			t.Errorf("write output: %v", err)
		}
	}}
	fetcher, err := New("yt-dlp", dir, staticInspector{result: avResult()}, nil, WithExecutor(exec))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	const callers = 4
	var wg sync.WaitGroup
	errs := make([]error, callers)
	paths := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			paths[i], errs[i] = fetcher.Fetch(context.Background(), "vid-1")
		}(i)
	}
	close(release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d failed: %v", i, errs[i])
		}
		if paths[i] != filepath.Join(dir, "vid-1", sourceFileName) {
			t.Fatalf("caller %d unexpected path: %s", i, paths[i])
		}
	}
	if exec.runs != 1 {
		t.Fatalf("expected a single download, got %d", exec.runs)
	}
}

func TestFetchClassifiesUnavailableMedia(t *testing.T) {
	dir := t.TempDir()
	exec := &scriptedExecutor{
		lines: []string{"ERROR: [youtube] vid-1: Video unavailable"},
		err:   errors.New("exit status 1"),
	}
	fetcher, err := New("yt-dlp", dir, staticInspector{result: avResult()}, nil, WithExecutor(exec))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = fetcher.Fetch(context.Background(), "vid-1")
	if !errors.Is(err, services.ErrUnavailableMedia) {
		t.Fatalf("expected ErrUnavailableMedia, got %v", err)
	}
}

func TestFetchClassifiesToolFailure(t *testing.T) {
	dir := t.TempDir()
	exec := &scriptedExecutor{
		lines: []string{"ERROR: unable to download video data: timed out"},
		err:   errors.New("exit status 1"),
	}
	fetcher, err := New("yt-dlp", dir, staticInspector{result: avResult()}, nil, WithExecutor(exec))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = fetcher.Fetch(context.Background(), "vid-1")
	if !errors.Is(err, services.ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed, got %v", err)
	}
}

func TestFetchRejectsPathLikeIdentifiers(t *testing.T) {
	fetcher, err := New("yt-dlp", t.TempDir(), nil, nil, WithExecutor(&scriptedExecutor{}))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := fetcher.Fetch(context.Background(), "../etc/passwd"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestFetchRejectsMissingStreams(t *testing.T) {
	dir := t.TempDir()
	exec := &scriptedExecutor{onRun: func(args []string) {
		if err := os.WriteFile(filepath.Join(dir, "vid-1", sourceFileName), []byte("media"), 0o644); err != nil {
			t.Errorf("write output: %v", err)
		}
	}}
	videoOnly := ffprobe.Result{Streams: []ffprobe.Stream{{CodecType: "video", Duration: "30"}}}
	fetcher, err := New("yt-dlp", dir, staticInspector{result: videoOnly}, nil, WithExecutor(exec))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = fetcher.Fetch(context.Background(), "vid-1")
	if !errors.Is(err, services.ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed, got %v", err)
	}
}
