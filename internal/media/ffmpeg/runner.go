package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"clipforge/internal/media/ffprobe"
)

// errorTailLines bounds how much subprocess output is kept for diagnostics.
const errorTailLines = 20

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onLine func(string)) error
}

// Inspector abstracts ffprobe lookups so stages can be tested without the
// binary installed.
type Inspector interface {
	Inspect(ctx context.Context, path string) (ffprobe.Result, error)
}

// Option configures the runner.
type Option func(*Runner)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(r *Runner) {
		if exec != nil {
			r.exec = exec
		}
	}
}

// Runner wraps ffmpeg CLI invocations.
type Runner struct {
	binary string
	exec   Executor
}

// NewRunner constructs an ffmpeg runner.
func NewRunner(binary string, opts ...Option) (*Runner, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("ffmpeg binary required")
	}
	runner := &Runner{binary: binary, exec: commandExecutor{}}
	for _, opt := range opts {
		opt(runner)
	}
	return runner, nil
}

// Run executes ffmpeg with the given arguments, always prepending the
// non-interactive flags. On failure the error carries the tail of the
// subprocess output.
func (r *Runner) Run(ctx context.Context, args ...string) error {
	full := append([]string{"-hide_banner", "-nostdin", "-y"}, args...)

	var mu sync.Mutex
	tail := make([]string, 0, errorTailLines)
	onLine := func(line string) {
		mu.Lock()
		defer mu.Unlock()
		if len(tail) == errorTailLines {
			copy(tail, tail[1:])
			tail[errorTailLines-1] = line
			return
		}
		tail = append(tail, line)
	}

	if err := r.exec.Run(ctx, r.binary, full, onLine); err != nil {
		mu.Lock()
		output := strings.TrimSpace(strings.Join(tail, "\n"))
		mu.Unlock()
		if output != "" {
			return fmt.Errorf("ffmpeg: %w: %s", err, output)
		}
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}

// NewInspector returns an Inspector backed by the ffprobe binary.
func NewInspector(binary string) Inspector {
	return probeInspector{binary: binary}
}

type probeInspector struct {
	binary string
}

func (p probeInspector) Inspect(ctx context.Context, path string) (ffprobe.Result, error) {
	return ffprobe.Inspect(ctx, p.binary, path)
}

// NewExecutor returns the default subprocess executor. Other packages that
// shell out to media tools (yt-dlp) share it.
func NewExecutor() Executor {
	return commandExecutor{}
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onLine func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	var scanErr error
	var once sync.Once

	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			if onLine != nil {
				onLine(scanner.Text())
			}
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
		}
	}

	wg.Add(2)
	go scan(stdout)
	go scan(stderr)

	wg.Wait()
	if scanErr != nil {
		_ = cmd.Process.Kill()
		return fmt.Errorf("scan output: %w", scanErr)
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}
