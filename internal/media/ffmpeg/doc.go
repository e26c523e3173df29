// Package ffmpeg runs ffmpeg subprocesses and inspects their outputs. The
// cut, compose, and finish stages build their argument lists and delegate
// execution here so tests can swap in a fake executor.
package ffmpeg
