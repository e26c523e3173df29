// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// This package has no clipforge-specific dependencies and could be extracted
// as a standalone library.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual audio/video stream properties
//
// Primary entry point:
//   - Inspect: executes ffprobe and returns parsed Result
//
// Helper methods on Result expose the per-stream durations the composition
// stage compares when checking audio/video alignment.
package ffprobe
