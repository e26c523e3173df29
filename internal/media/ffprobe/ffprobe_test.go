package ffprobe

import (
	"math"
	"testing"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video", Duration: "30.000"},
			{CodecType: "audio", Duration: "29.950"},
		},
		Format: Format{
			Duration: "30.000",
			Size:     "1000",
		},
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	if result.AudioStreamCount() != 1 {
		t.Fatalf("expected 1 audio stream, got %d", result.AudioStreamCount())
	}
	if result.DurationSeconds() != 30 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
	if drift := result.DriftSeconds(); math.Abs(drift-0.05) > 1e-9 {
		t.Fatalf("unexpected drift: %v", drift)
	}
}

func TestStreamDurationFallsBackToContainer(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video"},
			{CodecType: "audio", Duration: "12.5"},
		},
		Format: Format{Duration: "12.5"},
	}
	if result.VideoDurationSeconds() != 12.5 {
		t.Fatalf("expected container fallback, got %v", result.VideoDurationSeconds())
	}
	if result.DriftSeconds() != 0 {
		t.Fatalf("expected zero drift, got %v", result.DriftSeconds())
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Format: Format{
			Duration: "bad",
			Size:     "-1",
		},
	}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
	if result.DriftSeconds() != 0 {
		t.Fatalf("expected zero drift for missing streams, got %v", result.DriftSeconds())
	}
}
