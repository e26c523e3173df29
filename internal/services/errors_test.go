package services_test

import (
	"errors"
	"testing"

	"clipforge/internal/services"
)

func TestWrapPreservesMarker(t *testing.T) {
	base := errors.New("exit status 1")
	err := services.Wrap(services.ErrCutFailed, "cutter", "trim segment 2", "stream copy failed", base)
	if !errors.Is(err, services.ErrCutFailed) {
		t.Fatalf("expected ErrCutFailed marker, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped base error, got %v", err)
	}
}

func TestWrapNilMarkerDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "fetcher", "download", "", errors.New("timeout"))
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected ErrTransient fallback, got %v", err)
	}
}

func TestDetailsStripsMarkerPrefix(t *testing.T) {
	err := services.Wrap(services.ErrCompositionFailed, "compositor", "join boundary 1", "drift exceeded tolerance", nil)
	details := services.Details(err)
	want := "compositor: join boundary 1: drift exceeded tolerance"
	if details.Message != want {
		t.Fatalf("Details = %q, want %q", details.Message, want)
	}
}

func TestIsAdmission(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{services.Wrap(services.ErrInvalidSegment, "planner", "", "end before start", nil), true},
		{services.Wrap(services.ErrUnsupportedTransition, "tier", "", "crossfade not in plan", nil), true},
		{services.Wrap(services.ErrQuotaExceeded, "tier", "", "", nil), true},
		{services.Wrap(services.ErrShortsTooLong, "tier", "", "", nil), true},
		{services.Wrap(services.ErrFetchFailed, "fetcher", "", "", nil), false},
		{services.Wrap(services.ErrUploadFailed, "publisher", "", "", nil), false},
	}
	for _, tc := range cases {
		if got := services.IsAdmission(tc.err); got != tc.want {
			t.Errorf("IsAdmission(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{services.Wrap(services.ErrTransient, "fetcher", "", "", nil), true},
		{services.Wrap(services.ErrFetchFailed, "fetcher", "", "", nil), true},
		{services.Wrap(services.ErrCutFailed, "cutter", "", "", nil), true},
		{services.Wrap(services.ErrUploadInterrupted, "publisher", "", "", nil), true},
		{services.Wrap(services.ErrAuthExpired, "publisher", "", "", nil), false},
		{services.Wrap(services.ErrUnavailableMedia, "fetcher", "", "", nil), false},
		{services.Wrap(services.ErrUploadFailed, "publisher", "", "", nil), false},
		{services.Wrap(services.ErrConfiguration, "finisher", "", "", nil), false},
	}
	for _, tc := range cases {
		if got := services.IsRetryable(tc.err); got != tc.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
