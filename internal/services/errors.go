package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers for the pipeline error taxonomy. Admission-class markers
// surface synchronously before a job is enqueued; pipeline-class markers are
// recorded on the job and surfaced to status readers.
var (
	// Admission-class.
	ErrInvalidSegment        = errors.New("invalid segment")
	ErrUnsupportedTransition = errors.New("unsupported transition")
	ErrQuotaExceeded         = errors.New("quota exceeded")
	ErrShortsTooLong         = errors.New("shorts too long")

	// Pipeline-class.
	ErrFetchFailed       = errors.New("fetch failed")
	ErrUnavailableMedia  = errors.New("unavailable media")
	ErrCutFailed         = errors.New("cut failed")
	ErrCompositionFailed = errors.New("composition failed")
	ErrAuthExpired       = errors.New("authorization expired")
	ErrUploadInterrupted = errors.New("upload interrupted")
	ErrUploadFailed      = errors.New("upload failed")

	// Cross-cutting.
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ErrorDetails carries the user-facing portion of a wrapped stage error.
type ErrorDetails struct {
	Message string
}

// Details extracts the human-readable message from a wrapped stage error,
// stripping the sentinel marker prefix when present.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	message := err.Error()
	for _, marker := range []error{
		ErrInvalidSegment, ErrUnsupportedTransition, ErrQuotaExceeded, ErrShortsTooLong,
		ErrFetchFailed, ErrUnavailableMedia, ErrCutFailed, ErrCompositionFailed,
		ErrAuthExpired, ErrUploadInterrupted, ErrUploadFailed,
		ErrValidation, ErrConfiguration, ErrTransient,
	} {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(message, prefix) {
			message = strings.TrimPrefix(message, prefix)
			break
		}
	}
	return ErrorDetails{Message: strings.TrimSpace(message)}
}

// IsAdmission reports whether an error belongs to the admission-class
// taxonomy that must be surfaced synchronously before a job is enqueued.
func IsAdmission(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidSegment),
		errors.Is(err, ErrUnsupportedTransition),
		errors.Is(err, ErrQuotaExceeded),
		errors.Is(err, ErrShortsTooLong):
		return true
	default:
		return false
	}
}

// IsRetryable reports whether a stage error is worth retrying with backoff.
// Transient failures (network, tool exit attributable to a transient cause,
// interrupted uploads) qualify; validation, configuration, and rejected
// credential refreshes do not.
func IsRetryable(err error) bool {
	switch {
	case errors.Is(err, ErrTransient), errors.Is(err, ErrUploadInterrupted):
		return true
	case errors.Is(err, ErrAuthExpired),
		errors.Is(err, ErrUnavailableMedia),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrConfiguration),
		errors.Is(err, ErrUploadFailed):
		return false
	case errors.Is(err, ErrFetchFailed), errors.Is(err, ErrCutFailed), errors.Is(err, ErrCompositionFailed):
		// Subprocess failures are retried at the stage level; a persistent
		// cause exhausts the bounded attempts and fails the job.
		return true
	default:
		return false
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
