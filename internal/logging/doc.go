// Package logging builds the shared slog logger and defines the
// standardized structured field keys used across the pipeline.
package logging
