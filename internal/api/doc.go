// Package api provides the service facade shared by the CLI and the daemon
// HTTP surface.
//
// Submission runs the full admission pipeline (segment planning, transition
// resolution, quota and short-form checks, lane routing) before a job is
// persisted, so both entry points reject invalid requests synchronously with
// the same error taxonomy. Queue reads are converted into transport-friendly
// DTOs here rather than exposing the persistence model directly.
package api
