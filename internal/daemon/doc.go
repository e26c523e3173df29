// Package daemon hosts the long-running ClipForge process. It enforces
// single-instance execution with a lock file, starts the workflow manager
// and workspace janitor, and exposes the HTTP admission and status API
// when an api_bind address is configured.
package daemon
