// Package queue persists highlight jobs in SQLite and provides the
// lane-aware claim/update operations the workflow manager is built on.
package queue
