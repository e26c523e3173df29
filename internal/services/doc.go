// Package services defines the pipeline error taxonomy and the context
// keys shared by stages, the workflow manager, and logging.
package services
