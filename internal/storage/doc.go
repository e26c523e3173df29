// Package storage uploads finished highlights to S3-compatible object
// storage and returns their public references.
package storage
