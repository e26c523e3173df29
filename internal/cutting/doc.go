// Package cutting extracts planned segments from a fetched source into
// ordered part files. Each segment is cut with stream copy first and
// re-encoded only when the copy misses the requested boundaries.
package cutting
