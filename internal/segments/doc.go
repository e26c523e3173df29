// Package segments validates and normalizes the time ranges a highlight job
// extracts from its source video.
package segments
