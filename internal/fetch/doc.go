// Package fetch downloads source videos with yt-dlp into per-identifier
// workspaces. Concurrent jobs referencing the same source identifier share a
// single in-flight download instead of racing.
package fetch
