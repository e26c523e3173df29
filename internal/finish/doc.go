// Package finish stages the merged highlight, watermarks free tier outputs,
// uploads the artifact to object storage, and cleans up the upstream
// workspaces once the upload is confirmed.
package finish
