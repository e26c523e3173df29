// Package publish uploads finished highlights to YouTube. It manages stored
// OAuth credentials per user, refreshes access tokens before they expire,
// and streams the artifact through the resumable upload protocol, resuming
// from the platform-reported byte offset after interruptions.
package publish
