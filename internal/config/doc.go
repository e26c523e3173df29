// Package config loads, normalizes, and validates the ClipForge TOML
// configuration. All path fields are expanded to absolute paths before any
// other subsystem sees them.
package config
