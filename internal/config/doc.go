// Package config loads, normalizes, and validates the TOML configuration
// shared by the stagecue CLI and daemon.
package config
