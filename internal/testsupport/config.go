// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"stagecue/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.PreviewCacheDir = filepath.Join(base, "previews")
	cfg.Paths.SocketPath = filepath.Join(base, "stagecued.sock")
	cfg.Engine.TerminateGraceMillis = 200
	cfg.Output.MonitorHotplug = false

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithGraceMillis overrides the terminate grace period on the test config.
func WithGraceMillis(ms int) ConfigOption {
	return func(c *config.Config) {
		c.Engine.TerminateGraceMillis = ms
	}
}

// WithPreviewWorkers overrides the preview worker count on the test config.
func WithPreviewWorkers(n int) ConfigOption {
	return func(c *config.Config) {
		c.Engine.PreviewWorkers = n
	}
}
