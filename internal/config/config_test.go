package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stagecue/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, _, exists, err := config.Load(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if cfg.Players.FFplayBinary != "ffplay" {
		t.Fatalf("unexpected ffplay binary %q", cfg.Players.FFplayBinary)
	}
	if cfg.Players.StartupVolume != 80 {
		t.Fatalf("unexpected startup volume %d", cfg.Players.StartupVolume)
	}
	if !cfg.Engine.AutoloadOnSelect {
		t.Fatal("expected autoload_on_select default true")
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[players]
startup_volume = 55
ffplay_binary = "/opt/ffmpeg/bin/ffplay"

[output]
second_screen_left = -1920
second_screen_top = 0

[engine]
terminate_grace_millis = 500
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	if resolved != path {
		t.Fatalf("resolved path %q, want %q", resolved, path)
	}
	if cfg.Players.StartupVolume != 55 {
		t.Fatalf("startup volume %d, want 55", cfg.Players.StartupVolume)
	}
	if cfg.Output.SecondScreenLeft != -1920 {
		t.Fatalf("second screen left %d, want -1920", cfg.Output.SecondScreenLeft)
	}
	if cfg.Engine.TerminateGraceMillis != 500 {
		t.Fatalf("terminate grace %d, want 500", cfg.Engine.TerminateGraceMillis)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "volume out of range",
			mutate: func(c *config.Config) { c.Players.StartupVolume = 150 },
			want:   "startup_volume",
		},
		{
			name:   "zero grace",
			mutate: func(c *config.Config) { c.Engine.TerminateGraceMillis = 0 },
			want:   "terminate_grace_millis",
		},
		{
			name:   "zero preview workers",
			mutate: func(c *config.Config) { c.Engine.PreviewWorkers = 0 },
			want:   "preview_workers",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.WriteSample(path); err != nil {
		t.Fatalf("WriteSample: %v", err)
	}
	if err := config.WriteSample(path); err == nil {
		t.Fatal("expected error writing over existing config")
	}
}
