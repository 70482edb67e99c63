package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reel/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}
	if cfg.Workflow.RetryLimit != 3 {
		t.Fatalf("retry limit = %d, want default 3", cfg.Workflow.RetryLimit)
	}
	if cfg.Media.DefaultTimelineCount != 40 {
		t.Fatalf("timeline count = %d, want default 40", cfg.Media.DefaultTimelineCount)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("log format = %q, want console", cfg.Logging.Format)
	}
}

func TestLoadOverridesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[paths]
media_dir = "` + filepath.Join(dir, "media") + `"
data_dir = "` + filepath.Join(dir, "data") + `"

[workflow]
retry_limit = 5
retry_delay_seconds = 1

[media]
allowed_codecs = ["H264", " HEVC "]

[logging]
level = "DEBUG"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Workflow.RetryLimit != 5 {
		t.Fatalf("retry limit = %d, want 5", cfg.Workflow.RetryLimit)
	}
	if cfg.Media.AllowedCodecs[0] != "h264" || cfg.Media.AllowedCodecs[1] != "hevc" {
		t.Fatalf("codecs not normalized: %v", cfg.Media.AllowedCodecs)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("level = %q, want debug", cfg.Logging.Level)
	}
}

func TestValidateRejectsSharedDirectories(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.MediaDir = "/tmp/reel-shared"
	cfg.Paths.DataDir = "/tmp/reel-shared"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "must differ") {
		t.Fatalf("expected shared directory rejection, got %v", err)
	}
}

func TestSampleConfigParses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.toml")
	if err := config.WriteSample(path); err != nil {
		t.Fatalf("WriteSample failed: %v", err)
	}
	if _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
	if err := config.WriteSample(path); err == nil {
		t.Fatal("expected error overwriting existing config")
	}
}
