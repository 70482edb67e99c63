package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	MediaDir string `toml:"media_dir"`
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
}

// Workflow contains the shared retry policy and dispatcher tuning.
type Workflow struct {
	RetryLimit        int `toml:"retry_limit"`
	RetryDelaySeconds int `toml:"retry_delay_seconds"`
	QueuePollSeconds  int `toml:"queue_poll_seconds"`
	Workers           int `toml:"workers"`
}

// Media contains upload validation and video tool configuration.
type Media struct {
	AllowedCodecs        []string `toml:"allowed_codecs"`
	AllowedClients       []string `toml:"allowed_clients"`
	DefaultTimelineCount int      `toml:"default_timeline_count"`
	PublicBaseURL        string   `toml:"public_base_url"`
	FFmpegBinary         string   `toml:"ffmpeg_binary"`
	FFprobeBinary        string   `toml:"ffprobe_binary"`
}

// Logging contains log output configuration.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config is the root configuration document.
type Config struct {
	Paths    Paths    `toml:"paths"`
	Workflow Workflow `toml:"workflow"`
	Media    Media    `toml:"media"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the conventional config file location.
func DefaultConfigPath() string {
	return "~/.config/reel/config.toml"
}

// Load reads the configuration from path (or the default location when path
// is empty), applies defaults for missing values, normalizes paths, and
// validates the result. The resolved path is returned alongside the config.
func Load(path string) (*Config, string, error) {
	resolved := strings.TrimSpace(path)
	if resolved == "" {
		resolved = DefaultConfigPath()
	}
	expanded, err := expandPath(resolved)
	if err != nil {
		return nil, "", fmt.Errorf("resolve config path: %w", err)
	}

	cfg := Default()
	data, err := os.ReadFile(expanded)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, expanded, fmt.Errorf("parse config %s: %w", expanded, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// Defaults apply when no config file exists.
	default:
		return nil, expanded, fmt.Errorf("read config %s: %w", expanded, err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, expanded, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, expanded, err
	}
	return &cfg, expanded, nil
}

// EnsureDirectories creates the directories the service writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.MediaDir, c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// WriteSample writes the annotated sample configuration to path.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}

// Sample returns the embedded sample configuration document.
func Sample() string {
	return sampleConfig
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	return filepath.Abs(trimmed)
}
