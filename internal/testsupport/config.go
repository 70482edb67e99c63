package testsupport

import (
	"path/filepath"
	"testing"

	"reel/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.MediaDir = filepath.Join(base, "media")
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Workflow.RetryDelaySeconds = 0
	cfgVal.Workflow.QueuePollSeconds = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithRetryLimit overrides the retry limit on the test config.
func WithRetryLimit(limit int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.RetryLimit = limit
	}
}

// WithAllowedClients sets the client allowlist on the test config.
func WithAllowedClients(clients ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Media.AllowedClients = clients
	}
}

// WithPublicBaseURL sets the public URL prefix on the test config.
func WithPublicBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Media.PublicBaseURL = url
	}
}
