package testsupport

import (
	"path/filepath"
	"testing"

	"gardenlog/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t   testing.TB
	cfg *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Owner = "0xowner-test"
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")

	builder := &configBuilder{
		t:   t,
		cfg: &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	return builder.cfg
}

// WithOwner overrides the owner address on the test config.
func WithOwner(owner string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Owner = owner
	}
}

// WithRetryCap overrides the sync retry cap on the test config.
func WithRetryCap(cap int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sync.RetryCap = cap
	}
}

// WithRemote points the test config at a remote endpoint, usually an
// httptest server.
func WithRemote(baseURL, token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Remote.BaseURL = baseURL
		b.cfg.Remote.APIToken = token
	}
}
