package testsupport

import (
	"path/filepath"
	"testing"

	"herhaven/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Storage defaults to the in-memory backend, the intake API binds an
// ephemeral port and netlink triggers are disabled.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Storage.Backend = config.BackendMemory
	cfgVal.Storage.SQLitePath = filepath.Join(base, "data", "queues.db")
	cfgVal.Storage.FileDir = filepath.Join(base, "data", "queues")
	cfgVal.Connectivity.ProbeURL = cfgVal.API.BaseURL
	cfgVal.Connectivity.Netlink = false
	cfgVal.Sync.IntervalSeconds = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithBackend selects the storage backend.
func WithBackend(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Storage.Backend = name
	}
}

// WithRemote points the submission API and the connectivity probe at baseURL.
func WithRemote(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.API.BaseURL = baseURL
		b.cfg.Connectivity.ProbeURL = baseURL
	}
}

// WithLocalToken requires bearer authentication on the intake API.
func WithLocalToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// WithoutIntakeAPI disables the local HTTP listener.
func WithoutIntakeAPI() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIBind = ""
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
