package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"herhaven/internal/config"
)

func TestLoadDefaultConfigUsesEnvTokenAndExpandsPaths(t *testing.T) {
	t.Setenv("HERHAVEN_API_TOKEN", "remote-token")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "herhaven")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Storage.SQLitePath != filepath.Join(wantData, "queues.db") {
		t.Fatalf("unexpected sqlite path: %q", cfg.Storage.SQLitePath)
	}
	if cfg.Storage.FileDir != filepath.Join(wantData, "queues") {
		t.Fatalf("unexpected file dir: %q", cfg.Storage.FileDir)
	}
	if cfg.API.Token != "remote-token" {
		t.Fatalf("expected API token from env, got %q", cfg.API.Token)
	}
	if cfg.Connectivity.ProbeURL != cfg.API.BaseURL {
		t.Fatalf("expected probe url to default to base url, got %q", cfg.Connectivity.ProbeURL)
	}
	if cfg.Queue.MaxRetries != 3 {
		t.Fatalf("expected max retries 3, got %d", cfg.Queue.MaxRetries)
	}
	if cfg.SyncedRetention().Hours() != 24 {
		t.Fatalf("expected 24h synced retention, got %s", cfg.SyncedRetention())
	}
	if cfg.Storage.Backend != config.BackendSQLite {
		t.Fatalf("expected sqlite backend by default, got %q", cfg.Storage.Backend)
	}
}

func TestLoadCustomConfigOverrides(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("HERHAVEN_API_TOKEN", "")

	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `[paths]
data_dir = "~/herhaven-data"

[api]
base_url = "https://api.example.org/"
sos_path = "sos/trigger"
timeout_seconds = 4

[storage]
backend = "File"

[queue]
max_retries = 5
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, "herhaven-data") {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
	if cfg.API.BaseURL != "https://api.example.org" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.API.BaseURL)
	}
	if cfg.API.SOSPath != "/sos/trigger" {
		t.Fatalf("expected leading slash added, got %q", cfg.API.SOSPath)
	}
	if cfg.API.ContactPath != "/api/contact" {
		t.Fatalf("expected default contact path, got %q", cfg.API.ContactPath)
	}
	if cfg.Storage.Backend != config.BackendFile {
		t.Fatalf("expected backend lowercased to file, got %q", cfg.Storage.Backend)
	}
	if cfg.Storage.FileDir != filepath.Join(tempHome, "herhaven-data", "queues") {
		t.Fatalf("unexpected file dir: %q", cfg.Storage.FileDir)
	}
	if cfg.Queue.MaxRetries != 5 {
		t.Fatalf("expected max retries override, got %d", cfg.Queue.MaxRetries)
	}
	if cfg.APITimeout().Seconds() != 4 {
		t.Fatalf("unexpected api timeout: %s", cfg.APITimeout())
	}
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = "cassandra"
	cfg.Connectivity.ProbeURL = cfg.API.BaseURL
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "storage.backend") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRequiresPostgresDSN(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("HERHAVEN_POSTGRES_DSN", "")
	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte("[storage]\nbackend = \"postgres\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil || !strings.Contains(err.Error(), "postgres_dsn") {
		t.Fatalf("expected postgres_dsn error, got %v", err)
	}

	t.Setenv("HERHAVEN_POSTGRES_DSN", "postgres://localhost/herhaven")
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Storage.PostgresDSN != "postgres://localhost/herhaven" {
		t.Fatalf("expected dsn from env, got %q", cfg.Storage.PostgresDSN)
	}
}

func TestValidateRejectsBadBaseURL(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte("[api]\nbase_url = \"ftp://example.org\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil || !strings.Contains(err.Error(), "api.base_url") {
		t.Fatalf("expected base_url error, got %v", err)
	}
}

func TestEnsureDirectoriesCreatesStorageDirs(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Storage.Backend = config.BackendFile
	cfg.Storage.FileDir = filepath.Join(base, "data", "queues")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir, cfg.Storage.FileDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected %s to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %s to be a directory", dir)
		}
	}
}

func TestCreateSampleProducesParseableConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}

	var decoded config.Config
	if err := toml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("sample config is not valid TOML: %v", err)
	}
	if decoded.Queue.MaxRetries != 3 {
		t.Fatalf("expected sample max_retries 3, got %d", decoded.Queue.MaxRetries)
	}

	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("expected sample to load cleanly, exists=%v err=%v", exists, err)
	}
}
