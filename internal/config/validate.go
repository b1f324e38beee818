package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateConnectivity(); err != nil {
		return err
	}
	if c.Queue.MaxRetries <= 0 {
		return errors.New("queue.max_retries must be positive")
	}
	if c.Queue.SyncedRetentionHours <= 0 {
		return errors.New("queue.synced_retention_hours must be positive")
	}
	return nil
}

func (c *Config) validateAPI() error {
	parsed, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("api.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("api.base_url must use http or https, got %q", c.API.BaseURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("api.base_url must include a host, got %q", c.API.BaseURL)
	}
	if c.API.TimeoutSeconds <= 0 {
		return errors.New("api.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case BackendSQLite:
		if strings.TrimSpace(c.Storage.SQLitePath) == "" {
			return errors.New("storage.sqlite_path must be set when storage.backend is sqlite")
		}
	case BackendFile:
		if strings.TrimSpace(c.Storage.FileDir) == "" {
			return errors.New("storage.file_dir must be set when storage.backend is file")
		}
	case BackendRedis:
		if strings.TrimSpace(c.Storage.RedisAddr) == "" {
			return errors.New("storage.redis_addr must be set when storage.backend is redis")
		}
		if c.Storage.RedisDB < 0 {
			return errors.New("storage.redis_db must not be negative")
		}
	case BackendPostgres:
		if strings.TrimSpace(c.Storage.PostgresDSN) == "" {
			return errors.New("storage.postgres_dsn must be set when storage.backend is postgres (or export HERHAVEN_POSTGRES_DSN)")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("storage.backend: unsupported value %q (expected sqlite, file, redis, postgres, or memory)", c.Storage.Backend)
	}
	return nil
}

func (c *Config) validateConnectivity() error {
	parsed, err := url.Parse(c.Connectivity.ProbeURL)
	if err != nil {
		return fmt.Errorf("connectivity.probe_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("connectivity.probe_url must use http or https, got %q", c.Connectivity.ProbeURL)
	}
	if c.Connectivity.ProbeTimeoutSeconds > c.Connectivity.ProbeIntervalSeconds {
		return errors.New("connectivity.probe_timeout_seconds must not exceed connectivity.probe_interval_seconds")
	}
	return nil
}
