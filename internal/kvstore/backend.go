package kvstore

import (
	"context"
	"errors"
	"fmt"

	"herhaven/internal/config"
)

// ErrNotFound is returned by Get when the key has never been written or was deleted.
var ErrNotFound = errors.New("kvstore: key not found")

// Backend persists opaque values by key.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// HealthChecker is implemented by backends that can report reachability.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// Open constructs the backend selected by storage.backend.
func Open(ctx context.Context, cfg *config.Config) (Backend, error) {
	if cfg == nil {
		return nil, errors.New("kvstore: config is required")
	}
	switch cfg.Storage.Backend {
	case config.BackendSQLite, "":
		return OpenSQLite(ctx, cfg.Storage.SQLitePath)
	case config.BackendFile:
		return OpenFile(cfg.Storage.FileDir)
	case config.BackendRedis:
		return OpenRedis(ctx, RedisOptions{
			Addr:     cfg.Storage.RedisAddr,
			Password: cfg.Storage.RedisPassword,
			DB:       cfg.Storage.RedisDB,
		})
	case config.BackendPostgres:
		return OpenPostgres(ctx, cfg.Storage.PostgresDSN)
	case config.BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("kvstore: unsupported backend %q", cfg.Storage.Backend)
	}
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
