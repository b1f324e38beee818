package testsupport

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"herhaven/internal/config"
	"herhaven/internal/kvstore"
	"herhaven/internal/queue"
)

// MustOpenBackend opens the configured backend for tests and registers cleanup.
func MustOpenBackend(t testing.TB, cfg *config.Config) kvstore.Backend {
	t.Helper()

	backend, err := kvstore.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("kvstore.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = backend.Close()
	})
	return backend
}

// SeedEntries writes entries as the stored blob for kind.
func SeedEntries(t testing.TB, backend kvstore.Backend, kind queue.Kind, entries ...queue.Entry) {
	t.Helper()

	if entries == nil {
		entries = []queue.Entry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		t.Fatalf("marshal entries: %v", err)
	}
	if err := backend.Put(context.Background(), kind.StorageKey(), data); err != nil {
		t.Fatalf("seed %s: %v", kind, err)
	}
}

// ReadEntries decodes the stored blob for kind, returning nil when absent.
func ReadEntries(t testing.TB, backend kvstore.Backend, kind queue.Kind) []queue.Entry {
	t.Helper()

	data, err := backend.Get(context.Background(), kind.StorageKey())
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil
		}
		t.Fatalf("read %s: %v", kind, err)
	}
	var entries []queue.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("decode %s: %v", kind, err)
	}
	return entries
}
