package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"herhaven/internal/kvstore"
	"herhaven/internal/logging"
)

// ErrStorageUnavailable wraps backend read failures.
var ErrStorageUnavailable = errors.New("queue storage unavailable")

// Store reads and writes one queue's entry array under a fixed key.
type Store struct {
	key     string
	backend kvstore.Backend
	logger  *slog.Logger
}

// NewStore binds key to backend.
func NewStore(key string, backend kvstore.Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Store{key: key, backend: backend, logger: logger}
}

// Key returns the storage key.
func (s *Store) Key() string { return s.key }

// Load returns the stored entries in insertion order. A missing key, a read
// failure, or an unparsable blob all yield an empty slice; failures are logged.
func (s *Store) Load(ctx context.Context) []Entry {
	entries, err := s.read(ctx)
	if err != nil {
		logging.WarnWithContext(s.logger, "queue load failed; treating as empty", "queue_load_failed",
			logging.String("key", s.key),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the storage backend is reachable"),
			logging.String(logging.FieldImpact, "stored entries are not visible until storage recovers"),
		)
		return []Entry{}
	}
	return entries
}

// read is Load for mutating callers: it still treats an absent key or an
// unparsable blob as empty, but returns backend read failures so the caller
// does not overwrite data it could not see.
func (s *Store) read(ctx context.Context) ([]Entry, error) {
	data, err := s.backend.Get(ctx, s.key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if len(data) == 0 {
		return []Entry{}, nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		logging.WarnWithContext(s.logger, "queue blob unparsable; treating as empty", "queue_parse_failed",
			logging.String("key", s.key),
			logging.Int("bytes", len(data)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect or clear the stored blob"),
			logging.String(logging.FieldImpact, "previously queued entries are ignored"),
		)
		return []Entry{}, nil
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

// Save overwrites the stored blob with entries. An empty queue removes the
// key; Load reports an absent key as an empty queue.
func (s *Store) Save(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		if err := s.backend.Delete(ctx, s.key); err != nil && !errors.Is(err, kvstore.ErrNotFound) {
			return fmt.Errorf("delete %s: %w", s.key, err)
		}
		return nil
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.key, err)
	}
	if err := s.backend.Put(ctx, s.key, data); err != nil {
		return fmt.Errorf("persist %s: %w", s.key, err)
	}
	return nil
}
