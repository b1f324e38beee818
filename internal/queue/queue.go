package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"herhaven/internal/kvstore"
	"herhaven/internal/logging"
	"herhaven/internal/syncer"
)

const (
	// DefaultMaxRetries is the retry ceiling after which an entry is failed.
	DefaultMaxRetries = 3
	// DefaultSyncedRetention is how long synced entries are kept after creation.
	DefaultSyncedRetention = 24 * time.Hour

	idSuffixLength = 9
)

// ErrInvalidPayload is returned by Enqueue when the payload is not a JSON object.
var ErrInvalidPayload = errors.New("payload must be a JSON object")

// Submitter delivers a payload to the remote API. A nil error means the
// remote side accepted it.
type Submitter interface {
	Submit(ctx context.Context, kind Kind, payload json.RawMessage) error
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, kind Kind, payload json.RawMessage) error

// Submit calls f.
func (f SubmitterFunc) Submit(ctx context.Context, kind Kind, payload json.RawMessage) error {
	return f(ctx, kind, payload)
}

// Options tune a Queue. Zero values select the defaults.
type Options struct {
	MaxRetries      int
	SyncedRetention time.Duration
	Registrar       syncer.Registrar
	Logger          *slog.Logger
	Now             func() time.Time
}

// Queue is one durable submission queue.
type Queue struct {
	kind      Kind
	store     *Store
	submitter Submitter
	registrar syncer.Registrar
	logger    *slog.Logger

	maxRetries int
	retention  time.Duration
	now        func() time.Time

	mu       sync.Mutex
	draining atomic.Bool
}

// New builds the queue for kind persisted in backend under kind.StorageKey().
func New(kind Kind, backend kvstore.Backend, submitter Submitter, opts Options) *Queue {
	logger := logging.NewComponentLogger(opts.Logger, "queue").With(logging.String(logging.FieldQueue, string(kind)))
	q := &Queue{
		kind:       kind,
		store:      NewStore(kind.StorageKey(), backend, logger),
		submitter:  submitter,
		registrar:  opts.Registrar,
		logger:     logger,
		maxRetries: opts.MaxRetries,
		retention:  opts.SyncedRetention,
		now:        opts.Now,
	}
	if q.registrar == nil {
		q.registrar = syncer.Noop{}
	}
	if q.maxRetries <= 0 {
		q.maxRetries = DefaultMaxRetries
	}
	if q.retention <= 0 {
		q.retention = DefaultSyncedRetention
	}
	if q.now == nil {
		q.now = time.Now
	}
	return q
}

// Kind returns the queue kind.
func (q *Queue) Kind() Kind { return q.kind }

// Store exposes the underlying entry store.
func (q *Queue) Store() *Store { return q.store }

// Draining reports whether a drain cycle is in progress.
func (q *Queue) Draining() bool { return q.draining.Load() }

// Enqueue appends a pending entry for payload and returns its id. Save and
// background sync registration failures are logged, not returned; a failed
// read of the existing entries returns ErrStorageUnavailable because
// appending to an unseen list would discard it.
func (q *Queue) Enqueue(ctx context.Context, payload json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return "", ErrInvalidPayload
	}

	q.mu.Lock()
	entries, err := q.store.read(ctx)
	if err != nil {
		q.mu.Unlock()
		q.warnLoadFailed("enqueue", err)
		return "", err
	}
	now := q.now()
	entry := Entry{
		ID:         q.newID(now, entries),
		Payload:    append(json.RawMessage(nil), trimmed...),
		Status:     StatusPending,
		Timestamp:  now.UnixMilli(),
		RetryCount: 0,
	}
	entries = append(entries, entry)
	q.persist(ctx, entries, "enqueue")
	q.mu.Unlock()

	q.logger.Info("submission queued",
		logging.String(logging.FieldEntryID, entry.ID),
		logging.String(logging.FieldEventType, "entry_queued"),
	)

	if q.kind.BackgroundSync() {
		if err := q.registrar.Register(ctx, q.kind.SyncTag()); err != nil {
			logging.WarnWithContext(q.logger, "background sync registration failed", "sync_register_failed",
				logging.String("tag", q.kind.SyncTag()),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "entry drains on the next connectivity change"),
				logging.String(logging.FieldImpact, "delivery may wait for a connectivity event"),
			)
		}
	}
	return entry.ID, nil
}

func (q *Queue) newID(now time.Time, existing []Entry) string {
	taken := make(map[string]struct{}, len(existing))
	for _, entry := range existing {
		taken[entry.ID] = struct{}{}
	}
	for {
		suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:idSuffixLength]
		id := fmt.Sprintf("%d-%s", now.UnixMilli(), suffix)
		if _, dup := taken[id]; !dup {
			return id
		}
	}
}

// Drain runs one drain cycle. Only entries pending when the cycle starts are
// attempted, in enqueue order. A drain requested while another is running
// returns immediately with Skipped set. Drain never returns an error; failures
// are reflected in entry state and logs.
func (q *Queue) Drain(ctx context.Context) DrainResult {
	result := DrainResult{Kind: q.kind}
	if !q.draining.CompareAndSwap(false, true) {
		q.logger.Debug("drain already running; request coalesced")
		result.Skipped = true
		return result
	}
	defer q.draining.Store(false)

	q.mu.Lock()
	var snapshot []string
	for _, entry := range q.store.Load(ctx) {
		if entry.Status == StatusPending {
			snapshot = append(snapshot, entry.ID)
		}
	}
	q.mu.Unlock()

	for _, id := range snapshot {
		if ctx.Err() != nil {
			result.Interrupted = true
			break
		}
		q.attempt(ctx, id, &result)
	}

	persistCtx := ctx
	if ctx.Err() != nil {
		persistCtx = context.WithoutCancel(ctx)
	}
	result.Purged = q.purge(persistCtx)

	if result.Attempted > 0 || result.Purged > 0 {
		q.logger.Info("drain cycle complete",
			logging.Int("attempted", result.Attempted),
			logging.Int("synced", result.Synced),
			logging.Int("retrying", result.Retrying),
			logging.Int("failed", len(result.Failed)),
			logging.Int("purged", result.Purged),
			logging.Bool("interrupted", result.Interrupted),
			logging.String(logging.FieldEventType, "drain_completed"),
		)
	}
	return result
}

func (q *Queue) attempt(ctx context.Context, id string, result *DrainResult) {
	entryCtx := logging.WithEntryID(ctx, id)
	logger := logging.WithContext(entryCtx, q.logger)

	q.mu.Lock()
	entries, ok := q.loadForUpdate(ctx, "mark_syncing")
	if !ok {
		q.mu.Unlock()
		return
	}
	idx := indexOf(entries, id)
	if idx < 0 || entries[idx].Status != StatusPending {
		q.mu.Unlock()
		logger.Debug("entry no longer pending; skipping")
		return
	}
	entries[idx].Status = StatusSyncing
	payload := entries[idx].Payload
	q.persist(ctx, entries, "mark_syncing")
	q.mu.Unlock()

	result.Attempted++
	submitErr := q.submitter.Submit(entryCtx, q.kind, payload)

	// The outcome is recorded even when ctx ended during Submit; a delivered
	// entry left in syncing would be re-sent after recovery.
	persistCtx := context.WithoutCancel(ctx)
	interrupted := submitErr != nil && ctx.Err() != nil

	q.mu.Lock()
	defer q.mu.Unlock()
	entries, ok = q.loadForUpdate(persistCtx, "record_outcome")
	if !ok {
		return
	}
	idx = indexOf(entries, id)
	if idx < 0 {
		logger.Info("entry removed while in flight; outcome discarded",
			logging.Bool("delivered", submitErr == nil),
			logging.String(logging.FieldEventType, "entry_removed_in_flight"),
		)
		return
	}
	entry := &entries[idx]

	switch {
	case submitErr == nil:
		entry.Status = StatusSynced
		result.Synced++
		logger.Info("submission delivered",
			logging.Int(logging.FieldRetryCount, entry.RetryCount),
			logging.String(logging.FieldEventType, "entry_synced"),
		)
	case interrupted:
		entry.Status = StatusPending
		result.Interrupted = true
		logger.Info("submission interrupted by shutdown; entry left pending",
			logging.String(logging.FieldEventType, "entry_interrupted"),
		)
	default:
		entry.RetryCount++
		if entry.RetryCount >= q.maxRetries {
			entry.Status = StatusFailed
			result.Failed = append(result.Failed, *entry)
			logging.WarnWithContext(logger, "submission failed permanently", "entry_failed",
				logging.Int(logging.FieldRetryCount, entry.RetryCount),
				logging.Error(submitErr),
				logging.String(logging.FieldErrorHint, "check API reachability and credentials; remove or re-submit the entry manually"),
				logging.String(logging.FieldImpact, "entry will not be retried automatically"),
			)
		} else {
			entry.Status = StatusPending
			result.Retrying++
			logging.WarnWithContext(logger, "submission failed; will retry", "entry_retry_scheduled",
				logging.Int(logging.FieldRetryCount, entry.RetryCount),
				logging.Int("max_retries", q.maxRetries),
				logging.Error(submitErr),
				logging.String(logging.FieldErrorHint, "retried on the next drain cycle"),
				logging.String(logging.FieldImpact, "delivery delayed"),
			)
		}
	}
	q.persist(persistCtx, entries, "record_outcome")
}

// purge drops synced entries older than the retention window and persists.
func (q *Queue) purge(ctx context.Context) int {
	cutoff := q.now().Add(-q.retention).UnixMilli()

	q.mu.Lock()
	defer q.mu.Unlock()
	entries, ok := q.loadForUpdate(ctx, "purge_synced")
	if !ok {
		return 0
	}
	kept := entries[:0]
	purged := 0
	for _, entry := range entries {
		if entry.Status == StatusSynced && entry.Timestamp < cutoff {
			purged++
			continue
		}
		kept = append(kept, entry)
	}
	q.persist(ctx, kept, "purge_synced")
	return purged
}

// RecoverInterrupted returns entries left in syncing by an earlier process
// back to pending without counting a retry.
func (q *Queue) RecoverInterrupted(ctx context.Context) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	entries, ok := q.loadForUpdate(ctx, "recover_interrupted")
	if !ok {
		return 0
	}
	recovered := 0
	for i := range entries {
		if entries[i].Status == StatusSyncing {
			entries[i].Status = StatusPending
			recovered++
		}
	}
	if recovered == 0 {
		return 0
	}
	q.persist(ctx, entries, "recover_interrupted")
	q.logger.Info("interrupted entries returned to pending",
		logging.Int("count", recovered),
		logging.String(logging.FieldEventType, "entries_recovered"),
	)
	return recovered
}

// Summary counts entries by status without mutating the queue.
func (q *Queue) Summary(ctx context.Context) Summary {
	return Summarize(q.List(ctx))
}

// List returns every stored entry in enqueue order.
func (q *Queue) List(ctx context.Context) []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.store.Load(ctx)
}

// Get returns the entry with id.
func (q *Queue) Get(ctx context.Context, id string) (Entry, bool) {
	for _, entry := range q.List(ctx) {
		if entry.ID == id {
			return entry, true
		}
	}
	return Entry{}, false
}

// ClearWhere keeps only the entries for which keep returns true and reports
// how many were removed.
func (q *Queue) ClearWhere(ctx context.Context, keep func(Entry) bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	entries, ok := q.loadForUpdate(ctx, "clear")
	if !ok {
		return 0
	}
	kept := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if keep(entry) {
			kept = append(kept, entry)
		}
	}
	removed := len(entries) - len(kept)
	if removed == 0 {
		return 0
	}
	q.persist(ctx, kept, "clear")
	return removed
}

// ClearSynced removes every synced entry regardless of age.
func (q *Queue) ClearSynced(ctx context.Context) int {
	return q.ClearWhere(ctx, func(e Entry) bool { return e.Status != StatusSynced })
}

// Remove deletes the entry with id and reports whether it existed.
func (q *Queue) Remove(ctx context.Context, id string) bool {
	return q.ClearWhere(ctx, func(e Entry) bool { return e.ID != id }) > 0
}

// RetainActive keeps only pending and syncing entries, dropping synced and failed ones.
func (q *Queue) RetainActive(ctx context.Context) int {
	return q.ClearWhere(ctx, Entry.IsActive)
}

// loadForUpdate reads entries ahead of a mutation. A backend read failure is
// logged and reported as !ok so the mutation is skipped instead of
// overwriting entries that could not be read.
func (q *Queue) loadForUpdate(ctx context.Context, op string) ([]Entry, bool) {
	entries, err := q.store.read(ctx)
	if err != nil {
		q.warnLoadFailed(op, err)
		return nil, false
	}
	return entries, true
}

func (q *Queue) warnLoadFailed(op string, err error) {
	logging.WarnWithContext(q.logger, "queue load failed; change skipped", "queue_load_failed",
		logging.String("operation", op),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the storage backend is reachable"),
		logging.String(logging.FieldImpact, "requested change was not applied"),
	)
}

// persist saves entries; failures are logged and otherwise ignored.
func (q *Queue) persist(ctx context.Context, entries []Entry, op string) {
	if err := q.store.Save(ctx, entries); err != nil {
		logging.WarnWithContext(q.logger, "queue save failed", "queue_save_failed",
			logging.String("operation", op),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check storage backend health and free space"),
			logging.String(logging.FieldImpact, "latest queue change is not durable"),
		)
	}
}

func indexOf(entries []Entry, id string) int {
	for i := range entries {
		if entries[i].ID == id {
			return i
		}
	}
	return -1
}
