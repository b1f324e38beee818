package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"herhaven/internal/kvstore"
	"herhaven/internal/logging"
	"herhaven/internal/queue"
)

type recordingSubmitter struct {
	mu      sync.Mutex
	calls   []string
	failFor int
	err     error
}

func (r *recordingSubmitter) Submit(_ context.Context, _ queue.Kind, payload json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, string(payload))
	if r.failFor < 0 || len(r.calls) <= r.failFor {
		if r.err != nil {
			return r.err
		}
		return errors.New("remote unavailable")
	}
	return nil
}

func (r *recordingSubmitter) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type recordingRegistrar struct {
	tags []string
	err  error
}

func (r *recordingRegistrar) Register(_ context.Context, tag string) error {
	r.tags = append(r.tags, tag)
	return r.err
}

func newQueue(t *testing.T, kind queue.Kind, backend kvstore.Backend, submitter queue.Submitter, opts queue.Options) *queue.Queue {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return queue.New(kind, backend, submitter, opts)
}

func TestEnqueueThenLoadReturnsSinglePendingEntry(t *testing.T) {
	backend := kvstore.NewMemory()
	q := newQueue(t, queue.KindSOS, backend, &recordingSubmitter{}, queue.Options{})

	id, err := q.Enqueue(context.Background(), json.RawMessage(`{"location":{"lat":1,"lng":1},"offline":true}`))
	if err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty id")
	}

	entries := q.Store().Load(context.Background())
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.ID != id || entry.Status != queue.StatusPending || entry.RetryCount != 0 {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	parts := strings.SplitN(entry.ID, "-", 2)
	if len(parts) != 2 || len(parts[1]) != 9 {
		t.Fatalf("expected <millis>-<9 char suffix> id, got %q", entry.ID)
	}
	if entry.Timestamp == 0 {
		t.Fatal("expected creation timestamp")
	}
}

func TestEnqueueAssignsUniqueIDs(t *testing.T) {
	fixed := time.UnixMilli(1_700_000_000_000)
	q := newQueue(t, queue.KindContact, kvstore.NewMemory(), &recordingSubmitter{}, queue.Options{Now: func() time.Time { return fixed }})

	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		id, err := q.Enqueue(context.Background(), json.RawMessage(`{"message":"hi"}`))
		if err != nil {
			t.Fatalf("Enqueue returned error: %v", err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
}

func TestEnqueueRejectsNonObjectPayload(t *testing.T) {
	q := newQueue(t, queue.KindSOS, kvstore.NewMemory(), &recordingSubmitter{}, queue.Options{})
	for _, payload := range []string{"", "[]", "42", "{bad json"} {
		if _, err := q.Enqueue(context.Background(), json.RawMessage(payload)); !errors.Is(err, queue.ErrInvalidPayload) {
			t.Fatalf("expected ErrInvalidPayload for %q, got %v", payload, err)
		}
	}
}

func TestEnqueueRegistersBackgroundSyncForSOSOnly(t *testing.T) {
	registrar := &recordingRegistrar{err: errors.New("unsupported")}
	backend := kvstore.NewMemory()
	sos := newQueue(t, queue.KindSOS, backend, &recordingSubmitter{}, queue.Options{Registrar: registrar})
	contact := newQueue(t, queue.KindContact, backend, &recordingSubmitter{}, queue.Options{Registrar: registrar})

	if _, err := sos.Enqueue(context.Background(), json.RawMessage(`{"offline":true}`)); err != nil {
		t.Fatalf("registration failure must not surface, got %v", err)
	}
	if _, err := contact.Enqueue(context.Background(), json.RawMessage(`{"message":"x"}`)); err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}
	if !reflect.DeepEqual(registrar.tags, []string{"sos-sync"}) {
		t.Fatalf("expected only sos-sync registration, got %v", registrar.tags)
	}
}

func TestLoadIsIdempotent(t *testing.T) {
	q := newQueue(t, queue.KindSOS, kvstore.NewMemory(), &recordingSubmitter{}, queue.Options{})
	for i := 0; i < 3; i++ {
		if _, err := q.Enqueue(context.Background(), json.RawMessage(`{"note":"n"}`)); err != nil {
			t.Fatalf("Enqueue returned error: %v", err)
		}
	}
	first := q.Store().Load(context.Background())
	second := q.Store().Load(context.Background())
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical loads:\n%v\n%v", first, second)
	}
}

func TestCorruptBlobLoadsEmpty(t *testing.T) {
	backend := kvstore.NewMemory()
	if err := backend.Put(context.Background(), queue.KindSOS.StorageKey(), []byte("{not json")); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	store := queue.NewStore(queue.KindSOS.StorageKey(), backend, logging.NewNop())
	entries := store.Load(context.Background())
	if entries == nil || len(entries) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", entries)
	}
}

func TestRetryCeilingScenario(t *testing.T) {
	submitter := &recordingSubmitter{failFor: -1}
	q := newQueue(t, queue.KindSOS, kvstore.NewMemory(), submitter, queue.Options{})
	id, err := q.Enqueue(context.Background(), json.RawMessage(`{"location":{"lat":1,"lng":1}}`))
	if err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}

	want := []struct {
		retry  int
		status queue.Status
	}{
		{1, queue.StatusPending},
		{2, queue.StatusPending},
		{3, queue.StatusFailed},
		{3, queue.StatusFailed},
	}
	lastRetry := 0
	for cycle, expected := range want {
		result := q.Drain(context.Background())
		entry, ok := q.Get(context.Background(), id)
		if !ok {
			t.Fatalf("cycle %d: entry missing", cycle+1)
		}
		if entry.RetryCount != expected.retry || entry.Status != expected.status {
			t.Fatalf("cycle %d: got retry=%d status=%s, want retry=%d status=%s",
				cycle+1, entry.RetryCount, entry.Status, expected.retry, expected.status)
		}
		if entry.RetryCount < lastRetry {
			t.Fatalf("cycle %d: retry count decreased", cycle+1)
		}
		lastRetry = entry.RetryCount
		if cycle == 2 && len(result.Failed) != 1 {
			t.Fatalf("cycle 3: expected entry reported as newly failed, got %+v", result)
		}
	}
	if submitter.callCount() != 3 {
		t.Fatalf("expected exactly 3 submission attempts, got %d", submitter.callCount())
	}
}

func TestDrainProcessesInEnqueueOrder(t *testing.T) {
	submitter := &recordingSubmitter{}
	q := newQueue(t, queue.KindContact, kvstore.NewMemory(), submitter, queue.Options{})
	idA, _ := q.Enqueue(context.Background(), json.RawMessage(`{"message":"A"}`))
	idB, _ := q.Enqueue(context.Background(), json.RawMessage(`{"message":"B"}`))

	result := q.Drain(context.Background())
	if result.Attempted != 2 || result.Synced != 2 {
		t.Fatalf("unexpected drain result: %+v", result)
	}
	if !reflect.DeepEqual(submitter.calls, []string{`{"message":"A"}`, `{"message":"B"}`}) {
		t.Fatalf("expected A before B, got %v", submitter.calls)
	}
	for _, id := range []string{idA, idB} {
		entry, _ := q.Get(context.Background(), id)
		if entry.Status != queue.StatusSynced {
			t.Fatalf("expected %s synced, got %s", id, entry.Status)
		}
	}
}

func TestDrainPurgesOnlyExpiredSyncedEntries(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	backend := kvstore.NewMemory()
	old := now.Add(-25 * time.Hour).UnixMilli()
	young := now.Add(-23 * time.Hour).UnixMilli()
	seed := []queue.Entry{
		{ID: "old-synced", Payload: json.RawMessage(`{}`), Status: queue.StatusSynced, Timestamp: old},
		{ID: "young-synced", Payload: json.RawMessage(`{}`), Status: queue.StatusSynced, Timestamp: young},
		{ID: "old-failed", Payload: json.RawMessage(`{}`), Status: queue.StatusFailed, Timestamp: old, RetryCount: 3},
	}
	store := queue.NewStore(queue.KindSOS.StorageKey(), backend, logging.NewNop())
	if err := store.Save(context.Background(), seed); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	q := newQueue(t, queue.KindSOS, backend, &recordingSubmitter{}, queue.Options{Now: func() time.Time { return now }})
	result := q.Drain(context.Background())
	if result.Purged != 1 {
		t.Fatalf("expected 1 purged entry, got %d", result.Purged)
	}
	if _, ok := q.Get(context.Background(), "old-synced"); ok {
		t.Fatal("expected expired synced entry purged")
	}
	for _, id := range []string{"young-synced", "old-failed"} {
		if _, ok := q.Get(context.Background(), id); !ok {
			t.Fatalf("expected %s retained", id)
		}
	}
}

func TestDrainSnapshotExcludesEntriesAddedMidDrain(t *testing.T) {
	backend := kvstore.NewMemory()
	var q *queue.Queue
	var lateID string
	submitter := queue.SubmitterFunc(func(ctx context.Context, _ queue.Kind, payload json.RawMessage) error {
		if string(payload) == `{"message":"first"}` {
			id, err := q.Enqueue(ctx, json.RawMessage(`{"message":"late"}`))
			if err != nil {
				return err
			}
			lateID = id
		}
		return nil
	})
	q = newQueue(t, queue.KindContact, backend, submitter, queue.Options{})
	if _, err := q.Enqueue(context.Background(), json.RawMessage(`{"message":"first"}`)); err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}

	result := q.Drain(context.Background())
	if result.Attempted != 1 {
		t.Fatalf("expected only the snapshot entry attempted, got %d", result.Attempted)
	}
	late, ok := q.Get(context.Background(), lateID)
	if !ok {
		t.Fatal("entry enqueued mid-drain was lost")
	}
	if late.Status != queue.StatusPending {
		t.Fatalf("expected late entry pending, got %s", late.Status)
	}
}

func TestConcurrentDrainIsCoalesced(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	var once sync.Once
	submitter := queue.SubmitterFunc(func(context.Context, queue.Kind, json.RawMessage) error {
		once.Do(func() { close(entered) })
		<-release
		return nil
	})
	q := newQueue(t, queue.KindSOS, kvstore.NewMemory(), submitter, queue.Options{})
	if _, err := q.Enqueue(context.Background(), json.RawMessage(`{"offline":true}`)); err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}

	done := make(chan queue.DrainResult)
	go func() { done <- q.Drain(context.Background()) }()
	<-entered

	if !q.Draining() {
		t.Fatal("expected queue to report draining")
	}
	second := q.Drain(context.Background())
	if !second.Skipped {
		t.Fatalf("expected overlapping drain skipped, got %+v", second)
	}

	entries := q.List(context.Background())
	if len(entries) != 1 || entries[0].Status != queue.StatusSyncing {
		t.Fatalf("expected in-flight entry persisted as syncing, got %+v", entries)
	}

	close(release)
	first := <-done
	if first.Synced != 1 {
		t.Fatalf("expected first drain to sync the entry, got %+v", first)
	}
}

func TestConcurrentEnqueueLosesNothing(t *testing.T) {
	q := newQueue(t, queue.KindContact, kvstore.NewMemory(), &recordingSubmitter{}, queue.Options{})
	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := q.Enqueue(context.Background(), json.RawMessage(`{"message":"m"}`)); err != nil {
				t.Errorf("Enqueue returned error: %v", err)
			}
		}()
	}
	wg.Wait()
	if got := q.Summary(context.Background()).Total; got != 25 {
		t.Fatalf("expected 25 entries, got %d", got)
	}
}

func TestCancelledDrainLeavesEntryPendingWithoutRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	submitter := queue.SubmitterFunc(func(ctx context.Context, _ queue.Kind, _ json.RawMessage) error {
		cancel()
		return ctx.Err()
	})
	q := newQueue(t, queue.KindSOS, kvstore.NewMemory(), submitter, queue.Options{})
	id, _ := q.Enqueue(context.Background(), json.RawMessage(`{"offline":true}`))

	result := q.Drain(ctx)
	if !result.Interrupted {
		t.Fatalf("expected interrupted drain, got %+v", result)
	}
	entry, _ := q.Get(context.Background(), id)
	if entry.Status != queue.StatusPending || entry.RetryCount != 0 {
		t.Fatalf("expected pending entry without retry, got %+v", entry)
	}
}

func TestDeliveryRecordedWhenCancelledDuringSubmit(t *testing.T) {
	backend, err := kvstore.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("OpenSQLite returned error: %v", err)
	}
	t.Cleanup(func() { _ = backend.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	submitter := queue.SubmitterFunc(func(context.Context, queue.Kind, json.RawMessage) error {
		cancel()
		return nil
	})
	q := newQueue(t, queue.KindSOS, backend, submitter, queue.Options{})
	id, err := q.Enqueue(context.Background(), json.RawMessage(`{"offline":true}`))
	if err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}

	result := q.Drain(ctx)
	if result.Attempted != 1 || result.Synced != 1 {
		t.Fatalf("expected delivered entry counted as synced, got %+v", result)
	}
	entry, ok := q.Get(context.Background(), id)
	if !ok || entry.Status != queue.StatusSynced {
		t.Fatalf("expected synced entry, got %+v (found=%v)", entry, ok)
	}
	if got := q.RecoverInterrupted(context.Background()); got != 0 {
		t.Fatalf("expected nothing left to recover, got %d", got)
	}
}

func TestRecoverInterruptedResetsSyncing(t *testing.T) {
	backend := kvstore.NewMemory()
	store := queue.NewStore(queue.KindSOS.StorageKey(), backend, logging.NewNop())
	_ = store.Save(context.Background(), []queue.Entry{
		{ID: "a", Payload: json.RawMessage(`{}`), Status: queue.StatusSyncing, RetryCount: 1},
		{ID: "b", Payload: json.RawMessage(`{}`), Status: queue.StatusFailed, RetryCount: 3},
	})
	q := newQueue(t, queue.KindSOS, backend, &recordingSubmitter{}, queue.Options{})

	if got := q.RecoverInterrupted(context.Background()); got != 1 {
		t.Fatalf("expected 1 recovered entry, got %d", got)
	}
	entry, _ := q.Get(context.Background(), "a")
	if entry.Status != queue.StatusPending || entry.RetryCount != 1 {
		t.Fatalf("unexpected recovered entry: %+v", entry)
	}
}

func TestCleanupOperations(t *testing.T) {
	backend := kvstore.NewMemory()
	store := queue.NewStore(queue.KindContact.StorageKey(), backend, logging.NewNop())
	_ = store.Save(context.Background(), []queue.Entry{
		{ID: "p", Payload: json.RawMessage(`{}`), Status: queue.StatusPending},
		{ID: "s1", Payload: json.RawMessage(`{}`), Status: queue.StatusSynced},
		{ID: "s2", Payload: json.RawMessage(`{}`), Status: queue.StatusSynced},
		{ID: "f", Payload: json.RawMessage(`{}`), Status: queue.StatusFailed, RetryCount: 3},
	})
	q := newQueue(t, queue.KindContact, backend, &recordingSubmitter{}, queue.Options{})

	summary := q.Summary(context.Background())
	if summary != (queue.Summary{Total: 4, Pending: 1, Synced: 2, Failed: 1}) {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if removed := q.ClearSynced(context.Background()); removed != 2 {
		t.Fatalf("expected 2 synced removed, got %d", removed)
	}
	if q.Remove(context.Background(), "missing") {
		t.Fatal("expected Remove of unknown id to report false")
	}
	if removed := q.RetainActive(context.Background()); removed != 1 {
		t.Fatalf("expected failed entry dropped, got %d", removed)
	}
	if !q.Remove(context.Background(), "p") {
		t.Fatal("expected Remove to delete pending entry")
	}
	if total := q.Summary(context.Background()).Total; total != 0 {
		t.Fatalf("expected empty queue, got %d", total)
	}
}

func TestClearingLastEntryRemovesStorageKey(t *testing.T) {
	backend := kvstore.NewMemory()
	q := newQueue(t, queue.KindContact, backend, &recordingSubmitter{failFor: 0}, queue.Options{})
	if _, err := q.Enqueue(context.Background(), json.RawMessage(`{"firstName":"Ada"}`)); err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}
	if result := q.Drain(context.Background()); result.Synced != 1 {
		t.Fatalf("expected one synced entry, got %+v", result)
	}
	if removed := q.ClearSynced(context.Background()); removed != 1 {
		t.Fatalf("expected 1 synced removed, got %d", removed)
	}
	if _, err := backend.Get(context.Background(), queue.KindContact.StorageKey()); !errors.Is(err, kvstore.ErrNotFound) {
		t.Fatalf("expected storage key removed, got %v", err)
	}
	if entries := q.List(context.Background()); len(entries) != 0 {
		t.Fatalf("expected empty queue after clear, got %d entries", len(entries))
	}
	if removed := q.ClearSynced(context.Background()); removed != 0 {
		t.Fatalf("expected clearing an empty queue to remove nothing, got %d", removed)
	}
}

type brokenBackend struct {
	*kvstore.Memory
	failGets bool
	failPuts bool
}

func (b *brokenBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if b.failGets {
		return nil, errors.New("backend offline")
	}
	return b.Memory.Get(ctx, key)
}

func (b *brokenBackend) Put(ctx context.Context, key string, value []byte) error {
	if b.failPuts {
		return errors.New("quota exceeded")
	}
	return b.Memory.Put(ctx, key, value)
}

func TestSaveFailureIsNotSurfaced(t *testing.T) {
	backend := &brokenBackend{Memory: kvstore.NewMemory(), failPuts: true}
	q := newQueue(t, queue.KindSOS, backend, &recordingSubmitter{}, queue.Options{})
	if _, err := q.Enqueue(context.Background(), json.RawMessage(`{"offline":true}`)); err != nil {
		t.Fatalf("expected save failure to be logged only, got %v", err)
	}
	result := q.Drain(context.Background())
	if result.Attempted != 0 {
		t.Fatalf("expected nothing to drain, got %+v", result)
	}
}

func TestReadFailureDoesNotOverwriteStoredEntries(t *testing.T) {
	backend := &brokenBackend{Memory: kvstore.NewMemory()}
	q := newQueue(t, queue.KindSOS, backend, &recordingSubmitter{}, queue.Options{})
	if _, err := q.Enqueue(context.Background(), json.RawMessage(`{"offline":true}`)); err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}

	backend.failGets = true
	if _, err := q.Enqueue(context.Background(), json.RawMessage(`{"offline":true}`)); !errors.Is(err, queue.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	q.Drain(context.Background())
	q.ClearSynced(context.Background())

	backend.failGets = false
	if total := q.Summary(context.Background()).Total; total != 1 {
		t.Fatalf("expected original entry preserved, got %d entries", total)
	}
}

func TestStoredBlobShape(t *testing.T) {
	backend := kvstore.NewMemory()
	q := newQueue(t, queue.KindContact, backend, &recordingSubmitter{}, queue.Options{})
	if _, err := q.Enqueue(context.Background(), json.RawMessage(`{"firstName":"Ada"}`)); err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}
	raw, err := backend.Get(context.Background(), "herhaven_contact_queue")
	if err != nil {
		t.Fatalf("expected blob under herhaven_contact_queue: %v", err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("stored blob is not a JSON array: %v", err)
	}
	for _, key := range []string{"id", "payload", "status", "timestamp", "retryCount"} {
		if _, ok := decoded[0][key]; !ok {
			t.Fatalf("expected key %q in stored entry, got %v", key, decoded[0])
		}
	}
}

func TestParseKind(t *testing.T) {
	if kind, err := queue.ParseKind(" SOS "); err != nil || kind != queue.KindSOS {
		t.Fatalf("unexpected ParseKind result: %v %v", kind, err)
	}
	if _, err := queue.ParseKind("chat"); !errors.Is(err, queue.ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
	if queue.KindSOS.StorageKey() != "herhaven_sos_queue" || queue.KindContact.StorageKey() != "herhaven_contact_queue" {
		t.Fatal("unexpected storage keys")
	}
}
