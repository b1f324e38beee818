package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"herhaven/internal/api"
	"herhaven/internal/config"
	"herhaven/internal/kvstore"
	"herhaven/internal/logging"
	"herhaven/internal/queue"
	"herhaven/internal/testsupport"
	"herhaven/internal/workflow"
)

type recordingSubmitter struct {
	mu   sync.Mutex
	fail error
	got  map[queue.Kind]int
}

func (r *recordingSubmitter) Submit(_ context.Context, kind queue.Kind, _ json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.got == nil {
		r.got = make(map[queue.Kind]int)
	}
	if r.fail != nil {
		return r.fail
	}
	r.got[kind]++
	return nil
}

func (r *recordingSubmitter) count(kind queue.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.got[kind]
}

type testDaemon struct {
	*Daemon
	cfg       *config.Config
	backend   kvstore.Backend
	submitter *recordingSubmitter
}

func newTestDaemon(t *testing.T, opts ...testsupport.ConfigOption) *testDaemon {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	backend := kvstore.NewMemory()
	submitter := &recordingSubmitter{}
	var queues []*queue.Queue
	for _, kind := range queue.Kinds {
		queues = append(queues, queue.New(kind, backend, submitter, queue.Options{Logger: logging.NewNop()}))
	}
	wf := workflow.NewManager(workflow.Dependencies{Queues: queues, Logger: logging.NewNop()})
	d, err := New(cfg, backend, logging.NewNop(), wf, WithLogStream(logging.NewStreamHub(32)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return &testDaemon{Daemon: d, cfg: cfg, backend: backend, submitter: submitter}
}

func (td *testDaemon) do(t *testing.T, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	td.api.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

const contactBody = `{"firstName":"grace","lastName":"hopper","email":"grace@example.com","message":"hi there"}`

func TestSubmitAndDrainOverAPI(t *testing.T) {
	td := newTestDaemon(t)

	rec := td.do(t, http.MethodPost, "/api/contact", contactBody)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	accepted := decode[api.EnqueueResponse](t, rec)
	if accepted.ID == "" || accepted.Kind != "contact" {
		t.Fatalf("unexpected enqueue response: %#v", accepted)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatal("expected request id header")
	}

	rec = td.do(t, http.MethodGet, "/api/queues/contact/status", "")
	status := decode[api.QueueStatus](t, rec)
	if status.Counts.Pending != 1 || status.Counts.Total != 1 {
		t.Fatalf("unexpected counts: %#v", status.Counts)
	}

	rec = td.do(t, http.MethodPost, "/api/queues/contact/drain", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("drain: %d %s", rec.Code, rec.Body.String())
	}
	drain := decode[api.DrainInfo](t, rec)
	if drain.Attempted != 1 || drain.Synced != 1 {
		t.Fatalf("unexpected drain: %#v", drain)
	}
	if td.submitter.count(queue.KindContact) != 1 {
		t.Fatalf("expected one submission")
	}

	rec = td.do(t, http.MethodGet, "/api/queues/contact/entries?status=synced", "")
	list := decode[api.EntryListResponse](t, rec)
	if len(list.Entries) != 1 || list.Entries[0].Status != "synced" {
		t.Fatalf("unexpected entries: %#v", list.Entries)
	}
	if len(list.Entries[0].Payload) != 0 {
		t.Fatal("payload should be hidden without payload=1")
	}
	if list.Entries[0].Preview == "" {
		t.Fatal("expected preview")
	}

	rec = td.do(t, http.MethodGet, "/api/queues/contact/entries?payload=1", "")
	list = decode[api.EntryListResponse](t, rec)
	if len(list.Entries) != 1 || len(list.Entries[0].Payload) == 0 {
		t.Fatalf("expected payload, got %#v", list.Entries)
	}

	rec = td.do(t, http.MethodPost, "/api/queues/contact/clear-synced", "")
	cleared := decode[api.ClearResponse](t, rec)
	if cleared.Removed != 1 {
		t.Fatalf("expected 1 removed, got %d", cleared.Removed)
	}
}

func TestSubmitValidationFailure(t *testing.T) {
	td := newTestDaemon(t)

	rec := td.do(t, http.MethodPost, "/api/contact", `{"firstName":"","email":"nope"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	resp := decode[api.ErrorResponse](t, rec)
	if len(resp.Problems) == 0 {
		t.Fatalf("expected field problems, got %#v", resp)
	}
	if entries := testsupport.ReadEntries(t, td.backend, queue.KindContact); len(entries) != 0 {
		t.Fatalf("invalid payload should not be queued: %#v", entries)
	}
}

func TestSubmitSOSWithoutLocationRejected(t *testing.T) {
	td := newTestDaemon(t)

	rec := td.do(t, http.MethodPost, "/api/sos", `{"note":"help","offline":true}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d %s", rec.Code, rec.Body.String())
	}
	resp := decode[api.ErrorResponse](t, rec)
	if len(resp.Problems) != 1 || resp.Problems[0].Field != "location" {
		t.Fatalf("expected location problem, got %#v", resp)
	}
	if entries := testsupport.ReadEntries(t, td.backend, queue.KindSOS); len(entries) != 0 {
		t.Fatalf("SOS without location should not be queued: %#v", entries)
	}
}

type failingBody struct{}

func (failingBody) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestSubmitBodyReadErrors(t *testing.T) {
	td := newTestDaemon(t)

	oversized := `{"note":"` + strings.Repeat("x", maxRequestBody) + `"}`
	if rec := td.do(t, http.MethodPost, "/api/sos", oversized); rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 for oversized body, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/sos", failingBody{})
	rec := httptest.NewRecorder()
	td.api.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unreadable body, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestRemoveAndRetainActive(t *testing.T) {
	td := newTestDaemon(t)
	testsupport.SeedEntries(t, td.backend, queue.KindSOS,
		queue.Entry{ID: "1-a", Payload: json.RawMessage(`{}`), Status: queue.StatusPending, Timestamp: 1},
		queue.Entry{ID: "2-b", Payload: json.RawMessage(`{}`), Status: queue.StatusFailed, Timestamp: 2, RetryCount: 3},
		queue.Entry{ID: "3-c", Payload: json.RawMessage(`{}`), Status: queue.StatusSynced, Timestamp: 3},
	)

	rec := td.do(t, http.MethodDelete, "/api/queues/sos/entries/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing entry, got %d", rec.Code)
	}

	rec = td.do(t, http.MethodDelete, "/api/queues/sos/entries/1-a", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("remove: %d %s", rec.Code, rec.Body.String())
	}

	rec = td.do(t, http.MethodPost, "/api/queues/sos/retain-active", "")
	cleared := decode[api.ClearResponse](t, rec)
	if cleared.Removed != 2 {
		t.Fatalf("expected synced and failed pruned, got %d", cleared.Removed)
	}
	if entries := testsupport.ReadEntries(t, td.backend, queue.KindSOS); len(entries) != 0 {
		t.Fatalf("expected empty queue, got %#v", entries)
	}
}

func TestUnknownQueueAndRoutes(t *testing.T) {
	td := newTestDaemon(t)

	if rec := td.do(t, http.MethodGet, "/api/queues/fax/status", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown queue, got %d", rec.Code)
	}
	if rec := td.do(t, http.MethodGet, "/api/nowhere", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := td.do(t, http.MethodGet, "/api/sos", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	td := newTestDaemon(t, testsupport.WithLocalToken("s3cret"))

	if rec := td.do(t, http.MethodGet, "/api/status", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	if rec := td.do(t, http.MethodGet, "/api/status", "", "Authorization", "Bearer wrong"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", rec.Code)
	}
	rec := td.do(t, http.MethodGet, "/api/status", "", "Authorization", "Bearer s3cret", requestIDHeader, "req-42")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get(requestIDHeader); got != "req-42" {
		t.Fatalf("expected propagated request id, got %q", got)
	}
	status := decode[api.DaemonStatus](t, rec)
	if status.StorageBackend != config.BackendMemory || len(status.Queues) != len(queue.Kinds) {
		t.Fatalf("unexpected status: %#v", status)
	}
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{queue.ErrInvalidPayload, http.StatusBadRequest},
		{queue.ErrUnknownKind, http.StatusNotFound},
		{ErrEntryNotFound, http.StatusNotFound},
		{workflow.ErrOffline, http.StatusServiceUnavailable},
		{queue.ErrStorageUnavailable, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusForError(tc.err); got != tc.want {
			t.Errorf("statusForError(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestStartEnforcesSingleInstance(t *testing.T) {
	first := newTestDaemon(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := first.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !first.Running() || first.APIAddress() == "" {
		t.Fatalf("expected running daemon with bound api, addr=%q", first.APIAddress())
	}

	// A second daemon sharing the data dir must not start.
	backend := kvstore.NewMemory()
	var queues []*queue.Queue
	for _, kind := range queue.Kinds {
		queues = append(queues, queue.New(kind, backend, first.submitter, queue.Options{}))
	}
	wf := workflow.NewManager(workflow.Dependencies{Queues: queues})
	second, err := New(first.cfg, backend, logging.NewNop(), wf)
	if err != nil {
		t.Fatalf("New second: %v", err)
	}
	defer second.Close()
	if err := second.Start(ctx); err == nil {
		t.Fatal("expected lock contention error")
	}

	first.Stop()
	if first.Running() {
		t.Fatal("expected stopped daemon")
	}
	if err := second.Start(ctx); err != nil {
		t.Fatalf("start after release: %v", err)
	}
}

func TestTestNotificationWithoutTopic(t *testing.T) {
	td := newTestDaemon(t)
	rec := td.do(t, http.MethodPost, "/api/notifications/test", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["sent"] != false {
		t.Fatalf("expected sent=false, got %#v", body)
	}
}
