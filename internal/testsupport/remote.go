package testsupport

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// Remote is a fake submission API recording every accepted payload.
type Remote struct {
	*httptest.Server

	mu       sync.Mutex
	received map[string][]json.RawMessage
	status   int
}

// NewRemote starts a fake API that answers every post with {"success":true}.
// It is closed on test cleanup.
func NewRemote(t testing.TB) *Remote {
	t.Helper()

	r := &Remote{received: make(map[string][]json.RawMessage), status: http.StatusOK}
	r.Server = httptest.NewServer(http.HandlerFunc(r.serve))
	t.Cleanup(r.Close)
	return r
}

// SetStatus forces every subsequent submission to answer with code.
func (r *Remote) SetStatus(code int) {
	r.mu.Lock()
	r.status = code
	r.mu.Unlock()
}

// Received returns payloads posted to path.
func (r *Remote) Received(path string) []json.RawMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]json.RawMessage(nil), r.received[path]...)
}

func (r *Remote) serve(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		w.WriteHeader(http.StatusOK)
		return
	}
	body, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	status := r.status
	if status < 300 {
		r.received[req.URL.Path] = append(r.received[req.URL.Path], json.RawMessage(body))
	}
	r.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status >= 300 {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"success":false,"message":"unavailable"}`))
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"success":true}`))
}
