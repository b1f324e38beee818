package api

import (
	"encoding/json"
	"time"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Entry describes a queued submission in a transport-friendly format.
type Entry struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Status     string          `json:"status"`
	RetryCount int             `json:"retryCount"`
	Timestamp  int64           `json:"timestamp"`
	CreatedAt  string          `json:"createdAt,omitempty"`
	Preview    string          `json:"preview,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Counts mirrors the per-status entry counts of one queue.
type Counts struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Syncing int `json:"syncing"`
	Synced  int `json:"synced"`
	Failed  int `json:"failed"`
}

// DrainInfo reports the outcome of one drain cycle.
type DrainInfo struct {
	Kind        string   `json:"kind"`
	Attempted   int      `json:"attempted"`
	Synced      int      `json:"synced"`
	Retrying    int      `json:"retrying"`
	Failed      int      `json:"failed"`
	FailedIDs   []string `json:"failedIds,omitempty"`
	Purged      int      `json:"purged"`
	Skipped     bool     `json:"skipped,omitempty"`
	Interrupted bool     `json:"interrupted,omitempty"`
	FinishedAt  string   `json:"finishedAt,omitempty"`
	DurationMs  int64    `json:"durationMs,omitempty"`
}

// QueueStatus summarizes one queue.
type QueueStatus struct {
	Kind      string     `json:"kind"`
	Counts    Counts     `json:"counts"`
	Draining  bool       `json:"draining"`
	LastDrain *DrainInfo `json:"lastDrain,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running        bool          `json:"running"`
	PID            int           `json:"pid"`
	Online         bool          `json:"online"`
	StorageBackend string        `json:"storageBackend"`
	LockFilePath   string        `json:"lockFilePath"`
	SocketPath     string        `json:"socketPath,omitempty"`
	BreakerState   string        `json:"breakerState,omitempty"`
	LastError      string        `json:"lastError,omitempty"`
	PendingSync    []string      `json:"pendingSync,omitempty"`
	Queues         []QueueStatus `json:"queues"`
}

// EnqueueResponse acknowledges an accepted submission.
type EnqueueResponse struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Queued bool   `json:"queued"`
	Online bool   `json:"online"`
}

// EntryListResponse wraps a collection of entries.
type EntryListResponse struct {
	Kind    string  `json:"kind"`
	Entries []Entry `json:"entries"`
}

// ClearResponse reports how many entries a cleanup removed.
type ClearResponse struct {
	Kind    string `json:"kind"`
	Removed int    `json:"removed"`
}

// Problem is one field-level validation failure.
type Problem struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ErrorResponse is the body of every non-2xx API reply.
type ErrorResponse struct {
	Error    string    `json:"error"`
	Problems []Problem `json:"problems,omitempty"`
}

// LogEvent is a streamed log line.
type LogEvent struct {
	Sequence  uint64            `json:"seq"`
	Timestamp time.Time         `json:"ts"`
	Level     string            `json:"level"`
	Message   string            `json:"msg"`
	Component string            `json:"component,omitempty"`
	Queue     string            `json:"queue,omitempty"`
	EntryID   string            `json:"entryId,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// LogStreamResponse carries a page of log events and the cursor for the next fetch.
type LogStreamResponse struct {
	Events []LogEvent `json:"events"`
	Next   uint64     `json:"next"`
}
