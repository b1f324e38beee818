package queue

import (
	"encoding/json"
	"time"
)

// Status represents the delivery state of a queue entry.
type Status string

const (
	StatusPending Status = "pending"
	StatusSyncing Status = "syncing"
	StatusSynced  Status = "synced"
	StatusFailed  Status = "failed"
)

// Entry is one queued submission as persisted in the stored JSON array.
type Entry struct {
	ID         string          `json:"id"`
	Payload    json.RawMessage `json:"payload"`
	Status     Status          `json:"status"`
	Timestamp  int64           `json:"timestamp"`
	RetryCount int             `json:"retryCount"`
}

// CreatedAt converts the epoch millisecond timestamp.
func (e Entry) CreatedAt() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// IsActive reports whether the entry still awaits delivery.
func (e Entry) IsActive() bool {
	return e.Status == StatusPending || e.Status == StatusSyncing
}

// Summary counts entries by status.
type Summary struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Syncing int `json:"syncing"`
	Synced  int `json:"synced"`
	Failed  int `json:"failed"`
}

// Summarize counts entries by status.
func Summarize(entries []Entry) Summary {
	summary := Summary{Total: len(entries)}
	for _, entry := range entries {
		switch entry.Status {
		case StatusPending:
			summary.Pending++
		case StatusSyncing:
			summary.Syncing++
		case StatusSynced:
			summary.Synced++
		case StatusFailed:
			summary.Failed++
		}
	}
	return summary
}

// DrainResult reports what one drain cycle did.
type DrainResult struct {
	Kind      Kind `json:"kind"`
	Attempted int  `json:"attempted"`
	Synced    int  `json:"synced"`
	Retrying  int  `json:"retrying"`
	// Failed holds entries that reached the retry ceiling during this cycle.
	Failed []Entry `json:"failed,omitempty"`
	Purged int     `json:"purged"`
	// Skipped is set when another drain of the same queue was already running.
	Skipped bool `json:"skipped,omitempty"`
	// Interrupted is set when the context ended before every snapshot entry was attempted.
	Interrupted bool `json:"interrupted,omitempty"`
}
