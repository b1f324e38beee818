package workflow

import (
	"context"
	"time"

	"herhaven/internal/queue"
)

// DrainRecord remembers the last completed drain of a queue.
type DrainRecord struct {
	Result   queue.DrainResult `json:"result"`
	Finished time.Time         `json:"finished"`
	Duration time.Duration     `json:"duration"`
}

// QueueStatus is the status view of one queue.
type QueueStatus struct {
	Kind      queue.Kind    `json:"kind"`
	Summary   queue.Summary `json:"summary"`
	Draining  bool          `json:"draining"`
	LastDrain *DrainRecord  `json:"last_drain,omitempty"`
}

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool          `json:"running"`
	Online      bool          `json:"online"`
	LastError   string        `json:"last_error,omitempty"`
	Queues      []QueueStatus `json:"queues"`
	PendingSync []string      `json:"pending_sync,omitempty"`
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{Running: m.running}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	records := make(map[queue.Kind]DrainRecord, len(m.lastDrain))
	for kind, rec := range m.lastDrain {
		records[kind] = rec
	}
	m.mu.RUnlock()

	summary.Online = m.conn.Online()
	for _, kind := range m.order {
		q := m.queues[kind]
		status := QueueStatus{
			Kind:     kind,
			Summary:  q.Summary(ctx),
			Draining: q.Draining(),
		}
		if rec, ok := records[kind]; ok {
			rec := rec
			status.LastDrain = &rec
		}
		summary.Queues = append(summary.Queues, status)
	}
	if m.sync != nil {
		summary.PendingSync = m.sync.Pending()
	}
	return summary
}

func (m *Manager) record(result queue.DrainResult, start time.Time) {
	now := time.Now()
	m.mu.Lock()
	m.lastDrain[result.Kind] = DrainRecord{Result: result, Finished: now, Duration: now.Sub(start)}
	m.mu.Unlock()
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}
