package api

import (
	"errors"
	"time"

	"herhaven/internal/logging"
	"herhaven/internal/queue"
	"herhaven/internal/submission"
	"herhaven/internal/workflow"
)

// FromEntry converts a stored entry to its API representation. Payloads are
// only included when withPayload is set since they may carry personal data.
func FromEntry(kind queue.Kind, entry queue.Entry, withPayload bool) Entry {
	dto := Entry{
		ID:         entry.ID,
		Kind:       string(kind),
		Status:     string(entry.Status),
		RetryCount: entry.RetryCount,
		Timestamp:  entry.Timestamp,
		Preview:    PayloadPreview(kind, entry.Payload),
	}
	if entry.Timestamp > 0 {
		dto.CreatedAt = entry.CreatedAt().UTC().Format(dateTimeFormat)
	}
	if withPayload && len(entry.Payload) > 0 {
		dto.Payload = entry.Payload
	}
	return dto
}

// FromEntries converts a slice of entries.
func FromEntries(kind queue.Kind, entries []queue.Entry, withPayload bool) []Entry {
	if len(entries) == 0 {
		return nil
	}
	out := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, FromEntry(kind, entry, withPayload))
	}
	return out
}

// FromSummary converts status counts.
func FromSummary(summary queue.Summary) Counts {
	return Counts{
		Total:   summary.Total,
		Pending: summary.Pending,
		Syncing: summary.Syncing,
		Synced:  summary.Synced,
		Failed:  summary.Failed,
	}
}

// FromDrainResult converts a drain outcome.
func FromDrainResult(result queue.DrainResult) DrainInfo {
	info := DrainInfo{
		Kind:        string(result.Kind),
		Attempted:   result.Attempted,
		Synced:      result.Synced,
		Retrying:    result.Retrying,
		Failed:      len(result.Failed),
		Purged:      result.Purged,
		Skipped:     result.Skipped,
		Interrupted: result.Interrupted,
	}
	for _, entry := range result.Failed {
		info.FailedIDs = append(info.FailedIDs, entry.ID)
	}
	return info
}

// FromDrainRecord converts a remembered drain including its timing.
func FromDrainRecord(rec workflow.DrainRecord) DrainInfo {
	info := FromDrainResult(rec.Result)
	if !rec.Finished.IsZero() {
		info.FinishedAt = rec.Finished.UTC().Format(dateTimeFormat)
	}
	info.DurationMs = rec.Duration.Milliseconds()
	return info
}

// FromStatusSummary converts workflow diagnostics into the queue portion of DaemonStatus.
func FromStatusSummary(summary workflow.StatusSummary) DaemonStatus {
	status := DaemonStatus{
		Running:     summary.Running,
		Online:      summary.Online,
		LastError:   summary.LastError,
		PendingSync: summary.PendingSync,
		Queues:      make([]QueueStatus, 0, len(summary.Queues)),
	}
	for _, qs := range summary.Queues {
		dto := QueueStatus{
			Kind:     string(qs.Kind),
			Counts:   FromSummary(qs.Summary),
			Draining: qs.Draining,
		}
		if qs.LastDrain != nil {
			info := FromDrainRecord(*qs.LastDrain)
			dto.LastDrain = &info
		}
		status.Queues = append(status.Queues, dto)
	}
	return status
}

// ErrorFrom builds an ErrorResponse, expanding validation problems.
func ErrorFrom(err error) ErrorResponse {
	if err == nil {
		return ErrorResponse{}
	}
	resp := ErrorResponse{Error: err.Error()}
	var verr *submission.ValidationError
	if errors.As(err, &verr) {
		for _, p := range verr.Problems {
			resp.Problems = append(resp.Problems, Problem{Field: p.Field, Reason: p.Reason})
		}
	}
	return resp
}

// ConvertLogEvents converts stream hub events to their API shape.
func ConvertLogEvents(events []logging.LogEvent) []LogEvent {
	if len(events) == 0 {
		return nil
	}
	out := make([]LogEvent, 0, len(events))
	for _, evt := range events {
		out = append(out, LogEvent{
			Sequence:  evt.Sequence,
			Timestamp: evt.Timestamp,
			Level:     evt.Level,
			Message:   evt.Message,
			Component: evt.Component,
			Queue:     evt.Queue,
			EntryID:   evt.EntryID,
			Fields:    evt.Fields,
		})
	}
	return out
}

// ParseTime parses an API timestamp, returning the zero time on failure.
func ParseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}
