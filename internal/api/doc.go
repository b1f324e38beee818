// Package api defines wire-format types and converters for the IPC and HTTP
// API layer. It translates internal queue models into transport-friendly DTOs
// that the CLI and local clients render without coupling to internal types.
//
// # Key Types
//
// Entry: transport representation of a queued submission with a short
// human-readable preview of its payload.
//
// QueueStatus: per-queue counts, drain state and the last drain outcome.
//
// DaemonStatus: aggregated runtime information including connectivity,
// storage backend and circuit breaker state.
//
// LogEvent/LogStreamResponse: structured log payloads for live tailing.
//
// # Design Notes
//
// DTOs use camelCase JSON tags to match the stored entry format. Timestamps
// use RFC3339 with milliseconds. Payloads pass through as json.RawMessage to
// avoid double-encoding.
package api
