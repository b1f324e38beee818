// Package logging assembles structured slog loggers and formatting helpers used
// across herhaven.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so queue code can tag log lines with the
// queue kind, entry id, and request correlation id. A no-op logger is provided
// for tests and wiring code that cannot fail.
//
// The optional StreamHub keeps a bounded buffer of recent events for the
// daemon's log tail endpoint.
package logging
