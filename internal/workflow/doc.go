// Package workflow coordinates the durable submission queues.
//
// The Manager owns one queue per kind and decides when each drains: when the
// connectivity monitor reports the remote API reachable (including at
// startup), when a new submission arrives while online, when the background
// sync registry fires a queue's tag, and on explicit request from the API or
// CLI. Drain outcomes are recorded for status reporting and entries that
// exhaust their retries are announced through the notification service.
//
// Queue semantics (ordering, retry ceiling, purge) live in package queue;
// this package only schedules and observes them.
package workflow
