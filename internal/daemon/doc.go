// Package daemon coordinates the long-running herhaven process.
//
// It wires configuration, the queue storage backend, the workflow manager and
// the local intake API into a single lifecycle with flock-based locking to
// prevent multiple instances. The daemon validates incoming submissions
// before they reach a queue and exposes the queue maintenance operations used
// by the CLI over IPC and by local clients over HTTP.
package daemon
