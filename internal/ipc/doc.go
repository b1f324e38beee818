// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management and the request/response DTOs. Queue
// payload shapes are shared with the HTTP API through package api so both
// surfaces stay in step.
package ipc
