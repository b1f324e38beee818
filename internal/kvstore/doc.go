// Package kvstore provides the durable key-value backends that hold the
// serialized submission queues.
//
// Each queue is stored as a single opaque blob under its storage key. Backends
// only need whole-value get, put, and delete; ordering and entry semantics
// live in package queue.
package kvstore
