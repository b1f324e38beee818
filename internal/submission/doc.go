// Package submission defines the typed payloads accepted by the queues and
// the validation applied before they are enqueued.
package submission
