// Package notifications delivers queue events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when no topic is set. Callers depend
// only on the Service interface and describe events with an Event plus a
// loosely typed Payload.
package notifications
