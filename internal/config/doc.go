// Package config loads, normalizes, and validates herhaven configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// HERHAVEN_API_TOKEN. The Config type centralizes every knob the daemon and CLI
// need: the remote submission API, the storage backend that holds the offline
// queues, connectivity probing, background sync timing, and logging.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
