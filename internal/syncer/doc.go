// Package syncer models deferred background sync as a capability.
//
// Producers call Registrar.Register with a named tag after persisting work
// they want retried later. A Manager keeps registered tags until a handler
// bound to the tag completes successfully, firing on demand or on an interval
// while a gate (usually connectivity) allows it. Noop satisfies Registrar
// where background sync is unavailable.
package syncer
