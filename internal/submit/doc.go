// Package submit delivers queued payloads to the remote herhaven API.
//
// Requests are rate limited client-side and wrapped in a circuit breaker so a
// failing backend is not hammered during a drain; an open breaker fails the
// attempt like any other transport error and counts toward the entry's
// retry ceiling.
package submit
