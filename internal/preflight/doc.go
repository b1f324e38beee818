// Package preflight provides readiness checks for the filesystem paths,
// storage backend and remote services herhaven depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and logs every failed check. Failures
//     are not fatal because queued entries survive until the problem is fixed.
//   - The CLI "herhaven status" command uses individual check functions
//     (CheckRemoteAPI, CheckDirectoryAccess) to display service health.
//
// Checks for optional features are gated by their config toggle.
package preflight
