// Package daemonctl starts, stops and restarts a detached herhaven daemon on
// behalf of the CLI.
package daemonctl
