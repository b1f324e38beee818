// Command herhaven runs the offline submission queue daemon and manages its
// SOS and contact queues.
//
// Subcommands talk to a running daemon over its Unix socket. When no daemon
// answers, queue commands open the configured storage directly so entries can
// still be inspected, pruned or delivered by hand.
package main
