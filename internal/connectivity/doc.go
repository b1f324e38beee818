// Package connectivity tracks whether the remote API is reachable and
// notifies subscribers when it becomes reachable.
//
// A Monitor probes on an interval and, when enabled, immediately after the
// kernel reports a network interface change over udev netlink.
package connectivity
