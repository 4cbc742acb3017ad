// Package wan controls per-client WAN access on the hotspot.
//
// It wraps the OS firewall tool (iptables by default) and maintains one
// DROP rule per blocked MAC in a configured chain. Block and Unblock are
// idempotent (the rule is checked with -C before -I or -D), so the
// enforcement mapping can be re-applied on every status write without
// accumulating duplicates.
//
// Enforcement policy: Local-only and Disconnected devices are blocked
// from the WAN; Online and Cloud-Connected devices are unblocked. The
// package never fails hard; a machine without the firewall tool (or a
// controller built with Disabled()) simply no-ops with a log line.
package wan
