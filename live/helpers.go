package live

import (
	"fmt"
	"net/netip"
	"strings"
	"time"
)

// pruneFailures appends now to failures and drops every entry older
// than reconnectWindow, implementing the sliding window behind spec
// §7's "5 consecutive reconnect failures within 60s" escalation rule.
// Pulled out of Client.run so the escalation arithmetic is testable
// without real sleeps.
func pruneFailures(failures []time.Time, now time.Time) []time.Time {
	failures = append(failures, now)
	cutoff := now.Add(-reconnectWindow)
	kept := failures[:0]
	for _, t := range failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

// collectorFromHost strips the RIS Live host suffix ("rrc00.ripe.net"
// -> "rrc00"), matching the original pipeline's
// `ris_message["host"].split(".")[0]`.
func collectorFromHost(host string) string {
	if i := strings.IndexByte(host, '.'); i >= 0 {
		return host[:i]
	}
	return host
}

// firstComponent returns the first comma-joined token of a next-hop
// string (spec §4.7: "next-hop is the first entry of the comma-joined
// next-hop string").
func firstComponent(s string) string {
	if i := strings.IndexByte(s, ','); i >= 0 {
		return s[:i]
	}
	return s
}

func joinASPath(toks []string) string {
	return strings.Join(toks, " ")
}

func parseAddr(s string) (netip.Addr, error) {
	a, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("bad peer address %q: %w", s, err)
	}
	return a, nil
}
