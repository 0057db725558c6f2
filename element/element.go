// Package element defines the normalized BGP observation record that
// flows out of every pipeline in this module, and the ordering relation
// used to merge per-collector streams into one time-sorted sequence.
package element

import (
	"fmt"
	"net/netip"
	"strings"
	"time"
)

// Type is the kind of BGP observation a BGPElement carries.
type Type byte

const (
	TypeInvalid  Type = 0
	TypeAnnounce Type = 'A'
	TypeWithdraw Type = 'W'
	TypeRIB      Type = 'R'
)

func (t Type) String() string {
	switch t {
	case TypeAnnounce:
		return "A"
	case TypeWithdraw:
		return "W"
	case TypeRIB:
		return "R"
	default:
		return "?"
	}
}

// Fields holds the recognized BGPElement attributes (spec §3). The key
// set is closed, so a struct is used instead of a generic map.
type Fields struct {
	Prefix       string   // CIDR string, eg "203.0.113.0/24"
	AsPath       string   // space-separated ASN tokens, sets written "{a,b}"
	NextHop      string   // textual IP
	Communities  []string // ordered "asn:value" tokens, nil or empty if absent
}

// BGPElement is one normalized BGP observation.
type BGPElement struct {
	Type      Type
	Collector string
	Time      time.Time
	PeerASN   uint32
	PeerAddr  netip.Addr
	Fields    Fields
}

// sortKey is the (time, collector, peer_asn, peer_address, type) tuple
// used by merge.Sorter to break ties deterministically (spec §3).
type sortKey struct {
	t         int64 // UnixNano
	collector string
	peerASN   uint32
	peerAddr  netip.Addr
	typ       Type
}

func (e *BGPElement) key() sortKey {
	return sortKey{
		t:         e.Time.UnixNano(),
		collector: e.Collector,
		peerASN:   e.PeerASN,
		peerAddr:  e.PeerAddr,
		typ:       e.Type,
	}
}

// Less reports whether e sorts strictly before other under the
// BGPElement ordering relation: time ascending, ties broken by
// (collector, peer_asn, peer_address, type) lexicographically.
func (e *BGPElement) Less(other *BGPElement) bool {
	a, b := e.key(), other.key()
	if a.t != b.t {
		return a.t < b.t
	}
	if a.collector != b.collector {
		return a.collector < b.collector
	}
	if a.peerASN != b.peerASN {
		return a.peerASN < b.peerASN
	}
	if cmp := a.peerAddr.Compare(b.peerAddr); cmp != 0 {
		return cmp < 0
	}
	return a.typ < b.typ
}

// Projection renders the textual interop projection from spec §6:
//
//	<type>|<collector>|<time>|<peer_asn>|<peer_address>|<prefix>|<as-path>|<next-hop>|<communities csv>
func (e *BGPElement) Projection() string {
	ts := float64(e.Time.UnixNano()) / 1e9
	return fmt.Sprintf("%s|%s|%.6f|%d|%s|%s|%s|%s|%s",
		e.Type.String(),
		e.Collector,
		ts,
		e.PeerASN,
		e.PeerAddr.String(),
		e.Fields.Prefix,
		e.Fields.AsPath,
		e.Fields.NextHop,
		strings.Join(e.Fields.Communities, ","),
	)
}

// IsIPv6 reports whether the element's prefix is an IPv6 prefix,
// per the ":" heuristic in spec §4.5 / §8.
func (e *BGPElement) IsIPv6() bool {
	return strings.Contains(e.Fields.Prefix, ":")
}

// OriginASN returns the last AS-path token, ignoring AS-SET syntax
// "{a,b}", or "" if the as-path is empty.
func (e *BGPElement) OriginASN() string {
	toks := strings.Fields(e.Fields.AsPath)
	if len(toks) == 0 {
		return ""
	}
	last := toks[len(toks)-1]
	last = strings.TrimPrefix(last, "{")
	last = strings.TrimSuffix(last, "}")
	if idx := strings.LastIndexByte(last, ','); idx >= 0 {
		last = last[idx+1:]
	}
	return last
}

// FirstASN returns the first AS-path token (the adjacent peer AS), or
// "" if the as-path is empty.
func (e *BGPElement) FirstASN() string {
	toks := strings.Fields(e.Fields.AsPath)
	if len(toks) == 0 {
		return ""
	}
	first := toks[0]
	first = strings.TrimPrefix(first, "{")
	first = strings.TrimSuffix(first, "}")
	if idx := strings.IndexByte(first, ','); idx >= 0 {
		first = first[:idx]
	}
	return first
}
