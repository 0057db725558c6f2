// Package filterspec normalizes one user filter intent and translates
// it into the three backend-specific forms the downstream parsers and
// the RIS Live WebSocket protocol expect (spec §4.1).
package filterspec

import (
	"fmt"
	"net/netip"
	"regexp"
)

// PrefixMode selects which of the mutually exclusive prefix clauses is set.
type PrefixMode int

const (
	PrefixNone PrefixMode = iota
	PrefixExact
	PrefixSuper
	PrefixSub
	PrefixSuperSub
)

// UpdateType restricts FilterSpec to announcements or withdrawals.
type UpdateType int

const (
	UpdateAny UpdateType = iota
	UpdateAnnounce
	UpdateWithdraw
)

// FilterSpec is all-optional: a zero field means "match all" for that
// dimension (spec §3).
type FilterSpec struct {
	OriginASN  *uint32
	PeerASN    *uint32
	PeerIP     netip.Addr   // zero Addr means unset
	PeerIPs    []netip.Addr // nil means unset
	AsPath     string       // regex, "" means unset
	IPVersion  int          // 0 (unset), 4, or 6
	UpdateType UpdateType

	PrefixMode PrefixMode
	Prefix     string // CIDR, set iff PrefixMode != PrefixNone
}

// Validate checks that a set prefix mode carries a parseable prefix,
// that the as-path regex, if present, compiles, and that ip_version is
// 0, 4 or 6. At most one prefix clause exists by construction, since
// PrefixMode holds a single mode; New rejects more than one.
func (f *FilterSpec) Validate() error {
	if f.PrefixMode != PrefixNone && f.Prefix == "" {
		return fmt.Errorf("%w: prefix mode set without a prefix value", ErrConfig)
	}
	if f.PrefixMode != PrefixNone {
		if _, err := netip.ParsePrefix(f.Prefix); err != nil {
			return fmt.Errorf("%w: invalid prefix %q: %v", ErrConfig, f.Prefix, err)
		}
	}
	if f.AsPath != "" {
		if _, err := regexp.Compile(f.AsPath); err != nil {
			return fmt.Errorf("%w: invalid as_path regex: %v", ErrConfig, err)
		}
	}
	if f.IPVersion != 0 && f.IPVersion != 4 && f.IPVersion != 6 {
		return fmt.Errorf("%w: ip_version must be 4 or 6, got %d", ErrConfig, f.IPVersion)
	}
	return nil
}

// Raw mirrors the wire/config shape of FilterSpec from spec §3, where
// the four prefix variants are separate optional fields rather than a
// single enum — this is how a FilterSpec typically arrives from a
// config file. New validates and collapses it into a FilterSpec.
type Raw struct {
	OriginASN      *uint32
	PeerASN        *uint32
	PeerIP         string
	PeerIPs        []string
	AsPath         string
	IPVersion      int
	UpdateType     UpdateType
	Prefix         string
	PrefixSuper    string
	PrefixSub      string
	PrefixSuperSub string
}

// New validates a Raw filter description and collapses it into a
// FilterSpec. Setting more than one of Prefix/PrefixSuper/PrefixSub/
// PrefixSuperSub is a configuration error (spec §3, §4.1).
func New(r Raw) (*FilterSpec, error) {
	f := &FilterSpec{
		OriginASN:  r.OriginASN,
		PeerASN:    r.PeerASN,
		AsPath:     r.AsPath,
		IPVersion:  r.IPVersion,
		UpdateType: r.UpdateType,
	}

	set := 0
	if r.Prefix != "" {
		set++
		f.PrefixMode, f.Prefix = PrefixExact, r.Prefix
	}
	if r.PrefixSuper != "" {
		set++
		f.PrefixMode, f.Prefix = PrefixSuper, r.PrefixSuper
	}
	if r.PrefixSub != "" {
		set++
		f.PrefixMode, f.Prefix = PrefixSub, r.PrefixSub
	}
	if r.PrefixSuperSub != "" {
		set++
		f.PrefixMode, f.Prefix = PrefixSuperSub, r.PrefixSuperSub
	}
	if set > 1 {
		return nil, fmt.Errorf("%w: at most one of prefix/prefix_super/prefix_sub/prefix_super_sub may be set", ErrConfig)
	}

	if r.PeerIP != "" {
		addr, err := netip.ParseAddr(r.PeerIP)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid peer_ip %q: %v", ErrConfig, r.PeerIP, err)
		}
		f.PeerIP = addr
	}
	for _, s := range r.PeerIPs {
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid peer_ips entry %q: %v", ErrConfig, s, err)
		}
		f.PeerIPs = append(f.PeerIPs, addr)
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// IsZero reports whether the filter applies no restriction at all.
func (f *FilterSpec) IsZero() bool {
	if f == nil {
		return true
	}
	return f.OriginASN == nil && f.PeerASN == nil && !f.PeerIP.IsValid() &&
		len(f.PeerIPs) == 0 && f.AsPath == "" && f.IPVersion == 0 &&
		f.UpdateType == UpdateAny && f.PrefixMode == PrefixNone
}
