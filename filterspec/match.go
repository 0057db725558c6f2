package filterspec

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/bgpstream-engine/bgpstream/element"
)

// Matcher is the post-parse filter pass (spec §4.5): it checks every
// field of the FilterSpec, including ip_version and peer_ip/peer_ips,
// whether or not a backend already applied some of them natively. A
// Matcher with a nil FilterSpec matches everything.
type Matcher struct {
	f      *FilterSpec
	asPath *regexp.Regexp
}

// NewMatcher compiles a Matcher for f. post is accepted but not
// consulted: every field of f is checked, including fields a backend
// already applied natively.
func NewMatcher(f *FilterSpec, post PostParseFields) (*Matcher, error) {
	m := &Matcher{f: f}
	if f == nil {
		return m, nil
	}
	if f.AsPath != "" {
		re, err := regexp.Compile(f.AsPath)
		if err != nil {
			return nil, err
		}
		m.asPath = re
	}
	// Always applied post-parse regardless of what the backend consumed.
	_ = post
	return m, nil
}

// Match reports whether e satisfies every field of the underlying
// FilterSpec (spec §8 "Filter soundness").
func (m *Matcher) Match(e *element.BGPElement) bool {
	f := m.f
	if f == nil {
		return true
	}

	if f.IPVersion == 6 && !e.IsIPv6() {
		return false
	}
	if f.IPVersion == 4 && e.IsIPv6() {
		return false
	}

	switch f.UpdateType {
	case UpdateAnnounce:
		if e.Type != element.TypeAnnounce {
			return false
		}
	case UpdateWithdraw:
		if e.Type != element.TypeWithdraw {
			return false
		}
	}

	if f.PeerIP.IsValid() && e.PeerAddr != f.PeerIP {
		return false
	}
	if len(f.PeerIPs) > 0 {
		found := false
		for _, ip := range f.PeerIPs {
			if ip == e.PeerAddr {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if f.PeerASN != nil && e.PeerASN != *f.PeerASN {
		return false
	}

	if f.OriginASN != nil {
		// An AS-SET origin "{a,b}" matches when any of its members equals the ASN.
		toks := strings.Fields(e.Fields.AsPath)
		if len(toks) == 0 {
			return false
		}
		members := strings.Split(strings.Trim(toks[len(toks)-1], "{}"), ",")
		if !slices.Contains(members, strconv.FormatUint(uint64(*f.OriginASN), 10)) {
			return false
		}
	}

	if m.asPath != nil && !m.asPath.MatchString(e.Fields.AsPath) {
		return false
	}

	if f.PrefixMode != PrefixNone && !matchPrefix(f, e.Fields.Prefix) {
		return false
	}

	return true
}
