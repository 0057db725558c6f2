package filterspec

import (
	"fmt"
	"strconv"
	"strings"
)

// Target names the downstream consumer of a translated filter, since
// as_path regex dialect differs by backend (spec §4.1).
type Target int

const (
	TargetBgpdump Target = iota
	TargetBgpkit
	TargetPybgpstream
	TargetWebSocket
)

// CollectorFilter carries the collector set and data-type set that ride
// alongside a FilterSpec in the CLI filter-string grammar; these are
// properties of the enclosing HistoricConfig/LiveConfig, not of
// FilterSpec itself, but the filter-string grammar folds them into the
// same conjunction (spec §4.1 table).
type CollectorFilter struct {
	Collectors []string
	DataTypes  []string // "ribs", "updates"
}

// PostParseFields reports which FilterSpec fields the CLI filter-string
// grammar cannot express natively and that the ParserDriver must apply
// itself after parsing (spec §4.1, §4.5): peer_ip(s) always, ip_version
// always.
type PostParseFields struct {
	PeerIP    bool
	PeerIPs   bool
	IPVersion bool
}

// ToFilterString renders the conjunction-of-clauses CLI grammar
// consumed by bgpdump-style and pybgpstream (bgpreader) binaries
// (spec §4.1 table). peer_ip/peer_ips and ip_version are never
// expressible here; the caller must apply them post-parse.
func ToFilterString(cf CollectorFilter, f *FilterSpec, target Target) (string, PostParseFields, error) {
	var clauses []string
	post := PostParseFields{}

	if len(cf.Collectors) > 0 {
		clauses = append(clauses, "collector "+strings.Join(cf.Collectors, " "))
	}
	if len(cf.DataTypes) > 0 {
		clauses = append(clauses, "type "+strings.Join(cf.DataTypes, " "))
	}

	if f != nil {
		if f.PeerASN != nil {
			clauses = append(clauses, fmt.Sprintf("peer %d", *f.PeerASN))
		}
		if f.AsPath != "" {
			// Cisco-style regex for pybgpstream, POSIX for the rest;
			// both dialects accept the same basic anchored tokens
			// this module generates, so the regex text is unchanged
			// across targets — only documented as dialect-specific
			// per spec, since user-supplied as_path may rely on
			// dialect features we do not rewrite.
			clauses = append(clauses, fmt.Sprintf("aspath %q", f.AsPath))
		}
		if f.OriginASN != nil {
			clauses = append(clauses, fmt.Sprintf("aspath %q", fmt.Sprintf("_%d$", *f.OriginASN)))
		}
		switch f.UpdateType {
		case UpdateAnnounce:
			clauses = append(clauses, "elemtype announcements")
		case UpdateWithdraw:
			clauses = append(clauses, "elemtype withdrawals")
		}
		switch f.PrefixMode {
		case PrefixExact:
			clauses = append(clauses, "prefix exact "+f.Prefix)
		case PrefixSuper:
			clauses = append(clauses, "prefix less "+f.Prefix)
		case PrefixSub:
			clauses = append(clauses, "prefix more "+f.Prefix)
		case PrefixSuperSub:
			clauses = append(clauses, "prefix any "+f.Prefix)
		}

		if f.PeerIP.IsValid() {
			post.PeerIP = true
		}
		if len(f.PeerIPs) > 0 {
			post.PeerIPs = true
		}
		if f.IPVersion != 0 {
			post.IPVersion = true
		}
	}

	return strings.Join(clauses, " and "), post, nil
}

// LibraryArgs is the structured form passed as native arguments to a
// library backend (spec §4.1 "Structured library form").
type LibraryArgs struct {
	Collectors []string
	DataTypes  []string
	PeerASN    *uint32
	OriginASN  *uint32
	AsPath     string
	UpdateType UpdateType
	PrefixMode PrefixMode
	Prefix     string
	PeerIP     string   // post-parse
	PeerIPs    []string // post-parse
	IPVersion  int       // post-parse
}

// ToLibraryArgs renders the structured library form. Every FilterSpec
// field is preserved (no post-parse split) since the caller owns both
// the native filter hints and the post-parse pass in this backend.
func ToLibraryArgs(cf CollectorFilter, f *FilterSpec) LibraryArgs {
	args := LibraryArgs{
		Collectors: cf.Collectors,
		DataTypes:  cf.DataTypes,
	}
	if f == nil {
		return args
	}
	args.PeerASN = f.PeerASN
	args.OriginASN = f.OriginASN
	args.AsPath = f.AsPath
	args.UpdateType = f.UpdateType
	args.PrefixMode = f.PrefixMode
	args.Prefix = f.Prefix
	args.IPVersion = f.IPVersion
	if f.PeerIP.IsValid() {
		args.PeerIP = f.PeerIP.String()
	}
	for _, ip := range f.PeerIPs {
		args.PeerIPs = append(args.PeerIPs, ip.String())
	}
	return args
}

// Subscription is one RIS Live "ris_subscribe" data payload (spec §4.1,
// §6); one is produced per collector.
type Subscription struct {
	Host          string
	Type          string // always "UPDATE"
	Require       string // "announcements" | "withdrawals" | ""
	Peer          string
	Path          string // comma-joined anchored ASN tokens
	Prefix        string
	MoreSpecific  *bool
	LessSpecific  *bool
}

// ToSubscriptions renders one Subscription per collector for the RIS
// Live WebSocket subscribe protocol (spec §4.1).
func ToSubscriptions(collectors []string, f *FilterSpec) ([]Subscription, error) {
	if f != nil {
		if err := f.Validate(); err != nil {
			return nil, err
		}
	}

	base := Subscription{Type: "UPDATE"}
	if f != nil {
		switch f.UpdateType {
		case UpdateAnnounce:
			base.Require = "announcements"
		case UpdateWithdraw:
			base.Require = "withdrawals"
		}
		if f.PeerIP.IsValid() {
			base.Peer = f.PeerIP.String()
		}

		var pathToks []string
		if f.PeerASN != nil {
			pathToks = append(pathToks, "^"+strconv.FormatUint(uint64(*f.PeerASN), 10))
		}
		if f.OriginASN != nil {
			pathToks = append(pathToks, strconv.FormatUint(uint64(*f.OriginASN), 10)+"$")
		}
		base.Path = strings.Join(pathToks, ",")

		tru, fals := true, false
		switch f.PrefixMode {
		case PrefixExact:
			base.Prefix = f.Prefix
			base.MoreSpecific, base.LessSpecific = &fals, &fals
		case PrefixSub:
			base.Prefix = f.Prefix
			base.MoreSpecific = &tru
		case PrefixSuper:
			base.Prefix = f.Prefix
			base.LessSpecific = &tru
		case PrefixSuperSub:
			base.Prefix = f.Prefix
			base.MoreSpecific, base.LessSpecific = &tru, &tru
		}
	}

	subs := make([]Subscription, 0, len(collectors))
	for _, c := range collectors {
		s := base
		s.Host = c
		subs = append(subs, s)
	}
	return subs, nil
}
