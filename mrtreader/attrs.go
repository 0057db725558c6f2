package mrtreader

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

// BGP path attribute type codes used to populate element.Fields (rfc4271/4760).
const (
	attrOrigin       = 1
	attrASPath       = 2
	attrNextHop      = 3
	attrCommunity    = 8
	attrMPReach      = 14
	attrMPUnreach    = 15
	attrAS4Path      = 17
	attrLargeCommunity = 32

	flagExtendedLen = 0b00010000

	afiIPv4 = 1
	afiIPv6 = 2
)

// pathAttrs holds the fields we project from a BGP UPDATE's attributes.
type pathAttrs struct {
	asPath      string
	nextHop     string
	communities []string
	mpReach     []netip.Prefix // IPv6 NLRI carried in MP_REACH_NLRI
	mpUnreach   []netip.Prefix // IPv6 NLRI carried in MP_UNREACH_NLRI
	mpNextHop   string
}

// parseAttrs walks the raw attribute TLVs of a BGP UPDATE. asn4 selects
// whether AS_PATH/AS4_PATH segments carry 2-byte or 4-byte ASNs; MRT
// archives produced today always set it (BGP4MP_MESSAGE_AS4, or
// RFC6396 4.3.4's mandated 4-byte encoding in TABLE_DUMP_V2).
func parseAttrs(raw []byte, asn4 bool) (pathAttrs, error) {
	var pa pathAttrs
	for len(raw) > 0 {
		if len(raw) < 3 {
			return pa, ErrAttrs
		}
		flags := raw[0]
		code := raw[1]
		raw = raw[2:]

		var alen int
		if flags&flagExtendedLen != 0 {
			if len(raw) < 2 {
				return pa, ErrAttrs
			}
			alen = int(binary.BigEndian.Uint16(raw[0:2]))
			raw = raw[2:]
		} else {
			if len(raw) < 1 {
				return pa, ErrAttrs
			}
			alen = int(raw[0])
			raw = raw[1:]
		}
		if len(raw) < alen {
			return pa, ErrAttrs
		}
		val := raw[:alen]
		raw = raw[alen:]

		switch code {
		case attrASPath, attrAS4Path:
			s, err := formatASPath(val, asn4)
			if err != nil {
				return pa, err
			}
			// AS4_PATH only supplements AS_PATH when old peers can't carry
			// 4-byte ASNs; MRT archives carry plain AS_PATH, so prefer it
			// and only fall back to AS4_PATH if AS_PATH was empty/absent.
			if code == attrASPath || pa.asPath == "" {
				pa.asPath = s
			}
		case attrNextHop:
			if len(val) == 4 {
				pa.nextHop = netip.AddrFrom4([4]byte(val)).String()
			}
		case attrCommunity:
			pa.communities = append(pa.communities, formatCommunities(val)...)
		case attrLargeCommunity:
			pa.communities = append(pa.communities, formatLargeCommunities(val)...)
		case attrMPReach:
			nh, prefixes, err := parseMPReach(val)
			if err != nil {
				return pa, err
			}
			pa.mpReach = prefixes
			if nh != "" {
				pa.mpNextHop = nh
			}
		case attrMPUnreach:
			prefixes, err := parseMPUnreach(val)
			if err != nil {
				return pa, err
			}
			pa.mpUnreach = prefixes
		}
	}
	return pa, nil
}

// formatASPath renders AS_PATH/AS4_PATH segments as space-separated ASNs,
// with AS_SET segments wrapped in {} per the textual convention shared by
// bgpdump/bgpkit/bgpreader output (spec §4.1).
func formatASPath(buf []byte, asn4 bool) (string, error) {
	asnLen := 2
	if asn4 {
		asnLen = 4
	}

	var segs []string
	for len(buf) > 0 {
		if len(buf) < 2 {
			return "", ErrAttrs
		}
		segType := buf[0]
		count := int(buf[1])
		buf = buf[2:]
		need := count * asnLen
		if len(buf) < need {
			return "", ErrAttrs
		}

		asns := make([]string, 0, count)
		for i := 0; i < count; i++ {
			var asn uint32
			if asnLen == 4 {
				asn = binary.BigEndian.Uint32(buf[i*4 : i*4+4])
			} else {
				asn = uint32(binary.BigEndian.Uint16(buf[i*2 : i*2+2]))
			}
			asns = append(asns, strconv.FormatUint(uint64(asn), 10))
		}
		buf = buf[need:]

		switch segType {
		case 1: // AS_SET
			segs = append(segs, "{"+strings.Join(asns, ",")+"}")
		default: // AS_SEQUENCE and friends: flatten in order
			segs = append(segs, asns...)
		}
	}
	return strings.Join(segs, " "), nil
}

func formatCommunities(buf []byte) []string {
	var out []string
	for len(buf) >= 4 {
		asn := binary.BigEndian.Uint16(buf[0:2])
		val := binary.BigEndian.Uint16(buf[2:4])
		out = append(out, fmt.Sprintf("%d:%d", asn, val))
		buf = buf[4:]
	}
	return out
}

func formatLargeCommunities(buf []byte) []string {
	var out []string
	for len(buf) >= 12 {
		g := binary.BigEndian.Uint32(buf[0:4])
		l1 := binary.BigEndian.Uint32(buf[4:8])
		l2 := binary.BigEndian.Uint32(buf[8:12])
		out = append(out, fmt.Sprintf("%d:%d:%d", g, l1, l2))
		buf = buf[12:]
	}
	return out
}

// parseMPReach decodes MP_REACH_NLRI (rfc4760/3), returning the nexthop
// (first component only, ignoring any IPv6 link-local second address)
// and the reachable prefixes when the AFI/SAFI is IPv6 unicast.
func parseMPReach(buf []byte) (nextHop string, prefixes []netip.Prefix, err error) {
	if len(buf) < 5 {
		return "", nil, ErrAttrs
	}
	afi := binary.BigEndian.Uint16(buf[0:2])
	safi := buf[2]
	buf = buf[3:]

	nhLen := int(buf[0])
	buf = buf[1:]
	if len(buf) < nhLen+1 {
		return "", nil, ErrAttrs
	}
	nh := buf[:nhLen]
	buf = buf[nhLen+1:] // skip reserved byte

	if len(nh) >= 16 {
		nextHop = netip.AddrFrom16([16]byte(nh[:16])).String()
	} else if len(nh) == 4 {
		nextHop = netip.AddrFrom4([4]byte(nh)).String()
	}

	if afi != afiIPv6 || safi != 1 {
		return nextHop, nil, nil
	}

	prefixes, err = readPrefixes(buf, true)
	return nextHop, prefixes, err
}

// parseMPUnreach decodes MP_UNREACH_NLRI (rfc4760/4), returning withdrawn
// IPv6 unicast prefixes.
func parseMPUnreach(buf []byte) ([]netip.Prefix, error) {
	if len(buf) < 3 {
		return nil, ErrAttrs
	}
	afi := binary.BigEndian.Uint16(buf[0:2])
	safi := buf[2]
	buf = buf[3:]
	if afi != afiIPv6 || safi != 1 {
		return nil, nil
	}
	return readPrefixes(buf, true)
}

// readPrefixes decodes rfc4271/4760-encoded NLRI: a stream of
// (prefix-length-bits, ceil(bits/8) address bytes) entries.
func readPrefixes(buf []byte, ipv6 bool) ([]netip.Prefix, error) {
	var out []netip.Prefix
	width := 4
	if ipv6 {
		width = 16
	}
	for len(buf) > 0 {
		bits := int(buf[0])
		buf = buf[1:]
		nbytes := (bits + 7) / 8
		if nbytes > width || len(buf) < nbytes {
			return nil, ErrAttrs
		}
		addrBytes := make([]byte, width)
		copy(addrBytes, buf[:nbytes])
		buf = buf[nbytes:]

		var addr netip.Addr
		if ipv6 {
			addr = netip.AddrFrom16([16]byte(addrBytes))
		} else {
			addr = netip.AddrFrom4([4]byte(addrBytes))
		}
		p, err := addr.Prefix(bits)
		if err != nil {
			return nil, fmt.Errorf("mrtreader: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}
