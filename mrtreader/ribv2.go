package mrtreader

import (
	"encoding/binary"
	"net/netip"
	"time"
)

// RFC6396 4.3 TABLE_DUMP_V2 subtypes.
const (
	subPeerIndexTable  = 1
	subRIBIPv4Unicast  = 2
	subRIBIPv6Unicast  = 4
)

// ribPeer is one entry of the PEER_INDEX_TABLE (rfc6396/4.3.1).
type ribPeer struct {
	asn  uint32
	addr netip.Addr
}

// parsePeerIndexTable decodes the PEER_INDEX_TABLE record that must
// precede any RIB_* record in a TABLE_DUMP_V2 file.
func parsePeerIndexTable(data []byte) ([]ribPeer, error) {
	if len(data) < 6 {
		return nil, ErrShort
	}
	viewNameLen := int(binary.BigEndian.Uint16(data[4:6]))
	off := 6 + viewNameLen
	if len(data) < off+2 {
		return nil, ErrShort
	}
	peerCount := int(binary.BigEndian.Uint16(data[off : off+2]))
	off += 2

	peers := make([]ribPeer, 0, peerCount)
	for i := 0; i < peerCount; i++ {
		if len(data) < off+1 {
			return nil, ErrShort
		}
		peerType := data[off]
		off++

		if len(data) < off+4 {
			return nil, ErrShort
		}
		off += 4 // peer BGP ID, unused

		var addr netip.Addr
		if peerType&0x1 != 0 { // IPv6 peer address
			if len(data) < off+16 {
				return nil, ErrShort
			}
			addr = netip.AddrFrom16([16]byte(data[off : off+16]))
			off += 16
		} else {
			if len(data) < off+4 {
				return nil, ErrShort
			}
			addr = netip.AddrFrom4([4]byte(data[off : off+4]))
			off += 4
		}

		var asn uint32
		if peerType&0x2 != 0 { // 4-byte ASN
			if len(data) < off+4 {
				return nil, ErrShort
			}
			asn = binary.BigEndian.Uint32(data[off : off+4])
			off += 4
		} else {
			if len(data) < off+2 {
				return nil, ErrShort
			}
			asn = uint32(binary.BigEndian.Uint16(data[off : off+2]))
			off += 2
		}

		peers = append(peers, ribPeer{asn: asn, addr: addr})
	}
	return peers, nil
}

// ribEntry is one decoded RIB_IPV4_UNICAST / RIB_IPV6_UNICAST entry
// (rfc6396/4.3.2), ready to become an element.BGPElement.
type ribEntry struct {
	peerIndex int
	time      time.Time
	attrs     pathAttrs
}

// parseRIBEntries decodes the entries of a RIB_IPV4_UNICAST /
// RIB_IPV6_UNICAST record. Prefix itself is returned separately since
// it is shared by all entries in the record.
func parseRIBEntries(data []byte) (prefix netip.Prefix, entries []ribEntry, err error) {
	if len(data) < 5 {
		return prefix, nil, ErrShort
	}
	// sequence number (4 bytes), unused
	data = data[4:]

	bits := int(data[0])
	data = data[1:]
	nbytes := (bits + 7) / 8
	if len(data) < nbytes {
		return prefix, nil, ErrShort
	}

	// RIB_IPV4_UNICAST prefixes are 4 bytes wide, RIB_IPV6_UNICAST 16.
	// The width is inferred from nbytes alone, so an IPv6 prefix of /32
	// or shorter comes back as an IPv4 address; the caller, which knows
	// the record subtype, widens it.
	width := 4
	if nbytes > 4 {
		width = 16
	}
	addrBytes := make([]byte, width)
	copy(addrBytes, data[:nbytes])
	data = data[nbytes:]

	var addr netip.Addr
	if width == 16 {
		addr = netip.AddrFrom16([16]byte(addrBytes))
	} else {
		addr = netip.AddrFrom4([4]byte(addrBytes))
	}
	prefix, err = addr.Prefix(bits)
	if err != nil {
		return prefix, nil, err
	}

	if len(data) < 2 {
		return prefix, nil, ErrShort
	}
	entryCount := int(binary.BigEndian.Uint16(data[0:2]))
	data = data[2:]

	entries = make([]ribEntry, 0, entryCount)
	for i := 0; i < entryCount; i++ {
		if len(data) < 8 {
			return prefix, nil, ErrShort
		}
		peerIndex := int(binary.BigEndian.Uint16(data[0:2]))
		originated := binary.BigEndian.Uint32(data[2:6])
		attrLen := int(binary.BigEndian.Uint16(data[6:8]))
		data = data[8:]
		if len(data) < attrLen {
			return prefix, nil, ErrShort
		}
		attrsRaw := data[:attrLen]
		data = data[attrLen:]

		// rfc6396/4.3.4: attributes always use 4-byte ASNs in TABLE_DUMP_V2.
		pa, err := parseAttrs(attrsRaw, true)
		if err != nil {
			return prefix, nil, err
		}

		entries = append(entries, ribEntry{
			peerIndex: peerIndex,
			time:      time.Unix(int64(originated), 0).UTC(),
			attrs:     pa,
		})
	}

	return prefix, entries, nil
}
