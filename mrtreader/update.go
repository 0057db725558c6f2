package mrtreader

import (
	"encoding/binary"
	"net/netip"
)

const bgpHeaderLen = 19 // marker(16) + length(2) + type(1)

const bgpTypeUpdate = 2

// parsedUpdate is the subset of a BGP UPDATE message element.BGPElement needs.
type parsedUpdate struct {
	withdrawn []netip.Prefix
	nlri      []netip.Prefix
	attrs     pathAttrs
}

// parseBGPUpdate decodes a raw BGP message (including its 19-byte header)
// known to carry an UPDATE, splitting withdrawn routes / path attributes /
// NLRI per rfc4271/4.3, and forwarding the attribute bytes to parseAttrs.
func parseBGPUpdate(raw []byte, asn4 bool) (parsedUpdate, error) {
	var pu parsedUpdate
	if len(raw) < bgpHeaderLen {
		return pu, ErrShort
	}
	if raw[18] != bgpTypeUpdate {
		return pu, nil // not an UPDATE, caller should skip
	}
	buf := raw[bgpHeaderLen:]

	if len(buf) < 2 {
		return pu, ErrShort
	}
	wlen := int(binary.BigEndian.Uint16(buf[0:2]))
	buf = buf[2:]
	if len(buf) < wlen {
		return pu, ErrShort
	}
	withdrawnRaw := buf[:wlen]
	buf = buf[wlen:]

	if len(buf) < 2 {
		return pu, ErrShort
	}
	alen := int(binary.BigEndian.Uint16(buf[0:2]))
	buf = buf[2:]
	if len(buf) < alen {
		return pu, ErrShort
	}
	attrsRaw := buf[:alen]
	nlriRaw := buf[alen:]

	var err error
	if len(withdrawnRaw) > 0 {
		pu.withdrawn, err = readPrefixes(withdrawnRaw, false)
		if err != nil {
			return pu, err
		}
	}
	if len(nlriRaw) > 0 {
		pu.nlri, err = readPrefixes(nlriRaw, false)
		if err != nil {
			return pu, err
		}
	}

	pu.attrs, err = parseAttrs(attrsRaw, asn4)
	return pu, err
}
