package mrtreader

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bgpstream-engine/bgpstream/element"
)

func TestFormatASPath(t *testing.T) {
	buf := []byte{
		2, 2, 0, 0, 0xfd, 0xe9, 0, 0, 0xfd, 0xea, // AS_SEQUENCE: 65001 65002
		1, 2, 0, 0, 0x6c, 0x01, 0, 0, 0x6c, 0x02, // AS_SET: 27649 27650
	}
	s, err := formatASPath(buf, true)
	require.NoError(t, err)
	require.Equal(t, "65001 65002 {27649,27650}", s)
}

func TestReadPrefixes(t *testing.T) {
	// 10.0.0.0/8, 192.168.1.0/24
	buf := []byte{8, 10, 24, 192, 168, 1}
	prefixes, err := readPrefixes(buf, false)
	require.NoError(t, err)
	require.Len(t, prefixes, 2)
	require.Equal(t, "10.0.0.0/8", prefixes[0].String())
	require.Equal(t, "192.168.1.0/24", prefixes[1].String())
}

func appendU16(dst []byte, v uint16) []byte {
	return append(dst, byte(v>>8), byte(v))
}

func appendU32(dst []byte, v uint32) []byte {
	return append(dst, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

var bgpMarker = [16]byte{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

func makeUpdateMessage(withdrawn, attrs, nlri []byte) []byte {
	body := appendU16(nil, uint16(len(withdrawn)))
	body = append(body, withdrawn...)
	body = appendU16(body, uint16(len(attrs)))
	body = append(body, attrs...)
	body = append(body, nlri...)

	msg := append([]byte{}, bgpMarker[:]...)
	msg = appendU16(msg, uint16(bgpHeaderLen+len(body)))
	msg = append(msg, bgpTypeUpdate)
	msg = append(msg, body...)
	return msg
}

func makeMrtHeader(typ, sub uint16, length uint32) []byte {
	buf := appendU32(nil, 1700000000)
	buf = appendU16(buf, typ)
	buf = appendU16(buf, sub)
	buf = appendU32(buf, length)
	return buf
}

func TestReader_BGP4MPUpdate(t *testing.T) {
	// attrs: AS_PATH (4-byte ASN) 65001, NEXT_HOP 9.9.9.9
	asPath := []byte{2, 1, 0, 0, 0xfd, 0xe9}
	attrs := []byte{0x40, attrASPath, byte(len(asPath))}
	attrs = append(attrs, asPath...)
	attrs = append(attrs, 0x40, attrNextHop, 4, 9, 9, 9, 9)

	nlri := []byte{24, 203, 0, 113} // 203.0.113.0/24
	bgpUpdate := makeUpdateMessage(nil, attrs, nlri)

	bgp4 := appendU32(nil, 65001) // peer AS
	bgp4 = appendU32(bgp4, 65000) // local AS
	bgp4 = appendU16(bgp4, 0)     // interface
	bgp4 = appendU16(bgp4, 1)     // AFI_IPV4
	bgp4 = append(bgp4, 192, 0, 2, 1)
	bgp4 = append(bgp4, 192, 0, 2, 2)
	bgp4 = append(bgp4, bgpUpdate...)

	record := makeMrtHeader(16, 4, uint32(len(bgp4))) // BGP4MP, BGP4_MESSAGE_AS4
	record = append(record, bgp4...)

	var got []*element.BGPElement
	r := NewReader(context.Background(), "rrc00", func(e *element.BGPElement) error {
		got = append(got, e)
		return nil
	})
	_, err := r.Write(record)
	require.NoError(t, err)
	require.Len(t, got, 1)

	e := got[0]
	require.Equal(t, element.TypeAnnounce, e.Type)
	require.Equal(t, "rrc00", e.Collector)
	require.Equal(t, uint32(65001), e.PeerASN)
	require.Equal(t, "192.0.2.1", e.PeerAddr.String())
	require.Equal(t, "203.0.113.0/24", e.Fields.Prefix)
	require.Equal(t, "65001", e.Fields.AsPath)
	require.Equal(t, "9.9.9.9", e.Fields.NextHop)
	require.EqualValues(t, 1, r.Stats.ParsedBGP)
}

func TestReader_TableDumpV2RIB(t *testing.T) {
	viewName := []byte{}
	peerTable := appendU32(nil, 0) // collector BGP ID
	peerTable = appendU16(peerTable, uint16(len(viewName)))
	peerTable = append(peerTable, viewName...)
	peerTable = appendU16(peerTable, 1) // peer count
	peerTable = append(peerTable, 0x2)  // peer type: 4-byte ASN, IPv4 addr
	peerTable = appendU32(peerTable, 0) // peer BGP ID
	peerTable = append(peerTable, 198, 51, 100, 1)
	peerTable = appendU32(peerTable, 65010)

	peerRecord := makeMrtHeader(13, subPeerIndexTable, uint32(len(peerTable)))
	peerRecord = append(peerRecord, peerTable...)

	attrs := []byte{0x40, attrNextHop, 4, 198, 51, 100, 1}
	ribData := appendU32(nil, 0) // sequence number
	ribData = append(ribData, 24, 203, 0, 113)
	ribData = appendU16(ribData, 1) // entry count
	ribData = appendU16(ribData, 0) // peer index
	ribData = appendU32(ribData, 1700000000)
	ribData = appendU16(ribData, uint16(len(attrs)))
	ribData = append(ribData, attrs...)

	ribRecord := makeMrtHeader(13, subRIBIPv4Unicast, uint32(len(ribData)))
	ribRecord = append(ribRecord, ribData...)

	var got []*element.BGPElement
	r := NewReader(context.Background(), "rrc00", func(e *element.BGPElement) error {
		got = append(got, e)
		return nil
	})
	_, err := r.Write(peerRecord)
	require.NoError(t, err)
	_, err = r.Write(ribRecord)
	require.NoError(t, err)

	require.Len(t, got, 1)
	e := got[0]
	require.Equal(t, element.TypeRIB, e.Type)
	require.Equal(t, uint32(65010), e.PeerASN)
	require.Equal(t, "198.51.100.1", e.PeerAddr.String())
	require.Equal(t, "203.0.113.0/24", e.Fields.Prefix)
	require.Equal(t, "198.51.100.1", e.Fields.NextHop)
	require.EqualValues(t, 1, r.Stats.ParsedRIB)
}
