// Package bgpkit drives the bgpkit-parser external binary over MRT
// files, translating its JSON-lines output into element.BGPElement
// (spec §4.1, §4.5). Each stdout line is one JSON object:
//
//	{"elem_type":"A","timestamp":1234.5,"peer_ip":"1.2.3.4","peer_asn":65001,
//	 "prefix":"10.0.0.0/24","as_path":"65001 65002","origin_asn":65002,
//	 "next_hop":"1.2.3.1","communities":["65001:100"]}
package bgpkit

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/buger/jsonparser"

	"github.com/bgpstream-engine/bgpstream/element"
	"github.com/bgpstream-engine/bgpstream/filterspec"
	"github.com/bgpstream-engine/bgpstream/parser"
	"github.com/bgpstream-engine/bgpstream/parser/internal/execbackend"
)

const binaryName = "bgpkit-parser"

// Driver is the bgpkit parser.Driver.
type Driver struct {
	binPath string
}

// New resolves the bgpkit-parser binary on PATH.
func New() (*Driver, error) {
	path, err := parser.Lookup(binaryName)
	if err != nil {
		return nil, err
	}
	return &Driver{binPath: path}, nil
}

func (d *Driver) Backend() parser.Backend { return parser.BackendBgpkit }

// Open spawns bgpkit-parser --json over path with a filter-string
// built from hints.
func (d *Driver) Open(ctx context.Context, path string, hints parser.Hints) (parser.Sequence, error) {
	filterStr, _, err := filterspec.ToFilterString(hints.CollectorFilter, hints.Filter, filterspec.TargetBgpkit)
	if err != nil {
		return nil, err
	}

	args := []string{"--json"}
	if filterStr != "" {
		args = append(args, "--filter", filterStr)
	}
	args = append(args, path)

	collector := hints.Collector
	lp := func(line string) (*element.BGPElement, bool, error) {
		e, skip, err := parseLine([]byte(line))
		if e != nil {
			e.Collector = collector
		}
		return e, skip, err
	}
	return execbackend.Open(ctx, d.binPath, args, lp)
}

func parseLine(line []byte) (*element.BGPElement, bool, error) {
	elemType, err := jsonparser.GetString(line, "elem_type")
	if err != nil {
		return nil, false, fmt.Errorf("bgpkit: missing elem_type: %w", err)
	}

	var typ element.Type
	switch elemType {
	case "A":
		typ = element.TypeAnnounce
	case "W":
		typ = element.TypeWithdraw
	case "R":
		typ = element.TypeRIB
	default:
		return nil, true, nil
	}

	ts, err := jsonparser.GetFloat(line, "timestamp")
	if err != nil {
		return nil, false, fmt.Errorf("bgpkit: bad timestamp: %w", err)
	}

	peerIPStr, err := jsonparser.GetString(line, "peer_ip")
	if err != nil {
		return nil, false, fmt.Errorf("bgpkit: missing peer_ip: %w", err)
	}
	peerAddr, err := netip.ParseAddr(peerIPStr)
	if err != nil {
		return nil, false, fmt.Errorf("bgpkit: bad peer_ip %q: %w", peerIPStr, err)
	}

	peerASN, err := jsonparser.GetInt(line, "peer_asn")
	if err != nil {
		return nil, false, fmt.Errorf("bgpkit: missing peer_asn: %w", err)
	}

	prefix, _ := jsonparser.GetString(line, "prefix")
	asPath, _ := jsonparser.GetString(line, "as_path")
	nextHop, _ := jsonparser.GetString(line, "next_hop")

	e := &element.BGPElement{
		Type:     typ,
		Time:     time.UnixMilli(int64(ts * 1000)).UTC(),
		PeerASN:  uint32(peerASN),
		PeerAddr: peerAddr,
		Fields: element.Fields{
			Prefix:  prefix,
			AsPath:  asPath,
			NextHop: nextHop,
		},
	}

	_, _ = jsonparser.ArrayEach(line, func(value []byte, _ jsonparser.ValueType, _ int, _ error) {
		e.Fields.Communities = append(e.Fields.Communities, string(value))
	}, "communities")

	return e, false, nil
}
