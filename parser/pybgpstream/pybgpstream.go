// Package pybgpstream drives the bgpreader external binary (the CLI
// shipped with the BGPStream C library, which pybgpstream itself
// wraps) over MRT files, translating its "-m" machine-readable CSV
// output into element.BGPElement (spec §4.1, §4.5).
//
// bgpreader -m line format (one per record):
//
//	TYPE|TIME|PEER_IP|PEER_AS|PREFIX|AS_PATH|NEXT_HOP|COMMUNITIES
package pybgpstream

import (
	"context"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/bgpstream-engine/bgpstream/element"
	"github.com/bgpstream-engine/bgpstream/filterspec"
	"github.com/bgpstream-engine/bgpstream/parser"
	"github.com/bgpstream-engine/bgpstream/parser/internal/execbackend"
)

const binaryName = "bgpreader"

// Driver is the pybgpstream (bgpreader) parser.Driver.
type Driver struct {
	binPath string
}

// New resolves the bgpreader binary on PATH.
func New() (*Driver, error) {
	path, err := parser.Lookup(binaryName)
	if err != nil {
		return nil, err
	}
	return &Driver{binPath: path}, nil
}

func (d *Driver) Backend() parser.Backend { return parser.BackendPybgpstream }

// Open spawns bgpreader -m -d singlefile over path, with a
// Cisco-style as_path regex filter-string (spec §4.1).
func (d *Driver) Open(ctx context.Context, path string, hints parser.Hints) (parser.Sequence, error) {
	filterStr, _, err := filterspec.ToFilterString(hints.CollectorFilter, hints.Filter, filterspec.TargetPybgpstream)
	if err != nil {
		return nil, err
	}

	args := []string{"-m", "-d", "singlefile", "-o", "upd-file," + path}
	if filterStr != "" {
		args = append(args, "--filter", filterStr)
	}

	collector := hints.Collector
	lp := func(line string) (*element.BGPElement, bool, error) {
		e, skip, err := parseLine(line)
		if e != nil {
			e.Collector = collector
		}
		return e, skip, err
	}
	return execbackend.Open(ctx, d.binPath, args, lp)
}

func parseLine(line string) (*element.BGPElement, bool, error) {
	if strings.HasPrefix(line, "#") {
		return nil, true, nil
	}
	f := strings.Split(line, "|")
	if len(f) < 7 {
		return nil, false, fmt.Errorf("pybgpstream: short line: %q", line)
	}

	var typ element.Type
	switch f[0] {
	case "A":
		typ = element.TypeAnnounce
	case "W":
		typ = element.TypeWithdraw
	case "R":
		typ = element.TypeRIB
	default:
		return nil, true, nil
	}

	sec, err := strconv.ParseFloat(f[1], 64)
	if err != nil {
		return nil, false, fmt.Errorf("pybgpstream: bad time %q: %w", f[1], err)
	}

	peerAddr, err := netip.ParseAddr(f[2])
	if err != nil {
		return nil, false, fmt.Errorf("pybgpstream: bad peer ip %q: %w", f[2], err)
	}

	peerASN, err := strconv.ParseUint(f[3], 10, 32)
	if err != nil {
		return nil, false, fmt.Errorf("pybgpstream: bad peer asn %q: %w", f[3], err)
	}

	e := &element.BGPElement{
		Type:     typ,
		Time:     time.Unix(int64(sec), int64((sec-float64(int64(sec)))*1e9)).UTC(),
		PeerASN:  uint32(peerASN),
		PeerAddr: peerAddr,
		Fields: element.Fields{
			Prefix:  f[4],
			AsPath:  f[5],
			NextHop: f[6],
		},
	}
	if len(f) > 7 && f[7] != "" {
		e.Fields.Communities = strings.Fields(f[7])
	}
	return e, false, nil
}
