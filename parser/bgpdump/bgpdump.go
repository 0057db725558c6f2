// Package bgpdump drives the bgpdump external binary over MRT files,
// translating its textual "-m" machine-readable output into
// element.BGPElement (spec §4.1, §4.5).
//
// bgpdump -m line format (one per record):
//
//	TYPE|TIME|SUBTYPE|PEER_IP|PEER_AS|PREFIX|AS_PATH|ORIGIN|NEXT_HOP|...|COMMUNITIES|...
package bgpdump

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

const binaryName = "bgpdump"

// Driver is the bgpdump parser.Driver.
type Driver struct {
	binPath string
}

// New resolves the bgpdump binary on PATH. Returns a ConfigError-class
// error if it cannot be found (spec §7).
func New() (*Driver, error) {
	path, err := parser.Lookup(binaryName)
	if err != nil {
		return nil, err
	}
	return &Driver{binPath: path}, nil
}

func (d *Driver) Backend() parser.Backend { return parser.BackendBgpdump }

// Open spawns bgpdump -m over path with a filter-string built from
// hints, and exposes its output as a parser.Sequence.
func (d *Driver) Open(ctx context.Context, path string, hints parser.Hints) (parser.Sequence, error) {
	filterStr, _, err := filterspec.ToFilterString(hints.CollectorFilter, hints.Filter, filterspec.TargetBgpdump)
	if err != nil {
		return nil, err
	}

	args := []string{"-m"}
	if filterStr != "" {
		args = append(args, "--filter", filterStr)
	}
	args = append(args, path)

	lp := func(line string) (*element.BGPElement, bool, error) {
		e, skip, err := parseLine(line)
		if e != nil {
			e.Collector = hints.Collector
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
	if len(f) < 9 {
		return nil, false, fmt.Errorf("bgpdump: short line: %q", line)
	}

	var typ element.Type
	switch f[2] {
	case "B", "STATE", "TABLE_DUMP", "TABLE_DUMP2":
		typ = element.TypeRIB
	case "A":
		typ = element.TypeAnnounce
	case "W":
		typ = element.TypeWithdraw
	default:
		return nil, true, nil
	}

	sec, err := strconv.ParseInt(f[1], 10, 64)
	if err != nil {
		return nil, false, fmt.Errorf("bgpdump: bad time %q: %w", f[1], err)
	}

	peerAddr, err := netip.ParseAddr(f[3])
	if err != nil {
		return nil, false, fmt.Errorf("bgpdump: bad peer ip %q: %w", f[3], err)
	}

	peerASN, err := strconv.ParseUint(f[4], 10, 32)
	if err != nil {
		return nil, false, fmt.Errorf("bgpdump: bad peer asn %q: %w", f[4], err)
	}

	e := &element.BGPElement{
		Type:     typ,
		Time:     time.Unix(sec, 0).UTC(),
		PeerASN:  uint32(peerASN),
		PeerAddr: peerAddr,
		Fields: element.Fields{
			Prefix: f[5],
			AsPath: f[6],
		},
	}
	if len(f) > 8 {
		e.Fields.NextHop = f[8]
	}
	if len(f) > 11 && f[11] != "" {
		e.Fields.Communities = strings.Fields(f[11])
	}
	return e, false, nil
}
