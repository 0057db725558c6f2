// Package mrtreader decodes MRT archives (rfc6396) directly into
// element.BGPElement values, without spawning an external process. It
// backs the pybgpkit parser.Driver (spec §4.1, §4.5).
package mrtreader

import (
	"compress/bzip2"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/netip"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bgpstream-engine/bgpstream/element"
	"github.com/bgpstream-engine/bgpstream/mrt"
)

// Options control a Reader's behavior.
type Options struct {
	Logger *zerolog.Logger // if nil logging is disabled
}

// DefaultOptions are the options used by NewReader unless overridden.
var DefaultOptions = Options{Logger: &log.Logger}

// Stats are cumulative decode counters, read after a Reader is drained.
type Stats struct {
	Parsed     uint64 // MRT records parsed (total)
	ParsedBGP  uint64 // BGP4MP(_ET) records turned into elements
	ParsedRIB  uint64 // TABLE_DUMP_V2 RIB entries turned into elements
	Skipped    uint64 // records not relevant to BGPElement production
	Garbled    uint64 // records that failed to parse
}

// Reader turns a raw MRT byte stream into element.BGPElement values,
// delivered one at a time to onElement as they are decoded.
type Reader struct {
	*zerolog.Logger

	ctx    context.Context
	cancel context.CancelCauseFunc

	Options   Options
	Stats     Stats
	Collector string

	onElement func(*element.BGPElement) error

	ibuf  []byte
	rec   mrt.Mrt
	peers []ribPeer // set by the PEER_INDEX_TABLE record, TABLE_DUMP_V2 only
}

// NewReader returns a Reader that tags every produced element with
// collector and hands it to onElement in time order as parsed.
func NewReader(ctx context.Context, collector string, onElement func(*element.BGPElement) error) *Reader {
	r := &Reader{Collector: collector, onElement: onElement}
	r.ctx, r.cancel = context.WithCancelCause(ctx)
	r.Options = DefaultOptions
	r.rec = *mrt.NewMrt()
	if r.Options.Logger != nil {
		r.Logger = r.Options.Logger
	} else {
		l := zerolog.Nop()
		r.Logger = &l
	}
	return r
}

// Close cancels the reader's context, causing any further Write to fail.
func (r *Reader) Close(cause error) {
	r.cancel(cause)
}

// Write implements io.Writer and decodes all complete MRT records in
// src, emitting one BGPElement per NLRI/withdrawn prefix / RIB entry.
// Must not be used concurrently.
func (r *Reader) Write(src []byte) (n int, err error) {
	n = len(src) // NB: once the context check passes, return n=len(src), per io.Writer

	if r.ctx.Err() != nil {
		return 0, context.Cause(r.ctx)
	}

	raw := src
	if len(r.ibuf) > 0 {
		r.ibuf = append(r.ibuf, src...)
		raw = r.ibuf
	}

	defer func() {
		if len(raw) == 0 {
			r.ibuf = r.ibuf[:0]
		} else if len(r.ibuf) == 0 || &raw[0] != &r.ibuf[0] {
			r.ibuf = append(r.ibuf[:0], raw...)
		}
	}()

	for len(raw) > 0 {
		r.rec.Reset()
		off, perr := r.rec.FromBytes(raw)
		switch perr {
		case nil:
			r.Stats.Parsed++
			raw = raw[off:]
		case io.ErrUnexpectedEOF:
			return n, nil // defer buffers the remainder
		default:
			r.Stats.Garbled++
			if off > 0 {
				raw = raw[off:]
			} else {
				raw = nil
			}
			return n, fmt.Errorf("mrt: %w", perr)
		}

		if err := r.handleRecord(); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (r *Reader) handleRecord() error {
	switch {
	case r.rec.Type.IsBGP4():
		return r.handleBGP4()
	case r.rec.Type == mrt.TABLE_DUMP2:
		return r.handleTableDumpV2()
	default:
		r.Stats.Skipped++
		return nil
	}
}

func (r *Reader) handleBGP4() error {
	if err := r.rec.Parse(); err != nil {
		r.Stats.Garbled++
		r.Debug().Err(err).Msg("mrtreader: skip garbled BGP4MP record")
		return nil
	}

	b4 := &r.rec.Bgp4
	asn4 := r.rec.Sub == mrt.BGP4_MESSAGE_AS4 || r.rec.Sub == mrt.BGP4_MESSAGE_AS4_LOCAL ||
		r.rec.Sub == mrt.BGP4_MESSAGE_AS4_ADDPATH || r.rec.Sub == mrt.BGP4_MESSAGE_AS4_LOCAL_ADDPATH

	pu, err := parseBGPUpdate(b4.MsgData, asn4)
	if err != nil {
		r.Stats.Garbled++
		r.Debug().Err(err).Msg("mrtreader: skip garbled BGP UPDATE")
		return nil
	}

	base := element.BGPElement{
		Collector: r.Collector,
		Time:      r.rec.Time,
		PeerASN:   b4.PeerAS,
		PeerAddr:  b4.PeerIP,
	}

	nextHop := pu.attrs.nextHop
	if nextHop == "" {
		nextHop = pu.attrs.mpNextHop
	}

	for _, p := range pu.nlri {
		e := base
		e.Type = element.TypeAnnounce
		e.Fields = element.Fields{
			Prefix:      p.String(),
			AsPath:      pu.attrs.asPath,
			NextHop:     nextHop,
			Communities: pu.attrs.communities,
		}
		if err := r.emit(&e); err != nil {
			return err
		}
	}
	for _, p := range pu.attrs.mpReach {
		e := base
		e.Type = element.TypeAnnounce
		e.Fields = element.Fields{
			Prefix:      p.String(),
			AsPath:      pu.attrs.asPath,
			NextHop:     nextHop,
			Communities: pu.attrs.communities,
		}
		if err := r.emit(&e); err != nil {
			return err
		}
	}
	for _, p := range withdrawnPrefixes(pu) {
		e := base
		e.Type = element.TypeWithdraw
		e.Fields = element.Fields{Prefix: p.String()}
		if err := r.emit(&e); err != nil {
			return err
		}
	}

	r.Stats.ParsedBGP++
	return nil
}

func withdrawnPrefixes(pu parsedUpdate) []netip.Prefix {
	if len(pu.attrs.mpUnreach) > 0 {
		return append(pu.withdrawn, pu.attrs.mpUnreach...)
	}
	return pu.withdrawn
}

func (r *Reader) handleTableDumpV2() error {
	switch r.rec.Sub {
	case subPeerIndexTable:
		peers, err := parsePeerIndexTable(r.rec.Data)
		if err != nil {
			r.Stats.Garbled++
			return nil
		}
		r.peers = peers
		return nil
	case subRIBIPv4Unicast, subRIBIPv6Unicast:
		if r.peers == nil {
			r.Stats.Garbled++
			r.Debug().Err(ErrNoTable).Msg("mrtreader: skip RIB record")
			return nil
		}
		prefix, entries, err := parseRIBEntries(r.rec.Data)
		if err != nil {
			r.Stats.Garbled++
			return nil
		}
		if r.rec.Sub == subRIBIPv6Unicast && prefix.Addr().Is4() {
			// parseRIBEntries returns a 4-byte address for /32 or shorter;
			// widen it to IPv6, keeping the leading bytes.
			var a16 [16]byte
			a4 := prefix.Addr().As4()
			copy(a16[:], a4[:])
			prefix = netip.PrefixFrom(netip.AddrFrom16(a16), prefix.Bits())
		}
		for _, e := range entries {
			if e.peerIndex < 0 || e.peerIndex >= len(r.peers) {
				r.Stats.Garbled++
				continue
			}
			peer := r.peers[e.peerIndex]
			nextHop := e.attrs.nextHop
			if nextHop == "" {
				nextHop = e.attrs.mpNextHop
			}
			elem := &element.BGPElement{
				Type:      element.TypeRIB,
				Collector: r.Collector,
				Time:      e.time,
				PeerASN:   peer.asn,
				PeerAddr:  peer.addr,
				Fields: element.Fields{
					Prefix:      prefix.String(),
					AsPath:      e.attrs.asPath,
					NextHop:     nextHop,
					Communities: e.attrs.communities,
				},
			}
			if err := r.emit(elem); err != nil {
				return err
			}
			r.Stats.ParsedRIB++
		}
		return nil
	default:
		r.Stats.Skipped++
		return nil
	}
}

func (r *Reader) emit(e *element.BGPElement) error {
	if err := r.onElement(e); err != nil {
		return fmt.Errorf("mrtreader: element callback: %w", err)
	}
	return nil
}

// ReadFromPath opens and reads fpath into r, transparently uncompressing
// .gz and .bz2 files (spec §4.5 "transparent decompression").
func (r *Reader) ReadFromPath(fpath string) (n int64, err error) {
	fh, err := os.Open(fpath)
	if err != nil {
		return 0, err
	}
	defer fh.Close()

	var rd io.Reader
	switch filepath.Ext(fpath) {
	case ".bz2":
		rd = bzip2.NewReader(fh)
	case ".gz":
		rd, err = gzip.NewReader(fh)
		if err != nil {
			return 0, err
		}
	default:
		rd = fh
	}

	buf := make([]byte, 10*1024*1024)
	return io.CopyBuffer(r, rd, buf)
}
