// Package facade implements StreamFacade (spec §4.9): it selects the
// historic (chunk.Scheduler) or live (live.Multiplexer + JitterBuffer)
// pipeline from a stream.Config's shape and exposes a single merged,
// time-ordered BGPElement sequence. Kept as its own package rather
// than living directly in stream (SPEC_FULL.md's nominal layout)
// because chunk and live both import stream for the §7 error taxonomy
// and Diagnostics type; a facade that dispatches to them cannot also
// live inside the package they depend on without an import cycle —
// see DESIGN.md.
package facade

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/bgpstream-engine/bgpstream/broker"
	"github.com/bgpstream-engine/bgpstream/chunk"
	"github.com/bgpstream-engine/bgpstream/element"
	"github.com/bgpstream-engine/bgpstream/filterspec"
	"github.com/bgpstream-engine/bgpstream/live"
	"github.com/bgpstream-engine/bgpstream/parser"
	"github.com/bgpstream-engine/bgpstream/parser/bgpdump"
	"github.com/bgpstream-engine/bgpstream/parser/bgpkit"
	"github.com/bgpstream-engine/bgpstream/parser/pybgpkit"
	"github.com/bgpstream-engine/bgpstream/parser/pybgpstream"
	"github.com/bgpstream-engine/bgpstream/retry"
	"github.com/bgpstream-engine/bgpstream/stream"
)

// source is the single-method cursor both the historic (chunk.Scheduler)
// and live (live.JitterBuffer) pipelines satisfy.
type source interface {
	Next() (e *element.BGPElement, ok bool, err error)
}

// Options carries the pieces of the facade that aren't part of the
// user-facing stream.Config: the broker base URL, logger, and RIS
// Live endpoint override, mirroring the teacher's Options-struct idiom.
type Options struct {
	BrokerOptions broker.Options
	LiveURL       string // "" uses live.DefaultURL
	Retry         retry.Policy
	Logger        *zerolog.Logger
}

// Facade selects Historic or Live from a stream.Config's shape and
// exposes a single merged, time-ordered BGPElement sequence (spec
// §4.9). External resources (broker client, fetcher tempdirs,
// WebSocket connections) are opened lazily on the first call to Next.
type Facade struct {
	cfg  stream.Config
	opts Options
	diag *stream.Diagnostics

	mode stream.Mode
	hc   *stream.HistoricConfig
	lc   *stream.LiveConfig

	opened bool
	src    source
	cancel context.CancelFunc
	closer func() error
}

// New validates cfg and returns a Facade ready to be pulled from.
// Opening the underlying pipeline (broker queries, WebSocket dials) is
// deferred to the first Next call (spec §3 Lifecycle).
func New(cfg stream.Config, opts Options) (*Facade, error) {
	mode, hc, lc, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}
	return &Facade{
		cfg:  cfg,
		opts: opts,
		diag: stream.NewDiagnostics(),
		mode: mode,
		hc:   hc,
		lc:   lc,
	}, nil
}

// Diagnostics returns the running per-stream diagnostic summary (spec
// §7 "per-stream diagnostic summary accessible at close").
func (f *Facade) Diagnostics() *stream.Diagnostics { return f.diag }

// Next pulls the next element from the selected pipeline, opening it
// on the first call.
func (f *Facade) Next(ctx context.Context) (*element.BGPElement, bool, error) {
	if !f.opened {
		if err := f.open(ctx); err != nil {
			return nil, false, err
		}
	}
	e, ok, err := f.src.Next()
	if err != nil {
		f.diag.Record(err)
	}
	return e, ok, err
}

func (f *Facade) open(ctx context.Context) error {
	f.opened = true
	switch f.mode {
	case stream.ModeHistoric:
		return f.openHistoric(ctx)
	case stream.ModeLive:
		return f.openLive(ctx)
	default:
		return stream.ConfigErrorf("stream: unresolved mode")
	}
}

func (f *Facade) openHistoric(ctx context.Context) error {
	driver, err := newDriver(f.hc.Parser)
	if err != nil {
		return stream.ConfigErrorf("%v", err)
	}

	bk := broker.New(f.opts.BrokerOptions)

	dataTypes := make([]string, 0, len(f.hc.DataTypes))
	for _, dt := range f.hc.DataTypes {
		dataTypes = append(dataTypes, string(dt))
	}

	ccfg := chunk.Config{
		Collectors:             f.hc.Collectors,
		DataTypes:              dataTypes,
		Filter:                 f.hc.Filter,
		MaxConcurrentDownloads: f.hc.MaxConcurrentDownloads,
		CacheDir:               f.hc.CacheDir,
		RAMFetch:               f.hc.RAMFetch,
		Retry:                  f.opts.Retry,
	}
	windows := chunk.Windows(f.hc.StartTime, f.hc.EndTime, f.hc.ChunkTime)

	cctx, cancel := context.WithCancel(ctx)
	sched, err := chunk.New(cctx, ccfg, bk, driver, f.diag, windows)
	if err != nil {
		cancel()
		return err
	}
	f.cancel = cancel
	f.src = sched
	f.closer = sched.Close
	return nil
}

func (f *Facade) openLive(ctx context.Context) error {
	mux, err := live.NewMultiplexer(f.lc.Collectors, f.lc.Filter, live.MultiplexerOptions{
		URL:    f.opts.LiveURL,
		Retry:  f.opts.Retry,
		Diag:   f.diag,
		Logger: f.opts.Logger,
	})
	if err != nil {
		return stream.ConfigErrorf("%v", err)
	}

	matcher, err := filterspec.NewMatcher(f.lc.Filter, filterspec.PostParseFields{})
	if err != nil {
		return stream.ConfigErrorf("%v", err)
	}

	cctx, cancel := context.WithCancel(ctx)
	mux.Start(cctx)
	f.cancel = cancel
	f.src = &filteredSource{src: live.NewJitterBuffer(mux, f.lc.JitterBufferDelay), matcher: matcher}
	f.closer = func() error { return nil }
	return nil
}

// filteredSource applies the centralized post-parse FilterSpec pass to
// the live pipeline, the same way chunk.Scheduler applies it to the
// historic pipeline: RIS Live's ris_subscribe protocol narrows what it
// can natively (host, peer, as-path, prefix), but has no ip_version or
// plural peer_ips clause, so every field of FilterSpec is re-checked
// here regardless of what the subscription already excluded.
type filteredSource struct {
	src     source
	matcher *filterspec.Matcher
}

func (s *filteredSource) Next() (*element.BGPElement, bool, error) {
	for {
		e, ok, err := s.src.Next()
		if err != nil || !ok {
			return e, ok, err
		}
		if s.matcher.Match(e) {
			return e, true, nil
		}
	}
}

// newDriver constructs the parser.Driver for backend, raising a
// ConfigError if an external-binary backend's executable is missing
// (spec §6, §7).
func newDriver(backend parser.Backend) (parser.Driver, error) {
	switch backend {
	case parser.BackendPybgpkit:
		return pybgpkit.New(), nil
	case parser.BackendBgpkit:
		return bgpkit.New()
	case parser.BackendBgpdump:
		return bgpdump.New()
	case parser.BackendPybgpstream:
		return pybgpstream.New()
	default:
		return nil, fmt.Errorf("stream: unknown parser backend %q", backend)
	}
}

// Close aborts any in-flight pipeline work and reclaims its resources
// (spec §5 cancellation: fetch/parse workers aborted, WebSocket
// connections closed, temp directories reclaimed).
func (f *Facade) Close() error {
	if f.cancel != nil {
		f.cancel()
	}
	if f.closer != nil {
		return f.closer()
	}
	return nil
}
