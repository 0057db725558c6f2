// Package chunk implements the ChunkScheduler (spec §4.4): it
// partitions a historic window into time chunks and, for each chunk in
// order, queries the broker, downloads files, opens parser sequences,
// and drains a merge.Sorter restricted to the chunk's window.
package chunk

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bgpstream-engine/bgpstream/broker"
	"github.com/bgpstream-engine/bgpstream/element"
	"github.com/bgpstream-engine/bgpstream/fetch"
	"github.com/bgpstream-engine/bgpstream/filterspec"
	"github.com/bgpstream-engine/bgpstream/merge"
	"github.com/bgpstream-engine/bgpstream/parser"
	"github.com/bgpstream-engine/bgpstream/retry"
	"github.com/bgpstream-engine/bgpstream/stream"
)

// Config is the subset of stream.HistoricConfig a Scheduler needs,
// kept separate so this package does not import stream for its own
// config type (stream already imports filterspec/parser, and chunk
// sits below stream in the dependency graph).
type Config struct {
	Collectors []string
	DataTypes  []string // "ribs" and/or "updates"

	Filter *filterspec.FilterSpec

	MaxConcurrentDownloads int
	CacheDir               string
	RAMFetch               bool
	Retry                  retry.Policy // zero value means fetch.Fetcher's own default
}

// Scheduler drives the historic pipeline one chunk at a time (spec §4.4).
type Scheduler struct {
	broker  *broker.Client
	driver  parser.Driver
	cfg     Config
	diag    *stream.Diagnostics
	matcher *filterspec.Matcher

	windows []Window

	ready  chan *preparedChunk
	cancel context.CancelFunc

	cur *preparedChunk
}

// preparedChunk holds one chunk's fully-fetched-and-opened sources,
// ready to be drained by Next.
type preparedChunk struct {
	win     Window
	sorter  *merge.Sorter
	seqs    []parser.Sequence
	tempDir string
	err     error // fatal error preparing the chunk (eg all files failed)
}

// New returns a Scheduler over the given windows, driving broker for
// descriptors and driver to open each fetched file.
func New(ctx context.Context, cfg Config, bk *broker.Client, driver parser.Driver, diag *stream.Diagnostics, windows []Window) (*Scheduler, error) {
	matcher, err := filterspec.NewMatcher(cfg.Filter, filterspec.PostParseFields{})
	if err != nil {
		return nil, err
	}

	cctx, cancel := context.WithCancel(ctx)
	s := &Scheduler{
		broker:  bk,
		driver:  driver,
		cfg:     cfg,
		diag:    diag,
		matcher: matcher,
		windows: windows,
		ready:   make(chan *preparedChunk),
		cancel:  cancel,
	}
	go s.produce(cctx)
	return s, nil
}

// produce prepares each chunk in order, sending it to s.ready. The
// channel is unbuffered, which bounds look-ahead to exactly one chunk (spec
// §5 "Concurrency guarantee"): the producer can prepare chunk N+1
// while the consumer is still draining chunk N, but cannot start
// chunk N+2 until the consumer has taken N+1 off the channel.
func (s *Scheduler) produce(ctx context.Context) {
	defer close(s.ready)
	for _, w := range s.windows {
		pc := s.prepareChunk(ctx, w)
		select {
		case s.ready <- pc:
		case <-ctx.Done():
			return
		}
		if pc.err != nil {
			return
		}
	}
}

func (s *Scheduler) prepareChunk(ctx context.Context, w Window) *preparedChunk {
	pc := &preparedChunk{win: w}

	parent := s.cfg.CacheDir
	if parent == "" && s.cfg.RAMFetch {
		parent = fetch.RAMDir()
	}
	tempDir, err := fetch.NewTempDir(parent)
	if err != nil {
		pc.err = stream.FetchErrorf(true, "chunk: create tempdir: %w", err)
		return pc
	}
	pc.tempDir = tempDir

	var descriptors []broker.FileDescriptor
	for _, collector := range s.cfg.Collectors {
		for _, dt := range s.cfg.DataTypes {
			files, err := s.broker.Query(ctx, []string{collector}, dt, w.Start, w.End)
			if err != nil {
				pc.err = err // already a fatal *stream.Error{Kind: KindBroker}
				return pc
			}
			descriptors = append(descriptors, files...)
		}
	}

	if len(descriptors) == 0 {
		pc.sorter, _ = merge.NewSorter(nil)
		return pc
	}

	fcfg := fetch.Options{
		MaxConcurrentDownloads: s.cfg.MaxConcurrentDownloads,
		TargetDir:              tempDir,
		CacheMode:              s.cfg.CacheDir != "",
		Retry:                  s.cfg.Retry,
	}
	fetcher := fetch.New(fcfg)

	var (
		mu      sync.Mutex
		seqs    []parser.Sequence
		sources []merge.Source
		failed  int
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, fd := range descriptors {
		fd := fd
		g.Go(func() error {
			rf, err := fetcher.Fetch(gctx, fd)
			if err != nil {
				s.diag.Record(err)
				mu.Lock()
				failed++
				mu.Unlock()
				return nil // non-fatal here; escalation decided after all attempts
			}

			hints := parser.Hints{
				CollectorFilter: filterspec.CollectorFilter{Collectors: []string{fd.Collector}, DataTypes: []string{fd.DataType}},
				Filter:          s.cfg.Filter,
				DataType:        fd.DataType,
				Collector:       fd.Collector,
			}
			seq, err := s.driver.Open(gctx, rf.Path, hints)
			if err != nil {
				s.diag.Record(stream.ParserErrorf(false, "chunk: open %s: %w", rf.Path, err))
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}

			mu.Lock()
			seqs = append(seqs, seq)
			sources = append(sources, seq)
			mu.Unlock()
			return nil
		})
	}
	// errgroup's Go never returns a non-nil error above, so Wait itself
	// reports nothing; ctx cancellation is checked directly afterwards.
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		closeAll(seqs)
		pc.err = err
		return pc
	}

	if failed == len(descriptors) && failed > 0 {
		closeAll(seqs)
		pc.err = stream.ParserErrorf(true, "chunk: all %d files failed for window %s-%s", failed, w.Start, w.End)
		return pc
	}

	sorter, err := merge.NewSorter(sources)
	if err != nil {
		closeAll(seqs)
		pc.err = err
		return pc
	}

	pc.seqs = seqs
	pc.sorter = sorter
	return pc
}

func closeAll(seqs []parser.Sequence) {
	for _, s := range seqs {
		s.Close()
	}
}

// Next drains the current chunk's merged, window-and-filter-restricted
// sequence, advancing to the next chunk automatically on exhaustion
// (spec §4.4 steps 4-5).
func (s *Scheduler) Next() (*element.BGPElement, bool, error) {
	for {
		if s.cur == nil {
			pc, ok := <-s.ready
			if !ok {
				return nil, false, nil
			}
			if pc.err != nil {
				s.diag.Record(pc.err)
				return nil, false, pc.err
			}
			s.cur = pc
		}

		e, ok, err := s.cur.sorter.Next()
		if err != nil {
			s.closeChunk()
			return nil, false, err
		}
		if !ok {
			s.closeChunk()
			continue
		}

		// spec §4.4 step 4: restrict to the chunk's window.
		if e.Time.Before(s.cur.win.Start) || !e.Time.Before(s.cur.win.End) {
			continue
		}
		if !s.matcher.Match(e) {
			continue
		}
		return e, true, nil
	}
}

func (s *Scheduler) closeChunk() {
	if s.cur == nil {
		return
	}
	closeAll(s.cur.seqs)
	if s.cfg.CacheDir == "" {
		fetch.Reclaim(s.cur.tempDir) // spec §4.4 step 5
	}
	s.cur = nil
}

// Close aborts any in-flight preparation and reclaims the current
// chunk's tempdir (spec §5 "consumer that aborts mid-chunk triggers
// reclamation on close").
func (s *Scheduler) Close() error {
	s.cancel()
	s.closeChunk()
	for pc := range s.ready {
		closeAll(pc.seqs)
		if s.cfg.CacheDir == "" {
			fetch.Reclaim(pc.tempDir)
		}
	}
	return nil
}
