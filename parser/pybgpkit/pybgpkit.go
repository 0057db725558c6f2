// Package pybgpkit is the in-process MRT parser backend: it decodes
// MRT archives directly via mrtreader, without spawning a subprocess
// (spec §4.1, §4.5, "pybgpkit" backend). Every FilterSpec field is
// applied natively, since the backend owns the full decode loop.
package pybgpkit

import (
	"context"
	"sync"

	"github.com/bgpstream-engine/bgpstream/element"
	"github.com/bgpstream-engine/bgpstream/filterspec"
	"github.com/bgpstream-engine/bgpstream/mrtreader"
	"github.com/bgpstream-engine/bgpstream/parser"
)

// Driver is the pybgpkit parser.Driver.
type Driver struct{}

// New returns the pybgpkit Driver. It never fails to construct: unlike
// the external-binary backends there is no executable to resolve.
func New() *Driver { return &Driver{} }

func (d *Driver) Backend() parser.Backend { return parser.BackendPybgpkit }

// Open starts decoding path in a background goroutine, exposing the
// decoded elements as a lazy parser.Sequence.
func (d *Driver) Open(ctx context.Context, path string, hints parser.Hints) (parser.Sequence, error) {
	matcher, err := filterspec.NewMatcher(hints.Filter, filterspec.PostParseFields{})
	if err != nil {
		return nil, err
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &sequence{
		cancel: cancel,
		items:  make(chan item, 64),
	}

	go s.run(sctx, path, hints.Collector, matcher)

	return s, nil
}

type item struct {
	e   *element.BGPElement
	err error
}

// sequence drains the decode goroutine's output channel, satisfying
// parser.Sequence over an in-process decode loop instead of a child
// process (contrast execbackend.Sequence).
type sequence struct {
	cancel context.CancelFunc
	items  chan item

	closeOnce sync.Once
}

func (s *sequence) run(ctx context.Context, path, collector string, matcher *filterspec.Matcher) {
	defer close(s.items)

	r := mrtreader.NewReader(ctx, collector, func(e *element.BGPElement) error {
		if !matcher.Match(e) {
			return nil
		}
		select {
		case s.items <- item{e: e}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	if _, err := r.ReadFromPath(path); err != nil && ctx.Err() == nil {
		select {
		case s.items <- item{err: err}:
		case <-ctx.Done():
		}
	}
}

func (s *sequence) Next() (*element.BGPElement, bool, error) {
	v, ok := <-s.items
	if !ok {
		return nil, false, nil
	}
	if v.err != nil {
		return nil, false, v.err
	}
	return v.e, true, nil
}

func (s *sequence) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		for range s.items {
			// drain until the decode goroutine observes ctx.Done and exits
		}
	})
	return nil
}
