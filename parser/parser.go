// Package parser defines the single capability contract shared by the
// four MRT parser backends (spec §4.5, §9): open(path, hints) →
// ordered sequence of BGPElement. Concrete backends live in the
// bgpdump, bgpkit, pybgpstream and pybgpkit subpackages.
package parser

import (
	"context"
	"fmt"

	"github.com/bgpstream-engine/bgpstream/element"
	"github.com/bgpstream-engine/bgpstream/filterspec"
)

// Backend names one of the four MRT parser backends from spec §3.
type Backend int

const (
	BackendPybgpkit Backend = iota + 1
	BackendBgpkit
	BackendPybgpstream
	BackendBgpdump
)

func (b Backend) String() string {
	switch b {
	case BackendPybgpkit:
		return "pybgpkit"
	case BackendBgpkit:
		return "bgpkit"
	case BackendPybgpstream:
		return "pybgpstream"
	case BackendBgpdump:
		return "bgpdump"
	default:
		return "unknown"
	}
}

// ParseBackend parses a config string into a Backend.
func ParseBackend(s string) (Backend, error) {
	switch s {
	case "pybgpkit":
		return BackendPybgpkit, nil
	case "bgpkit":
		return BackendBgpkit, nil
	case "pybgpstream":
		return BackendPybgpstream, nil
	case "bgpdump":
		return BackendBgpdump, nil
	default:
		return 0, fmt.Errorf("parser: unknown backend %q", s)
	}
}

// Hints carries the filter a backend can honor natively, plus the data
// type and collector of the file being parsed (spec §4.5).
type Hints struct {
	CollectorFilter filterspec.CollectorFilter
	Filter          *filterspec.FilterSpec
	DataType        string // "ribs" or "updates", the data type of this particular file
	Collector       string // the collector this file belongs to
}

// Sequence is a lazy, pull-based cursor over BGPElement, satisfying
// merge.Source. Close releases any backend resources (child process,
// open file) and must be safe to call multiple times.
type Sequence interface {
	// Next returns the next element, or ok=false at end of stream.
	Next() (e *element.BGPElement, ok bool, err error)
	Close() error
}

// Driver is the single capability every backend implements.
type Driver interface {
	// Open drives the backend over path and returns a lazy element
	// sequence. ctx bounds the backend's lifetime (child process or
	// decode loop); cancelling it must make Next return promptly.
	Open(ctx context.Context, path string, hints Hints) (Sequence, error)

	// Backend identifies which of the four backends this Driver is.
	Backend() Backend
}
