package stream

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// Diagnostics accumulates recoverable-error counts across a stream's
// lifetime, for the "per-stream diagnostic summary accessible at
// close" required by spec §7. Lock-free accumulation from multiple
// fetch/parse worker goroutines, grounded on pipe.Pipe.KV's use of
// xsync.MapOf for the same reason (many writers, one eventual reader).
type Diagnostics struct {
	counts *xsync.MapOf[ErrorKind, *atomic.Uint64]
}

// NewDiagnostics returns an empty Diagnostics.
func NewDiagnostics() *Diagnostics {
	return &Diagnostics{counts: xsync.NewMapOf[ErrorKind, *atomic.Uint64]()}
}

// Record increments the counter for err's Kind if err is (or wraps) a
// *stream.Error; no-op otherwise.
func (d *Diagnostics) Record(err error) {
	if d == nil || err == nil {
		return
	}
	var se *Error
	if !asStreamError(err, &se) {
		return
	}
	ctr, _ := d.counts.LoadOrCompute(se.Kind, func() *atomic.Uint64 {
		return new(atomic.Uint64)
	})
	ctr.Add(1)
}

// Count returns how many errors of the given kind have been recorded.
func (d *Diagnostics) Count(kind ErrorKind) uint64 {
	ctr, ok := d.counts.Load(kind)
	if !ok {
		return 0
	}
	return ctr.Load()
}

// Summary returns a snapshot of all recorded counts, keyed by kind name.
func (d *Diagnostics) Summary() map[string]uint64 {
	out := make(map[string]uint64)
	d.counts.Range(func(k ErrorKind, v *atomic.Uint64) bool {
		out[k.String()] = v.Load()
		return true
	})
	return out
}
