// Package merge implements the k-way time-ordered merge over an
// arbitrary number of per-file, per-collector BGPElement sequences
// (spec §4.6).
package merge

import (
	"container/heap"

	"github.com/bgpstream-engine/bgpstream/element"
)

// Source is one input sequence to the merge: a pull-based cursor over
// already locally-sorted BGPElements (spec §4.6, §9 "pull-based cursor").
type Source interface {
	// Next returns the next element, or ok=false when the source is
	// exhausted. Sources must be internally non-decreasing in time,
	// as the merge invariant depends on it (spec §4.6).
	Next() (e *element.BGPElement, ok bool, err error)
}

type heapItem struct {
	elem *element.BGPElement
	src  Source
	idx  int // index into the owning Sorter's sources, for diagnostics
}

type minHeap []*heapItem

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return h[i].elem.Less(h[j].elem) }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)         { *h = append(*h, x.(*heapItem)) }
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// Sorter is a min-heap-backed k-way merge over Source sequences,
// keyed on the BGPElement ordering relation (spec §3, §4.6).
type Sorter struct {
	h *minHeap
}

// NewSorter primes a Sorter from the given sources, pulling one
// element from each to seed the heap.
func NewSorter(sources []Source) (*Sorter, error) {
	h := &minHeap{}
	heap.Init(h)

	s := &Sorter{h: h}
	for i, src := range sources {
		if err := s.refill(src, i); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Sorter) refill(src Source, idx int) error {
	e, ok, err := src.Next()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	heap.Push(s.h, &heapItem{elem: e, src: src, idx: idx})
	return nil
}

// Next pops the minimum element across all live sources and refills
// from its originating source (spec §4.6).
func (s *Sorter) Next() (*element.BGPElement, bool, error) {
	if s.h.Len() == 0 {
		return nil, false, nil
	}
	top := heap.Pop(s.h).(*heapItem)
	if err := s.refill(top.src, top.idx); err != nil {
		return nil, false, err
	}
	return top.elem, true, nil
}

// Len returns the number of currently live (non-exhausted) sources.
func (s *Sorter) Len() int {
	return s.h.Len()
}

// Min returns the smallest element currently queued without consuming
// it, or nil if empty.
func (s *Sorter) Min() *element.BGPElement {
	if s.h.Len() == 0 {
		return nil
	}
	return (*s.h)[0].elem
}
