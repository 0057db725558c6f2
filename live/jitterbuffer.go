package live

import (
	"container/heap"
	"time"

	"github.com/bgpstream-engine/bgpstream/element"
)

// Source is a pull-based cursor yielding possibly out-of-order
// BGPElements, satisfied by Multiplexer.
type Source interface {
	Next() (e *element.BGPElement, ok bool, err error)
}

type timeHeap []*element.BGPElement

func (h timeHeap) Len() int            { return len(h) }
func (h timeHeap) Less(i, j int) bool  { return h[i].Time.Before(h[j].Time) }
func (h timeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *timeHeap) Push(x any)         { *h = append(*h, x.(*element.BGPElement)) }
func (h *timeHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// JitterBuffer wraps an unsorted live Source with a min-heap keyed by
// time and a running max_ts_seen, delaying emission by Delay so that
// elements arriving out of order within that window are reordered
// before they reach the consumer (spec §4.8).
type JitterBuffer struct {
	src   Source
	delay time.Duration

	h         timeHeap
	maxTSSeen time.Time
	upstreamDone bool
}

// NewJitterBuffer wraps src. delay<=0 disables buffering entirely:
// Next degenerates to a direct passthrough of src.Next (spec §3
// "0 or absent disables buffering").
func NewJitterBuffer(src Source, delay time.Duration) *JitterBuffer {
	return &JitterBuffer{src: src, delay: delay}
}

// Next returns the next element in heap order once it has aged past
// Delay behind the latest timestamp observed so far (spec §4.8). On
// upstream exhaustion it drains and yields the remaining heap in
// order, then reports ok=false.
func (j *JitterBuffer) Next() (*element.BGPElement, bool, error) {
	if j.delay <= 0 {
		return j.src.Next()
	}

	for {
		if len(j.h) > 0 && j.h[0].Time.Add(j.delay).Compare(j.maxTSSeen) <= 0 {
			return heap.Pop(&j.h).(*element.BGPElement), true, nil
		}
		if j.upstreamDone {
			if len(j.h) > 0 {
				return heap.Pop(&j.h).(*element.BGPElement), true, nil
			}
			return nil, false, nil
		}

		e, ok, err := j.src.Next()
		if err != nil {
			return nil, false, err
		}
		if !ok {
			j.upstreamDone = true
			continue
		}
		if e.Time.After(j.maxTSSeen) {
			j.maxTSSeen = e.Time
		}
		heap.Push(&j.h, e)
	}
}
