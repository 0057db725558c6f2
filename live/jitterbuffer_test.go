package live

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bgpstream-engine/bgpstream/element"
)

// fakeSource replays a canned, possibly out-of-order, slice of elements.
type fakeSource struct {
	elems []*element.BGPElement
	pos   int
}

func (s *fakeSource) Next() (*element.BGPElement, bool, error) {
	if s.pos >= len(s.elems) {
		return nil, false, nil
	}
	e := s.elems[s.pos]
	s.pos++
	return e, true, nil
}

func mkLiveElem(sec int64) *element.BGPElement {
	return &element.BGPElement{
		Type: element.TypeAnnounce,
		Time: time.Unix(sec, 0).UTC(),
	}
}

func TestJitterBuffer_ReordersWithinDelay(t *testing.T) {
	// arrives out of order: 10, 30, 20 -- within a 15s delay, 20 should
	// surface before 30 once 30 has aged past the buffer.
	src := &fakeSource{elems: []*element.BGPElement{mkLiveElem(10), mkLiveElem(30), mkLiveElem(20)}}
	jb := NewJitterBuffer(src, 15*time.Second)

	var got []int64
	for {
		e, ok, err := jb.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, e.Time.Unix())
	}
	require.Equal(t, []int64{10, 20, 30}, got)
}

func TestJitterBuffer_FlushesRemainingOnUpstreamExhaustion(t *testing.T) {
	src := &fakeSource{elems: []*element.BGPElement{mkLiveElem(5), mkLiveElem(1), mkLiveElem(3)}}
	jb := NewJitterBuffer(src, time.Hour) // delay far larger than any gap seen

	var got []int64
	for {
		e, ok, err := jb.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, e.Time.Unix())
	}
	require.Equal(t, []int64{1, 3, 5}, got)
}

func TestJitterBuffer_ZeroDelayIsPassthrough(t *testing.T) {
	src := &fakeSource{elems: []*element.BGPElement{mkLiveElem(30), mkLiveElem(10)}}
	jb := NewJitterBuffer(src, 0)

	var got []int64
	for {
		e, ok, err := jb.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, e.Time.Unix())
	}
	require.Equal(t, []int64{30, 10}, got) // unordered passthrough, no buffering
}
