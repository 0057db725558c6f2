package merge

import (
	"testing"
	"time"

	"github.com/bgpstream-engine/bgpstream/element"
	"github.com/stretchr/testify/require"
)

type sliceSource struct {
	elems []*element.BGPElement
	pos   int
}

func (s *sliceSource) Next() (*element.BGPElement, bool, error) {
	if s.pos >= len(s.elems) {
		return nil, false, nil
	}
	e := s.elems[s.pos]
	s.pos++
	return e, true, nil
}

func mk(collector string, sec int64) *element.BGPElement {
	return &element.BGPElement{
		Type:      element.TypeAnnounce,
		Collector: collector,
		Time:      time.Unix(sec, 0).UTC(),
	}
}

func TestSorter_MergesMultipleSourcesInTimeOrder(t *testing.T) {
	a := &sliceSource{elems: []*element.BGPElement{mk("rrc00", 1), mk("rrc00", 3), mk("rrc00", 5)}}
	b := &sliceSource{elems: []*element.BGPElement{mk("rrc01", 2), mk("rrc01", 4), mk("rrc01", 6)}}

	s, err := NewSorter([]Source{a, b})
	require.NoError(t, err)

	var got []int64
	for {
		e, ok, err := s.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, e.Time.Unix())
	}
	require.Equal(t, []int64{1, 2, 3, 4, 5, 6}, got)
}

func TestSorter_TiesBrokenByCollector(t *testing.T) {
	a := &sliceSource{elems: []*element.BGPElement{mk("zzz", 1)}}
	b := &sliceSource{elems: []*element.BGPElement{mk("aaa", 1)}}

	s, err := NewSorter([]Source{a, b})
	require.NoError(t, err)

	e1, ok, err := s.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "aaa", e1.Collector)

	e2, ok, err := s.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "zzz", e2.Collector)
}

func TestSorter_EmptyWhenNoSources(t *testing.T) {
	s, err := NewSorter(nil)
	require.NoError(t, err)
	_, ok, err := s.Next()
	require.NoError(t, err)
	require.False(t, ok)
}
