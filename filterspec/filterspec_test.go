package filterspec

import (
	"net/netip"
	"testing"

	"github.com/bgpstream-engine/bgpstream/element"
	"github.com/stretchr/testify/require"
)

func asn(v uint32) *uint32 { return &v }

func TestNew_RejectsMultiplePrefixClauses(t *testing.T) {
	_, err := New(Raw{Prefix: "10.0.0.0/8", PrefixSuper: "10.0.0.0/16"})
	require.ErrorIs(t, err, ErrConfig)
}

func TestNew_CollapsesPrefixVariant(t *testing.T) {
	f, err := New(Raw{PrefixSub: "10.0.0.0/8"})
	require.NoError(t, err)
	require.Equal(t, PrefixSub, f.PrefixMode)
	require.Equal(t, "10.0.0.0/8", f.Prefix)
}

func TestToFilterString_ClausesJoinedWithAnd(t *testing.T) {
	f, err := New(Raw{PeerASN: asn(65001), UpdateType: UpdateAnnounce})
	require.NoError(t, err)

	s, post, err := ToFilterString(CollectorFilter{
		Collectors: []string{"rrc00", "rrc01"},
		DataTypes:  []string{"updates"},
	}, f, TargetBgpdump)
	require.NoError(t, err)
	require.Equal(t, "collector rrc00 rrc01 and type updates and peer 65001 and elemtype announcements", s)
	require.False(t, post.PeerIP)
	require.False(t, post.IPVersion)
}

func TestToFilterString_MarksPeerIPAndIPVersionPostParse(t *testing.T) {
	f, err := New(Raw{PeerIP: "192.0.2.1", IPVersion: 6})
	require.NoError(t, err)

	_, post, err := ToFilterString(CollectorFilter{}, f, TargetBgpdump)
	require.NoError(t, err)
	require.True(t, post.PeerIP)
	require.True(t, post.IPVersion)
}

func TestToSubscriptions_OneMessagePerCollector(t *testing.T) {
	f, err := New(Raw{
		PeerASN:     asn(65001),
		OriginASN:   asn(27653),
		PrefixSub:   "10.0.0.0/8",
		UpdateType:  UpdateWithdraw,
	})
	require.NoError(t, err)

	subs, err := ToSubscriptions([]string{"rrc00", "rrc07"}, f)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	require.Equal(t, "rrc00", subs[0].Host)
	require.Equal(t, "rrc07", subs[1].Host)
	require.Equal(t, "withdrawals", subs[0].Require)
	require.Equal(t, "^65001,27653$", subs[0].Path)
	require.Equal(t, "10.0.0.0/8", subs[0].Prefix)
	require.NotNil(t, subs[0].MoreSpecific)
	require.True(t, *subs[0].MoreSpecific)
	require.Nil(t, subs[0].LessSpecific)
}

func TestToSubscriptions_ExactPrefixSetsBothBooleansFalse(t *testing.T) {
	f, err := New(Raw{Prefix: "203.0.113.0/24"})
	require.NoError(t, err)

	subs, err := ToSubscriptions([]string{"rrc00"}, f)
	require.NoError(t, err)
	require.NotNil(t, subs[0].MoreSpecific)
	require.NotNil(t, subs[0].LessSpecific)
	require.False(t, *subs[0].MoreSpecific)
	require.False(t, *subs[0].LessSpecific)
}

func TestMatcher_IPVersion(t *testing.T) {
	f, err := New(Raw{IPVersion: 6})
	require.NoError(t, err)
	m, err := NewMatcher(f, PostParseFields{IPVersion: true})
	require.NoError(t, err)

	v6 := &element.BGPElement{Fields: element.Fields{Prefix: "2001:db8::/32"}}
	v4 := &element.BGPElement{Fields: element.Fields{Prefix: "203.0.113.0/24"}}
	require.True(t, m.Match(v6))
	require.False(t, m.Match(v4))
}

func TestMatcher_PeerIP(t *testing.T) {
	f, err := New(Raw{PeerIP: "202.249.2.169"})
	require.NoError(t, err)
	m, err := NewMatcher(f, PostParseFields{PeerIP: true})
	require.NoError(t, err)

	addr := netip.MustParseAddr("202.249.2.169")
	other := netip.MustParseAddr("203.0.113.1")
	require.True(t, m.Match(&element.BGPElement{PeerAddr: addr}))
	require.False(t, m.Match(&element.BGPElement{PeerAddr: other}))
}

func TestMatcher_OriginASN_IgnoresASSet(t *testing.T) {
	f, err := New(Raw{OriginASN: asn(27653)})
	require.NoError(t, err)
	m, err := NewMatcher(f, PostParseFields{})
	require.NoError(t, err)

	e := &element.BGPElement{Fields: element.Fields{AsPath: "65001 65002 {27653,27654}"}}
	require.True(t, m.Match(e))
}

func TestMatcher_PrefixModes(t *testing.T) {
	cases := []struct {
		name string
		raw  Raw
		cand string
		want bool
	}{
		{"exact match", Raw{Prefix: "10.0.0.0/8"}, "10.0.0.0/8", true},
		{"exact mismatch", Raw{Prefix: "10.0.0.0/8"}, "10.0.0.0/9", false},
		{"super includes self", Raw{PrefixSuper: "10.0.0.0/16"}, "10.0.0.0/16", true},
		{"super includes coarser", Raw{PrefixSuper: "10.0.0.0/16"}, "10.0.0.0/8", true},
		{"super excludes finer", Raw{PrefixSuper: "10.0.0.0/16"}, "10.0.0.0/24", false},
		{"sub includes self", Raw{PrefixSub: "10.0.0.0/8"}, "10.0.0.0/8", true},
		{"sub includes finer", Raw{PrefixSub: "10.0.0.0/8"}, "10.0.1.0/24", true},
		{"sub excludes coarser", Raw{PrefixSub: "10.0.0.0/8"}, "0.0.0.0/0", false},
		{"super_sub includes both", Raw{PrefixSuperSub: "10.0.0.0/16"}, "10.0.0.0/24", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := New(tc.raw)
			require.NoError(t, err)
			m, err := NewMatcher(f, PostParseFields{})
			require.NoError(t, err)
			got := m.Match(&element.BGPElement{Fields: element.Fields{Prefix: tc.cand}})
			require.Equal(t, tc.want, got)
		})
	}
}
