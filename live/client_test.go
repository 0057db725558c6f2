package live

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDecodeRISMessage_AnnouncementsAndWithdrawals(t *testing.T) {
	frame := []byte(`{
		"type": "ris_message",
		"data": {
			"timestamp": 1700000000.5,
			"host": "rrc00.ripe.net",
			"peer_asn": 64500,
			"peer": "192.0.2.1",
			"path": ["64500", "64501"],
			"community": [["64501", "100"]],
			"announcements": [
				{"next_hop": "192.0.2.254,192.0.2.253", "prefixes": ["10.0.0.0/24", "10.0.1.0/24"]}
			],
			"withdrawals": ["10.0.2.0/24"]
		}
	}`)

	elems, err := decodeRISMessage(frame)
	require.NoError(t, err)
	require.Len(t, elems, 3)

	// withdrawals come first in the decode order.
	require.Equal(t, byte('W'), byte(elems[0].Type))
	require.Equal(t, "10.0.2.0/24", elems[0].Fields.Prefix)
	require.Equal(t, "rrc00", elems[0].Collector)
	require.Equal(t, uint32(64500), elems[0].PeerASN)
	require.Equal(t, time.UnixMilli(1700000000500).UTC(), elems[0].Time)
	require.Equal(t, []string{"64501:100"}, elems[0].Fields.Communities)

	require.Equal(t, byte('A'), byte(elems[1].Type))
	require.Equal(t, "10.0.0.0/24", elems[1].Fields.Prefix)
	require.Equal(t, "192.0.2.254", elems[1].Fields.NextHop)
	require.Equal(t, "64500 64501", elems[1].Fields.AsPath)

	require.Equal(t, "10.0.1.0/24", elems[2].Fields.Prefix)
	require.Equal(t, "192.0.2.254", elems[2].Fields.NextHop)
}

func TestDecodeRISMessage_IgnoresNonRISMessageFrames(t *testing.T) {
	elems, err := decodeRISMessage([]byte(`{"type":"ris_error","data":{}}`))
	require.NoError(t, err)
	require.Nil(t, elems)
}

func TestDecodeRISMessage_MissingFieldIsError(t *testing.T) {
	_, err := decodeRISMessage([]byte(`{"type":"ris_message","data":{"host":"rrc00.ripe.net"}}`))
	require.Error(t, err)
}

func TestCollectorFromHost(t *testing.T) {
	require.Equal(t, "rrc00", collectorFromHost("rrc00.ripe.net"))
	require.Equal(t, "rrc00", collectorFromHost("rrc00"))
}

func TestFirstComponent(t *testing.T) {
	require.Equal(t, "192.0.2.1", firstComponent("192.0.2.1,2001:db8::1"))
	require.Equal(t, "192.0.2.1", firstComponent("192.0.2.1"))
}

func TestPruneFailures_EscalatesAtLimitWithinWindow(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	var failures []time.Time
	for i := 0; i < reconnectLimit-1; i++ {
		failures = pruneFailures(failures, base.Add(time.Duration(i)*time.Second))
	}
	require.Len(t, failures, reconnectLimit-1)

	failures = pruneFailures(failures, base.Add(time.Duration(reconnectLimit-1)*time.Second))
	require.Len(t, failures, reconnectLimit)
}

func TestPruneFailures_OldEntriesAgeOutOfWindow(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	var failures []time.Time
	failures = pruneFailures(failures, base)
	failures = pruneFailures(failures, base.Add(time.Second))

	// this failure lands well outside the 60s window of the first two.
	failures = pruneFailures(failures, base.Add(2*reconnectWindow))
	require.Len(t, failures, 1)
}
