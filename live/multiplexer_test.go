package live

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/bgpstream-engine/bgpstream/retry"
	"github.com/bgpstream-engine/bgpstream/stream"
)

func TestMultiplexer_DecodesFromWebSocketFrame(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		// drain the subscribe message, then push one ris_message frame.
		_, _, _ = conn.ReadMessage()
		frame := `{"type":"ris_message","data":{"timestamp":1700000000,"host":"rrc00.ripe.net","peer_asn":64500,"peer":"192.0.2.1","path":["64500"],"community":[],"announcements":[{"next_hop":"192.0.2.254","prefixes":["10.0.0.0/24"]}],"withdrawals":[]}}`
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))

		// keep the connection open until the test tears it down.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	mux, err := NewMultiplexer([]string{"rrc00"}, nil, MultiplexerOptions{
		URL:   wsURL,
		Retry: retry.Policy{Base: time.Millisecond, Factor: 2, Retries: 1},
		Diag:  stream.NewDiagnostics(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mux.Start(ctx)

	e, ok, err := mux.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "rrc00", e.Collector)
	require.Equal(t, "10.0.0.0/24", e.Fields.Prefix)
	require.Equal(t, "192.0.2.254", e.Fields.NextHop)
}

func TestMultiplexer_EscalatesAfterRepeatedDialFailures(t *testing.T) {
	mux, err := NewMultiplexer([]string{"rrc00"}, nil, MultiplexerOptions{
		URL:   "ws://127.0.0.1:1/nope", // nothing listens on port 1
		Retry: retry.Policy{Base: time.Millisecond, Factor: 1, Jitter: 0, Retries: 1},
		Diag:  stream.NewDiagnostics(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mux.Start(ctx)

	_, _, err = mux.Next()
	require.Error(t, err)
}
