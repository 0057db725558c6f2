package live

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bgpstream-engine/bgpstream/element"
	"github.com/bgpstream-engine/bgpstream/filterspec"
	"github.com/bgpstream-engine/bgpstream/retry"
	"github.com/bgpstream-engine/bgpstream/stream"
)

// elemBuffer is the Multiplexer's shared-channel buffer: large enough
// to absorb a burst across collectors without blocking the
// connection's read loop under ordinary jitter-buffer delays.
const elemBuffer = 4096

// MultiplexerOptions configures a Multiplexer.
type MultiplexerOptions struct {
	URL    string // defaults to DefaultURL
	Retry  retry.Policy
	Diag   *stream.Diagnostics
	Logger *zerolog.Logger
}

// Multiplexer owns the session's single Client connection, subscribed
// to every requested collector, and exposes its output as the
// module's pull-based Source contract. A fresh `?client=<id>` is
// minted with google/uuid per spec.md §6, shared across every
// collector's subscription on that one connection, matching the
// retrieved RIS Live client's NewMultiClient client-id handling.
type Multiplexer struct {
	client *Client
	elems  chan *element.BGPElement
	fatal  chan error
	done   chan struct{} // closed once the client's run() has returned
}

// NewMultiplexer builds the session's single Client, using
// ToSubscriptions to translate f into each collector's RIS Live
// subscribe payload, all carried over that one connection.
func NewMultiplexer(collectors []string, f *filterspec.FilterSpec, opts MultiplexerOptions) (*Multiplexer, error) {
	subs, err := filterspec.ToSubscriptions(collectors, f)
	if err != nil {
		return nil, fmt.Errorf("live: %w", err)
	}

	m := &Multiplexer{
		elems: make(chan *element.BGPElement, elemBuffer),
		fatal: make(chan error, 1),
		done:  make(chan struct{}),
	}

	m.client = newClient(subs, m.elems, m.fatal, Options{
		URL:      opts.URL,
		ClientID: uuid.NewString(),
		Retry:    opts.Retry,
		Diag:     opts.Diag,
		Logger:   opts.Logger,
	})
	return m, nil
}

// Start connects the session's Client and begins fanning its output
// into the shared element channel.
func (m *Multiplexer) Start(ctx context.Context) {
	go func() {
		m.client.run(ctx)
		close(m.elems)
		close(m.done)
	}()
}

// Next returns the next available element, or the fatal escalation
// raised by the connection (spec §7: 5 consecutive reconnect failures
// within 60s).
func (m *Multiplexer) Next() (*element.BGPElement, bool, error) {
	select {
	case err := <-m.fatal:
		return nil, false, err
	default:
	}
	select {
	case err := <-m.fatal:
		return nil, false, err
	case e, ok := <-m.elems:
		if !ok {
			select {
			case err := <-m.fatal:
				return nil, false, err
			default:
				return nil, false, nil
			}
		}
		return e, true, nil
	}
}

// Stats returns a snapshot of every subscribed collector's connection
// counters.
func (m *Multiplexer) Stats() []Stats {
	return m.client.Stats()
}
