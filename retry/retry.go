// Package retry implements the exponential-backoff-with-jitter policy
// shared by BrokerClient and Fetcher (spec §4.2, §4.3: "same policy as
// §4.2"): base 500ms, factor 2, jitter ±25%, 3 retries before the
// caller's 4th attempt is treated as final failure.
package retry

import (
	"context"
	"math/rand"
	"time"
)

// Policy is an exponential backoff schedule.
type Policy struct {
	Base    time.Duration
	Factor  float64
	Jitter  float64 // fraction, e.g. 0.25 for ±25%
	Retries int     // number of retries after the first attempt
}

// Default is the spec §4.2 policy: base 500ms, factor 2, jitter ±25%,
// 3 retries (so up to 4 attempts total).
var Default = Policy{
	Base:    500 * time.Millisecond,
	Factor:  2,
	Jitter:  0.25,
	Retries: 3,
}

// Delay returns the backoff delay before attempt n (1-indexed: the
// delay before the 2nd attempt is Delay(1)). Exported so callers with
// their own retry loop shape (e.g. live.Client's unbounded reconnect)
// can reuse the same schedule without going through Do.
func (p Policy) Delay(n int) time.Duration {
	return p.delay(n)
}

// delay returns the backoff delay before attempt n (1-indexed: the
// delay before the 2nd attempt is delay(1)).
func (p Policy) delay(n int) time.Duration {
	d := float64(p.Base) * pow(p.Factor, float64(n-1))
	if p.Jitter > 0 {
		// uniform in [d*(1-jitter), d*(1+jitter)]
		spread := d * p.Jitter
		d += (rand.Float64()*2 - 1) * spread
		if d < 0 {
			d = 0
		}
	}
	return time.Duration(d)
}

func pow(base, exp float64) float64 {
	out := 1.0
	for i := 0; i < int(exp); i++ {
		out *= base
	}
	return out
}

// Do runs fn up to p.Retries+1 times, sleeping p.delay between
// attempts. It returns the last error if every attempt fails, or nil
// on the first success. fn should return a non-nil error to request a
// retry; ctx cancellation aborts immediately.
func (p Policy) Do(ctx context.Context, fn func(attempt int) error) error {
	var err error
	for attempt := 1; attempt <= p.Retries+1; attempt++ {
		if err = ctx.Err(); err != nil {
			return err
		}
		if err = fn(attempt); err == nil {
			return nil
		}
		if attempt > p.Retries {
			break
		}
		select {
		case <-time.After(p.delay(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
