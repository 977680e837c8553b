package session

import (
	"context"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
)

// Connector owns the outbound-dial half of a peer's connection
// lifecycle: exponential backoff per spec §4.2 (small start, ×1.2,
// cap 60s).
type Connector struct {
	Dial  func(ctx context.Context) (net.Conn, error)
	Clock clockwork.Clock

	backoff *backoff.ExponentialBackOff
}

// NewConnector builds a Connector with spec's backoff parameters.
func NewConnector(dial func(ctx context.Context) (net.Conn, error), clock clockwork.Clock) *Connector {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.Multiplier = 1.2
	b.MaxInterval = 60 * time.Second
	b.MaxElapsedTime = 0 // never give up; the peer stays configured until removed
	b.Clock = clockworkBackoffClock{clock}
	b.Reset()
	return &Connector{Dial: dial, Clock: clock, backoff: b}
}

// Next blocks (cooperatively, via the clock's sleep, not a bare
// time.Sleep) for the next backoff interval, then attempts one dial.
// It returns the connection, or an error if ctx was cancelled first.
func (c *Connector) Next(ctx context.Context) (net.Conn, error) {
	delay := c.backoff.NextBackOff()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.Clock.After(delay):
	}
	return c.Dial(ctx)
}

// ResetBackoff restarts the schedule at its initial interval. Nothing in
// this module calls it, so the delay is not reset when a session
// reaches Established.
func (c *Connector) ResetBackoff() { c.backoff.Reset() }

// clockworkBackoffClock adapts clockwork.Clock to backoff.Clock so
// reconnect-delay tests can use a fake clock instead of wall time.
type clockworkBackoffClock struct{ clockwork.Clock }

func (c clockworkBackoffClock) Now() time.Time { return c.Clock.Now() }
