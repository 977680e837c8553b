// Package counter provides a concurrency-safe monotonic counter, used
// for the per-peer sent/received message counts surfaced by `show
// neighbor` (RFC 4271 defines no wire counters, but every production
// speaker tracks them for operability).
package counter

import (
	"fmt"
	"sync/atomic"
)

// Counter is a 64 bit counter safe for concurrent use.
type Counter struct {
	count atomic.Uint64
}

func New() *Counter { return new(Counter) }

func (c *Counter) Reset() { c.count.Store(0) }

func (c *Counter) Increment() { c.count.Add(1) }

func (c *Counter) Value() uint64 { return c.count.Load() }

func (c *Counter) String() string { return fmt.Sprintf("%d", c.Value()) }
