package relay

import "sync/atomic"

// Counter tracks the number of live relay sessions on one route.
// It is an observability signal only and never limits admission.
type Counter struct {
	n atomic.Int64
}

// Increment records a new session and returns the updated count
func (c *Counter) Increment() int64 {
	return c.n.Add(1)
}

// Decrement records a finished session and returns the updated count
func (c *Counter) Decrement() int64 {
	return c.n.Add(-1)
}

// Value returns the current count; it may lag updates still in flight
func (c *Counter) Value() int64 {
	return c.n.Load()
}
