package engine

import "sync/atomic"

// Sequencer stamps lifecycle events. Clock is the host's implementation;
// tests may substitute a resettable one.
type Sequencer interface {
	Next() int64
	Current() int64
}

// Clock is a monotonic logical clock for lifecycle events.
//
// Every event a Host emits is stamped with a strictly increasing seq number
// from this clock, so a recorded run has a total order that does not depend
// on wall time.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
