package tm

import "sync/atomic"

// Clock is a monotonic logical counter.
//
// A topic map uses one clock to allocate construct ids and another to stamp
// events with a sequence number. Ids are never reused, which makes them
// generational: a stale id can only resolve to the construct it was issued
// for, to its merge survivor, or to nothing.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// The topic map itself is single-writer, so in practice only one goroutine
// calls Next.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next increments the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current value without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
