package rewrite

import "sync/atomic"

// Clock is a monotonic logical clock for ordering rewrite events.
//
// Each applied rewrite is stamped with a strictly increasing Seq, so the
// journal replays in the order rewrites happened. A Clock may be shared by
// several Apply calls to keep numbering unique across functions.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific sequence number.
// Used to continue numbering after the last journaled event.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
