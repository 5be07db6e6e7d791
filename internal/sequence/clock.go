package sequence

import "sync/atomic"

// Clock is a monotonic logical clock stamping every emitted call.
//
// All calls in a recipe carry a strictly increasing seq from one clock.
// This ensures:
//   - Deterministic ordering (no wall-clock race conditions)
//   - Golden traces compare stably across runs
//   - Init/exec/dispose call lists share one sequence domain
//
// Thread-safety: atomic, though the sequencer's single-threaded design
// means only one goroutine typically calls Next().
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
// Each call returns a unique, increasing value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
