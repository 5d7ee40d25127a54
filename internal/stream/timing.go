package stream

import "time"

// Timing records when the first think block opened and the last one closed.
type Timing struct {
	now   Clock
	start time.Time
	end   time.Time
	open  bool
}

// NewTiming returns a tracker driven by now.
func NewTiming(now Clock) *Timing {
	if now == nil {
		now = time.Now
	}
	return &Timing{now: now}
}

// Open marks a think block as entered and returns the session start time.
func (t *Timing) Open() time.Time {
	if t.start.IsZero() {
		t.start = t.now()
	}
	t.open = true
	return t.start
}

// Close marks the think block as left and returns the end time.
func (t *Timing) Close() time.Time {
	t.end = t.now()
	t.open = false
	return t.end
}

// Start returns the first think start time, zero if no block was opened.
func (t *Timing) Start() time.Time { return t.start }

// End returns the last think end time, zero if no block was closed.
func (t *Timing) End() time.Time { return t.end }

// Spent is the live duration while a block is open, the final one otherwise.
func (t *Timing) Spent() time.Duration {
	switch {
	case t.start.IsZero():
		return 0
	case t.open:
		return t.now().Sub(t.start)
	default:
		return t.end.Sub(t.start)
	}
}
