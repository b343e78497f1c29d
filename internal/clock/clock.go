package clock

import "time"

// Clock is the time source used for all elapsed-time math in the engine:
// playhead position, recording duration and event timestamps. Injecting it
// keeps the transport and recorder state machines testable.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock. time.Time carries a monotonic reading on
// every platform we target, so subtraction is safe against clock steps.
type System struct{}

func (System) Now() time.Time {
	return time.Now()
}

// Manual is a hand-advanced clock for tests.
type Manual struct {
	now time.Time
}

// NewManual starts a manual clock at an arbitrary fixed instant.
func NewManual() *Manual {
	return &Manual{now: time.Unix(1700000000, 0)}
}

func (m *Manual) Now() time.Time {
	return m.now
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.now = m.now.Add(d)
}

// Set jumps the clock to an absolute instant. It may move backwards.
func (m *Manual) Set(t time.Time) {
	m.now = t
}
