package schedule

import "time"

// =============================================================================
// CLOCK - Injectable time source so the state machine is testable
// =============================================================================

// Clock supplies the current time. Engine components never call time.Now
// directly; they take a Clock so sweeps and planners replay deterministically
// in tests.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock is the production clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }

// TodayAt returns the clock's current day as a Date.
func TodayAt(c Clock) Date { return DateOf(c.Now()) }
