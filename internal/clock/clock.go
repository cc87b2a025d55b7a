// Package clock provides a Clock service as an alternative to calling the
// time package directly, so that code which reacts to elapsed time (probe
// timeouts, device silence, rate limiting) can be driven deterministically
// in tests.
package clock

import "time"

// Clock yields the current time. Production code uses SystemClock; tests
// use FakeClock.
type Clock interface {
	Now() time.Time
}

// SystemClock satisfies Clock with the real wall/monotonic clock.
type SystemClock struct{}

// NewSystemClock returns a Clock backed by time.Now.
func NewSystemClock() Clock {
	return SystemClock{}
}

// Now returns time.Now().
func (SystemClock) Now() time.Time {
	return time.Now()
}

// FakeClock is a settable Clock for tests.
type FakeClock struct {
	t time.Time
}

// NewFakeClock creates a FakeClock starting at t.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{t: t}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	return c.t
}

// Advance moves the fake clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

// Set moves the fake clock to t.
func (c *FakeClock) Set(t time.Time) {
	c.t = t
}
