// Package clock lets time-of-week rules and TTL bookkeeping run against an
// injected time source so tests can pin "now".
package clock

import (
	"sync"
	"time"
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// RealClock returns the system time.
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

// NewReal returns a Clock backed by time.Now.
func NewReal() Clock {
	return RealClock{}
}

// FixedClock always returns T.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time {
	return c.T
}

// NewFixed returns a Clock pinned to t.
func NewFixed(t time.Time) Clock {
	return FixedClock{T: t}
}

// FakeClock is a settable clock for tests that need time to move.
type FakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func NewFake(t time.Time) *FakeClock {
	return &FakeClock{t: t}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// Set pins the clock to t.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}
