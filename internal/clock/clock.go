// Package clock provides a testable abstraction over wall and monotonic time.
// Timers in the narration, SOS and control packages read time through a Clock
// so tests can advance it deterministically.
package clock

import (
	"sync"
	"time"
)

// Clock provides the time operations used by the control loop and its
// collaborators.
type Clock interface {
	// Now returns the current time. Real clocks carry a monotonic reading.
	Now() time.Time

	// Since returns the duration since t.
	Since(t time.Time) time.Duration

	// Sleep pauses for the specified duration.
	Sleep(d time.Duration)
}

// Real implements Clock using the standard time package.
type Real struct{}

// Now returns the current time.
func (Real) Now() time.Time { return time.Now() }

// Since returns the time elapsed since t.
func (Real) Since(t time.Time) time.Duration { return time.Since(t) }

// Sleep pauses the current goroutine for at least the duration d.
func (Real) Sleep(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}

// Mock is a manually controlled clock for testing.
// Sleep advances the clock instead of blocking.
type Mock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

// NewMock creates a Mock set to the given time.
func NewMock(t time.Time) *Mock {
	return &Mock{now: t}
}

// Now returns the mocked current time.
func (c *Mock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Since returns the duration since t.
func (c *Mock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// Advance moves the mock clock forward by d.
func (c *Mock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Sleep records the duration and advances the clock by it.
func (c *Mock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	if d > 0 {
		c.now = c.now.Add(d)
	}
}

// Sleeps returns all recorded sleep durations.
func (c *Mock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]time.Duration, len(c.sleeps))
	copy(result, c.sleeps)
	return result
}
