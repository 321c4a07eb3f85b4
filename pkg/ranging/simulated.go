package ranging

import (
	"math"
	"sync"
	"time"

	"github.com/teslashibe/go-pathfinder/internal/clock"
)

// Simulated oscillates smoothly between 0.4 m and 3.0 m with a 5 second
// period unless a manual override is set.
type Simulated struct {
	mu       sync.Mutex
	clk      clock.Clock
	start    time.Time
	override *float64
	gap      time.Duration
}

// NewSimulated creates a simulated sensor. Samples taken by Median are not
// spaced out because the waveform is a function of time only.
func NewSimulated(clk clock.Clock) *Simulated {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Simulated{clk: clk, start: clk.Now()}
}

// Read returns the current simulated distance.
func (s *Simulated) Read() Reading {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.override != nil {
		return At(clamp(*s.override, 0.05, MaxValid))
	}
	t := s.clk.Since(s.start).Seconds()
	base := 1.7 + 1.3*math.Sin(2*math.Pi*(t/5.0))
	return At(clamp(base, 0.4, 3.0))
}

// Median returns the median of n readings.
func (s *Simulated) Median(n int) Reading {
	return Median(s.Read, n, s.gap, s.clk)
}

// SetOverride pins the simulated distance to m meters.
func (s *Simulated) SetOverride(m float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.override = &m
}

// ClearOverride resumes oscillation.
func (s *Simulated) ClearOverride() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.override = nil
}

// Close is a no-op.
func (s *Simulated) Close() error { return nil }
