// Package location provides best-effort position fixes for emergency alerts.
package location

import (
	"strconv"
	"sync"
	"time"
)

// Fix is a position in decimal degrees (WGS84).
type Fix struct {
	Lat  float64
	Lon  float64
	Time time.Time // when the fix was received
}

// Provider returns the latest known position, if any.
type Provider interface {
	ReadLocation() (Fix, bool)
}

// MapsLink returns a Google Maps link for f.
func MapsLink(f Fix) string {
	return "https://maps.google.com/?q=" +
		strconv.FormatFloat(f.Lat, 'f', -1, 64) + "," +
		strconv.FormatFloat(f.Lon, 'f', -1, 64)
}

// Unavailable is a Provider that never has a fix.
type Unavailable struct{}

// ReadLocation always reports no fix.
func (Unavailable) ReadLocation() (Fix, bool) { return Fix{}, false }

// Static is a Provider with a settable fixed position, used for fixed
// installations and tests.
type Static struct {
	mu  sync.Mutex
	fix Fix
	ok  bool
}

// NewStatic creates a Static provider at lat, lon.
func NewStatic(lat, lon float64) *Static {
	return &Static{fix: Fix{Lat: lat, Lon: lon}, ok: true}
}

// Set replaces the position.
func (s *Static) Set(lat, lon float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fix = Fix{Lat: lat, Lon: lon}
	s.ok = true
}

// Clear removes the position.
func (s *Static) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ok = false
}

// ReadLocation returns the configured position.
func (s *Static) ReadLocation() (Fix, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fix, s.ok
}
