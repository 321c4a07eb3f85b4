// Package ranging provides forward distance readings from an ultrasonic range
// finder. Two variants exist: Serial for real hardware and Simulated for
// desktop runs without a sensor.
package ranging

import (
	"fmt"
	"sort"
	"time"

	"github.com/teslashibe/go-pathfinder/internal/clock"
)

// Valid measurement range of the sensor in meters.
const (
	MinValid = 0.02
	MaxValid = 4.0
)

// Sampling defaults.
const (
	DefaultSamples   = 5
	DefaultSampleGap = 20 * time.Millisecond
)

// Reading is an optional distance in meters. OK is false when no valid
// measurement is available.
type Reading struct {
	Meters float64
	OK     bool
}

// Unavailable is the zero Reading.
var Unavailable = Reading{}

// At returns an available reading of m meters.
func At(m float64) Reading {
	return Reading{Meters: m, OK: true}
}

func (r Reading) String() string {
	if !r.OK {
		return "unavailable"
	}
	return fmt.Sprintf("%.1fm", r.Meters)
}

// Sensor reads forward distance. Read and Median never fail; a missing or
// broken sensor yields Unavailable.
type Sensor interface {
	Read() Reading
	Median(n int) Reading
	Close() error
}

// Median takes n readings from read, sleeping gap between them, and returns
// the median of the available ones.
func Median(read func() Reading, n int, gap time.Duration, clk clock.Clock) Reading {
	if n < 1 {
		n = 1
	}
	vals := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if i > 0 && gap > 0 {
			clk.Sleep(gap)
		}
		if r := read(); r.OK {
			vals = append(vals, r.Meters)
		}
	}
	return medianOf(vals)
}

// medianOf returns the median of vals, averaging the two middle values when
// the count is even.
func medianOf(vals []float64) Reading {
	if len(vals) == 0 {
		return Unavailable
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return At(sorted[mid])
	}
	return At((sorted[mid-1] + sorted[mid]) / 2)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
