// Package haptics maps fused occupancy to per-sector vibration intensities
// and delivers them to the vibration motors.
package haptics

import (
	"fmt"
	"math"

	"github.com/teslashibe/go-pathfinder/pkg/fusion"
	"github.com/teslashibe/go-pathfinder/pkg/ranging"
)

// DefaultMaxRange is the distance at and beyond which an occupied sector
// gets the minimal buzz.
const DefaultMaxRange = 3.0

// Intensity levels.
const (
	Off     = 0
	Min     = 20
	Unknown = 40
	Max     = 100
)

// Intensity returns the vibration strength (0-100) for one sector.
//
// An unoccupied sector is off. An occupied sector with no distance gets a
// flat 40. Otherwise strength is inversely proportional to distance:
// 100*max(danger,0.2)/max(d,0.05), truncated and clamped to [20,100], with
// d <= 0 mapped to 100 and d >= maxRange mapped to 20.
func Intensity(occupied bool, d ranging.Reading, danger, maxRange float64) int {
	if !occupied {
		return Off
	}
	if !d.OK {
		return Unknown
	}
	if d.Meters <= 0 {
		return Max
	}
	if d.Meters >= maxRange {
		return Min
	}

	v := int(100 * math.Max(danger, 0.2) / math.Max(d.Meters, 0.05))
	if v < Min {
		return Min
	}
	if v > Max {
		return Max
	}
	return v
}

// Pattern holds one intensity per sector.
type Pattern struct {
	Left   int `json:"l"`
	Center int `json:"c"`
	Right  int `json:"r"`
}

func (p Pattern) String() string {
	return fmt.Sprintf("L%d C%d R%d", p.Left, p.Center, p.Right)
}

// Map computes the pattern for a fused occupancy. The single range reading
// applies to every occupied sector.
func Map(o fusion.Occupancy, d ranging.Reading, danger, maxRange float64) Pattern {
	return Pattern{
		Left:   Intensity(o[fusion.Left], d, danger, maxRange),
		Center: Intensity(o[fusion.Center], d, danger, maxRange),
		Right:  Intensity(o[fusion.Right], d, danger, maxRange),
	}
}
