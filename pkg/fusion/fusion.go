// Package fusion combines vision detections and range readings into a
// three-sector occupancy view of the path ahead.
package fusion

import (
	"fmt"
	"image"
	"strings"

	"github.com/teslashibe/go-pathfinder/pkg/ranging"
	"github.com/teslashibe/go-pathfinder/pkg/vision"
)

// Sector is a horizontal third of the camera frame.
type Sector int

// Sectors in index order.
const (
	Left Sector = iota
	Center
	Right
)

// String returns the spoken name of the sector.
func (s Sector) String() string {
	switch s {
	case Left:
		return "left"
	case Center:
		return "ahead"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("sector(%d)", int(s))
	}
}

// Occupancy marks which sectors hold an obstacle, indexed by Sector.
type Occupancy [3]bool

// Any reports whether any sector is occupied.
func (o Occupancy) Any() bool {
	return o[Left] || o[Center] || o[Right]
}

// SectorOf assigns a bounding box to a sector by its horizontal center:
// left if cx < w/3, right if cx > 2w/3, otherwise center.
func SectorOf(frameWidth int, box image.Rectangle) Sector {
	cx := float64(box.Min.X+box.Max.X) / 2.0
	w := float64(frameWidth)
	switch {
	case cx < w/3:
		return Left
	case cx > 2*w/3:
		return Right
	default:
		return Center
	}
}

// Sectorize marks every sector hit by at least one detection.
func Sectorize(frameWidth int, dets []vision.Detection) Occupancy {
	var o Occupancy
	for _, d := range dets {
		o[SectorOf(frameWidth, d.Box)] = true
	}
	return o
}

// Fuse forces the center sector occupied when the range reading is closer
// than danger. It never clears a sector.
func Fuse(o Occupancy, d ranging.Reading, danger float64) Occupancy {
	if d.OK && d.Meters < danger {
		o[Center] = true
	}
	return o
}

// Summary lists occupied sectors in speaking order (ahead, left, right),
// joined by "and", or "clear".
func Summary(o Occupancy) string {
	var parts []string
	for _, s := range []Sector{Center, Left, Right} {
		if o[s] {
			parts = append(parts, s.String())
		}
	}
	if len(parts) == 0 {
		return "clear"
	}
	return strings.Join(parts, " and ")
}

// Describe renders the occupancy for speech, e.g. "obstacle ahead and left,
// 1.2 meters" or "clear path".
func Describe(o Occupancy, d ranging.Reading) string {
	var s string
	if o.Any() {
		s = "obstacle " + Summary(o)
	} else {
		s = "clear path"
	}
	return s + DistanceSuffix(d)
}

// DistanceSuffix returns ", D.D meters" or "" when d is unavailable.
func DistanceSuffix(d ranging.Reading) string {
	if !d.OK {
		return ""
	}
	return fmt.Sprintf(", %.1f meters", d.Meters)
}

// Direction is a suggested walking direction.
type Direction int

// Directions in preference order.
const (
	Forward Direction = iota
	TurnLeft
	TurnRight
	Blocked
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case TurnLeft:
		return "left"
	case TurnRight:
		return "right"
	default:
		return "none"
	}
}

// SafeDirection prefers forward, then left, then right.
func SafeDirection(o Occupancy) Direction {
	switch {
	case !o[Center]:
		return Forward
	case !o[Left]:
		return TurnLeft
	case !o[Right]:
		return TurnRight
	default:
		return Blocked
	}
}
