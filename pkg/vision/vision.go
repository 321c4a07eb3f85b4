// Package vision defines the camera and object detector contracts used by the
// control loop. Concrete gocv implementations live in pkg/vision/cv so that
// everything above this package builds without cgo.
package vision

import (
	"errors"
	"image"
)

// ErrSourceClosed is returned by a FrameSource after Close.
var ErrSourceClosed = errors.New("vision: frame source closed")

// Detection represents a detected object in pixel coordinates.
type Detection struct {
	Label      string          // Human-readable class name
	ClassID    int             // COCO class ID
	Confidence float64         // Detection confidence (0-1)
	Box        image.Rectangle // Bounding box (x1,y1)-(x2,y2)
}

// CenterX returns the horizontal center of the bounding box.
func (d Detection) CenterX() float64 {
	return float64(d.Box.Min.X+d.Box.Max.X) / 2.0
}

// Frame is a single captured image.
type Frame interface {
	Width() int
	Height() int
}

// FrameSource produces frames. A Read error is fatal to the control loop.
type FrameSource interface {
	Read() (Frame, error)
	Close() error
}

// Detector finds objects in a frame.
//
// Detect must not fail: on any internal error it logs and returns an empty
// slice. confidence is the minimum score kept and imageSize the square
// network input size.
type Detector interface {
	Detect(frame Frame, confidence float64, imageSize int) []Detection
	Close() error
}

// Size is a bare Frame carrying only dimensions.
type Size struct {
	W, H int
}

// Width returns the frame width in pixels.
func (s Size) Width() int { return s.W }

// Height returns the frame height in pixels.
func (s Size) Height() int { return s.H }

// Top returns the highest-confidence detection. The first one wins on ties.
func Top(dets []Detection) (Detection, bool) {
	if len(dets) == 0 {
		return Detection{}, false
	}
	best := dets[0]
	for _, d := range dets[1:] {
		if d.Confidence > best.Confidence {
			best = d
		}
	}
	return best, true
}
