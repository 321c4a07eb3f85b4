package cv

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-pathfinder/pkg/control"
	"github.com/teslashibe/go-pathfinder/pkg/vision"
)

// WindowName is the title of the debug window.
const WindowName = "Pathfinder Debug"

var (
	green = color.RGBA{0, 255, 0, 0}
	red   = color.RGBA{255, 0, 0, 0}
	blue  = color.RGBA{0, 0, 255, 0}
	white = color.RGBA{255, 255, 255, 0}
)

// Window draws detections, sector boundaries, occupancy and distance over
// the camera frame and reports key presses. It implements control.Overlay.
type Window struct {
	win *gocv.Window
}

// NewWindow opens the debug window. It must be used from the goroutine that
// runs the control loop.
func NewWindow() *Window {
	return &Window{win: gocv.NewWindow(WindowName)}
}

// Draw renders one frame and returns the key pressed during the 1 ms wait,
// or -1.
func (w *Window) Draw(frame vision.Frame, dets []vision.Detection, st control.Status) int {
	mf, ok := frame.(MatFrame)
	if !ok || mf.Mat == nil || mf.Mat.Empty() {
		return w.win.WaitKey(1)
	}
	img := mf.Mat
	width, height := mf.Width(), mf.Height()

	for _, d := range dets {
		gocv.Rectangle(img, d.Box, green, 2)
		gocv.PutText(img, d.Label, image.Pt(d.Box.Min.X, d.Box.Min.Y-10), gocv.FontHersheySimplex, 0.5, green, 2)
	}

	gocv.Line(img, image.Pt(width/3, 0), image.Pt(width/3, height), blue, 2)
	gocv.Line(img, image.Pt(2*width/3, 0), image.Pt(2*width/3, height), blue, 2)

	for i, occupied := range st.Occupancy {
		c := green
		if occupied {
			c = red
		}
		center := image.Pt(i*width/3+width/6, height/2)
		gocv.Circle(img, center, 30, c, -1)
	}

	if st.HasRange {
		gocv.PutText(img, fmt.Sprintf("%.1fm", st.Distance), image.Pt(10, 30), gocv.FontHersheySimplex, 1, white, 2)
	}
	if st.Muted {
		gocv.PutText(img, "muted", image.Pt(width-110, 30), gocv.FontHersheySimplex, 0.8, white, 2)
	}

	w.win.IMShow(*img)
	return w.win.WaitKey(1)
}

// Close destroys the window.
func (w *Window) Close() error {
	return w.win.Close()
}
