// Package cv implements the vision contracts on OpenCV through gocv: a
// V4L/AVFoundation camera, a YOLOv8 ONNX detector and the debug window.
package cv

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-pathfinder/pkg/vision"
)

// MatFrame is a frame backed by an OpenCV matrix. It is only valid until
// the next Read on the camera that produced it.
type MatFrame struct {
	Mat *gocv.Mat
}

// Width returns the frame width in pixels.
func (f MatFrame) Width() int { return f.Mat.Cols() }

// Height returns the frame height in pixels.
func (f MatFrame) Height() int { return f.Mat.Rows() }

// CameraConfig holds capture settings.
type CameraConfig struct {
	Device int
	Width  int
	Height int
	FPS    float64
}

// DefaultCameraConfig returns 640x480 at 15 fps on the first camera.
func DefaultCameraConfig() CameraConfig {
	return CameraConfig{Width: 640, Height: 480, FPS: 15}
}

// Camera reads frames from a local capture device.
type Camera struct {
	mu     sync.Mutex
	cap    *gocv.VideoCapture
	mat    gocv.Mat
	closed bool
}

// OpenCamera opens the device and applies the requested size and rate. The
// driver buffer is kept to one frame so reads return the freshest image.
func OpenCamera(cfg CameraConfig) (*Camera, error) {
	capture, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w", cfg.Device, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("open camera %d: device not available", cfg.Device)
	}

	if cfg.Width > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	}
	if cfg.Height > 0 {
		capture.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	}
	if cfg.FPS > 0 {
		capture.Set(gocv.VideoCaptureFPS, cfg.FPS)
	}
	capture.Set(gocv.VideoCaptureBufferSize, 1)

	return &Camera{cap: capture, mat: gocv.NewMat()}, nil
}

// Read grabs the next frame.
func (c *Camera) Read() (vision.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, vision.ErrSourceClosed
	}
	if ok := c.cap.Read(&c.mat); !ok || c.mat.Empty() {
		return nil, errors.New("camera: failed to read frame")
	}
	return MatFrame{Mat: &c.mat}, nil
}

// Close releases the device.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.mat.Close()
	return c.cap.Close()
}
