package cv

import (
	"image"
	"testing"

	"github.com/teslashibe/go-pathfinder/internal/log"
	"github.com/teslashibe/go-pathfinder/pkg/vision"
)

// tensor builds a channel-major output for the given anchors.
func tensor(channels int, anchors [][]float32) []float32 {
	n := len(anchors)
	data := make([]float32, channels*n)
	for i, a := range anchors {
		for c, v := range a {
			data[c*n+i] = v
		}
	}
	return data
}

func TestDecodeYOLOv8(t *testing.T) {
	// 4 box values + 3 classes
	data := tensor(7, [][]float32{
		{320, 320, 100, 200, 0.1, 0.9, 0.2}, // class 1 above threshold
		{100, 100, 50, 50, 0.2, 0.1, 0.3},   // below threshold
		{500, 200, 40, 40, 0.6, 0.0, 0.0},   // class 0
	})

	got := decodeYOLOv8(data, 7, 3, 0.5, 1, 0.75)
	if len(got) != 2 {
		t.Fatalf("decodeYOLOv8() returned %d candidates, want 2", len(got))
	}

	if got[0].class != 1 || got[0].score != 0.9 {
		t.Errorf("first = class %d score %v, want class 1 score 0.9", got[0].class, got[0].score)
	}
	if want := image.Rect(270, 165, 370, 315); got[0].box != want {
		t.Errorf("first box = %v, want %v", got[0].box, want)
	}
	if got[1].class != 0 {
		t.Errorf("second class = %d, want 0", got[1].class)
	}
}

func TestDecodeYOLOv8_ShortInput(t *testing.T) {
	if got := decodeYOLOv8(make([]float32, 10), 84, 8400, 0.5, 1, 1); got != nil {
		t.Errorf("decodeYOLOv8() = %v, want nil for a truncated tensor", got)
	}
	if got := decodeYOLOv8(nil, 4, 0, 0.5, 1, 1); got != nil {
		t.Errorf("decodeYOLOv8() = %v, want nil without class channels", got)
	}
}

func TestYOLO_RejectsForeignFrames(t *testing.T) {
	y := &YOLO{nms: DefaultNMSThreshold, logger: log.Discard()}
	if dets := y.Detect(vision.Size{W: 640, H: 480}, 0.35, 416); dets != nil {
		t.Errorf("Detect() = %v, want nil for a non-Mat frame", dets)
	}
}

func TestNewYOLO_MissingModel(t *testing.T) {
	if _, err := NewYOLO("/nonexistent/yolov8n.onnx", log.Discard()); err == nil {
		t.Error("expected error for missing model")
	}
}
