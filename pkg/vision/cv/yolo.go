package cv

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-pathfinder/pkg/vision"
)

// DefaultNMSThreshold is the IoU above which overlapping boxes are merged.
const DefaultNMSThreshold = 0.45

// YOLO runs a YOLOv8 ONNX model through the OpenCV DNN module.
type YOLO struct {
	mu     sync.Mutex
	net    gocv.Net
	nms    float32
	logger *slog.Logger
}

// NewYOLO loads the model at path.
func NewYOLO(path string, logger *slog.Logger) (*YOLO, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("model file not found: %s", path)
	}
	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load YOLO model from %s", path)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	if logger == nil {
		logger = slog.Default()
	}
	return &YOLO{net: net, nms: DefaultNMSThreshold, logger: logger.With("component", "cv.yolo", "model", path)}, nil
}

// Detect implements vision.Detector. Any failure, including a panic inside
// OpenCV, is logged and yields no detections.
func (y *YOLO) Detect(frame vision.Frame, confidence float64, imageSize int) (dets []vision.Detection) {
	defer func() {
		if r := recover(); r != nil {
			y.logger.Error("detector panic recovered", "panic", r)
			dets = nil
		}
	}()

	mf, ok := frame.(MatFrame)
	if !ok || mf.Mat == nil || mf.Mat.Empty() {
		y.logger.Warn("detector got a frame it cannot read", "type", fmt.Sprintf("%T", frame))
		return nil
	}
	if imageSize <= 0 {
		imageSize = 640
	}

	y.mu.Lock()
	defer y.mu.Unlock()

	blob := gocv.BlobFromImage(*mf.Mat, 1.0/255.0, image.Pt(imageSize, imageSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()
	y.net.SetInput(blob, "")
	output := y.net.Forward("")
	defer output.Close()

	// [1, 4+classes, anchors]
	sizes := output.Size()
	if len(sizes) != 3 {
		y.logger.Warn("unexpected YOLO output shape", "shape", sizes)
		return nil
	}
	data, err := output.DataPtrFloat32()
	if err != nil {
		y.logger.Warn("read YOLO output", "error", err)
		return nil
	}

	scaleX := float32(mf.Width()) / float32(imageSize)
	scaleY := float32(mf.Height()) / float32(imageSize)
	cands := decodeYOLOv8(data, sizes[1], sizes[2], float32(confidence), scaleX, scaleY)
	if len(cands) == 0 {
		return nil
	}

	boxes := make([]image.Rectangle, len(cands))
	scores := make([]float32, len(cands))
	for i, c := range cands {
		boxes[i] = c.box
		scores[i] = c.score
	}
	for _, idx := range gocv.NMSBoxes(boxes, scores, float32(confidence), y.nms) {
		c := cands[idx]
		dets = append(dets, vision.Detection{
			Label:      vision.ClassName(c.class),
			ClassID:    c.class,
			Confidence: float64(c.score),
			Box:        c.box,
		})
	}
	return dets
}

// Close releases the network.
func (y *YOLO) Close() error {
	y.mu.Lock()
	defer y.mu.Unlock()
	return y.net.Close()
}

type candidate struct {
	box   image.Rectangle
	score float32
	class int
}

// decodeYOLOv8 reads a channel-major YOLOv8 tensor of channels x anchors
// (cx, cy, w, h, class scores...) and returns boxes scoring at least
// minScore, scaled back to frame pixels.
func decodeYOLOv8(data []float32, channels, anchors int, minScore, scaleX, scaleY float32) []candidate {
	if channels < 5 || len(data) < channels*anchors {
		return nil
	}
	var out []candidate
	for i := 0; i < anchors; i++ {
		best, class := float32(0), 0
		for c := 4; c < channels; c++ {
			if s := data[c*anchors+i]; s > best {
				best, class = s, c-4
			}
		}
		if best < minScore {
			continue
		}

		cx := data[0*anchors+i]
		cy := data[1*anchors+i]
		w := data[2*anchors+i]
		h := data[3*anchors+i]
		out = append(out, candidate{
			box: image.Rect(
				int((cx-w/2)*scaleX), int((cy-h/2)*scaleY),
				int((cx+w/2)*scaleX), int((cy+h/2)*scaleY),
			),
			score: best,
			class: class,
		})
	}
	return out
}
