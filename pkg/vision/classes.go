package vision

// COCOClasses contains the 80 COCO class names in model output order.
var COCOClasses = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat",
	"dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack",
	"umbrella", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball",
	"kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket",
	"bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple",
	"sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair",
	"couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink", "refrigerator",
	"book", "clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}

// ClassName returns the COCO name for id, or "object" when out of range.
func ClassName(id int) string {
	if id < 0 || id >= len(COCOClasses) {
		return "object"
	}
	return COCOClasses[id]
}

// ObstacleClasses are the labels treated as walking obstacles.
// "door" and "stairs" are not COCO classes but are kept for custom models.
var ObstacleClasses = []string{
	"person", "bicycle", "car", "motorcycle", "bus", "truck",
	"chair", "couch", "bed", "door", "stairs",
}

// FilterObstacles keeps detections whose label is in classes.
// A nil classes slice means ObstacleClasses.
func FilterObstacles(dets []Detection, classes []string) []Detection {
	if classes == nil {
		classes = ObstacleClasses
	}
	allowed := make(map[string]bool, len(classes))
	for _, c := range classes {
		allowed[c] = true
	}

	var filtered []Detection
	for _, d := range dets {
		if allowed[d.Label] {
			filtered = append(filtered, d)
		}
	}
	return filtered
}
