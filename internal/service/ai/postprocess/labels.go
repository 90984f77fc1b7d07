package postprocess

import "fmt"

// cocoLabels are the 80 class names in the order YOLO models are trained on.
var cocoLabels = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat",
	"dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack",
	"umbrella", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball",
	"kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket",
	"bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple",
	"sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair",
	"couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink",
	"refrigerator", "book", "clock", "vase", "scissors", "teddy bear", "hair drier",
	"toothbrush",
}

// ssdLabels maps the sparse 1-based COCO ids used by TensorFlow SSD graphs.
var ssdLabels = map[int]string{
	1:  "person",
	2:  "bicycle",
	3:  "car",
	4:  "motorcycle",
	5:  "airplane",
	6:  "bus",
	7:  "train",
	8:  "truck",
	9:  "boat",
	16: "bird",
	17: "cat",
	18: "dog",
}

// YOLOLabel returns the class name for a 0-based YOLO class id.
func YOLOLabel(classID int) string {
	if classID >= 0 && classID < len(cocoLabels) {
		return cocoLabels[classID]
	}
	return fmt.Sprintf("unknown_%d", classID)
}

// SSDLabel returns the class name for a 1-based SSD class id.
func SSDLabel(classID int) string {
	if label, exists := ssdLabels[classID]; exists {
		return label
	}
	return fmt.Sprintf("unknown_%d", classID)
}
