package postprocess

import (
	"fmt"
	"image"
	"math"
	"sort"

	"parkingwatch/internal/model"
)

// ClassFilter keeps boxes whose label is in the set. An empty filter keeps everything.
type ClassFilter map[string]bool

// NewClassFilter builds a filter from lower case labels.
func NewClassFilter(labels []string) ClassFilter {
	filter := make(ClassFilter, len(labels))
	for _, label := range labels {
		filter[label] = true
	}
	return filter
}

// Allows reports whether a label passes the filter.
func (f ClassFilter) Allows(label string) bool {
	return len(f) == 0 || f[label]
}

// DecodeYOLO reads a YOLOv8 style output tensor laid out as
// [1, 4+classes, anchors]: rows 0..3 hold centre x, centre y, width and
// height in network input pixels, the remaining rows hold class scores.
// Boxes are scaled back to the frame size with scaleX and scaleY.
func DecodeYOLO(data []float32, attributes, anchors int, scaleX, scaleY float64, threshold float32, filter ClassFilter) ([]model.Box, error) {
	if attributes <= 4 || anchors <= 0 {
		return nil, fmt.Errorf("unexpected yolo output shape [%d, %d]", attributes, anchors)
	}
	if len(data) < attributes*anchors {
		return nil, fmt.Errorf("yolo output holds %d values, expected %d", len(data), attributes*anchors)
	}

	var boxes []model.Box
	for i := 0; i < anchors; i++ {
		bestClass := -1
		var bestScore float32
		for c := 4; c < attributes; c++ {
			if score := data[c*anchors+i]; score > bestScore {
				bestScore = score
				bestClass = c - 4
			}
		}
		if bestClass < 0 || bestScore < threshold {
			continue
		}

		label := YOLOLabel(bestClass)
		if !filter.Allows(label) {
			continue
		}

		cx := float64(data[i])
		cy := float64(data[anchors+i])
		w := float64(data[2*anchors+i])
		h := float64(data[3*anchors+i])

		boxes = append(boxes, model.Box{
			Label:      label,
			ClassID:    bestClass,
			Confidence: float64(bestScore),
			X:          int(math.Round((cx - w/2) * scaleX)),
			Y:          int(math.Round((cy - h/2) * scaleY)),
			Width:      int(math.Round(w * scaleX)),
			Height:     int(math.Round(h * scaleY)),
		})
	}

	return boxes, nil
}

// DecodeSSD reads a TensorFlow SSD output of rows
// [image, class, confidence, left, top, right, bottom] with coordinates
// normalized to the frame size.
func DecodeSSD(data []float32, frameWidth, frameHeight int, threshold float32, filter ClassFilter) ([]model.Box, error) {
	if len(data)%7 != 0 {
		return nil, fmt.Errorf("ssd output holds %d values, not a multiple of 7", len(data))
	}

	var boxes []model.Box
	for row := 0; row < len(data)/7; row++ {
		values := data[row*7 : row*7+7]
		confidence := values[2]
		if confidence <= threshold {
			continue
		}

		classID := int(values[1])
		label := SSDLabel(classID)
		if !filter.Allows(label) {
			continue
		}

		x := int(values[3] * float32(frameWidth))
		y := int(values[4] * float32(frameHeight))
		boxes = append(boxes, model.Box{
			Label:      label,
			ClassID:    classID,
			Confidence: float64(confidence),
			X:          x,
			Y:          y,
			Width:      int(values[5]*float32(frameWidth)) - x,
			Height:     int(values[6]*float32(frameHeight)) - y,
		})
	}

	return boxes, nil
}

// NonMaxSuppression drops boxes that overlap a higher scoring box of the
// same class by more than iouThreshold.
func NonMaxSuppression(boxes []model.Box, iouThreshold float64) []model.Box {
	sorted := make([]model.Box, len(boxes))
	copy(sorted, boxes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	kept := make([]model.Box, 0, len(sorted))
	for _, candidate := range sorted {
		suppressed := false
		for _, k := range kept {
			if k.ClassID == candidate.ClassID && IoU(k, candidate) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, candidate)
		}
	}
	return kept
}

// IoU returns the intersection over union of two boxes.
func IoU(a, b model.Box) float64 {
	ra := image.Rect(a.X, a.Y, a.X+a.Width, a.Y+a.Height)
	rb := image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)

	inter := ra.Intersect(rb)
	if inter.Empty() {
		return 0
	}

	interArea := float64(inter.Dx() * inter.Dy())
	union := float64(ra.Dx()*ra.Dy()+rb.Dx()*rb.Dy()) - interArea
	if union <= 0 {
		return 0
	}
	return interArea / union
}
