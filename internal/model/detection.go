package model

// Box is a single detected object in image coordinates.
type Box struct {
	Label      string  `json:"label"`
	ClassID    int     `json:"class_id"`
	Confidence float64 `json:"confidence"`
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
}

// Detections is anything that can report how many boxes it holds. A single
// Result and a Prediction holding several results both qualify.
type Detections interface {
	BoxCount() int
}

// Result is the model output for one image.
type Result struct {
	Boxes []Box `json:"boxes"`
}

// BoxCount returns the number of boxes in the result.
func (r Result) BoxCount() int {
	return len(r.Boxes)
}

// Prediction is a sequence of results produced by one inference call.
type Prediction []Result

// BoxCount sums the boxes over every result in the prediction.
func (p Prediction) BoxCount() int {
	total := 0
	for _, result := range p {
		total += result.BoxCount()
	}
	return total
}
