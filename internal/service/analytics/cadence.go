package analytics

import "math"

// Cadence holds the frame multiples at which inference and capture happen.
type Cadence struct {
	Prediction int
	Capture    int
}

// NewCadence converts second based intervals into frame counts for a video
// running at fps frames per second. Counts are rounded to the nearest frame
// and never drop below one.
func NewCadence(fps, predictionSeconds, captureSeconds float64) Cadence {
	return Cadence{
		Prediction: framesFor(fps, predictionSeconds),
		Capture:    framesFor(fps, captureSeconds),
	}
}

func framesFor(fps, seconds float64) int {
	frames := int(math.Round(fps * seconds))
	if frames < 1 {
		return 1
	}
	return frames
}

// ShouldPredict reports whether inference runs on the given 1-based frame count.
func (c Cadence) ShouldPredict(frame int) bool {
	return c.Prediction > 0 && frame%c.Prediction == 0
}

// ShouldCapture reports whether the given 1-based frame count is a capture tick.
func (c Cadence) ShouldCapture(frame int) bool {
	return c.Capture > 0 && frame%c.Capture == 0
}
