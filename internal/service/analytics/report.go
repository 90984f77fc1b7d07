package analytics

import (
	"fmt"

	"parkingwatch/internal/model"
)

// CountVehicles returns the number of detected boxes. Every box counts as one vehicle.
func CountVehicles(detections model.Detections) int {
	if detections == nil {
		return 0
	}
	return detections.BoxCount()
}

// AvailableSpaces subtracts the vehicle count from the configured total.
// The result is not clamped and goes negative when vehicles exceed spaces.
func AvailableSpaces(totalSpaces, vehicles int) int {
	return totalSpaces - vehicles
}

// IntervalReport describes one capture tick.
type IntervalReport struct {
	Interval    int  `json:"interval"`
	Frame       int  `json:"frame"`
	PredictedAt int  `json:"predicted_at"`
	Vehicles    int  `json:"vehicles"`
	Available   int  `json:"available"`
	TotalSpaces int  `json:"total_spaces"`
	Stale       bool `json:"stale"`
}

// NewIntervalReport builds the report for capture tick n on frame, using
// detections produced on frame predictedAt.
func NewIntervalReport(n, frame, predictedAt, totalSpaces int, detections model.Detections) IntervalReport {
	vehicles := CountVehicles(detections)
	return IntervalReport{
		Interval:    n,
		Frame:       frame,
		PredictedAt: predictedAt,
		Vehicles:    vehicles,
		Available:   AvailableSpaces(totalSpaces, vehicles),
		TotalSpaces: totalSpaces,
		Stale:       predictedAt != frame,
	}
}

// Line is the text shown to viewers for this interval.
func (r IntervalReport) Line() string {
	line := fmt.Sprintf("Interval %d: Total vehicles detected: %d, Available parking spaces: %d",
		r.Interval, r.Vehicles, r.Available)
	if r.Stale {
		line += " (stale)"
	}
	return line
}

// OverlayText is the single line drawn on the frame.
func (r IntervalReport) OverlayText() string {
	return fmt.Sprintf("Total vehicles: %d, Available parking spaces: %d", r.Vehicles, r.Available)
}

// Filename is the name of the saved JPEG for this interval.
func (r IntervalReport) Filename() string {
	return fmt.Sprintf("interval_%d.jpg", r.Interval)
}
