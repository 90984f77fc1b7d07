package dto

// Viewer event types pushed over /api/view.
const (
	EventStarted  = "started"
	EventInterval = "interval"
	EventFinished = "finished"
	EventError    = "error"
)

// ViewerEvent is one message streamed to the browser. Interval events carry
// the report line together with the annotated frame.
type ViewerEvent struct {
	Type        string `json:"type"`
	RunID       string `json:"runId"`
	Source      string `json:"source,omitempty"`
	TotalSpaces int    `json:"totalSpaces,omitempty"`
	Interval    int    `json:"interval,omitempty"`
	Frame       int    `json:"frame,omitempty"`
	Vehicles    int    `json:"vehicles"`
	Available   int    `json:"available"`
	Stale       bool   `json:"stale"`
	Line        string `json:"line,omitempty"`
	Image       string `json:"image,omitempty"` // base64 JPEG
	Intervals   int    `json:"intervals,omitempty"`
	Error       string `json:"error,omitempty"`
}
