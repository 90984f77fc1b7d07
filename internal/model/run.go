package model

import "time"

// Run statuses.
const (
	RunStatusRunning  = "running"
	RunStatusFinished = "finished"
	RunStatusFailed   = "failed"
)

// Run represents one processing of an uploaded video.
type Run struct {
	ID                 string     `json:"id"`
	SourceName         string     `json:"source_name"`
	TotalSpaces        int        `json:"total_spaces"`
	FPS                float64    `json:"fps"`
	PredictionInterval int        `json:"prediction_interval"`
	CaptureInterval    int        `json:"capture_interval"`
	Status             string     `json:"status"`
	Error              string     `json:"error,omitempty"`
	FramesRead         int        `json:"frames_read"`
	Intervals          int        `json:"intervals"`
	OutputDir          string     `json:"output_dir"`
	StartedAt          time.Time  `json:"started_at"`
	FinishedAt         *time.Time `json:"finished_at,omitempty"`
}

// Interval is the stored report of one capture tick.
type Interval struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	Ordinal   int       `json:"interval"`
	Frame     int       `json:"frame"`
	Vehicles  int       `json:"vehicles"`
	Available int       `json:"available"`
	Stale     bool      `json:"stale"`
	Filename  string    `json:"filename"`
	FilePath  string    `json:"filepath"`
	FileSize  int64     `json:"filesize"`
	CreatedAt time.Time `json:"created_at"`
}

// RunFilter contains paging options for listing runs.
type RunFilter struct {
	Status string
	Limit  int
	Offset int
}
