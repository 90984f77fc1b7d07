package dto

// ProcessResponse is returned when a video has been accepted for processing.
type ProcessResponse struct {
	RunID string `json:"runId"`
}
