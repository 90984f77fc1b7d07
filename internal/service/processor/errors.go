package processor

import (
	"errors"
	"fmt"
)

var (
	// ErrNoVideoProvided is returned when processing is requested without an upload.
	ErrNoVideoProvided = errors.New("no video provided")

	// ErrNoDetectionAvailable marks a capture tick that happened before any inference.
	ErrNoDetectionAvailable = errors.New("no detection available")
)

// VideoOpenError reports that a file could not be opened as a video.
type VideoOpenError struct {
	Path string
	Err  error
}

func (e *VideoOpenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unable to open video file %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("unable to open video file %s", e.Path)
}

func (e *VideoOpenError) Unwrap() error {
	return e.Err
}

// ErrRunInProgress is returned when a run is requested while another one is active.
var ErrRunInProgress = errors.New("another video is already being processed")
