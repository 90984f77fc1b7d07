package video

import (
	"fmt"

	"parkingwatch/internal/service/processor"

	"go.uber.org/multierr"
	"gocv.io/x/gocv"
)

// Capture reads frames from a video file. It implements processor.Source and
// reuses a single Mat for every frame.
type Capture struct {
	capture *gocv.VideoCapture
	frame   gocv.Mat
	fps     float64
}

// Open opens a video file for sequential frame reading.
func Open(path string) (*Capture, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, &processor.VideoOpenError{Path: path, Err: err}
	}

	if !vc.IsOpened() {
		vc.Close()
		return nil, &processor.VideoOpenError{Path: path}
	}

	return &Capture{
		capture: vc,
		frame:   gocv.NewMat(),
		fps:     vc.Get(gocv.VideoCaptureFPS),
	}, nil
}

// FPS returns the frame rate reported by the container, or 0 when unknown.
func (c *Capture) FPS() float64 {
	return c.fps
}

// FrameCount returns the number of frames the container claims to hold.
func (c *Capture) FrameCount() int {
	return int(c.capture.Get(gocv.VideoCaptureFrameCount))
}

// Next decodes the following frame. It returns false at end of stream.
func (c *Capture) Next() (processor.Frame, bool) {
	if ok := c.capture.Read(&c.frame); !ok || c.frame.Empty() {
		return nil, false
	}
	return &c.frame, true
}

// Close releases the decoder and the frame buffer.
func (c *Capture) Close() error {
	return multierr.Combine(c.frame.Close(), c.capture.Close())
}

// MatFromFrame unwraps a frame produced by Capture.
func MatFromFrame(frame processor.Frame) (*gocv.Mat, error) {
	mat, ok := frame.(*gocv.Mat)
	if !ok {
		return nil, fmt.Errorf("unsupported frame type %T", frame)
	}
	if mat.Empty() {
		return nil, fmt.Errorf("frame is empty")
	}
	return mat, nil
}
