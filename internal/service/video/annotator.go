package video

import (
	"fmt"
	"image"
	"image/color"

	"parkingwatch/internal/service/processor"

	"gocv.io/x/gocv"
)

var (
	overlayOrigin = image.Pt(10, 50)
	overlayColor  = color.RGBA{R: 16, G: 14, B: 16, A: 0}
)

const (
	overlayScale     = 1.0
	overlayThickness = 2
)

// Annotator draws the interval summary onto frames and encodes them as JPEG.
type Annotator struct{}

func NewAnnotator() *Annotator {
	return &Annotator{}
}

// Annotate draws text near the top-left corner of the frame, modifying it in
// place, and returns the JPEG encoding of the result.
func (a *Annotator) Annotate(frame processor.Frame, text string) ([]byte, error) {
	mat, err := MatFromFrame(frame)
	if err != nil {
		return nil, err
	}

	if err := gocv.PutText(mat, text, overlayOrigin, gocv.FontHersheySimplex, overlayScale, overlayColor, overlayThickness); err != nil {
		return nil, fmt.Errorf("failed to draw text: %w", err)
	}

	return EncodeJPEG(*mat)
}

// EncodeJPEG encodes a Mat as JPEG into a Go owned byte slice.
func EncodeJPEG(mat gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())
	return data, nil
}
