package video

import (
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"parkingwatch/internal/service/processor"

	"gocv.io/x/gocv"
)

func whiteFrame(rows, cols int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), rows, cols, gocv.MatTypeCV8UC3)
}

func TestOverlayParameters(t *testing.T) {
	if overlayOrigin != image.Pt(10, 50) {
		t.Errorf("Expected origin (10,50), got %v", overlayOrigin)
	}
	if overlayColor != (color.RGBA{R: 16, G: 14, B: 16, A: 0}) {
		t.Errorf("Unexpected overlay color %v", overlayColor)
	}
	if overlayScale != 1.0 || overlayThickness != 2 {
		t.Errorf("Expected scale 1 and thickness 2, got %v and %d", overlayScale, overlayThickness)
	}
}

func TestAnnotate_DrawsTextInPlace(t *testing.T) {
	frame := whiteFrame(120, 640)
	defer frame.Close()

	data, err := NewAnnotator().Annotate(&frame, "Total vehicles: 30, Available parking spaces: 70")
	if err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}

	// Text is drawn with the exact overlay color above the baseline at y=50.
	textPixels := 0
	for row := 20; row <= 50; row++ {
		for col := 10; col < 400; col++ {
			px := frame.GetVecbAt(row, col)
			if px[0] == 16 && px[1] == 14 && px[2] == 16 {
				textPixels++
			}
		}
	}
	if textPixels == 0 {
		t.Error("Expected overlay text pixels near the top-left corner")
	}

	if px := frame.GetVecbAt(110, 630); px[0] != 255 || px[1] != 255 || px[2] != 255 {
		t.Errorf("Pixel far from the text changed: %v", px)
	}

	decoded, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		t.Fatalf("Result is not a decodable JPEG: %v", err)
	}
	defer decoded.Close()
	if decoded.Rows() != 120 || decoded.Cols() != 640 {
		t.Errorf("Expected 640x120 JPEG, got %dx%d", decoded.Cols(), decoded.Rows())
	}
}

func TestAnnotate_RejectsForeignFrames(t *testing.T) {
	type otherFrame struct{ processor.Frame }

	if _, err := NewAnnotator().Annotate(otherFrame{}, "x"); err == nil {
		t.Error("Expected error for a frame not backed by a Mat")
	}
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.mp4"))

	var openErr *processor.VideoOpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("Expected VideoOpenError, got %v", err)
	}
}

func TestCapture_EndOfStream(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.avi")

	writer, err := gocv.VideoWriterFile(path, "MJPG", 10, 64, 48, true)
	if err != nil {
		t.Skipf("No video writer available: %v", err)
	}
	if !writer.IsOpened() {
		writer.Close()
		t.Skip("No MJPG writer available")
	}

	frame := whiteFrame(48, 64)
	defer frame.Close()
	for i := 0; i < 3; i++ {
		if err := writer.Write(frame); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	writer.Close()

	capture, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer capture.Close()

	if capture.FPS() != 10 {
		t.Errorf("Expected 10 fps, got %v", capture.FPS())
	}

	read := 0
	for {
		f, ok := capture.Next()
		if !ok {
			break
		}
		if f.Empty() {
			t.Fatal("Next returned an empty frame as valid")
		}
		read++
		if read > 10 {
			t.Fatal("Stream did not end")
		}
	}
	if read != 3 {
		t.Errorf("Expected 3 frames, got %d", read)
	}

	if _, ok := capture.Next(); ok {
		t.Error("Next after end of stream should keep returning false")
	}
}
