package ai

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"parkingwatch/internal/config"
	"parkingwatch/internal/logger"
	"parkingwatch/internal/model"
	"parkingwatch/internal/service/ai/postprocess"
	"parkingwatch/internal/service/processor"
	"parkingwatch/internal/service/video"
	"sync"

	"gocv.io/x/gocv"
)

const (
	FormatYOLO = "yolo"
	FormatSSD  = "ssd"

	ssdInputSize = 300
)

// DetectorService runs a DNN object detection network on video frames.
// gocv.Net is not safe for concurrent use, calls are serialized.
type DetectorService struct {
	net          gocv.Net
	modelPath    string
	configPath   string
	format       string
	inputSize    int
	threshold    float32
	nmsThreshold float64
	filter       postprocess.ClassFilter
	drawBoxes    bool
	mu           sync.Mutex
	logger       *logger.Logger
}

// NewDetectorService loads the network described by the configuration.
// A model that cannot be loaded is an error: no run can proceed without it.
func NewDetectorService(config *config.Config, logger *logger.Logger) (*DetectorService, error) {
	service := &DetectorService{
		modelPath:    config.ModelPath,
		configPath:   config.ModelConfigPath,
		format:       config.ModelFormat,
		inputSize:    config.ModelInputSize,
		threshold:    float32(config.ConfidenceThreshold),
		nmsThreshold: config.NMSThreshold,
		filter:       postprocess.NewClassFilter(config.VehicleClasses),
		drawBoxes:    config.DrawBoxes,
		logger:       logger,
	}

	if service.format == FormatSSD {
		service.inputSize = ssdInputSize
	}
	if service.inputSize <= 0 {
		service.inputSize = 640
	}

	if err := service.initializeNet(); err != nil {
		return nil, err
	}
	return service, nil
}

// initializeNet loads the DNN network and sets backend/target preferences.
func (s *DetectorService) initializeNet() error {
	if _, err := os.Stat(s.modelPath); err != nil {
		return fmt.Errorf("model file not found: %s: %w", s.modelPath, err)
	}

	if s.configPath != "" {
		if _, err := os.Stat(s.configPath); err != nil {
			return fmt.Errorf("model config file not found: %s: %w", s.configPath, err)
		}
	}

	net := gocv.ReadNet(s.modelPath, s.configPath)
	if net.Empty() {
		return fmt.Errorf("failed to load network from %s", s.modelPath)
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return fmt.Errorf("failed to set preferable backend or target")
	}

	s.net = net
	s.logger.Info("Detection network initialized from %s (%s, input %dpx)", s.modelPath, s.format, s.inputSize)
	return nil
}

// Detect implements processor.Detector. The returned prediction holds one
// result per frame.
func (s *DetectorService) Detect(frame processor.Frame) (model.Detections, error) {
	mat, err := video.MatFromFrame(frame)
	if err != nil {
		return nil, err
	}

	boxes, err := s.DetectObjects(*mat)
	if err != nil {
		return nil, err
	}

	if s.drawBoxes && len(boxes) > 0 {
		if err := DrawRectangles(mat, boxes); err != nil {
			return nil, err
		}
	}

	return model.Prediction{{Boxes: boxes}}, nil
}

// DetectObjects runs one forward pass on an image.
func (s *DetectorService) DetectObjects(mat gocv.Mat) ([]model.Box, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.net.Empty() {
		return nil, fmt.Errorf("detection network not initialized")
	}
	if mat.Empty() {
		return nil, fmt.Errorf("image is empty")
	}

	var blob gocv.Mat
	if s.format == FormatSSD {
		blob = gocv.BlobFromImage(mat, 1.0/127.5, image.Pt(ssdInputSize, ssdInputSize), gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	} else {
		blob = gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(s.inputSize, s.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	}
	defer blob.Close()

	s.net.SetInput(blob, "")

	output := s.net.Forward("")
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read network output: %w", err)
	}

	var boxes []model.Box
	if s.format == FormatSSD {
		boxes, err = postprocess.DecodeSSD(data, mat.Cols(), mat.Rows(), s.threshold, s.filter)
	} else {
		sizes := output.Size()
		if len(sizes) != 3 {
			return nil, fmt.Errorf("unexpected yolo output dimensions %v", sizes)
		}
		scaleX := float64(mat.Cols()) / float64(s.inputSize)
		scaleY := float64(mat.Rows()) / float64(s.inputSize)
		boxes, err = postprocess.DecodeYOLO(data, sizes[1], sizes[2], scaleX, scaleY, s.threshold, s.filter)
		if err == nil {
			boxes = postprocess.NonMaxSuppression(boxes, s.nmsThreshold)
		}
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("Detected %d objects", len(boxes))
	return boxes, nil
}

// DrawRectangles outlines detections on the image with their labels.
func DrawRectangles(mat *gocv.Mat, boxes []model.Box) error {
	red := color.RGBA{R: 255, G: 0, B: 0, A: 0}

	for _, box := range boxes {
		rect := image.Rect(box.X, box.Y, box.X+box.Width, box.Y+box.Height)
		if err := gocv.Rectangle(mat, rect, red, 2); err != nil {
			return fmt.Errorf("failed to draw rectangle: %w", err)
		}

		label := fmt.Sprintf("%s (%.2f)", box.Label, box.Confidence)
		if err := gocv.PutText(mat, label, image.Pt(box.X, box.Y-5), gocv.FontHersheySimplex, 0.5, red, 1); err != nil {
			return fmt.Errorf("failed to draw text: %w", err)
		}
	}
	return nil
}

// Close releases the network.
func (s *DetectorService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.net.Close()
}
