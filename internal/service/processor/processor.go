package processor

import (
	"context"
	"fmt"

	"parkingwatch/internal/config"
	"parkingwatch/internal/logger"
	"parkingwatch/internal/model"
	"parkingwatch/internal/service/analytics"

	"go.uber.org/multierr"
)

// Frame is a decoded picture owned by the Source that produced it. It stays
// valid until the next call to Source.Next.
type Frame interface {
	Empty() bool
}

// Source yields the frames of a video in order.
type Source interface {
	FPS() float64
	Next() (Frame, bool)
	Close() error
}

// Detector runs the object detection model on a frame.
type Detector interface {
	Detect(frame Frame) (model.Detections, error)
}

// Annotator draws text onto a frame in place and returns it encoded as JPEG.
type Annotator interface {
	Annotate(frame Frame, text string) ([]byte, error)
}

// Sink receives every captured interval together with its annotated JPEG.
// An error from a sink aborts the run.
type Sink interface {
	Publish(report analytics.IntervalReport, image []byte) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(report analytics.IntervalReport, image []byte) error

func (f SinkFunc) Publish(report analytics.IntervalReport, image []byte) error {
	return f(report, image)
}

type Options struct {
	TotalSpaces             int
	PredictionSeconds       float64
	CaptureSeconds          float64
	FallbackFPS             float64
	MissingPredictionPolicy string
}

// OptionsFromConfig fills Options from the service configuration.
func OptionsFromConfig(cfg *config.Config, totalSpaces int) Options {
	return Options{
		TotalSpaces:             totalSpaces,
		PredictionSeconds:       cfg.PredictionIntervalSeconds,
		CaptureSeconds:          cfg.CaptureIntervalSeconds,
		FallbackFPS:             cfg.FallbackFPS,
		MissingPredictionPolicy: cfg.MissingPredictionPolicy,
	}
}

// EffectiveFPS returns the frame rate used for the cadence.
func (o Options) EffectiveFPS(sourceFPS float64) float64 {
	if sourceFPS > 0 {
		return sourceFPS
	}
	return o.FallbackFPS
}

// Cadence computes prediction and capture intervals for a source frame rate.
func (o Options) Cadence(sourceFPS float64) analytics.Cadence {
	return analytics.NewCadence(o.EffectiveFPS(sourceFPS), o.PredictionSeconds, o.CaptureSeconds)
}

// Summary describes a finished (or aborted) run.
type Summary struct {
	FPS             float64
	Cadence         analytics.Cadence
	FramesRead      int
	Intervals       int
	SkippedCaptures int
}

// Processor runs the frame loop: periodic inference, vehicle counting,
// overlay and publishing of captured intervals.
type Processor struct {
	detector  Detector
	annotator Annotator
	logger    *logger.Logger
}

func New(detector Detector, annotator Annotator, logger *logger.Logger) *Processor {
	return &Processor{
		detector:  detector,
		annotator: annotator,
		logger:    logger,
	}
}

// Run consumes source until the end of the stream and closes it. Frames are
// counted from 1. The loop stops early when ctx is cancelled or when
// inference, annotation or a sink fails.
func (p *Processor) Run(ctx context.Context, source Source, sinks []Sink, opts Options) (summary Summary, err error) {
	defer func() {
		err = multierr.Append(err, source.Close())
	}()

	if opts.TotalSpaces < 1 {
		return summary, fmt.Errorf("total parking spaces must be at least 1, got %d", opts.TotalSpaces)
	}

	summary.FPS = opts.EffectiveFPS(source.FPS())
	summary.Cadence = opts.Cadence(source.FPS())

	p.logger.Info("Processing video at %.2f fps: predict every %d frames, capture every %d frames",
		summary.FPS, summary.Cadence.Prediction, summary.Cadence.Capture)

	var (
		current     model.Detections
		predictedAt int
	)

	for {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("processing cancelled after %d frames: %w", summary.FramesRead, err)
		}

		frame, ok := source.Next()
		if !ok || frame.Empty() {
			break
		}
		summary.FramesRead++
		count := summary.FramesRead

		if summary.Cadence.ShouldPredict(count) {
			current, err = p.detect(frame, count)
			if err != nil {
				return summary, err
			}
			predictedAt = count
		}

		if !summary.Cadence.ShouldCapture(count) {
			continue
		}

		if current == nil {
			if opts.MissingPredictionPolicy != config.PolicyInfer {
				summary.SkippedCaptures++
				p.logger.Warning("%v at frame %d, skipping capture", ErrNoDetectionAvailable, count)
				continue
			}
			current, err = p.detect(frame, count)
			if err != nil {
				return summary, err
			}
			predictedAt = count
		}

		report := analytics.NewIntervalReport(summary.Intervals+1, count, predictedAt, opts.TotalSpaces, current)

		image, err := p.annotator.Annotate(frame, report.OverlayText())
		if err != nil {
			return summary, fmt.Errorf("failed to annotate frame %d: %w", count, err)
		}
		summary.Intervals++

		p.logger.Info("%s", report.Line())

		for _, sink := range sinks {
			if err := sink.Publish(report, image); err != nil {
				return summary, fmt.Errorf("failed to publish interval %d: %w", report.Interval, err)
			}
		}
	}

	p.logger.Info("Finished video: %d frames read, %d intervals captured", summary.FramesRead, summary.Intervals)
	return summary, nil
}

func (p *Processor) detect(frame Frame, count int) (model.Detections, error) {
	detections, err := p.detector.Detect(frame)
	if err != nil {
		return nil, fmt.Errorf("inference failed on frame %d: %w", count, err)
	}
	if detections == nil {
		// A successful call with no boxes still counts as a retained result.
		detections = model.Prediction{}
	}
	return detections, nil
}
