package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"parkingwatch/internal/config"
	"parkingwatch/internal/logger"
	"parkingwatch/internal/model"
	"parkingwatch/internal/repository"
	"parkingwatch/internal/service/ingest"
	"parkingwatch/internal/service/processor"
	"parkingwatch/internal/service/storage"

	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// OpenFunc opens a video file as a frame source.
type OpenFunc func(path string) (processor.Source, error)

// RunObserver is told about run lifecycle and receives the interval stream.
type RunObserver interface {
	Started(run *model.Run)
	Finished(runID string, intervals int)
	Failed(runID string, err error)
	Sink(runID string) processor.Sink
}

// Manager owns the single processing slot. Uploads run in the background,
// dropped files run synchronously; either way only one video is processed
// at a time.
type Manager struct {
	processor    *processor.Processor
	open         OpenFunc
	runRepo      repository.RunRepository
	intervalRepo repository.IntervalRepository
	observer     RunObserver
	config       *config.Config
	logger       *logger.Logger

	mu      sync.Mutex
	current string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewManager(proc *processor.Processor, open OpenFunc, runRepo repository.RunRepository,
	intervalRepo repository.IntervalRepository, observer RunObserver, config *config.Config, logger *logger.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		processor:    proc,
		open:         open,
		runRepo:      runRepo,
		intervalRepo: intervalRepo,
		observer:     observer,
		config:       config,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// CurrentRun returns the id of the run in progress, or "".
func (m *Manager) CurrentRun() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Manager) acquire(runID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != "" {
		return false
	}
	m.current = runID
	return true
}

func (m *Manager) release() {
	m.mu.Lock()
	m.current = ""
	m.mu.Unlock()
}

// StartUpload stores the upload in a temporary file, opens it and starts
// processing in the background. The video is opened before returning so
// that unreadable files are reported to the caller.
func (m *Manager) StartUpload(upload io.Reader, name string, totalSpaces int) (*model.Run, error) {
	if upload == nil {
		return nil, processor.ErrNoVideoProvided
	}

	runID := uuid.NewString()
	if !m.acquire(runID) {
		return nil, processor.ErrRunInProgress
	}

	temp, err := ingest.SaveTemp(upload, m.config.TempDirectory)
	if err != nil {
		m.release()
		return nil, err
	}

	source, err := m.open(temp.Path)
	if err != nil {
		m.release()
		return nil, multierr.Append(err, temp.Remove())
	}

	run, err := m.createRun(runID, name, totalSpaces, source)
	if err != nil {
		m.release()
		return nil, multierr.Combine(err, source.Close(), temp.Remove())
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.release()
		defer func() {
			if err := temp.Remove(); err != nil {
				m.logger.Warning("%v", err)
			}
		}()

		m.execute(m.ctx, run, source)
	}()

	return run, nil
}

// ProcessFile processes a video already on disk and blocks until it is done.
// The returned run carries the final status; a failed run is also returned
// as an error.
func (m *Manager) ProcessFile(ctx context.Context, path string, totalSpaces int) (*model.Run, error) {
	runID := uuid.NewString()
	if !m.acquire(runID) {
		return nil, processor.ErrRunInProgress
	}
	defer m.release()

	source, err := m.open(path)
	if err != nil {
		return nil, err
	}

	run, err := m.createRun(runID, filepath.Base(path), totalSpaces, source)
	if err != nil {
		return nil, multierr.Append(err, source.Close())
	}

	// Shutdown of the manager also stops synchronous runs.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(m.ctx, cancel)
	defer stop()

	if err := m.execute(runCtx, run, source); err != nil {
		return run, err
	}
	return run, nil
}

func (m *Manager) createRun(runID, name string, totalSpaces int, source processor.Source) (*model.Run, error) {
	if totalSpaces < 1 {
		return nil, fmt.Errorf("total parking spaces must be at least 1, got %d", totalSpaces)
	}

	opts := processor.OptionsFromConfig(m.config, totalSpaces)
	cadence := opts.Cadence(source.FPS())

	run := &model.Run{
		ID:                 runID,
		SourceName:         name,
		TotalSpaces:        totalSpaces,
		FPS:                opts.EffectiveFPS(source.FPS()),
		PredictionInterval: cadence.Prediction,
		CaptureInterval:    cadence.Capture,
		Status:             model.RunStatusRunning,
		OutputDir:          storage.RunDirectory(m.config.OutputDirectory, runID),
		StartedAt:          time.Now().UTC(),
	}

	if err := m.runRepo.Insert(run); err != nil {
		return nil, err
	}

	m.logger.Info("Run %s started for %s (%d spaces)", run.ID, name, totalSpaces)
	if m.observer != nil {
		m.observer.Started(run)
	}
	return run, nil
}

func (m *Manager) execute(ctx context.Context, run *model.Run, source processor.Source) error {
	store := storage.NewFrameStore(m.config.OutputDirectory, run.ID, m.intervalRepo, m.logger)
	sinks := []processor.Sink{store}
	if m.observer != nil {
		sinks = append(sinks, m.observer.Sink(run.ID))
	}

	summary, runErr := m.processor.Run(ctx, source, sinks, processor.OptionsFromConfig(m.config, run.TotalSpaces))

	finishedAt := time.Now().UTC()
	run.FramesRead = summary.FramesRead
	run.Intervals = summary.Intervals
	run.FinishedAt = &finishedAt
	run.Status = model.RunStatusFinished
	if runErr != nil {
		run.Status = model.RunStatusFailed
		run.Error = runErr.Error()
	}

	if err := m.runRepo.Finish(run.ID, run.Status, run.Error, run.FramesRead, run.Intervals, finishedAt); err != nil {
		m.logger.Error("Failed to store result of run %s: %v", run.ID, err)
	}

	if runErr != nil {
		m.logger.Error("Run %s failed: %v", run.ID, runErr)
		if m.observer != nil {
			m.observer.Failed(run.ID, runErr)
		}
		return runErr
	}

	m.logger.Info("Run %s finished: %d intervals from %d frames", run.ID, summary.Intervals, summary.FramesRead)
	if m.observer != nil {
		m.observer.Finished(run.ID, summary.Intervals)
	}
	return nil
}

// Stop cancels the run in progress and waits for background work to end.
func (m *Manager) Stop() {
	m.cancel()
	m.wg.Wait()
	m.logger.Info("Processing manager stopped")
}
