package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"parkingwatch/internal/logger"
	"parkingwatch/internal/model"
	"parkingwatch/internal/repository"
	"parkingwatch/internal/service/analytics"
)

// FrameStore writes the annotated frames of one run to
// <outputDir>/<runID>/interval_<n>.jpg and records them in the database.
// It implements processor.Sink; any write failure aborts the run.
type FrameStore struct {
	runID        string
	dir          string
	intervalRepo repository.IntervalRepository
	logger       *logger.Logger

	mu       sync.Mutex
	dirReady bool
	saved    int
}

// NewFrameStore creates a store for runID below outputDir. intervalRepo may
// be nil, in which case only files are written.
func NewFrameStore(outputDir, runID string, intervalRepo repository.IntervalRepository, logger *logger.Logger) *FrameStore {
	return &FrameStore{
		runID:        runID,
		dir:          RunDirectory(outputDir, runID),
		intervalRepo: intervalRepo,
		logger:       logger,
	}
}

// RunDirectory returns the folder holding the frames of a run.
func RunDirectory(outputDir, runID string) string {
	return filepath.Join(outputDir, runID)
}

// Dir returns the folder this store writes to.
func (s *FrameStore) Dir() string {
	return s.dir
}

// Saved returns how many frames have been written.
func (s *FrameStore) Saved() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved
}

// Publish saves the annotated frame of an interval.
func (s *FrameStore) Publish(report analytics.IntervalReport, image []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirReady {
		if err := os.MkdirAll(s.dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		s.dirReady = true
	}

	filename := report.Filename()
	fullpath := filepath.Join(s.dir, filename)

	if err := os.WriteFile(fullpath, image, 0644); err != nil {
		return fmt.Errorf("failed to save %s: %w", filename, err)
	}

	if s.intervalRepo != nil {
		_, err := s.intervalRepo.Insert(&model.Interval{
			RunID:     s.runID,
			Ordinal:   report.Interval,
			Frame:     report.Frame,
			Vehicles:  report.Vehicles,
			Available: report.Available,
			Stale:     report.Stale,
			Filename:  filename,
			FilePath:  fullpath,
			FileSize:  int64(len(image)),
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("failed to record %s: %w", filename, err)
		}
	}

	s.saved++
	s.logger.Info("Saved %s (%d bytes)", fullpath, len(image))
	return nil
}

// RemoveRun deletes the output folder of a run. A missing folder is not an error.
func RemoveRun(outputDir, runID string) error {
	if runID == "" {
		return fmt.Errorf("run id required")
	}
	if err := os.RemoveAll(RunDirectory(outputDir, runID)); err != nil {
		return fmt.Errorf("failed to remove run output: %w", err)
	}
	return nil
}

// DirectorySize returns the total size of regular files below dir.
func DirectorySize(dir string) (int64, error) {
	var size int64
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			size += info.Size()
		}
		return nil
	})
	return size, err
}
