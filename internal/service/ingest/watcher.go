package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"parkingwatch/internal/logger"
	"parkingwatch/internal/service/processor"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettleDelay is how long a dropped file must stay unchanged before it is processed.
const DefaultSettleDelay = 2 * time.Second

// HandleFunc processes one dropped video file.
type HandleFunc func(ctx context.Context, path string) error

// Watcher processes .mp4 files copied into a drop directory. Files are
// handled one at a time once writes to them have stopped.
type Watcher struct {
	dir     string
	handle  HandleFunc
	settle  time.Duration
	logger  *logger.Logger
	watcher *fsnotify.Watcher
	pending map[string]time.Time
}

func NewWatcher(dir string, handle HandleFunc, settle time.Duration, logger *logger.Logger) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create watch directory: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	if settle <= 0 {
		settle = DefaultSettleDelay
	}

	return &Watcher{
		dir:     dir,
		handle:  handle,
		settle:  settle,
		logger:  logger,
		watcher: fw,
		pending: make(map[string]time.Time),
	}, nil
}

// Run blocks until ctx is cancelled or the underlying watcher fails.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	ticker := time.NewTicker(w.settle / 2)
	defer ticker.Stop()

	w.logger.Info("Watching %s for new videos", w.dir)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				if IsVideoFile(event.Name) {
					w.pending[event.Name] = time.Now()
				}
			}
			if event.Op&fsnotify.Remove == fsnotify.Remove || event.Op&fsnotify.Rename == fsnotify.Rename {
				delete(w.pending, event.Name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Watcher error: %v", err)

		case <-ticker.C:
			w.processSettled(ctx)
		}
	}
}

func (w *Watcher) processSettled(ctx context.Context) {
	now := time.Now()
	for path, lastWrite := range w.pending {
		if now.Sub(lastWrite) < w.settle {
			continue
		}

		err := w.handle(ctx, path)
		if errors.Is(err, processor.ErrRunInProgress) {
			w.logger.Info("Processor busy, %s stays queued", filepath.Base(path))
			continue
		}

		delete(w.pending, path)
		if err != nil {
			w.logger.Error("Failed to process dropped video %s: %v", filepath.Base(path), err)
			continue
		}
		w.logger.Info("Processed dropped video %s", filepath.Base(path))
	}
}
