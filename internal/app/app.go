package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"parkingwatch/internal/config"
	"parkingwatch/internal/logger"
	"parkingwatch/internal/repository/sqlite"
	"parkingwatch/internal/route"
	"parkingwatch/internal/service"
	"parkingwatch/internal/service/ai"
	"parkingwatch/internal/service/ingest"
	"parkingwatch/internal/service/presenter"
	"parkingwatch/internal/service/processor"
	"parkingwatch/internal/service/video"
	"parkingwatch/internal/service/websocket"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config    *config.Config
	logger    *logger.Logger
	db        *sqlite.DB
	detector  *ai.DetectorService
	hub       *websocket.HubService
	presenter *presenter.Presenter
	manager   *service.Manager
	watcher   *ingest.Watcher
	server    *http.Server
}

// OpenVideo opens a file with the gocv decoder.
func OpenVideo(path string) (processor.Source, error) {
	capture, err := video.Open(path)
	if err != nil {
		return nil, err
	}
	return capture, nil
}

// NewApp loads configuration, opens the database and loads the model.
// Any failure here prevents the server from starting.
func NewApp() (*App, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logger.NewLogger(cfg)

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	runRepo := sqlite.NewRunRepository(db)
	intervalRepo := sqlite.NewIntervalRepository(db)

	if n, err := runRepo.MarkInterrupted(time.Now().UTC()); err != nil {
		log.Warning("Could not mark interrupted runs: %v", err)
	} else if n > 0 {
		log.Warning("Marked %d interrupted run(s) as failed", n)
	}

	detector, err := ai.NewDetectorService(cfg, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	hub := websocket.NewHubService(log)
	pres := presenter.New(hub, cfg, log)
	proc := processor.New(detector, video.NewAnnotator(), log)
	mng := service.NewManager(proc, OpenVideo, runRepo, intervalRepo, pres, cfg, log)

	a := &App{
		config:    cfg,
		logger:    log,
		db:        db,
		detector:  detector,
		hub:       hub,
		presenter: pres,
		manager:   mng,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           route.SetupRoutes(mng, hub, cfg, log, runRepo, intervalRepo),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	if cfg.WatchDirectory != "" {
		handle := func(ctx context.Context, path string) error {
			_, err := mng.ProcessFile(ctx, path, cfg.DefaultTotalSpaces)
			return err
		}
		a.watcher, err = ingest.NewWatcher(cfg.WatchDirectory, handle, ingest.DefaultSettleDelay, log)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	return a, nil
}

// Run serves HTTP and the background services until ctx is cancelled or
// one of them fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.hub.Run(ctx) })
	g.Go(func() error { return a.presenter.Run(ctx) })
	if a.watcher != nil {
		g.Go(func() error { return a.watcher.Run(ctx) })
	}

	g.Go(func() error {
		a.logger.Info("Parking watch server listening on %s", a.server.Addr)
		a.logger.Info("Model: %s (%s), output: %s", a.config.ModelPath, a.config.ModelFormat, a.config.OutputDirectory)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		a.logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := a.server.Shutdown(shutdownCtx)
		a.manager.Stop()
		return err
	})

	return g.Wait()
}

// Close releases the model and the database.
func (a *App) Close() error {
	return multierr.Combine(a.detector.Close(), a.db.Close())
}
