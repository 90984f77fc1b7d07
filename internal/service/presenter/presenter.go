package presenter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
	"time"

	"parkingwatch/internal/config"
	"parkingwatch/internal/dto"
	"parkingwatch/internal/logger"
	"parkingwatch/internal/model"
	"parkingwatch/internal/service/analytics"
	"parkingwatch/internal/service/processor"

	"golang.org/x/time/rate"
)

// Broadcaster delivers an encoded event to every viewer.
type Broadcaster interface {
	Broadcast(message []byte)
}

// Presenter decouples display refresh from processing. Events are queued
// and broadcast by Run, with interval frames paced by a rate limiter. The
// frame loop only waits when viewers are a full queue behind; no event is
// ever discarded while Run is active.
type Presenter struct {
	hub      Broadcaster
	queue    chan dto.ViewerEvent
	limiter  *rate.Limiter
	logger   *logger.Logger
	done     chan struct{}
	stopOnce sync.Once
}

func New(hub Broadcaster, cfg *config.Config, logger *logger.Logger) *Presenter {
	size := cfg.DisplayQueueSize
	if size < 1 {
		size = 1
	}

	limit := rate.Inf
	if cfg.DisplayIntervalMs > 0 {
		limit = rate.Every(time.Duration(cfg.DisplayIntervalMs) * time.Millisecond)
	}

	return &Presenter{
		hub:     hub,
		queue:   make(chan dto.ViewerEvent, size),
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Run broadcasts queued events until ctx is cancelled. Once it returns,
// further events are discarded instead of blocking their senders.
func (p *Presenter) Run(ctx context.Context) error {
	defer p.stopOnce.Do(func() { close(p.done) })

	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-p.queue:
			if event.Type == dto.EventInterval {
				if err := p.limiter.Wait(ctx); err != nil {
					return nil
				}
			}

			message, err := json.Marshal(event)
			if err != nil {
				p.logger.Error("Error encoding viewer event: %v", err)
				continue
			}
			p.hub.Broadcast(message)
		}
	}
}

// Sink returns a processor.Sink streaming the intervals of runID. Each event
// carries the report line together with its image. Publishing blocks while
// the queue is full.
func (p *Presenter) Sink(runID string) processor.Sink {
	return processor.SinkFunc(func(report analytics.IntervalReport, image []byte) error {
		event := dto.ViewerEvent{
			Type:        dto.EventInterval,
			RunID:       runID,
			TotalSpaces: report.TotalSpaces,
			Interval:    report.Interval,
			Frame:       report.Frame,
			Vehicles:    report.Vehicles,
			Available:   report.Available,
			Stale:       report.Stale,
			Line:        report.Line(),
			Image:       base64.StdEncoding.EncodeToString(image),
		}

		p.send(event)
		return nil
	})
}

// Started announces a new run.
func (p *Presenter) Started(run *model.Run) {
	p.send(dto.ViewerEvent{
		Type:        dto.EventStarted,
		RunID:       run.ID,
		Source:      run.SourceName,
		TotalSpaces: run.TotalSpaces,
	})
}

// Finished announces the end of a run.
func (p *Presenter) Finished(runID string, intervals int) {
	p.send(dto.ViewerEvent{
		Type:      dto.EventFinished,
		RunID:     runID,
		Intervals: intervals,
	})
}

// Failed announces a run that stopped with an error.
func (p *Presenter) Failed(runID string, err error) {
	p.send(dto.ViewerEvent{
		Type:  dto.EventError,
		RunID: runID,
		Error: err.Error(),
	})
}

func (p *Presenter) send(event dto.ViewerEvent) {
	select {
	case p.queue <- event:
		return
	default:
	}

	start := time.Now()
	select {
	case p.queue <- event:
		if waited := time.Since(start); waited > time.Second {
			p.logger.Info("Viewers behind, %s event of run %s waited %v", event.Type, event.RunID, waited.Round(time.Millisecond))
		}
	case <-p.done:
		p.logger.Warning("Presenter stopped, discarding %s event of run %s", event.Type, event.RunID)
	}
}
