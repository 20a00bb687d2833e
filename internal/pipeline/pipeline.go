// Package pipeline runs the relay: a periodic fetch of the configured time
// windows that keeps the shared cache warm and hands newly seen earthquakes
// to a downstream loader.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/quakewatch/internal/domain"
	"github.com/couchcryptid/quakewatch/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"
)

const initialBackoff = 200 * time.Millisecond

// Source returns the current earthquakes for a window. feed.Manager
// satisfies it.
type Source interface {
	Fetch(ctx context.Context, w domain.TimeWindow) ([]domain.Earthquake, error)
}

// BatchLoader writes newly seen earthquakes to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, w domain.TimeWindow, quakes []domain.Earthquake) error
}

// Pipeline orchestrates the fetch-dedupe-load loop.
type Pipeline struct {
	source   Source
	dedup    *Deduplicator
	loader   BatchLoader
	windows  []domain.TimeWindow
	interval time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
	ready    atomic.Bool
}

// Options configures a Pipeline. A nil Loader only warms the cache.
type Options struct {
	Windows  []domain.TimeWindow
	Interval time.Duration
	SeenSize int
	Loader   BatchLoader
	Clock    clockwork.Clock
}

// New creates a Pipeline over the given source.
func New(src Source, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if len(opts.Windows) == 0 {
		opts.Windows = []domain.TimeWindow{domain.WindowHour}
	}
	return &Pipeline{
		source:   src,
		dedup:    NewDeduplicator(opts.SeenSize),
		loader:   opts.Loader,
		windows:  opts.Windows,
		interval: opts.Interval,
		clock:    opts.Clock,
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness returns nil once a full relay cycle has succeeded.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("relay has not completed a fetch cycle yet")
	}
	return nil
}

// Ready reports whether a full relay cycle has succeeded.
func (p *Pipeline) Ready() bool {
	return p.ready.Load()
}

// Run executes the relay loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("relay started", "windows", p.windows, "interval", p.interval, "publishing", p.loader != nil)
	p.metrics.RelayRunning.Set(1)
	defer p.metrics.RelayRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at the interval.
	backoff := min(initialBackoff, p.interval)

	for {
		if ctx.Err() != nil {
			p.logger.Info("relay stopping", "reason", ctx.Err())
			return nil
		}

		wait := p.interval
		if err := p.runCycle(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Error("relay cycle failed", "error", err, "retry_in", backoff)
			wait = backoff
			backoff = retry.NextBackoff(backoff, p.interval)
		} else {
			backoff = min(initialBackoff, p.interval)
		}

		if !sleepWithContext(ctx, p.clock, wait) {
			p.logger.Info("relay stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// runCycle fetches every window and loads the unseen earthquakes.
func (p *Pipeline) runCycle(ctx context.Context) error {
	start := p.clock.Now()

	for _, w := range p.windows {
		if err := p.relayWindow(ctx, w); err != nil {
			return err
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	p.metrics.RelayCycleDuration.Observe(p.clock.Since(start).Seconds())
	if !p.ready.Swap(true) {
		p.logger.Info("relay ready")
	}
	return nil
}

func (p *Pipeline) relayWindow(ctx context.Context, w domain.TimeWindow) error {
	quakes, err := p.source.Fetch(ctx, w)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", w, err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	fresh := p.dedup.Unseen(quakes)
	if len(fresh) == 0 {
		p.logger.Debug("no new earthquakes", "window", w, "fetched", len(quakes))
		return nil
	}

	if p.loader != nil {
		if err := p.loader.LoadBatch(ctx, w, fresh); err != nil {
			p.metrics.PublishErrors.Inc()
			return fmt.Errorf("load %s batch: %w", w, err)
		}
		p.metrics.EventsPublished.Add(float64(len(fresh)))
	}
	p.dedup.Mark(fresh)
	p.logger.Info("relayed new earthquakes", "window", w, "new", len(fresh), "fetched", len(quakes))
	return nil
}

// sleepWithContext is retry.SleepWithContext on an injectable clock.
func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
