package scraper

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Scheduler drives the engine on a fixed interval. The period is measured
// start-to-start (ticker semantics), so a slow cycle does not accumulate
// drift beyond one period.
type Scheduler struct {
	engine   *Engine
	interval time.Duration
}

// NewScheduler wraps engine with a fixed-interval loop.
func NewScheduler(engine *Engine, interval time.Duration) *Scheduler {
	return &Scheduler{engine: engine, interval: interval}
}

// Run scrapes once immediately (so /readyz turns ready without waiting a
// full interval) and then on every tick until ctx is cancelled. An in-flight
// cycle is allowed to finish; the loop itself stops within one tick.
func (s *Scheduler) Run(ctx context.Context) {
	slog.Info("scraper: scheduler started", "interval", s.interval)
	s.runOnce(ctx)

	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("scraper: scheduler stopped")
			return
		case <-t.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if err := s.engine.ScrapeAndUpdate(ctx); err != nil && !errors.Is(err, ErrScrapeSkipped) {
		slog.Warn("scraper: cycle failed", "err", err)
	}
}
