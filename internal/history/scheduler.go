package history

import (
	"context"
	"log/slog"
	"time"

	"fleetwatch/internal/model"
)

// Scheduler drives the periodic jobs: rollup aggregation on fixed
// 5-minute and hourly timers and retention on its own schedule. Each
// tick issues a discrete "aggregate window X" command for the window
// that just closed; jobs run on already-persisted rows and never touch
// the ingestion path.
type Scheduler struct {
	store  Store
	logger *slog.Logger

	rawRetention   time.Duration
	eventRetention time.Duration
	retainEvery    time.Duration
}

func NewScheduler(store Store, rawRetention, eventRetention, retainEvery time.Duration, logger *slog.Logger) *Scheduler {
	if rawRetention <= 0 {
		rawRetention = 24 * time.Hour
	}
	if eventRetention <= 0 {
		eventRetention = 7 * 24 * time.Hour
	}
	if retainEvery <= 0 {
		retainEvery = time.Hour
	}
	return &Scheduler{
		store:          store,
		logger:         logger,
		rawRetention:   rawRetention,
		eventRetention: eventRetention,
		retainEvery:    retainEvery,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.store == nil {
		return
	}
	go s.loop(ctx)
}

func (s *Scheduler) loop(ctx context.Context) {
	fiveMin := time.NewTicker(model.Interval5Min.Duration())
	hourly := time.NewTicker(model.IntervalHour.Duration())
	retain := time.NewTicker(s.retainEvery)
	defer fiveMin.Stop()
	defer hourly.Stop()
	defer retain.Stop()

	for {
		select {
		case t := <-fiveMin.C:
			s.runAggregate(ctx, model.Interval5Min, t)
		case t := <-hourly.C:
			s.runAggregate(ctx, model.IntervalHour, t)
		case t := <-retain.C:
			s.runRetain(ctx, t)
		case <-ctx.Done():
			return
		}
	}
}

// runAggregate rolls up the window that closed at the tick: the
// floor-aligned interval immediately before now.
func (s *Scheduler) runAggregate(ctx context.Context, interval model.IntervalType, now time.Time) {
	windowStart := now.UTC().Truncate(interval.Duration()).Add(-interval.Duration())
	if err := s.store.Aggregate(ctx, interval, windowStart); err != nil {
		if s.logger != nil {
			s.logger.Error("aggregation failed", "interval", string(interval), "window_start", windowStart, "err", err)
		}
		return
	}
	if s.logger != nil {
		s.logger.Debug("aggregation completed", "interval", string(interval), "window_start", windowStart)
	}
}

func (s *Scheduler) runRetain(ctx context.Context, now time.Time) {
	pruned, err := s.store.Retain(ctx, now.UTC(), s.rawRetention, s.eventRetention)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("retention failed", "err", err)
		}
		return
	}
	if s.logger != nil {
		s.logger.Info("retention completed",
			"samples", pruned.Samples, "aggregates", pruned.Aggregates, "events", pruned.Events)
	}
}
