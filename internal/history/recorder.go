package history

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"fleetwatch/internal/metrics"
	"fleetwatch/internal/model"
)

// Recorder decouples the reconciler from storage: snapshots are queued
// on a bounded channel with a drop-oldest policy and written by a
// single worker. A storage outage costs historical depth, never live
// state.
type Recorder struct {
	store     Store
	logger    *slog.Logger
	freshness time.Duration

	states chan model.VesselState
	events chan model.Event
}

func NewRecorder(store Store, freshness time.Duration, queueSize int, logger *slog.Logger) *Recorder {
	if freshness <= 0 {
		freshness = 30 * time.Second
	}
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Recorder{
		store:     store,
		logger:    logger,
		freshness: freshness,
		states:    make(chan model.VesselState, queueSize),
		events:    make(chan model.Event, queueSize),
	}
}

// Record enqueues a post-merge snapshot. Never blocks: when the queue
// is full the oldest queued snapshot is discarded in its favor.
func (r *Recorder) Record(state model.VesselState) {
	if r == nil || r.store == nil {
		return
	}
	for {
		select {
		case r.states <- state:
			return
		default:
		}
		select {
		case <-r.states:
			metrics.SamplesDropped.WithLabelValues("queue_full").Inc()
		default:
		}
	}
}

// RecordAlert enqueues an alert as an event row.
func (r *Recorder) RecordAlert(alert model.Alert) {
	if r == nil || r.store == nil {
		return
	}
	payload, _ := json.Marshal(alert)
	ev := model.Event{
		VesselID:  alert.VesselID,
		Timestamp: alert.Timestamp,
		EventType: "alert_" + string(alert.Type),
		Severity:  string(alert.Severity),
		Payload:   string(payload),
	}
	select {
	case r.events <- ev:
	default:
		metrics.SamplesDropped.WithLabelValues("event_queue_full").Inc()
	}
}

// Start runs the persistence worker until ctx is done.
func (r *Recorder) Start(ctx context.Context) {
	if r == nil || r.store == nil {
		return
	}
	go func() {
		for {
			select {
			case state := <-r.states:
				r.persistSample(ctx, state)
			case ev := <-r.events:
				if err := r.store.SaveEvent(ctx, ev); err != nil {
					if r.logger != nil {
						r.logger.Warn("event write failed, dropping", "vessel_id", ev.VesselID, "err", err)
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (r *Recorder) persistSample(ctx context.Context, state model.VesselState) {
	// Stale replays carry old lastSeen values; keep them out of the
	// raw log.
	if time.Since(state.LastSeen) >= r.freshness {
		metrics.SamplesDropped.WithLabelValues("stale").Inc()
		return
	}
	if err := r.store.SaveSample(ctx, model.SampleFrom(state)); err != nil {
		metrics.SamplesDropped.WithLabelValues("storage_error").Inc()
		if r.logger != nil {
			r.logger.Warn("sample write failed, dropping", "vessel_id", state.VesselID, "err", err)
		}
		return
	}
	metrics.SamplesPersisted.Inc()
}
