// Package ingest holds the transport adapters. Each adapter translates
// its wire format into model.TelemetryFragment and pushes the result
// into a shared buffered channel; it never touches fleet state.
package ingest

import (
	"context"
	"log/slog"
	"time"

	"fleetwatch/internal/metrics"
	"fleetwatch/internal/model"
)

// OpsSink receives the non-vessel traffic an adapter observes: weather
// reports, operations messages and transport connectivity. The
// broadcast hub implements it.
type OpsSink interface {
	Weather(model.WeatherReport)
	Operations(routes []model.RouteStatus)
	Advisory(payload []byte)
	MQTTStatus(connected bool)
}

// SendNonBlocking offers a fragment to the reconciler channel and drops
// it when the channel is full; a stalled reconciler must never
// back-pressure a transport read loop. Fragments carrying no mergeable
// field are dropped here so they never reach the reconciler.
func SendNonBlocking(ctx context.Context, out chan<- model.TelemetryFragment, frag model.TelemetryFragment, logger *slog.Logger) bool {
	if frag.Empty() {
		metrics.FragmentsDropped.WithLabelValues(frag.Source, "empty").Inc()
		return false
	}
	select {
	case out <- frag:
		metrics.FragmentsIngested.WithLabelValues(frag.Source).Inc()
		return true
	case <-ctx.Done():
		return false
	default:
		metrics.FragmentsDropped.WithLabelValues(frag.Source, "channel_full").Inc()
		if logger != nil {
			logger.Warn("fragment channel full, dropping fragment", "vessel_id", frag.VesselID, "source", frag.Source)
		}
		return false
	}
}

// BackoffSleep waits d (with a floor) or until the context is done.
func BackoffSleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = 200 * time.Millisecond
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// NextBackoff doubles the delay up to max.
func NextBackoff(current, max time.Duration) time.Duration {
	if current <= 0 {
		return 500 * time.Millisecond
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}
