// Package reconcile owns the fleet map. All merges funnel through one
// consuming goroutine, so fragments are applied strictly in arrival
// order regardless of which adapter produced them; readers only ever
// see point-in-time copies.
package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"fleetwatch/internal/metrics"
	"fleetwatch/internal/model"
)

// Listener receives a copy of the canonical state after every accepted
// merge and after every offline transition.
type Listener func(model.VesselState)

type Reconciler struct {
	logger       *slog.Logger
	offlineAfter time.Duration

	mu    sync.RWMutex
	fleet map[string]*model.VesselState

	listeners []Listener
}

func NewReconciler(offlineAfter time.Duration, logger *slog.Logger) *Reconciler {
	if offlineAfter <= 0 {
		offlineAfter = 5 * time.Minute
	}
	return &Reconciler{
		logger:       logger,
		offlineAfter: offlineAfter,
		fleet:        make(map[string]*model.VesselState),
	}
}

// Subscribe registers a post-merge listener. Must be called before
// Start; listeners run on the reconciler goroutine and must not block.
func (r *Reconciler) Subscribe(l Listener) {
	r.listeners = append(r.listeners, l)
}

// Start consumes the merged fragment channel until ctx is done.
func (r *Reconciler) Start(ctx context.Context, in <-chan model.TelemetryFragment) {
	go func() {
		for {
			select {
			case frag := <-in:
				r.Apply(frag)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// StartSweeper periodically marks silent vessels offline.
func (r *Reconciler) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.SweepOffline(time.Now().UTC())
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Apply merges one fragment and returns the post-merge canonical state.
// Last-writer-wins by arrival order: the fragment overwrites exactly
// the fields it carries, embedded sensor timestamps are never consulted.
func (r *Reconciler) Apply(frag model.TelemetryFragment) model.VesselState {
	if frag.ArrivalTime.IsZero() {
		frag.ArrivalTime = time.Now().UTC()
	}

	r.mu.Lock()
	state, ok := r.fleet[frag.VesselID]
	if !ok {
		state = &model.VesselState{VesselID: frag.VesselID}
		r.fleet[frag.VesselID] = state
		if r.logger != nil {
			r.logger.Info("vessel discovered", "vessel_id", frag.VesselID, "source", frag.Source)
		}
	}
	merge(state, frag)
	state.OperationalState = deriveOperational(state, frag.ArrivalTime, r.offlineAfter)
	state.Status = deriveStatus(state)
	out := *state
	r.mu.Unlock()

	metrics.MergesApplied.Inc()
	r.publish(out)
	return out
}

// SweepOffline flips vessels with no accepted fragment within the
// offline window to offline, unless they carry an explicitly reported
// operational state. Transitions are published like merges.
func (r *Reconciler) SweepOffline(now time.Time) []model.VesselState {
	var changed []model.VesselState
	r.mu.Lock()
	for _, state := range r.fleet {
		if state.Operational != nil || state.OperationalState == model.OpOffline {
			continue
		}
		if now.Sub(state.LastSeen) <= r.offlineAfter {
			continue
		}
		state.OperationalState = model.OpOffline
		changed = append(changed, *state)
	}
	r.mu.Unlock()

	for _, s := range changed {
		if r.logger != nil {
			r.logger.Info("vessel offline", "vessel_id", s.VesselID, "last_seen", s.LastSeen)
		}
		r.publish(s)
	}
	return changed
}

// Snapshot returns a point-in-time copy of the whole fleet.
func (r *Reconciler) Snapshot() []model.VesselState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.VesselState, 0, len(r.fleet))
	for _, state := range r.fleet {
		out = append(out, *state)
	}
	return out
}

// Vessel returns a copy of one vessel's canonical state.
func (r *Reconciler) Vessel(id string) (model.VesselState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.fleet[id]
	if !ok {
		return model.VesselState{}, false
	}
	return *state, true
}

func (r *Reconciler) publish(s model.VesselState) {
	for _, l := range r.listeners {
		l(s)
	}
}
