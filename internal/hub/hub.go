// Package hub fans state, alert and weather changes out to registered
// dashboard sinks. It is a pure egress multiplexer: no business logic,
// and a slow or broken sink is disconnected rather than allowed to
// back-pressure the rest of the service.
package hub

import (
	"encoding/json"
	"log/slog"
	"sync"

	"fleetwatch/internal/metrics"
	"fleetwatch/internal/model"
)

// Envelope is the egress wire format: {"type": ..., "data": ...}.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

const (
	TypeInitialData       = "initial_data"
	TypeVesselUpdate      = "vessel_update"
	TypeNewAlert          = "new_alert"
	TypeAlertAcknowledged = "alert_acknowledged"
	TypeEmergencyAlert    = "emergency_alert"
	TypeWeatherUpdate     = "weather_update"
	TypeSystemStatus      = "system_status"
	TypeMQTTStatus        = "mqtt_status"
	TypeHistoricalData    = "historical_data"
	TypeOperationsUpdate  = "operations_update"
)

// Sink is a registered destination for broadcast events. Send must be
// non-blocking; returning an error marks the sink dead and removes it.
type Sink interface {
	ID() string
	Send(Envelope) error
	Close() error
}

// SnapshotFunc builds the initial_data payload handed to a sink on
// registration, before it sees any incremental event.
type SnapshotFunc func() any

type Hub struct {
	logger   *slog.Logger
	snapshot SnapshotFunc

	mu      sync.RWMutex
	sinks   map[string]Sink
	routes  map[string]model.RouteStatus
	weather map[string]model.WeatherReport
	mqttUp  bool
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:  logger,
		sinks:   make(map[string]Sink),
		routes:  make(map[string]model.RouteStatus),
		weather: make(map[string]model.WeatherReport),
	}
}

// SetSnapshot installs the initial_data builder. Safe to call while
// sinks are registering; sinks that register before a builder is
// installed receive no initial_data.
func (h *Hub) SetSnapshot(fn SnapshotFunc) {
	h.mu.Lock()
	h.snapshot = fn
	h.mu.Unlock()
}

// Register delivers the full current snapshot to the sink and then adds
// it to the fan-out set, atomically with respect to Publish, so the
// sink sees no gap between join and first delta.
func (h *Hub) Register(sink Sink) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.snapshot != nil {
		if err := sink.Send(Envelope{Type: TypeInitialData, Data: h.snapshot()}); err != nil {
			_ = sink.Close()
			return err
		}
	}
	h.sinks[sink.ID()] = sink
	metrics.SinksConnected.Set(float64(len(h.sinks)))
	if h.logger != nil {
		h.logger.Info("sink registered", "sink_id", sink.ID(), "sinks", len(h.sinks))
	}
	return nil
}

func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	sink, ok := h.sinks[id]
	if ok {
		delete(h.sinks, id)
	}
	metrics.SinksConnected.Set(float64(len(h.sinks)))
	h.mu.Unlock()
	if ok {
		_ = sink.Close()
		if h.logger != nil {
			h.logger.Info("sink unregistered", "sink_id", id)
		}
	}
}

// Publish fans an envelope out to every registered sink. A send failure
// removes that sink without affecting delivery to the others.
func (h *Hub) Publish(env Envelope) {
	h.mu.RLock()
	targets := make([]Sink, 0, len(h.sinks))
	for _, s := range h.sinks {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	var dead []string
	for _, s := range targets {
		if err := s.Send(env); err != nil {
			metrics.BroadcastDropped.Inc()
			if h.logger != nil {
				h.logger.Warn("sink send failed, removing", "sink_id", s.ID(), "type", env.Type, "err", err)
			}
			dead = append(dead, s.ID())
		}
	}
	for _, id := range dead {
		h.Unregister(id)
	}
}

func (h *Hub) Sinks() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sinks)
}

// VesselUpdate broadcasts a post-merge canonical state.
func (h *Hub) VesselUpdate(state model.VesselState) {
	h.Publish(Envelope{Type: TypeVesselUpdate, Data: state})
}

// NewAlert broadcasts an alert; emergency alerts additionally go out on
// the dedicated emergency channel.
func (h *Hub) NewAlert(alert model.Alert) {
	h.Publish(Envelope{Type: TypeNewAlert, Data: alert})
	if alert.Type == model.AlertEmergency {
		h.Publish(Envelope{Type: TypeEmergencyAlert, Data: alert})
	}
}

func (h *Hub) AlertAcknowledged(alert model.Alert) {
	h.Publish(Envelope{Type: TypeAlertAcknowledged, Data: alert})
}

func (h *Hub) SystemStatus(status any) {
	h.Publish(Envelope{Type: TypeSystemStatus, Data: status})
}

// Weather implements ingest.OpsSink.
func (h *Hub) Weather(w model.WeatherReport) {
	h.mu.Lock()
	h.weather[w.Zone] = w
	h.mu.Unlock()
	h.Publish(Envelope{Type: TypeWeatherUpdate, Data: w})
}

// Operations implements ingest.OpsSink: replaces the route table and
// broadcasts it.
func (h *Hub) Operations(routes []model.RouteStatus) {
	h.mu.Lock()
	h.routes = make(map[string]model.RouteStatus, len(routes))
	for _, rt := range routes {
		h.routes[rt.RouteID] = rt
	}
	h.mu.Unlock()
	h.Publish(Envelope{Type: TypeOperationsUpdate, Data: routes})
}

// Advisory implements ingest.OpsSink: shore-side advisory messages are
// passed through to dashboards without interpretation.
func (h *Hub) Advisory(payload []byte) {
	h.Publish(Envelope{Type: TypeOperationsUpdate, Data: map[string]any{
		"advisory": json.RawMessage(payload),
	}})
}

// MQTTStatus implements ingest.OpsSink.
func (h *Hub) MQTTStatus(connected bool) {
	h.mu.Lock()
	h.mqttUp = connected
	h.mu.Unlock()
	h.Publish(Envelope{Type: TypeMQTTStatus, Data: map[string]bool{"connected": connected}})
}

func (h *Hub) MQTTConnected() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.mqttUp
}

func (h *Hub) Routes() []model.RouteStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]model.RouteStatus, 0, len(h.routes))
	for _, rt := range h.routes {
		out = append(out, rt)
	}
	return out
}

func (h *Hub) WeatherReports() []model.WeatherReport {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]model.WeatherReport, 0, len(h.weather))
	for _, w := range h.weather {
		out = append(out, w)
	}
	return out
}
