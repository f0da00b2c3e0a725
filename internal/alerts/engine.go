// Package alerts derives threshold alerts from canonical vessel state
// and keeps the bounded, newest-first alert log.
package alerts

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"fleetwatch/internal/metrics"
	"fleetwatch/internal/model"
)

// Engine evaluates the threshold table. It is stateless and performs no
// debouncing: a vessel stuck above a threshold re-emits on every update
// that carries the offending field. Consumers wanting single-shot
// notifications must deduplicate by condition and vessel themselves.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

// Evaluate checks every condition independently; more than one alert
// may come back for a single update. Each alert gets a fresh id, even
// for repeats of the same condition.
func (e *Engine) Evaluate(state model.VesselState) []model.Alert {
	now := time.Now().UTC()
	var out []model.Alert

	emit := func(typ model.AlertType, sev model.Severity, msg string) {
		out = append(out, model.Alert{
			ID:        uuid.NewString(),
			VesselID:  state.VesselID,
			Type:      typ,
			Severity:  sev,
			Message:   msg,
			Timestamp: now,
		})
		metrics.AlertsEmitted.WithLabelValues(string(sev)).Inc()
	}

	if t := state.Engine.Temperature; t != nil {
		switch {
		case *t > 105:
			emit(model.AlertEngine, model.SeverityCritical,
				fmt.Sprintf("engine temperature critical: %.1f°C", *t))
		case *t > 95:
			emit(model.AlertEngine, model.SeverityWarning,
				fmt.Sprintf("engine temperature high: %.1f°C", *t))
		}
	}
	if r := state.Engine.RPM; r != nil && *r > 1800 {
		emit(model.AlertEngine, model.SeverityWarning,
			fmt.Sprintf("engine RPM high: %.0f", *r))
	}
	if soc := state.Power.BatterySOC; soc != nil {
		switch {
		case *soc < 15:
			emit(model.AlertPower, model.SeverityCritical,
				fmt.Sprintf("battery critically low: %.1f%%", *soc))
		case *soc < 25:
			emit(model.AlertPower, model.SeverityWarning,
				fmt.Sprintf("battery low: %.1f%%", *soc))
		}
	}
	if b := state.Safety.BilgeLevel; b != nil {
		switch {
		case *b > 60:
			emit(model.AlertSafety, model.SeverityCritical,
				fmt.Sprintf("bilge level critical: %.1fcm", *b))
		case *b > 40:
			emit(model.AlertSafety, model.SeverityWarning,
				fmt.Sprintf("bilge level high: %.1fcm", *b))
		}
	}
	if f := state.Safety.FireAlarm; f != nil && *f {
		emit(model.AlertEmergency, model.SeverityCritical, "fire alarm active")
	}
	return out
}
