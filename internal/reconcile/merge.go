package reconcile

import (
	"time"

	"fleetwatch/internal/model"
)

// merge applies the field-level last-writer-wins policy: every non-nil
// field in the fragment replaces the stored pointer, every nil field
// survives untouched. Pointers are replaced, never written through, so
// previously taken snapshots stay consistent.
func merge(state *model.VesselState, frag model.TelemetryFragment) {
	state.LastSeen = frag.ArrivalTime

	if frag.Operational != nil {
		if op, ok := model.ParseOperationalState(*frag.Operational); ok {
			state.Operational = &op
		}
	}

	if frag.Engine.RPM != nil {
		state.Engine.RPM = frag.Engine.RPM
	}
	if frag.Engine.Temperature != nil {
		state.Engine.Temperature = frag.Engine.Temperature
	}
	if frag.Engine.FuelFlow != nil {
		state.Engine.FuelFlow = frag.Engine.FuelFlow
	}

	if frag.Power.BatterySOC != nil {
		state.Power.BatterySOC = frag.Power.BatterySOC
	}
	if frag.Power.Voltage != nil {
		state.Power.Voltage = frag.Power.Voltage
	}
	if frag.Power.GeneratorLoad != nil {
		state.Power.GeneratorLoad = frag.Power.GeneratorLoad
	}
	if frag.Power.Mode != nil {
		state.Power.Mode = frag.Power.Mode
	}

	if frag.Navigation.Speed != nil {
		state.Navigation.Speed = frag.Navigation.Speed
	}
	if frag.Navigation.Heading != nil {
		state.Navigation.Heading = frag.Navigation.Heading
	}
	if frag.Navigation.Route != nil {
		state.Navigation.Route = frag.Navigation.Route
	}

	if frag.Location.Latitude != nil {
		state.Location.Latitude = frag.Location.Latitude
	}
	if frag.Location.Longitude != nil {
		state.Location.Longitude = frag.Location.Longitude
	}

	if frag.Safety.BilgeLevel != nil {
		state.Safety.BilgeLevel = frag.Safety.BilgeLevel
	}
	if frag.Safety.CO2Level != nil {
		state.Safety.CO2Level = frag.Safety.CO2Level
	}
	if frag.Safety.FireAlarm != nil {
		state.Safety.FireAlarm = frag.Safety.FireAlarm
	}
}

// deriveOperational evaluates the operational-state rules in strict
// priority order. An explicitly reported state always wins.
func deriveOperational(s *model.VesselState, now time.Time, offlineAfter time.Duration) model.OperationalState {
	if s.Operational != nil {
		return *s.Operational
	}
	if s.Engine.RPM != nil && *s.Engine.RPM > 0 {
		return model.OpUnderway
	}
	if s.Location.Latitude != nil || s.Location.Longitude != nil {
		return model.OpDocked
	}
	if !s.LastSeen.IsZero() && now.Sub(s.LastSeen) <= offlineAfter {
		return model.OpDocked
	}
	return model.OpOffline
}

// deriveStatus maps merged readings onto a severity, first match wins.
// The thresholds differ from the alert engine's on purpose: status is a
// coarse dashboard color, alerts fire earlier.
func deriveStatus(s *model.VesselState) model.Status {
	if s.Safety.FireAlarm != nil && *s.Safety.FireAlarm {
		return model.StatusEmergency
	}
	if s.Engine.Temperature != nil && *s.Engine.Temperature > 100 {
		return model.StatusWarning
	}
	if s.Power.BatterySOC != nil && *s.Power.BatterySOC < 20 {
		return model.StatusCaution
	}
	if s.Safety.BilgeLevel != nil && *s.Safety.BilgeLevel > 50 {
		return model.StatusCaution
	}
	return model.StatusNormal
}
