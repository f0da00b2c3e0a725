package ingest

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"fleetwatch/internal/model"
)

var errBadTopic = fmt.Errorf("unrecognized topic shape")

// ParseError marks a malformed ingress payload. Adapters log it and
// drop the message; it never propagates past the adapter boundary.
type ParseError struct {
	Source string
	Topic  string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Topic != "" {
		return fmt.Sprintf("parse %s %s: %v", e.Source, e.Topic, e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// telemetryPayload is the common JSON shape published by vessels. The
// simulator sends grouped readings; a few producers flatten position
// and navigation to the top level, so both are accepted.
type telemetryPayload struct {
	VesselID    string  `json:"vesselId"`
	Operational *string `json:"operational"`

	Engine     model.EngineGroup     `json:"engine"`
	Power      model.PowerGroup      `json:"power"`
	Navigation model.NavigationGroup `json:"navigation"`
	Location   model.LocationGroup   `json:"location"`
	Safety     model.SafetyGroup     `json:"safety"`

	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Speed     *float64 `json:"speed"`
	Heading   *float64 `json:"heading"`
}

// DecodeFragment turns a telemetry JSON payload into a fragment.
// vesselID may come from the topic; the payload's own vesselId wins
// only when the topic did not carry one.
func DecodeFragment(source, vesselID string, payload []byte, arrival time.Time) (model.TelemetryFragment, error) {
	var p telemetryPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return model.TelemetryFragment{}, &ParseError{Source: source, Err: err}
	}
	if vesselID == "" {
		vesselID = strings.TrimSpace(p.VesselID)
	}
	if vesselID == "" {
		return model.TelemetryFragment{}, &ParseError{Source: source, Err: fmt.Errorf("missing vesselId")}
	}

	frag := model.TelemetryFragment{
		VesselID:    vesselID,
		ArrivalTime: arrival,
		Source:      source,
		Engine:      p.Engine,
		Power:       p.Power,
		Navigation:  p.Navigation,
		Location:    p.Location,
		Safety:      p.Safety,
	}
	if p.Operational != nil {
		if _, ok := model.ParseOperationalState(*p.Operational); ok {
			frag.Operational = p.Operational
		}
	}
	if frag.Location.Latitude == nil {
		frag.Location.Latitude = p.Latitude
	}
	if frag.Location.Longitude == nil {
		frag.Location.Longitude = p.Longitude
	}
	if frag.Navigation.Speed == nil {
		frag.Navigation.Speed = p.Speed
	}
	if frag.Navigation.Heading == nil {
		frag.Navigation.Heading = p.Heading
	}
	return frag, nil
}

// DecodeComponent handles ferry/vessel/{id}/status/{component}
// payloads, where the payload body is a single group. A
// "status/systems" message nests several groups and is decoded like a
// full telemetry payload.
func DecodeComponent(source, vesselID, component string, payload []byte, arrival time.Time) (model.TelemetryFragment, error) {
	if vesselID == "" {
		return model.TelemetryFragment{}, &ParseError{Source: source, Err: fmt.Errorf("missing vesselId")}
	}
	frag := model.TelemetryFragment{VesselID: vesselID, ArrivalTime: arrival, Source: source}

	var err error
	switch component {
	case "systems":
		return DecodeFragment(source, vesselID, payload, arrival)
	case "engine":
		err = json.Unmarshal(payload, &frag.Engine)
	case "power":
		err = json.Unmarshal(payload, &frag.Power)
	case "navigation":
		err = json.Unmarshal(payload, &frag.Navigation)
	case "location":
		err = json.Unmarshal(payload, &frag.Location)
	case "safety":
		err = json.Unmarshal(payload, &frag.Safety)
	default:
		err = fmt.Errorf("unknown component %q", component)
	}
	if err != nil {
		return model.TelemetryFragment{}, &ParseError{Source: source, Err: err}
	}
	return frag, nil
}

type emergencyPayload struct {
	Active *bool  `json:"active"`
	Detail string `json:"detail"`
}

// DecodeEmergency maps ferry/vessel/{id}/emergency/{type} onto the
// safety group. Only the fire type carries a canonical field; other
// emergency kinds flow through alerting via the safety readings they
// accompany.
func DecodeEmergency(source, vesselID, kind string, payload []byte, arrival time.Time) (model.TelemetryFragment, bool, error) {
	if vesselID == "" {
		return model.TelemetryFragment{}, false, &ParseError{Source: source, Err: fmt.Errorf("missing vesselId")}
	}
	var p emergencyPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			return model.TelemetryFragment{}, false, &ParseError{Source: source, Err: err}
		}
	}
	if kind != "fire" {
		return model.TelemetryFragment{}, false, nil
	}
	active := true
	if p.Active != nil {
		active = *p.Active
	}
	frag := model.TelemetryFragment{VesselID: vesselID, ArrivalTime: arrival, Source: source}
	frag.Safety.FireAlarm = &active
	return frag, true, nil
}

// SplitVesselTopic parses {prefix}/vessel/{id}/{kind}[/{detail}].
func SplitVesselTopic(prefix, topic string) (vesselID, kind, detail string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) < 4 || parts[0] != prefix || parts[1] != "vessel" {
		return "", "", "", false
	}
	vesselID, kind = parts[2], parts[3]
	if len(parts) > 4 {
		detail = strings.Join(parts[4:], "/")
	}
	if vesselID == "" || kind == "" {
		return "", "", "", false
	}
	return vesselID, kind, detail, true
}
