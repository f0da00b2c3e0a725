package alerts

import (
	"strings"
	"testing"

	"fleetwatch/internal/model"
)

func f64(v float64) *float64 { return &v }

func stateWith(mutate func(*model.VesselState)) model.VesselState {
	s := model.VesselState{VesselID: "ferry-01"}
	mutate(&s)
	return s
}

func TestEngineTempThresholds(t *testing.T) {
	e := NewEngine()

	got := e.Evaluate(stateWith(func(s *model.VesselState) { s.Engine.Temperature = f64(106) }))
	if len(got) != 1 {
		t.Fatalf("expected one alert, got %d", len(got))
	}
	if got[0].Severity != model.SeverityCritical || got[0].Type != model.AlertEngine {
		t.Fatalf("wrong classification: %s/%s", got[0].Type, got[0].Severity)
	}
	if !strings.Contains(got[0].Message, "106.0") {
		t.Fatalf("reading missing from message: %q", got[0].Message)
	}

	got = e.Evaluate(stateWith(func(s *model.VesselState) { s.Engine.Temperature = f64(96) }))
	if len(got) != 1 || got[0].Severity != model.SeverityWarning {
		t.Fatalf("temp 96 should be one warning")
	}

	got = e.Evaluate(stateWith(func(s *model.VesselState) { s.Engine.Temperature = f64(95) }))
	if len(got) != 0 {
		t.Fatalf("temp 95 is at the threshold, no alert")
	}
}

func TestBatteryThresholds(t *testing.T) {
	e := NewEngine()

	got := e.Evaluate(stateWith(func(s *model.VesselState) { s.Power.BatterySOC = f64(14) }))
	if len(got) != 1 || got[0].Severity != model.SeverityCritical || got[0].Type != model.AlertPower {
		t.Fatalf("soc 14 should be critical power alert")
	}

	got = e.Evaluate(stateWith(func(s *model.VesselState) { s.Power.BatterySOC = f64(24) }))
	if len(got) != 1 || got[0].Severity != model.SeverityWarning {
		t.Fatalf("soc 24 should be warning")
	}
}

func TestMultipleConditionsOneUpdate(t *testing.T) {
	e := NewEngine()
	got := e.Evaluate(stateWith(func(s *model.VesselState) {
		s.Engine.RPM = f64(1900)
		s.Power.BatterySOC = f64(10)
	}))
	if len(got) != 2 {
		t.Fatalf("expected rpm warning and soc critical, got %d alerts", len(got))
	}
}

func TestBilgeAndFire(t *testing.T) {
	e := NewEngine()

	got := e.Evaluate(stateWith(func(s *model.VesselState) { s.Safety.BilgeLevel = f64(41) }))
	if len(got) != 1 || got[0].Type != model.AlertSafety || got[0].Severity != model.SeverityWarning {
		t.Fatalf("bilge 41 should be safety warning")
	}

	got = e.Evaluate(stateWith(func(s *model.VesselState) { s.Safety.BilgeLevel = f64(61) }))
	if len(got) != 1 || got[0].Severity != model.SeverityCritical {
		t.Fatalf("bilge 61 should be critical")
	}

	fire := true
	got = e.Evaluate(stateWith(func(s *model.VesselState) { s.Safety.FireAlarm = &fire }))
	if len(got) != 1 || got[0].Type != model.AlertEmergency || got[0].Severity != model.SeverityCritical {
		t.Fatalf("fire should be critical emergency")
	}
}

func TestNoDebounce(t *testing.T) {
	e := NewEngine()
	s := stateWith(func(s *model.VesselState) { s.Engine.Temperature = f64(110) })

	first := e.Evaluate(s)
	second := e.Evaluate(s)
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("stuck condition must re-emit on every update")
	}
	if first[0].ID == second[0].ID {
		t.Fatalf("repeat alerts must get fresh ids")
	}
}

func TestMissingFieldsNoAlert(t *testing.T) {
	e := NewEngine()
	if got := e.Evaluate(model.VesselState{VesselID: "ferry-01"}); len(got) != 0 {
		t.Fatalf("empty state should not alert")
	}
}
