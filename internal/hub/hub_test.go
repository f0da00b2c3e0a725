package hub

import (
	"errors"
	"fmt"
	"testing"

	"fleetwatch/internal/model"
)

// fakeSink records envelopes and can be told to fail sends.
type fakeSink struct {
	id   string
	got  []Envelope
	fail bool
}

func (f *fakeSink) ID() string { return f.id }

func (f *fakeSink) Send(env Envelope) error {
	if f.fail {
		return errors.New("broken pipe")
	}
	f.got = append(f.got, env)
	return nil
}

func (f *fakeSink) Close() error { return nil }

func TestRegisterDeliversSnapshotFirst(t *testing.T) {
	h := NewHub(nil)
	h.SetSnapshot(func() any { return map[string]int{"vessels": 3} })

	sink := &fakeSink{id: "s1"}
	if err := h.Register(sink); err != nil {
		t.Fatalf("register: %v", err)
	}
	h.VesselUpdate(model.VesselState{VesselID: "ferry-01"})

	if len(sink.got) != 2 {
		t.Fatalf("messages: %d", len(sink.got))
	}
	if sink.got[0].Type != TypeInitialData {
		t.Fatalf("first message must be initial_data, got %s", sink.got[0].Type)
	}
	if sink.got[1].Type != TypeVesselUpdate {
		t.Fatalf("second message: %s", sink.got[1].Type)
	}
}

func TestSetSnapshotConcurrentWithRegister(t *testing.T) {
	h := NewHub(nil)
	h.SetSnapshot(func() any { return "v0" })

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			h.SetSnapshot(func() any { return "v1" })
		}
	}()
	for i := 0; i < 200; i++ {
		sink := &fakeSink{id: fmt.Sprintf("s%d", i)}
		if err := h.Register(sink); err != nil {
			t.Fatalf("register: %v", err)
		}
		if len(sink.got) != 1 || sink.got[0].Type != TypeInitialData {
			t.Fatalf("sink %d missed initial_data", i)
		}
		h.Unregister(sink.id)
	}
	<-done
}

func TestRegisterFailsWhenSnapshotSendFails(t *testing.T) {
	h := NewHub(nil)
	h.SetSnapshot(func() any { return nil })

	sink := &fakeSink{id: "s1", fail: true}
	if err := h.Register(sink); err == nil {
		t.Fatalf("expected register to fail")
	}
	if h.Sinks() != 0 {
		t.Fatalf("failed sink must not be registered")
	}
}

func TestPublishRemovesDeadSink(t *testing.T) {
	h := NewHub(nil)
	good := &fakeSink{id: "good"}
	bad := &fakeSink{id: "bad", fail: true}
	if err := h.Register(good); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := h.Register(bad); err != nil {
		t.Fatalf("register: %v", err)
	}

	h.Publish(Envelope{Type: TypeSystemStatus})
	if h.Sinks() != 1 {
		t.Fatalf("dead sink not removed, sinks=%d", h.Sinks())
	}
	if len(good.got) != 1 {
		t.Fatalf("healthy sink missed delivery")
	}
}

func TestEmergencyAlertDoubleBroadcast(t *testing.T) {
	h := NewHub(nil)
	sink := &fakeSink{id: "s1"}
	if err := h.Register(sink); err != nil {
		t.Fatalf("register: %v", err)
	}

	h.NewAlert(model.Alert{ID: "a1", Type: model.AlertEmergency, Severity: model.SeverityCritical})
	if len(sink.got) != 2 {
		t.Fatalf("emergency should fan out twice, got %d", len(sink.got))
	}
	if sink.got[0].Type != TypeNewAlert || sink.got[1].Type != TypeEmergencyAlert {
		t.Fatalf("types: %s, %s", sink.got[0].Type, sink.got[1].Type)
	}

	h.NewAlert(model.Alert{ID: "a2", Type: model.AlertEngine, Severity: model.SeverityWarning})
	if len(sink.got) != 3 {
		t.Fatalf("ordinary alert should fan out once")
	}
}

func TestOperationsReplacesRouteTable(t *testing.T) {
	h := NewHub(nil)
	h.Operations([]model.RouteStatus{{RouteID: "r1"}, {RouteID: "r2"}})
	h.Operations([]model.RouteStatus{{RouteID: "r3", VesselCount: 2}})

	routes := h.Routes()
	if len(routes) != 1 || routes[0].RouteID != "r3" {
		t.Fatalf("route table not replaced: %v", routes)
	}
}

func TestMQTTStatusTracked(t *testing.T) {
	h := NewHub(nil)
	if h.MQTTConnected() {
		t.Fatalf("should start disconnected")
	}
	h.MQTTStatus(true)
	if !h.MQTTConnected() {
		t.Fatalf("status not tracked")
	}
}

func TestWeatherKeptPerZone(t *testing.T) {
	h := NewHub(nil)
	h.Weather(model.WeatherReport{Zone: "north", WaveHeight: 1.2})
	h.Weather(model.WeatherReport{Zone: "north", WaveHeight: 2.5})
	h.Weather(model.WeatherReport{Zone: "south", WaveHeight: 0.5})

	reports := h.WeatherReports()
	if len(reports) != 2 {
		t.Fatalf("expected one report per zone, got %d", len(reports))
	}
}
