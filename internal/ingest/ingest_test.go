package ingest

import (
	"context"
	"testing"
	"time"

	"fleetwatch/internal/model"
)

func fragWithRPM(vessel string, rpm float64) model.TelemetryFragment {
	frag := model.TelemetryFragment{VesselID: vessel, ArrivalTime: time.Now().UTC(), Source: "test"}
	frag.Engine.RPM = &rpm
	return frag
}

func TestSendNonBlockingDropsEmptyFragment(t *testing.T) {
	out := make(chan model.TelemetryFragment, 4)
	empty := model.TelemetryFragment{VesselID: "ferry-01", ArrivalTime: time.Now().UTC(), Source: "test"}

	if SendNonBlocking(context.Background(), out, empty, nil) {
		t.Fatalf("empty fragment must be dropped")
	}
	if len(out) != 0 {
		t.Fatalf("empty fragment reached the channel")
	}

	if !SendNonBlocking(context.Background(), out, fragWithRPM("ferry-01", 1200), nil) {
		t.Fatalf("fragment with a reading must be accepted")
	}
	if len(out) != 1 {
		t.Fatalf("accepted fragment missing from channel")
	}
}

func TestSendNonBlockingDropsWhenFull(t *testing.T) {
	out := make(chan model.TelemetryFragment, 1)
	if !SendNonBlocking(context.Background(), out, fragWithRPM("ferry-01", 100), nil) {
		t.Fatalf("first send should succeed")
	}
	// Channel full with no consumer: the send fails instead of blocking.
	if SendNonBlocking(context.Background(), out, fragWithRPM("ferry-02", 200), nil) {
		t.Fatalf("send into a full channel must drop")
	}
	if got := <-out; got.VesselID != "ferry-01" {
		t.Fatalf("queued fragment replaced: %s", got.VesselID)
	}
}
