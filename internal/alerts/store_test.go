package alerts

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"fleetwatch/internal/model"
)

func alertN(i int, sev model.Severity, ts time.Time) model.Alert {
	return model.Alert{
		ID:        fmt.Sprintf("a-%03d", i),
		VesselID:  "ferry-01",
		Type:      model.AlertEngine,
		Severity:  sev,
		Message:   "test",
		Timestamp: ts,
	}
}

func TestStoreNewestFirstAndCap(t *testing.T) {
	s := NewStore(5)
	base := time.Now().UTC()
	for i := 0; i < 7; i++ {
		s.Add(alertN(i, model.SeverityWarning, base.Add(time.Duration(i)*time.Second)))
	}
	got := s.List(0)
	if len(got) != 5 {
		t.Fatalf("cap not enforced: %d", len(got))
	}
	if got[0].ID != "a-006" || got[4].ID != "a-002" {
		t.Fatalf("order wrong: %s..%s", got[0].ID, got[4].ID)
	}
}

func TestStoreSparesCriticalOnOverflow(t *testing.T) {
	s := NewStore(3)
	base := time.Now().UTC()
	s.Add(alertN(0, model.SeverityCritical, base))
	s.Add(alertN(1, model.SeverityWarning, base.Add(time.Second)))
	s.Add(alertN(2, model.SeverityWarning, base.Add(2*time.Second)))
	s.Add(alertN(3, model.SeverityWarning, base.Add(3*time.Second)))

	got := s.List(0)
	if len(got) != 3 {
		t.Fatalf("len: %d", len(got))
	}
	// The oldest warning was dropped; the older critical survives.
	if got[2].ID != "a-000" {
		t.Fatalf("critical should survive overflow, tail is %s", got[2].ID)
	}
}

func TestAcknowledge(t *testing.T) {
	s := NewStore(10)
	now := time.Now().UTC()
	s.Add(alertN(0, model.SeverityWarning, now))

	ack, err := s.Acknowledge("a-000", now)
	if err != nil {
		t.Fatalf("ack: %v", err)
	}
	if !ack.Acknowledged || ack.AcknowledgedAt == nil {
		t.Fatalf("ack not recorded")
	}
	first := *ack.AcknowledgedAt

	// Second ack is a no-op, timestamp unchanged.
	ack, err = s.Acknowledge("a-000", now.Add(time.Minute))
	if err != nil {
		t.Fatalf("repeat ack: %v", err)
	}
	if !ack.AcknowledgedAt.Equal(first) {
		t.Fatalf("repeat ack must not move the timestamp")
	}

	if _, err := s.Acknowledge("missing", now); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("unknown id should be ErrNotFound, got %v", err)
	}
}

func TestPruneKeepsCritical(t *testing.T) {
	s := NewStore(10)
	now := time.Now().UTC()
	s.Add(alertN(0, model.SeverityWarning, now.Add(-25*time.Hour)))
	s.Add(alertN(1, model.SeverityCritical, now.Add(-25*time.Hour)))
	s.Add(alertN(2, model.SeverityWarning, now.Add(-time.Hour)))

	if removed := s.Prune(now, 24*time.Hour); removed != 1 {
		t.Fatalf("removed: %d", removed)
	}
	got := s.List(0)
	if len(got) != 2 {
		t.Fatalf("len after prune: %d", len(got))
	}
	for _, a := range got {
		if a.ID == "a-000" {
			t.Fatalf("stale warning survived prune")
		}
	}
}
