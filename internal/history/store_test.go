package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"fleetwatch/internal/model"
)

func f64(v float64) *float64 { return &v }

func newTestStore(t *testing.T) Store {
	t.Helper()
	store, err := NewSQLite("file:" + filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleAt(vessel string, ts time.Time, rpm float64) model.Sample {
	return model.Sample{VesselID: vessel, Timestamp: ts, EngineRPM: f64(rpm)}
}

func TestSaveSampleUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := s.SaveSample(ctx, sampleAt("ferry-01", ts, 1000)); err != nil {
		t.Fatalf("save: %v", err)
	}
	// Same key again overwrites rather than duplicating.
	if err := s.SaveSample(ctx, sampleAt("ferry-01", ts, 1200)); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	points, err := s.QuerySamples(ctx, "ferry-01", model.MetricEngineRPM, ts.Add(-time.Minute), ts.Add(time.Minute))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(points) != 1 || points[0].Value != 1200 {
		t.Fatalf("want single row 1200, got %v", points)
	}
}

func TestQuerySamplesSkipsNulls(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := s.SaveSample(ctx, sampleAt("ferry-01", ts, 900)); err != nil {
		t.Fatalf("save: %v", err)
	}
	// This row has no rpm reading at all.
	if err := s.SaveSample(ctx, model.Sample{VesselID: "ferry-01", Timestamp: ts.Add(time.Second), Speed: f64(10)}); err != nil {
		t.Fatalf("save: %v", err)
	}

	points, err := s.QuerySamples(ctx, "ferry-01", model.MetricEngineRPM, ts.Add(-time.Minute), ts.Add(time.Minute))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("null rpm rows must be excluded, got %d points", len(points))
	}
}

func TestAggregateIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	window := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, v := range []float64{100, 200, 300} {
		if err := s.SaveSample(ctx, sampleAt("ferry-01", window.Add(time.Duration(i)*time.Minute), v)); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	// One sample outside the window must not count.
	if err := s.SaveSample(ctx, sampleAt("ferry-01", window.Add(6*time.Minute), 9999)); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := s.Aggregate(ctx, model.Interval5Min, window); err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	// Re-running the same window overwrites, never duplicates.
	if err := s.Aggregate(ctx, model.Interval5Min, window); err != nil {
		t.Fatalf("re-aggregate: %v", err)
	}

	points, err := s.QueryAggregates(ctx, "ferry-01", model.MetricEngineRPM, model.Interval5Min,
		window.Add(-time.Hour), window.Add(time.Hour))
	if err != nil {
		t.Fatalf("query aggregates: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("want one bucket, got %d", len(points))
	}
	if points[0].Value != 200 {
		t.Fatalf("avg: %v", points[0].Value)
	}
	if !points[0].Timestamp.Equal(window) {
		t.Fatalf("bucket start: %v", points[0].Timestamp)
	}
}

func TestAggregateSkipsEmptyMetrics(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	window := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := s.SaveSample(ctx, sampleAt("ferry-01", window, 500)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Aggregate(ctx, model.Interval5Min, window); err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	// Only rpm was reported, so only rpm has a bucket.
	points, err := s.QueryAggregates(ctx, "ferry-01", model.MetricBatterySOC, model.Interval5Min,
		window.Add(-time.Hour), window.Add(time.Hour))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(points) != 0 {
		t.Fatalf("unreported metric must have no bucket, got %d", len(points))
	}
}

func TestRetain(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	if err := s.SaveSample(ctx, sampleAt("ferry-01", now.Add(-25*time.Hour), 100)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveSample(ctx, sampleAt("ferry-01", now.Add(-time.Hour), 200)); err != nil {
		t.Fatalf("save: %v", err)
	}
	old := model.Event{VesselID: "ferry-01", Timestamp: now.Add(-8 * 24 * time.Hour), EventType: "alert_engine", Severity: "warning"}
	fresh := model.Event{VesselID: "ferry-01", Timestamp: now.Add(-time.Hour), EventType: "alert_engine", Severity: "warning"}
	if err := s.SaveEvent(ctx, old); err != nil {
		t.Fatalf("save event: %v", err)
	}
	if err := s.SaveEvent(ctx, fresh); err != nil {
		t.Fatalf("save event: %v", err)
	}

	pruned, err := s.Retain(ctx, now, 24*time.Hour, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("retain: %v", err)
	}
	if pruned.Samples != 1 || pruned.Events != 1 {
		t.Fatalf("pruned: %+v", pruned)
	}

	points, err := s.QuerySamples(ctx, "ferry-01", model.MetricEngineRPM, now.Add(-48*time.Hour), now)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(points) != 1 || points[0].Value != 200 {
		t.Fatalf("retention kept wrong rows: %v", points)
	}
}

func TestStatsZeroRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	stats, err := s.Stats(ctx, "ghost", model.MetricEngineRPM, now.Add(-time.Hour), now)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Count != 0 || stats.Min != 0 || stats.Max != 0 || stats.Avg != 0 {
		t.Fatalf("zero rows should yield zeroed stats: %+v", stats)
	}
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, v := range []float64{10, 20, 60} {
		if err := s.SaveSample(ctx, sampleAt("ferry-01", base.Add(time.Duration(i)*time.Second), v)); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	stats, err := s.Stats(ctx, "ferry-01", model.MetricEngineRPM, base.Add(-time.Minute), base.Add(time.Minute))
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Min != 10 || stats.Max != 60 || stats.Avg != 30 || stats.Count != 3 {
		t.Fatalf("stats: %+v", stats)
	}
}

func TestRawRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	sample := model.Sample{VesselID: "ferry-01", Timestamp: ts, EngineRPM: f64(1500), BatterySOC: f64(88)}
	if err := s.SaveSample(ctx, sample); err != nil {
		t.Fatalf("save: %v", err)
	}

	rows, err := s.RawRows(ctx, "ferry-01", ts.Add(-time.Minute), ts.Add(time.Minute))
	if err != nil {
		t.Fatalf("raw rows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows: %d", len(rows))
	}
	got := rows[0]
	if got.EngineRPM == nil || *got.EngineRPM != 1500 {
		t.Fatalf("rpm round trip failed")
	}
	if got.BatterySOC == nil || *got.BatterySOC != 88 {
		t.Fatalf("soc round trip failed")
	}
	if got.Voltage != nil {
		t.Fatalf("unreported metric should come back nil")
	}
	if !got.Timestamp.Equal(ts) {
		t.Fatalf("timestamp round trip: %v", got.Timestamp)
	}
}
