// Package history persists raw telemetry samples, periodic rollups and
// alert-derived events, and serves the read side for the query service.
// Timestamps are stored as unix milliseconds so both drivers order and
// compare them identically.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"fleetwatch/internal/config"
	"fleetwatch/internal/model"
)

type Store interface {
	Init(ctx context.Context) error
	Close() error

	SaveSample(ctx context.Context, s model.Sample) error
	SaveEvent(ctx context.Context, ev model.Event) error

	// Aggregate computes min/max/avg/count per vessel per metric for
	// raw samples in [windowStart, windowStart+interval) and upserts
	// one bucket per (vessel, metric). Re-running for the same window
	// overwrites, never duplicates.
	Aggregate(ctx context.Context, interval model.IntervalType, windowStart time.Time) error

	// Retain deletes raw samples and buckets older than rawAge and
	// events older than eventAge, measured from now.
	Retain(ctx context.Context, now time.Time, rawAge, eventAge time.Duration) (Pruned, error)

	QuerySamples(ctx context.Context, vesselID, metric string, from, to time.Time) ([]model.Point, error)
	QueryAggregates(ctx context.Context, vesselID, metric string, interval model.IntervalType, from, to time.Time) ([]model.Point, error)
	RawRows(ctx context.Context, vesselID string, from, to time.Time) ([]model.Sample, error)
	Stats(ctx context.Context, vesselID, metric string, from, to time.Time) (model.Stats, error)
}

type Pruned struct {
	Samples    int64
	Aggregates int64
	Events     int64
}

func NewStore(cfg config.HistoryConfig) (Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	default:
		return nil, errors.New("unsupported history driver")
	}
}

// baseStore carries the driver-independent DML. Queries are written
// with ? placeholders; the postgres store rewrites them to $N.
type baseStore struct {
	db     *sql.DB
	rebind func(string) string
}

func passthrough(q string) string { return q }

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func (b *baseStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return b.db.ExecContext(ctx, b.rebind(query), args...)
}

func (b *baseStore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return b.db.QueryContext(ctx, b.rebind(query), args...)
}

func unixMS(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMS(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

const sampleColumns = `engine_rpm, engine_temperature, engine_fuel_flow,
	battery_soc, voltage, generator_load, speed, heading,
	latitude, longitude, bilge_level, co2_level`

func (b *baseStore) SaveSample(ctx context.Context, s model.Sample) error {
	if b.db == nil || s.VesselID == "" {
		return nil
	}
	_, err := b.exec(ctx, `INSERT INTO telemetry_samples (vessel_id, ts, `+sampleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(vessel_id, ts) DO UPDATE SET
			engine_rpm = excluded.engine_rpm,
			engine_temperature = excluded.engine_temperature,
			engine_fuel_flow = excluded.engine_fuel_flow,
			battery_soc = excluded.battery_soc,
			voltage = excluded.voltage,
			generator_load = excluded.generator_load,
			speed = excluded.speed,
			heading = excluded.heading,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			bilge_level = excluded.bilge_level,
			co2_level = excluded.co2_level`,
		s.VesselID, unixMS(s.Timestamp),
		s.EngineRPM, s.EngineTemp, s.FuelFlow,
		s.BatterySOC, s.Voltage, s.GeneratorLoad, s.Speed, s.Heading,
		s.Latitude, s.Longitude, s.BilgeLevel, s.CO2Level)
	return err
}

func (b *baseStore) SaveEvent(ctx context.Context, ev model.Event) error {
	if b.db == nil || ev.VesselID == "" {
		return nil
	}
	_, err := b.exec(ctx, `INSERT INTO telemetry_events (vessel_id, ts, event_type, severity, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(vessel_id, ts, event_type) DO UPDATE SET
			severity = excluded.severity,
			payload = excluded.payload`,
		ev.VesselID, unixMS(ev.Timestamp), ev.EventType, ev.Severity, ev.Payload)
	return err
}

func (b *baseStore) Aggregate(ctx context.Context, interval model.IntervalType, windowStart time.Time) error {
	if b.db == nil {
		return nil
	}
	start := windowStart.UTC().Truncate(interval.Duration())
	end := start.Add(interval.Duration())

	for _, metric := range model.Metrics {
		// Metric names come from the fixed registry, never from input.
		rows, err := b.query(ctx, fmt.Sprintf(
			`SELECT vessel_id, MIN(%[1]s), MAX(%[1]s), AVG(%[1]s), COUNT(%[1]s)
			FROM telemetry_samples
			WHERE ts >= ? AND ts < ? AND %[1]s IS NOT NULL
			GROUP BY vessel_id`, metric),
			unixMS(start), unixMS(end))
		if err != nil {
			return fmt.Errorf("aggregate %s: %w", metric, err)
		}
		buckets, err := scanBuckets(rows, metric, interval, start)
		if err != nil {
			return fmt.Errorf("aggregate %s: %w", metric, err)
		}
		for _, bucket := range buckets {
			if err := b.upsertBucket(ctx, bucket); err != nil {
				return fmt.Errorf("aggregate %s: %w", metric, err)
			}
		}
	}
	return nil
}

func scanBuckets(rows *sql.Rows, metric string, interval model.IntervalType, start time.Time) ([]model.AggregateBucket, error) {
	defer rows.Close()
	var out []model.AggregateBucket
	for rows.Next() {
		var b model.AggregateBucket
		if err := rows.Scan(&b.VesselID, &b.Min, &b.Max, &b.Avg, &b.Count); err != nil {
			return nil, err
		}
		if b.Count == 0 {
			// No samples for the metric in this window: no bucket.
			continue
		}
		b.Metric = metric
		b.Interval = interval
		b.BucketStart = start
		out = append(out, b)
	}
	return out, rows.Err()
}

func (b *baseStore) upsertBucket(ctx context.Context, bucket model.AggregateBucket) error {
	_, err := b.exec(ctx, `INSERT INTO telemetry_aggregates
		(vessel_id, metric, interval_type, bucket_start, min_value, max_value, avg_value, sample_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(vessel_id, metric, interval_type, bucket_start) DO UPDATE SET
			min_value = excluded.min_value,
			max_value = excluded.max_value,
			avg_value = excluded.avg_value,
			sample_count = excluded.sample_count`,
		bucket.VesselID, bucket.Metric, string(bucket.Interval), unixMS(bucket.BucketStart),
		bucket.Min, bucket.Max, bucket.Avg, bucket.Count)
	return err
}

func (b *baseStore) Retain(ctx context.Context, now time.Time, rawAge, eventAge time.Duration) (Pruned, error) {
	var p Pruned
	if b.db == nil {
		return p, nil
	}
	rawCutoff := unixMS(now.Add(-rawAge))
	eventCutoff := unixMS(now.Add(-eventAge))

	res, err := b.exec(ctx, `DELETE FROM telemetry_samples WHERE ts < ?`, rawCutoff)
	if err != nil {
		return p, err
	}
	p.Samples, _ = res.RowsAffected()

	res, err = b.exec(ctx, `DELETE FROM telemetry_aggregates WHERE bucket_start < ?`, rawCutoff)
	if err != nil {
		return p, err
	}
	p.Aggregates, _ = res.RowsAffected()

	res, err = b.exec(ctx, `DELETE FROM telemetry_events WHERE ts < ?`, eventCutoff)
	if err != nil {
		return p, err
	}
	p.Events, _ = res.RowsAffected()
	return p, nil
}

func (b *baseStore) QuerySamples(ctx context.Context, vesselID, metric string, from, to time.Time) ([]model.Point, error) {
	if !model.IsMetric(metric) {
		return nil, model.ErrNotFound
	}
	rows, err := b.query(ctx, fmt.Sprintf(
		`SELECT ts, %[1]s FROM telemetry_samples
		WHERE vessel_id = ? AND ts >= ? AND ts < ? AND %[1]s IS NOT NULL
		ORDER BY ts ASC`, metric),
		vesselID, unixMS(from), unixMS(to))
	if err != nil {
		return nil, err
	}
	return scanPoints(rows)
}

func (b *baseStore) QueryAggregates(ctx context.Context, vesselID, metric string, interval model.IntervalType, from, to time.Time) ([]model.Point, error) {
	if !model.IsMetric(metric) {
		return nil, model.ErrNotFound
	}
	rows, err := b.query(ctx, `SELECT bucket_start, avg_value FROM telemetry_aggregates
		WHERE vessel_id = ? AND metric = ? AND interval_type = ? AND bucket_start >= ? AND bucket_start < ?
		ORDER BY bucket_start ASC`,
		vesselID, metric, string(interval), unixMS(from), unixMS(to))
	if err != nil {
		return nil, err
	}
	return scanPoints(rows)
}

func scanPoints(rows *sql.Rows) ([]model.Point, error) {
	defer rows.Close()
	var out []model.Point
	for rows.Next() {
		var ms int64
		var v float64
		if err := rows.Scan(&ms, &v); err != nil {
			return nil, err
		}
		out = append(out, model.Point{Timestamp: fromMS(ms), Value: v})
	}
	return out, rows.Err()
}

func (b *baseStore) RawRows(ctx context.Context, vesselID string, from, to time.Time) ([]model.Sample, error) {
	rows, err := b.query(ctx, `SELECT vessel_id, ts, `+sampleColumns+`
		FROM telemetry_samples
		WHERE vessel_id = ? AND ts >= ? AND ts < ?
		ORDER BY ts ASC`,
		vesselID, unixMS(from), unixMS(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Sample
	for rows.Next() {
		var s model.Sample
		var ms int64
		var vals [12]sql.NullFloat64
		dest := []any{&s.VesselID, &ms}
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		s.Timestamp = fromMS(ms)
		ptrs := []**float64{
			&s.EngineRPM, &s.EngineTemp, &s.FuelFlow,
			&s.BatterySOC, &s.Voltage, &s.GeneratorLoad, &s.Speed, &s.Heading,
			&s.Latitude, &s.Longitude, &s.BilgeLevel, &s.CO2Level,
		}
		for i, nv := range vals {
			if nv.Valid {
				v := nv.Float64
				*ptrs[i] = &v
			}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (b *baseStore) Stats(ctx context.Context, vesselID, metric string, from, to time.Time) (model.Stats, error) {
	if !model.IsMetric(metric) {
		return model.Stats{}, model.ErrNotFound
	}
	var mn, mx, avg sql.NullFloat64
	var count int64
	err := b.db.QueryRowContext(ctx, b.rebind(fmt.Sprintf(
		`SELECT MIN(%[1]s), MAX(%[1]s), AVG(%[1]s), COUNT(%[1]s)
		FROM telemetry_samples
		WHERE vessel_id = ? AND ts >= ? AND ts < ?`, metric)),
		vesselID, unixMS(from), unixMS(to)).
		Scan(&mn, &mx, &avg, &count)
	if err != nil {
		return model.Stats{}, err
	}
	// Zero matching rows yields zeroed stats, not an error.
	return model.Stats{Min: mn.Float64, Max: mx.Float64, Avg: avg.Float64, Count: count}, nil
}
