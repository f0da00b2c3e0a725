package history

import (
	"context"
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:fleetwatch.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{baseStore{db: db, rebind: passthrough}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS telemetry_samples (
			vessel_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			engine_rpm REAL,
			engine_temperature REAL,
			engine_fuel_flow REAL,
			battery_soc REAL,
			voltage REAL,
			generator_load REAL,
			speed REAL,
			heading REAL,
			latitude REAL,
			longitude REAL,
			bilge_level REAL,
			co2_level REAL,
			PRIMARY KEY (vessel_id, ts)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_samples_ts ON telemetry_samples(ts)`,
		`CREATE TABLE IF NOT EXISTS telemetry_aggregates (
			vessel_id TEXT NOT NULL,
			metric TEXT NOT NULL,
			interval_type TEXT NOT NULL,
			bucket_start INTEGER NOT NULL,
			min_value REAL NOT NULL,
			max_value REAL NOT NULL,
			avg_value REAL NOT NULL,
			sample_count INTEGER NOT NULL,
			PRIMARY KEY (vessel_id, metric, interval_type, bucket_start)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_aggregates_bucket ON telemetry_aggregates(bucket_start)`,
		`CREATE TABLE IF NOT EXISTS telemetry_events (
			vessel_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			event_type TEXT NOT NULL,
			severity TEXT NOT NULL,
			payload TEXT,
			PRIMARY KEY (vessel_id, ts, event_type)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_ts ON telemetry_events(ts)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
