package history

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type postgresStore struct {
	baseStore
}

func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/fleetwatch?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &postgresStore{baseStore{db: db, rebind: rebindDollar}}, nil
}

// rebindDollar rewrites ? placeholders to postgres $N form.
func rebindDollar(query string) string {
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(ch)
	}
	return sb.String()
}

func (s *postgresStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS telemetry_samples (
			vessel_id TEXT NOT NULL,
			ts BIGINT NOT NULL,
			engine_rpm DOUBLE PRECISION,
			engine_temperature DOUBLE PRECISION,
			engine_fuel_flow DOUBLE PRECISION,
			battery_soc DOUBLE PRECISION,
			voltage DOUBLE PRECISION,
			generator_load DOUBLE PRECISION,
			speed DOUBLE PRECISION,
			heading DOUBLE PRECISION,
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			bilge_level DOUBLE PRECISION,
			co2_level DOUBLE PRECISION,
			PRIMARY KEY (vessel_id, ts)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_samples_ts ON telemetry_samples(ts)`,
		`CREATE TABLE IF NOT EXISTS telemetry_aggregates (
			vessel_id TEXT NOT NULL,
			metric TEXT NOT NULL,
			interval_type TEXT NOT NULL,
			bucket_start BIGINT NOT NULL,
			min_value DOUBLE PRECISION NOT NULL,
			max_value DOUBLE PRECISION NOT NULL,
			avg_value DOUBLE PRECISION NOT NULL,
			sample_count BIGINT NOT NULL,
			PRIMARY KEY (vessel_id, metric, interval_type, bucket_start)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_aggregates_bucket ON telemetry_aggregates(bucket_start)`,
		`CREATE TABLE IF NOT EXISTS telemetry_events (
			vessel_id TEXT NOT NULL,
			ts BIGINT NOT NULL,
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
