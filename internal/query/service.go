// Package query is the read side over the historical store: time-range
// metric fetches, CSV export and statistics.
package query

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"fleetwatch/internal/history"
	"fleetwatch/internal/model"
)

// Range is a query lookback window.
type Range string

const (
	Range1h  Range = "1h"
	Range6h  Range = "6h"
	Range12h Range = "12h"
	Range24h Range = "24h"
)

// rawCutoff is the widest range served from raw samples; anything
// longer reads 5-minute rollups instead. Resolution for storage is the
// intended trade-off.
const rawCutoff = 6 * time.Hour

func ParseRange(s string) (Range, error) {
	switch Range(s) {
	case Range1h, Range6h, Range12h, Range24h:
		return Range(s), nil
	case "":
		return Range1h, nil
	}
	return "", fmt.Errorf("invalid range %q (want 1h, 6h, 12h or 24h)", s)
}

func (r Range) Duration() time.Duration {
	switch r {
	case Range6h:
		return 6 * time.Hour
	case Range12h:
		return 12 * time.Hour
	case Range24h:
		return 24 * time.Hour
	default:
		return time.Hour
	}
}

type Service struct {
	store history.Store
}

func NewService(store history.Store) *Service {
	return &Service{store: store}
}

// Metric returns the ascending series for one vessel metric. Ranges up
// to 6h read raw samples; longer ranges read the 5-minute rollup's avg.
func (s *Service) Metric(ctx context.Context, vesselID, metric string, rng Range) ([]model.Point, error) {
	if s.store == nil {
		return nil, nil
	}
	if !model.IsMetric(metric) {
		return nil, model.ErrNotFound
	}
	to := time.Now().UTC()
	from := to.Add(-rng.Duration())
	if rng.Duration() <= rawCutoff {
		return s.store.QuerySamples(ctx, vesselID, metric, from, to)
	}
	return s.store.QueryAggregates(ctx, vesselID, metric, model.Interval5Min, from, to)
}

// Metrics fetches several metrics for one vessel in a single call.
func (s *Service) Metrics(ctx context.Context, vesselID string, metricNames []string, rng Range) (map[string][]model.Point, error) {
	out := make(map[string][]model.Point, len(metricNames))
	for _, name := range metricNames {
		points, err := s.Metric(ctx, vesselID, name, rng)
		if err != nil {
			return nil, err
		}
		out[name] = points
	}
	return out, nil
}

// Stats returns min/max/avg/count over raw samples in the range. Zero
// matching rows yields zeroed stats.
func (s *Service) Stats(ctx context.Context, vesselID, metric string, rng Range) (model.Stats, error) {
	if s.store == nil {
		return model.Stats{}, nil
	}
	to := time.Now().UTC()
	return s.store.Stats(ctx, vesselID, metric, to.Add(-rng.Duration()), to)
}

// csvHeader matches the raw table schema: identity columns followed by
// every metric column in registry order.
var csvHeader = append([]string{"vessel_id", "timestamp"}, model.Metrics...)

// ExportCSV writes the raw rows for the window verbatim: one header
// line, one line per sample, missing readings as empty fields.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer, vesselID string, rng Range) error {
	if s.store == nil {
		return nil
	}
	to := time.Now().UTC()
	rows, err := s.store.RawRows(ctx, vesselID, to.Add(-rng.Duration()), to)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	record := make([]string, len(csvHeader))
	for _, row := range rows {
		record[0] = row.VesselID
		record[1] = row.Timestamp.UTC().Format(time.RFC3339Nano)
		for i, name := range model.Metrics {
			if v, ok := row.Metric(name); ok {
				record[i+2] = strconv.FormatFloat(v, 'f', -1, 64)
			} else {
				record[i+2] = ""
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
