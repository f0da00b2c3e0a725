package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"fleetwatch/internal/config"
	"fleetwatch/internal/metrics"
	"fleetwatch/internal/model"
)

// StartKafka consumes a bulk telemetry topic, one JSON telemetry
// payload per message with the vesselId embedded. Used for replaying
// recorded voyages into the reconciler; disabled by default.
func StartKafka(ctx context.Context, cfg *config.Manager, out chan<- model.TelemetryFragment, logger *slog.Logger) {
	current := cfg.Get().Ingest.Kafka
	if !current.Enabled {
		if logger != nil {
			logger.Info("kafka ingest disabled")
		}
		return
	}
	if logger != nil {
		logger.Info("kafka ingest enabled", "brokers", current.Brokers, "topic", current.Topic, "group_id", current.GroupID)
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  current.Brokers,
		Topic:    current.Topic,
		GroupID:  current.GroupID,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
	go func() {
		defer reader.Close()
		var backoff time.Duration
		for {
			m, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if logger != nil {
					logger.Warn("kafka read error", "err", err)
				}
				backoff = NextBackoff(backoff, 30*time.Second)
				if !BackoffSleep(ctx, backoff) {
					return
				}
				continue
			}
			backoff = 0
			frag, err := DecodeFragment("kafka", string(m.Key), m.Value, time.Now().UTC())
			if err != nil {
				metrics.ParseErrors.WithLabelValues("kafka").Inc()
				if logger != nil {
					logger.Warn("kafka message dropped", "offset", m.Offset, "err", err)
				}
				continue
			}
			SendNonBlocking(ctx, out, frag, logger)
		}
	}()
}
