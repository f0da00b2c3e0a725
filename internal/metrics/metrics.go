// Package metrics exposes Prometheus counters for the service's hot
// paths. All metrics are registered on the default registry and served
// by the API server at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FragmentsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleetwatch",
		Name:      "fragments_ingested_total",
		Help:      "Telemetry fragments accepted by ingestion adapters.",
	}, []string{"source"})

	FragmentsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleetwatch",
		Name:      "fragments_dropped_total",
		Help:      "Fragments dropped before reaching the reconciler.",
	}, []string{"source", "reason"})

	ParseErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleetwatch",
		Name:      "parse_errors_total",
		Help:      "Malformed ingress payloads dropped at the adapter boundary.",
	}, []string{"source"})

	MergesApplied = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fleetwatch",
		Name:      "merges_applied_total",
		Help:      "Fragments merged into canonical vessel state.",
	})

	AlertsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleetwatch",
		Name:      "alerts_emitted_total",
		Help:      "Alerts emitted by the threshold engine.",
	}, []string{"severity"})

	SamplesPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fleetwatch",
		Name:      "history_samples_persisted_total",
		Help:      "Raw samples written to the historical store.",
	})

	SamplesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleetwatch",
		Name:      "history_samples_dropped_total",
		Help:      "Samples rejected before persistence.",
	}, []string{"reason"})

	BroadcastDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fleetwatch",
		Name:      "broadcast_dropped_total",
		Help:      "Envelopes dropped because a dashboard sink stalled or failed.",
	})

	SinksConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fleetwatch",
		Name:      "sinks_connected",
		Help:      "Dashboard sinks currently registered on the hub.",
	})
)
