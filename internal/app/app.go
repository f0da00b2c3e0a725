// Package app wires the components together: adapters feed the
// reconciler through one merged channel, the reconciler publishes to
// the alert engine, the broadcast hub and the history recorder, and
// the API server exposes the read side.
package app

import (
	"context"
	"log/slog"
	"time"

	"fleetwatch/internal/alerts"
	"fleetwatch/internal/api"
	"fleetwatch/internal/config"
	"fleetwatch/internal/history"
	"fleetwatch/internal/hub"
	"fleetwatch/internal/ingest"
	"fleetwatch/internal/logging"
	"fleetwatch/internal/model"
	"fleetwatch/internal/query"
	"fleetwatch/internal/reconcile"
)

const Version = "1.2.0"

type App struct {
	cfg *config.Manager
	log *slog.Logger

	store      history.Store
	recorder   *history.Recorder
	scheduler  *history.Scheduler
	alertStore *alerts.Store
	engine     *alerts.Engine
	hub        *hub.Hub
	recon      *reconcile.Reconciler
	query      *query.Service

	fragments chan model.TelemetryFragment
}

func New(cfg *config.Manager, logger *slog.Logger) (*App, error) {
	current := cfg.Get()

	store, err := history.NewStore(current.History)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:        cfg,
		log:        logger,
		store:      store,
		alertStore: alerts.NewStore(current.Alerts.StoreLimit),
		engine:     alerts.NewEngine(),
		hub:        hub.NewHub(logging.Module(logger, "hub")),
		recon:      reconcile.NewReconciler(current.Reconcile.OfflineAfter, logging.Module(logger, "reconcile")),
		fragments:  make(chan model.TelemetryFragment, current.Ingest.ChannelBuffer),
	}
	a.recorder = history.NewRecorder(store, current.History.SampleFreshness, current.History.QueueSize,
		logging.Module(logger, "history"))
	a.scheduler = history.NewScheduler(store, current.History.RawRetention, current.History.EventRetention,
		current.History.RetainEvery, logging.Module(logger, "history"))
	a.query = query.NewService(store)

	// Downstream consumers of canonical state. Listeners run on the
	// reconciler goroutine; each hands off quickly.
	a.recon.Subscribe(a.hub.VesselUpdate)
	a.recon.Subscribe(a.onStateForAlerts)
	a.recon.Subscribe(a.recorder.Record)

	return a, nil
}

func (a *App) onStateForAlerts(state model.VesselState) {
	for _, alert := range a.engine.Evaluate(state) {
		a.alertStore.Add(alert)
		a.hub.NewAlert(alert)
		a.recorder.RecordAlert(alert)
		a.log.Warn("alert",
			"vessel_id", alert.VesselID,
			"type", alert.Type,
			"severity", alert.Severity,
			"message", alert.Message,
		)
	}
}

func (a *App) Run(ctx context.Context) error {
	if a.store != nil {
		initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := a.store.Init(initCtx)
		cancel()
		if err != nil {
			return err
		}
	}

	a.recorder.Start(ctx)
	a.scheduler.Start(ctx)
	a.recon.Start(ctx, a.fragments)
	a.recon.StartSweeper(ctx, a.cfg.Get().Reconcile.SweepInterval)

	server := api.Start(ctx, a.cfg, a.recon, a.alertStore, a.hub, a.query,
		logging.Module(a.log, "api"), Version)

	ingest.StartMQTT(ctx, a.cfg, a.fragments, a.hub, logging.Module(a.log, "mqtt"))
	ingest.StartSocket(ctx, a.cfg, a.fragments, logging.Module(a.log, "socket"))
	ingest.StartKafka(ctx, a.cfg, a.fragments, logging.Module(a.log, "kafka"))

	prune := time.NewTicker(a.cfg.Get().Alerts.PruneInterval)
	status := time.NewTicker(a.cfg.Get().Hub.StatusInterval)
	defer prune.Stop()
	defer status.Stop()

	for {
		select {
		case <-ctx.Done():
			if a.store != nil {
				return a.store.Close()
			}
			return nil
		case <-prune.C:
			if n := a.alertStore.Prune(time.Now().UTC(), a.cfg.Get().Alerts.RetainFor); n > 0 {
				a.log.Info("alert log pruned", "removed", n)
			}
		case <-status.C:
			if server != nil {
				a.hub.SystemStatus(server.SystemStatus())
			}
		}
	}
}

// Reload re-reads the config file; tunables read through the manager
// pick the new values up on their next use.
func (a *App) Reload() {
	if _, err := a.cfg.Reload(); err != nil {
		a.log.Error("config reload failed", "err", err)
		return
	}
	a.log.Info("config reloaded", "path", a.cfg.Path())
}
