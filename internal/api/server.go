package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fleetwatch/internal/alerts"
	"fleetwatch/internal/config"
	"fleetwatch/internal/hub"
	"fleetwatch/internal/model"
	"fleetwatch/internal/query"
	"fleetwatch/internal/reconcile"
)

type Server struct {
	cfg     *config.Manager
	recon   *reconcile.Reconciler
	alerts  *alerts.Store
	hub     *hub.Hub
	query   *query.Service
	logger  *slog.Logger
	version string
	started time.Time

	upgrader websocket.Upgrader
}

// Start wires the HTTP surface: fleet reads, alert acknowledgement,
// history queries, the dashboard WebSocket endpoint and Prometheus
// metrics. Returns nil when the API is disabled.
func Start(ctx context.Context, cfg *config.Manager, recon *reconcile.Reconciler, alertStore *alerts.Store, h *hub.Hub, qs *query.Service, logger *slog.Logger, version string) *Server {
	if cfg == nil {
		return nil
	}
	current := cfg.Get().API
	if !current.Enabled {
		if logger != nil {
			logger.Info("api disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("api enabled", "addr", current.Addr)
	}
	server := &Server{
		cfg:     cfg,
		recon:   recon,
		alerts:  alertStore,
		hub:     h,
		query:   qs,
		logger:  logger,
		version: version,
		started: time.Now().UTC(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	// The snapshot builder must be in place before the listener accepts
	// its first /ws registration.
	h.SetSnapshot(server.Snapshot)

	mux := http.NewServeMux()
	mux.HandleFunc("/status", server.handleStatus)
	mux.HandleFunc("/fleet", server.handleFleet)
	mux.HandleFunc("/fleet/", server.handleVessel)
	mux.HandleFunc("/alerts", server.handleAlerts)
	mux.HandleFunc("/alerts/acknowledge", server.handleAcknowledge)
	mux.HandleFunc("/routes", server.handleRoutes)
	mux.HandleFunc("/history/query", server.handleHistoryQuery)
	mux.HandleFunc("/history/export", server.handleHistoryExport)
	mux.HandleFunc("/history/stats", server.handleHistoryStats)
	mux.HandleFunc("/ws", server.handleWS)
	mux.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{Addr: current.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("api server error", "err", err)
			}
		}
	}()
	return server
}

// SystemStatus summarizes the fleet and transports; served on /status
// and broadcast as system_status.
func (s *Server) SystemStatus() map[string]any {
	fleet := s.recon.Snapshot()
	byStatus := map[model.Status]int{}
	byOp := map[model.OperationalState]int{}
	for _, v := range fleet {
		byStatus[v.Status]++
		byOp[v.OperationalState]++
	}
	return map[string]any{
		"time":           time.Now().UTC().Format(time.RFC3339Nano),
		"version":        s.version,
		"uptime_sec":     int(time.Since(s.started).Seconds()),
		"vessels":        len(fleet),
		"by_status":      byStatus,
		"by_operational": byOp,
		"alerts":         s.alerts.Len(),
		"sinks":          s.hub.Sinks(),
		"mqtt_connected": s.hub.MQTTConnected(),
	}
}

// Snapshot builds the initial_data payload a dashboard session receives
// on registration.
func (s *Server) Snapshot() any {
	return map[string]any{
		"vessels": s.recon.Snapshot(),
		"alerts":  s.alerts.List(0),
		"routes":  s.hub.Routes(),
		"weather": s.hub.WeatherReports(),
		"status":  s.SystemStatus(),
	}
}

// HistoryRequest resolves an in-band historical_data request from a
// dashboard session.
func (s *Server) HistoryRequest(vesselID, metric, rngStr string) (any, error) {
	rng, err := query.ParseRange(rngStr)
	if err != nil {
		return nil, err
	}
	points, err := s.query.Metric(context.Background(), vesselID, metric, rng)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"vesselId": vesselID,
		"metric":   metric,
		"range":    string(rng),
		"points":   points,
	}, nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.SystemStatus())
}

func (s *Server) handleFleet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	fleet := s.recon.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"vessels": fleet,
		"count":   len(fleet),
	})
}

func (s *Server) handleVessel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/fleet/")
	if id == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	state, ok := s.recon.Vessel(id)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	list := s.alerts.List(limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": list,
		"count":  len(list),
	})
}

func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	var req struct {
		AlertID string `json:"alertId"`
	}
	if err := json.Unmarshal(body, &req); err != nil || req.AlertID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	alert, err := s.alerts.Acknowledge(req.AlertID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	s.hub.AlertAcknowledged(alert)
	writeJSON(w, http.StatusOK, alert)
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	routes := s.hub.Routes()
	writeJSON(w, http.StatusOK, map[string]any{
		"routes": routes,
		"count":  len(routes),
	})
}

func (s *Server) handleHistoryQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	vesselID := q.Get("vessel")
	if vesselID == "" {
		http.Error(w, "vessel required", http.StatusBadRequest)
		return
	}
	rng, err := query.ParseRange(q.Get("range"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if multi := q.Get("metrics"); multi != "" {
		names := strings.Split(multi, ",")
		series, err := s.query.Metrics(r.Context(), vesselID, names, rng)
		if err != nil {
			s.historyError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"vesselId": vesselID,
			"range":    string(rng),
			"series":   series,
		})
		return
	}

	metric := q.Get("metric")
	points, err := s.query.Metric(r.Context(), vesselID, metric, rng)
	if err != nil {
		s.historyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"vesselId": vesselID,
		"metric":   metric,
		"range":    string(rng),
		"points":   points,
	})
}

func (s *Server) handleHistoryExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	vesselID := q.Get("vessel")
	if vesselID == "" {
		http.Error(w, "vessel required", http.StatusBadRequest)
		return
	}
	rng, err := query.ParseRange(q.Get("range"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="telemetry_`+vesselID+"_"+string(rng)+`.csv"`)
	if err := s.query.ExportCSV(r.Context(), w, vesselID, rng); err != nil && s.logger != nil {
		s.logger.Error("csv export failed", "vessel_id", vesselID, "err", err)
	}
}

func (s *Server) handleHistoryStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	vesselID := q.Get("vessel")
	metric := q.Get("metric")
	if vesselID == "" || metric == "" {
		http.Error(w, "vessel and metric required", http.StatusBadRequest)
		return
	}
	rng, err := query.ParseRange(q.Get("range"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	stats, err := s.query.Stats(r.Context(), vesselID, metric, rng)
	if err != nil {
		s.historyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"vesselId": vesselID,
		"metric":   metric,
		"range":    string(rng),
		"stats":    stats,
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("dashboard upgrade failed", "remote", r.RemoteAddr, "err", err)
		}
		return
	}
	sess := hub.NewSession(conn, s.cfg.Get().Hub.SessionBuffer, s.logger)
	if err := s.hub.Register(sess); err != nil {
		if s.logger != nil {
			s.logger.Warn("dashboard registration failed", "remote", r.RemoteAddr, "err", err)
		}
		return
	}
	go sess.Run(s.hub, s.HistoryRequest)
}

func (s *Server) historyError(w http.ResponseWriter, err error) {
	if errors.Is(err, model.ErrNotFound) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if s.logger != nil {
		s.logger.Error("history query failed", "err", err)
	}
	w.WriteHeader(http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
