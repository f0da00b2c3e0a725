package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"fleetwatch/internal/config"
	"fleetwatch/internal/metrics"
	"fleetwatch/internal/model"
)

// socketEnvelope is the ingress wire format for the direct push
// transport: {"type": ..., "data": ...}.
type socketEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// StartSocket runs a WebSocket listener for vessels that push telemetry
// directly instead of publishing to the broker. Each connection gets
// its own read loop; a malformed envelope is logged and dropped without
// closing the connection.
func StartSocket(ctx context.Context, cfg *config.Manager, out chan<- model.TelemetryFragment, logger *slog.Logger) *http.Server {
	current := cfg.Get().Ingest.Socket
	if !current.Enabled {
		if logger != nil {
			logger.Info("socket ingest disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("socket ingest enabled", "addr", current.Addr, "path", current.Path)
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 1024,
		CheckOrigin:     func(*http.Request) bool { return true },
	}
	mux := http.NewServeMux()
	mux.HandleFunc(current.Path, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			if logger != nil {
				logger.Warn("socket upgrade failed", "remote", r.RemoteAddr, "err", err)
			}
			return
		}
		go handleSocketConn(ctx, conn, out, logger)
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

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
				logger.Error("socket ingest server error", "err", err)
			}
		}
	}()
	return httpServer
}

func handleSocketConn(ctx context.Context, conn *websocket.Conn, out chan<- model.TelemetryFragment, logger *slog.Logger) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	if logger != nil {
		logger.Debug("socket producer connected", "remote", remote)
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			if logger != nil {
				logger.Debug("socket producer disconnected", "remote", remote, "err", err)
			}
			return
		}
		handleSocketMessage(ctx, data, out, remote, logger)
	}
}

func handleSocketMessage(ctx context.Context, data []byte, out chan<- model.TelemetryFragment, remote string, logger *slog.Logger) {
	arrival := time.Now().UTC()
	var env socketEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		socketDropped(remote, &ParseError{Source: "socket", Err: err}, logger)
		return
	}
	switch env.Type {
	case "vessel_state", "telemetry_update":
		frag, err := DecodeFragment("socket", "", env.Data, arrival)
		if err != nil {
			socketDropped(remote, err, logger)
			return
		}
		SendNonBlocking(ctx, out, frag, logger)
	case "emergency_alert":
		var p struct {
			VesselID string `json:"vesselId"`
			Type     string `json:"type"`
		}
		if err := json.Unmarshal(env.Data, &p); err != nil {
			socketDropped(remote, &ParseError{Source: "socket", Err: err}, logger)
			return
		}
		frag, emit, err := DecodeEmergency("socket", p.VesselID, p.Type, env.Data, arrival)
		if err != nil {
			socketDropped(remote, err, logger)
			return
		}
		if emit {
			SendNonBlocking(ctx, out, frag, logger)
		}
	case "pong":
		// Keepalive reply, nothing to merge.
	default:
		socketDropped(remote, &ParseError{Source: "socket", Err: errBadTopic}, logger)
	}
}

func socketDropped(remote string, err error, logger *slog.Logger) {
	metrics.ParseErrors.WithLabelValues("socket").Inc()
	if logger != nil {
		logger.Warn("socket message dropped", "remote", remote, "err", err)
	}
}
