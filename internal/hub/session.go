package hub

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrSlowSink is returned by Session.Send when the outbound buffer is
// full. The hub reacts by disconnecting the session; telemetry is never
// held back for a stalled dashboard.
var ErrSlowSink = errors.New("session outbound buffer full")

var errSessionClosed = errors.New("session closed")

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// HistoryHandler resolves a dashboard's historical_data request.
type HistoryHandler func(vesselID, metric, rng string) (any, error)

// Session adapts a dashboard WebSocket connection to the Sink
// interface. Writes are serialized through a buffered channel and a
// single writer goroutine; Send never blocks.
type Session struct {
	id     string
	conn   *websocket.Conn
	logger *slog.Logger

	out    chan Envelope
	closed chan struct{}
	once   sync.Once
}

func NewSession(conn *websocket.Conn, buffer int, logger *slog.Logger) *Session {
	if buffer <= 0 {
		buffer = 64
	}
	return &Session{
		id:     uuid.NewString(),
		conn:   conn,
		logger: logger,
		out:    make(chan Envelope, buffer),
		closed: make(chan struct{}),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Send(env Envelope) error {
	select {
	case <-s.closed:
		return errSessionClosed
	default:
	}
	select {
	case s.out <- env:
		return nil
	default:
		return ErrSlowSink
	}
}

func (s *Session) Close() error {
	s.once.Do(func() {
		close(s.closed)
		_ = s.conn.Close()
	})
	return nil
}

// Run starts the writer and reader loops and blocks until the session
// ends. The caller must have registered the session on the hub first.
func (s *Session) Run(h *Hub, history HistoryHandler) {
	go s.writeLoop()
	s.readLoop(h, history)
	h.Unregister(s.id)
}

func (s *Session) writeLoop() {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case env := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteJSON(env); err != nil {
				if s.logger != nil {
					s.logger.Debug("session write failed", "sink_id", s.id, "err", err)
				}
				_ = s.Close()
				return
			}
		case <-ping.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = s.Close()
				return
			}
		case <-s.closed:
			return
		}
	}
}

type sessionRequest struct {
	Type string `json:"type"`
	Data struct {
		VesselID string `json:"vesselId"`
		Metric   string `json:"metric"`
		Range    string `json:"range"`
	} `json:"data"`
}

func (s *Session) readLoop(h *Hub, history HistoryHandler) {
	defer s.Close()
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var req sessionRequest
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}
		switch req.Type {
		case "request_history":
			if history == nil {
				continue
			}
			payload, err := history(req.Data.VesselID, req.Data.Metric, req.Data.Range)
			if err != nil {
				if s.logger != nil {
					s.logger.Debug("history request failed", "sink_id", s.id, "err", err)
				}
				continue
			}
			_ = s.Send(Envelope{Type: TypeHistoricalData, Data: payload})
		default:
			// Dashboards may send keepalives or UI chatter; ignore.
		}
	}
}
