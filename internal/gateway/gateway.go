// Package gateway exposes the voice controller to the UI over HTTP and
// WebSocket.
//
// The HTTP surface is a thin control plane: start/stop/reset the session,
// read its snapshot, health and metrics endpoints. The WebSocket endpoint
// pushes every snapshot change to connected clients and accepts the same
// control commands as JSON messages, so the UI never needs to poll.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/naveo-ai/naveo-voice/internal/config"
	"github.com/naveo-ai/naveo-voice/internal/health"
	"github.com/naveo-ai/naveo-voice/internal/observe"
	"github.com/naveo-ai/naveo-voice/internal/voice"
)

// Controller is the slice of the voice controller the gateway drives.
// *voice.Controller is the production implementation.
type Controller interface {
	Start(ctx context.Context) error
	Stop()
	Reset(ctx context.Context)
	Snapshot() voice.Snapshot
	OnChange(fn func(voice.Snapshot))
}

// command is an inbound WebSocket control message.
type command struct {
	Op string `json:"op"`
}

// clientSendBuffer bounds the per-client push queue. A client that cannot
// keep up loses intermediate snapshots, never the connection.
const clientSendBuffer = 16

// Server is the UI-facing HTTP + WebSocket gateway.
type Server struct {
	ctrl    Controller
	health  *health.Handler
	metrics *observe.Metrics
	cfg     config.ServerConfig

	upgrader websocket.Upgrader

	// baseCtx outlives individual requests; sessions started over HTTP must
	// not die with the request that started them.
	baseCtx context.Context

	clientsMu sync.Mutex
	clients   map[*client]struct{}

	httpSrv *http.Server
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// New creates a gateway over ctrl. The health handler and metrics are shared
// with the rest of the process; cfg supplies the listen address and TLS.
func New(ctrl Controller, healthHandler *health.Handler, metrics *observe.Metrics, cfg config.ServerConfig) *Server {
	s := &Server{
		ctrl:    ctrl,
		health:  healthHandler,
		metrics: metrics,
		cfg:     cfg,
		clients: make(map[*client]struct{}),
		baseCtx: context.Background(),
		upgrader: websocket.Upgrader{
			// The UI is served from a different origin during development.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	ctrl.OnChange(s.broadcastSnapshot)
	return s
}

// Handler builds the full route table wrapped in the observe middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /voice/start", s.handleStart)
	mux.HandleFunc("POST /voice/stop", s.handleStop)
	mux.HandleFunc("POST /voice/reset", s.handleReset)
	mux.HandleFunc("GET /voice/state", s.handleState)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.Handle("GET /metrics", promhttp.Handler())
	s.health.Register(mux)

	return observe.Middleware(s.metrics)(mux)
}

// Serve runs the gateway until ctx is cancelled, then drains with a timeout.
func (s *Server) Serve(ctx context.Context) error {
	s.baseCtx = ctx

	s.httpSrv = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if tls := s.cfg.TLS; tls != nil {
			err = s.httpSrv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = s.httpSrv.ListenAndServe()
		}
		errCh <- err
	}()

	slog.Info("gateway listening", "addr", s.cfg.ListenAddr, "tls", s.cfg.TLS != nil)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.closeClients()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// ─── Control handlers ────────────────────────────────────────────────────────

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	// The session outlives the request; anchor it on the server context.
	if err := s.ctrl.Start(s.baseCtx); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, voice.ErrSessionActive) {
			status = http.StatusConflict
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	s.ctrl.Stop()
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	// Reset reconnects on its own; the fresh session must outlive the request.
	s.ctrl.Reset(s.baseCtx)
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

// ─── WebSocket push ──────────────────────────────────────────────────────────

// handleWS upgrades the connection, sends the current snapshot immediately,
// then pushes every subsequent change. Inbound messages are control commands
// ({"op": "start"|"stop"|"reset"}); anything else is logged and ignored.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "err", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientSendBuffer)}

	s.clientsMu.Lock()
	s.clients[c] = struct{}{}
	s.clientsMu.Unlock()

	slog.Debug("ui client connected", "remote", conn.RemoteAddr())

	go s.writeLoop(c)
	s.pushSnapshot(c, s.ctrl.Snapshot())

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, c)
		s.clientsMu.Unlock()
		close(c.send)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd command
		if err := json.Unmarshal(data, &cmd); err != nil {
			slog.Warn("malformed ui command", "err", err)
			continue
		}

		switch cmd.Op {
		case "start":
			if err := s.ctrl.Start(s.baseCtx); err != nil && !errors.Is(err, voice.ErrSessionActive) {
				slog.Warn("start via websocket failed", "err", err)
			}
		case "stop":
			s.ctrl.Stop()
		case "reset":
			s.ctrl.Reset(s.baseCtx)
		default:
			slog.Warn("unknown ui command", "op", cmd.Op)
		}
	}
}

// writeLoop serialises all writes to one connection; gorilla/websocket allows
// a single concurrent writer.
func (s *Server) writeLoop(c *client) {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			slog.Debug("ui client write failed", "err", err)
			c.conn.Close()
			return
		}
	}
	c.conn.Close()
}

// broadcastSnapshot is the controller's change callback.
func (s *Server) broadcastSnapshot(snap voice.Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		slog.Error("marshal snapshot", "err", err)
		return
	}

	s.clientsMu.Lock()
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			// Slow client: skip this update, the next one supersedes it.
		}
	}
	s.clientsMu.Unlock()
}

func (s *Server) pushSnapshot(c *client, snap voice.Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (s *Server) closeClients() {
	s.clientsMu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c.conn)
	}
	s.clientsMu.Unlock()

	for _, conn := range conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
	}
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response", "err", err)
	}
}
