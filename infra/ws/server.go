// Package ws exposes the relay's WebSocket endpoints: one channel for
// observers and one for the simulator.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	corehub "github.com/aeroswarm/aeroswarm/core/hub"
	"github.com/aeroswarm/aeroswarm/core/logger"
	"github.com/aeroswarm/aeroswarm/core/protocol"
)

// Config defines the relay's listening endpoints.
type Config struct {
	Addr          string `json:"addr"`
	ObserverPath  string `json:"observer_path"`
	SimulatorPath string `json:"simulator_path"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":7010"
	}
	if c.ObserverPath == "" {
		c.ObserverPath = "/ws/observer"
	}
	if c.SimulatorPath == "" {
		c.SimulatorPath = "/ws/simulator"
	}
}

// Server upgrades HTTP requests on the observer and simulator paths and
// pumps decoded frames into the hub.
type Server struct {
	cfg      Config
	hub      *corehub.Hub
	log      logger.Logger
	upgrader websocket.Upgrader
}

// NewServer creates a relay server around the hub.
func NewServer(cfg Config, h *corehub.Hub, log logger.Logger) *Server {
	cfg.SetDefaults()
	return &Server{
		cfg: cfg,
		hub: h,
		log: log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP handler serving both endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.ObserverPath, s.handleObserver)
	mux.HandleFunc(s.cfg.SimulatorPath, s.handleSimulator)
	return mux
}

// Start serves until the context is canceled.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.Addr, Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.log.Infof("relay listening on %s (observer %s, simulator %s)", s.cfg.Addr, s.cfg.ObserverPath, s.cfg.SimulatorPath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("relay server: %w", err)
	}
	return nil
}

func (s *Server) handleObserver(w http.ResponseWriter, r *http.Request) {
	sock, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("observer upgrade: %v", err)
		return
	}
	c := newConn(sock)
	s.hub.RegisterObserver(c)
	defer func() {
		s.hub.UnregisterObserver(c)
		_ = c.Close()
	}()

	s.readLoop(sock, "observer", func(msg protocol.Message) {
		if msg.Type != protocol.TypeCommand {
			s.log.Debugf("observer %s sent non-command frame %q, dropped", c.ID(), msg.Type)
			return
		}
		if err := msg.Validate(); err != nil {
			s.log.Warnf("observer %s sent invalid command: %v", c.ID(), err)
			return
		}
		s.hub.Forward(c, msg)
	})
}

func (s *Server) handleSimulator(w http.ResponseWriter, r *http.Request) {
	sock, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("simulator upgrade: %v", err)
		return
	}
	c := newConn(sock)
	s.hub.RegisterSimulator(c)
	defer func() {
		s.hub.UnregisterSimulator(c)
		_ = c.Close()
	}()

	s.readLoop(sock, "simulator", func(msg protocol.Message) {
		s.hub.Ingest(c, msg)
	})
}

// readLoop decodes frames until the peer disconnects. A malformed frame is
// logged and dropped; the connection stays open.
func (s *Server) readLoop(sock *websocket.Conn, side string, handle func(protocol.Message)) {
	for {
		_, raw, err := sock.ReadMessage()
		if err != nil {
			s.log.Debugf("%s read: %v", side, err)
			return
		}
		var msg protocol.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.log.Warnf("malformed %s frame dropped: %v", side, err)
			continue
		}
		handle(msg)
	}
}
