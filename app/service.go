// Package app wires the relay service from configuration.
package app

import (
	"context"
	"fmt"

	"github.com/aeroswarm/aeroswarm/config"
	corehub "github.com/aeroswarm/aeroswarm/core/hub"
	coremetrics "github.com/aeroswarm/aeroswarm/core/metrics"
	"github.com/aeroswarm/aeroswarm/core/state"
	"github.com/aeroswarm/aeroswarm/infra/bridge"
	"github.com/aeroswarm/aeroswarm/infra/logger"
	"github.com/aeroswarm/aeroswarm/infra/metrics"
	"github.com/aeroswarm/aeroswarm/infra/ws"
	"github.com/aeroswarm/aeroswarm/internal/eventbus"
)

// Service runs the hub, its WebSocket endpoints and the side consumers.
type Service struct {
	Hub    *corehub.Hub
	server *ws.Server
	bridge *bridge.Bridge
	bus    *eventbus.Bus
	log    logger.Logger

	promEnabled bool
	promPort    string
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.NewWithEnv("relay", cfg.Logging.Env)
	bus := eventbus.New()

	var sink coremetrics.Sink = coremetrics.NopSink{}
	if cfg.Metrics.PrometheusEnabled {
		s, err := metrics.NewPromSink()
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sink = s
	}

	h := corehub.New(state.NewStore(), logg, bus, sink)
	srv := ws.NewServer(cfg.Server, h, logg)

	svc := &Service{
		Hub:         h,
		server:      srv,
		bus:         bus,
		log:         logg,
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promPort:    cfg.Metrics.PrometheusPort,
	}

	if cfg.Bridge.Enabled {
		br, err := bridge.New(cfg.Bridge, logger.NewWithEnv("bridge", cfg.Logging.Env))
		if err != nil {
			return nil, fmt.Errorf("telemetry bridge: %w", err)
		}
		svc.bridge = br
	}
	return svc, nil
}

// Run starts the service and blocks until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if s.bridge != nil {
		go s.bridge.Run(s.bus)
	}
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	return s.server.Start(ctx)
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.bus.Close()
	if s.bridge != nil {
		s.bridge.Close()
	}
	return nil
}
