package metrics

import (
	coremetrics "github.com/aeroswarm/aeroswarm/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records relay activity in Prometheus metrics.
type PromSink struct {
	observers  prometheus.Gauge
	broadcasts prometheus.Counter
	forwards   prometheus.Counter
	dropped    *prometheus.CounterVec
	phases     *prometheus.CounterVec
}

// NewPromSink registers relay metrics on the default Prometheus registerer.
// The Prometheus server is started separately using the configured port.
func NewPromSink() (coremetrics.Sink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (coremetrics.Sink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	observers := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relay_observers_connected",
		Help: "Number of observer connections currently registered",
	})
	broadcasts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_broadcasts_total",
		Help: "Total number of telemetry messages fanned out to observers",
	})
	forwards := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_commands_forwarded_total",
		Help: "Total number of commands relayed to the simulator",
	})
	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_dropped_frames_total",
		Help: "Total number of malformed or undeliverable frames dropped",
	}, []string{"side"})
	phases := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mission_phase_transitions_total",
		Help: "Total number of mission phase transitions",
	}, []string{"phase"})

	if err := reg.Register(observers); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			observers = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(broadcasts); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			broadcasts = are.ExistingCollector.(prometheus.Counter)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(forwards); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			forwards = are.ExistingCollector.(prometheus.Counter)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(dropped); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			dropped = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(phases); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			phases = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}

	return &PromSink{
		observers:  observers,
		broadcasts: broadcasts,
		forwards:   forwards,
		dropped:    dropped,
		phases:     phases,
	}, nil
}

func (s *PromSink) SetObservers(n int) { s.observers.Set(float64(n)) }

func (s *PromSink) RecordBroadcast() { s.broadcasts.Inc() }

func (s *PromSink) RecordForward() { s.forwards.Inc() }

func (s *PromSink) RecordDroppedFrame(side string) { s.dropped.WithLabelValues(side).Inc() }

func (s *PromSink) RecordPhase(phase string) { s.phases.WithLabelValues(phase).Inc() }
