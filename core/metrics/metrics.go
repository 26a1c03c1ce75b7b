// Package metrics defines the sink interface the relay reports into.
package metrics

// Config defines metrics exposure settings.
type Config struct {
	PrometheusEnabled bool   `json:"prometheus_enabled"`
	PrometheusPort    string `json:"prometheus_port"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.PrometheusPort == "" {
		c.PrometheusPort = ":9402"
	}
}

// Sink receives relay and mission events for metrics exposure.
type Sink interface {
	// SetObservers records the current observer connection count.
	SetObservers(n int)
	// RecordBroadcast counts one telemetry fan-out to observers.
	RecordBroadcast()
	// RecordForward counts one command relayed to the simulator.
	RecordForward()
	// RecordDroppedFrame counts a malformed or undeliverable frame on the
	// given side ("observer" or "simulator").
	RecordDroppedFrame(side string)
	// RecordPhase counts a mission phase transition.
	RecordPhase(phase string)
}

// NopSink discards all metrics.
type NopSink struct{}

func (NopSink) SetObservers(int)          {}
func (NopSink) RecordBroadcast()          {}
func (NopSink) RecordForward()            {}
func (NopSink) RecordDroppedFrame(string) {}
func (NopSink) RecordPhase(string)        {}
