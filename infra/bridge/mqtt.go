// Package bridge republishes merged telemetry to an MQTT broker so
// consumers outside the WebSocket fan-out can follow the fleet.
package bridge

import (
	"encoding/json"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/aeroswarm/aeroswarm/core/events"
	"github.com/aeroswarm/aeroswarm/core/logger"
	"github.com/aeroswarm/aeroswarm/internal/eventbus"
)

// Config defines the connection parameters for the MQTT bridge.
type Config struct {
	Enabled     bool   `json:"enabled"`
	Broker      string `json:"broker"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
	QoS         byte   `json:"qos"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "aeroswarm-bridge"
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "swarm/telemetry"
	}
}

// TelemetryTopic returns the topic a vehicle's state is published on.
func TelemetryTopic(prefix, vehicleID string) string {
	return prefix + "/" + vehicleID
}

// Bridge forwards StateUpdated events from the bus to the broker.
type Bridge struct {
	cli    paho.Client
	prefix string
	qos    byte
	log    logger.Logger
}

// New connects to the broker.
func New(cfg Config, log logger.Logger) (*Bridge, error) {
	cfg.SetDefaults()
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.OnConnect = func(paho.Client) {
		log.Infof("telemetry bridge connected to %s", cfg.Broker)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("telemetry bridge connection lost: %v", err)
	}
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &Bridge{cli: cli, prefix: cfg.TopicPrefix, qos: cfg.QoS, log: log}, nil
}

// Run consumes the bus until the subscription channel closes. Publish
// failures are logged and not retried.
func (b *Bridge) Run(bus eventbus.EventBus) {
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)
	for ev := range sub {
		su, ok := ev.(events.StateUpdated)
		if !ok {
			continue
		}
		payload, err := json.Marshal(su.Vehicle)
		if err != nil {
			b.log.Errorf("marshal vehicle %s: %v", su.VehicleID, err)
			continue
		}
		topic := TelemetryTopic(b.prefix, su.VehicleID)
		if token := b.cli.Publish(topic, b.qos, false, payload); token.WaitTimeout(time.Second) && token.Error() != nil {
			b.log.Warnf("publish %s: %v", topic, token.Error())
		}
	}
}

// Close disconnects from the broker.
func (b *Bridge) Close() {
	b.cli.Disconnect(250)
}
