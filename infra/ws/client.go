package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/aeroswarm/aeroswarm/core/logger"
	"github.com/aeroswarm/aeroswarm/core/model"
	"github.com/aeroswarm/aeroswarm/core/protocol"
	"github.com/aeroswarm/aeroswarm/core/state"
)

// Client is an observer-side connection to the relay. It maintains a local
// copy of the canonical snapshot from the initial_state frame and the
// state_update stream, and sends commands upstream. It satisfies the
// orchestrator's Sender and StateView.
type Client struct {
	ws    *websocket.Conn
	mu    sync.Mutex
	store *state.Store
	log   logger.Logger
	done  chan struct{}
}

// Dial connects to the relay's observer endpoint and starts the read loop.
func Dial(ctx context.Context, url string, log logger.Logger) (*Client, error) {
	sock, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	c := &Client{
		ws:    sock,
		store: state.NewStore(),
		log:   log,
		done:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Send dispatches a frame to the relay.
func (c *Client) Send(msg protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(msg)
}

// Snapshot returns a point-in-time copy of the locally tracked state.
func (c *Client) Snapshot() map[string]model.Vehicle {
	return c.store.Snapshot()
}

// Done is closed when the read loop ends.
func (c *Client) Done() <-chan struct{} { return c.done }

// Close tears down the connection.
func (c *Client) Close() error {
	return c.ws.Close()
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		var msg protocol.Message
		if err := c.ws.ReadJSON(&msg); err != nil {
			c.log.Debugf("relay connection closed: %v", err)
			return
		}
		switch msg.Type {
		case protocol.TypeInitialState:
			c.loadInitial(msg.Data)
		case protocol.TypeStateUpdate:
			c.applyUpdate(msg)
		case protocol.TypeCommandResponse:
			c.log.Infof("command %s: %s", msg.Command, msg.Message)
		case protocol.TypeError:
			c.log.Warnf("relay error: %s", msg.Message)
		default:
			c.log.Debugf("unexpected frame %q from relay", msg.Type)
		}
	}
}

func (c *Client) loadInitial(data json.RawMessage) {
	var vehicles map[string]model.Vehicle
	if err := json.Unmarshal(data, &vehicles); err != nil {
		c.log.Warnf("malformed initial state: %v", err)
		return
	}
	for id, v := range vehicles {
		c.store.Apply(id, fullUpdate(v))
	}
	c.log.Infof("initial state received: %d vehicles", len(vehicles))
}

func (c *Client) applyUpdate(msg protocol.Message) {
	if msg.TargetID != "" {
		var u model.VehicleUpdate
		if err := json.Unmarshal(msg.Data, &u); err != nil {
			c.log.Warnf("malformed state update: %v", err)
			return
		}
		c.store.Apply(msg.TargetID, u)
		return
	}
	var updates map[string]model.VehicleUpdate
	if err := json.Unmarshal(msg.Data, &updates); err != nil {
		c.log.Warnf("malformed state update: %v", err)
		return
	}
	for id, u := range updates {
		c.store.Apply(id, u)
	}
}

// fullUpdate turns a complete vehicle into an update touching every field,
// used to seed the local store from the initial snapshot.
func fullUpdate(v model.Vehicle) model.VehicleUpdate {
	return model.VehicleUpdate{
		SwarmID:     &v.SwarmID,
		Position:    &v.Position,
		Velocity:    &v.Velocity,
		Orientation: &v.Orientation,
		Battery:     &v.Battery,
		Status:      &v.Status,
		Armed:       &v.Armed,
		Color:       &v.Color,
	}
}
