// Package hub implements the state synchronization relay between one
// authoritative simulator connection and any number of observers.
package hub

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/aeroswarm/aeroswarm/core/events"
	"github.com/aeroswarm/aeroswarm/core/logger"
	"github.com/aeroswarm/aeroswarm/core/metrics"
	"github.com/aeroswarm/aeroswarm/core/model"
	"github.com/aeroswarm/aeroswarm/core/protocol"
	"github.com/aeroswarm/aeroswarm/core/state"
	"github.com/aeroswarm/aeroswarm/internal/eventbus"
)

// ErrSimulatorNotConnected is returned by Forward when no authoritative
// simulator connection is registered.
var ErrSimulatorNotConnected = errors.New("simulator not connected")

// ErrSimulatorSendFailed is returned by Forward when a simulator is
// registered but writing the command to it fails.
var ErrSimulatorSendFailed = errors.New("simulator send failed")

// Conn abstracts a peer connection. Send must be safe for concurrent use.
type Conn interface {
	ID() string
	Send(protocol.Message) error
}

// Hub owns the canonical vehicle snapshot, the observer set and the single
// authoritative simulator connection. All three are mutated only through
// the hub's own methods.
type Hub struct {
	store *state.Store
	log   logger.Logger
	bus   eventbus.EventBus
	met   metrics.Sink

	mu        sync.Mutex
	observers map[string]Conn
	sim       Conn
}

// New creates a hub around the given snapshot store. bus and sink may be
// nil.
func New(store *state.Store, log logger.Logger, bus eventbus.EventBus, sink metrics.Sink) *Hub {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Hub{
		store:     store,
		log:       log,
		bus:       bus,
		met:       sink,
		observers: make(map[string]Conn),
	}
}

// Store exposes the canonical snapshot for read-only consumers.
func (h *Hub) Store() *state.Store { return h.store }

// RegisterObserver adds the connection to the broadcast set and immediately
// sends it a full snapshot.
func (h *Hub) RegisterObserver(c Conn) {
	// Snapshot, insert and the initial send share the critical section so
	// no broadcast can slip between them: every update is either in the
	// snapshot or delivered afterwards, and the snapshot frame comes first.
	h.mu.Lock()
	data, err := json.Marshal(h.store.Snapshot())
	if err != nil {
		h.log.Errorf("marshal snapshot: %v", err)
		data = []byte("{}")
	}
	h.observers[c.ID()] = c
	n := len(h.observers)
	if err := c.Send(protocol.InitialState(data)); err != nil {
		h.log.Warnf("initial state to observer %s: %v", c.ID(), err)
	}
	h.mu.Unlock()

	h.met.SetObservers(n)
	h.publish(events.ObserverJoined{ConnID: c.ID(), Observers: n})
	h.log.Infof("observer %s registered (%d total)", c.ID(), n)
}

// UnregisterObserver removes the connection from the broadcast set. The
// snapshot and the remaining observers are unaffected.
func (h *Hub) UnregisterObserver(c Conn) {
	h.mu.Lock()
	delete(h.observers, c.ID())
	n := len(h.observers)
	h.mu.Unlock()
	h.met.SetObservers(n)
	h.publish(events.ObserverLeft{ConnID: c.ID(), Observers: n})
	h.log.Infof("observer %s unregistered (%d left)", c.ID(), n)
}

// RegisterSimulator unconditionally replaces the authoritative simulator
// connection. A superseded connection stays open but its input is ignored
// from now on.
func (h *Hub) RegisterSimulator(c Conn) {
	h.mu.Lock()
	old := h.sim
	h.sim = c
	h.mu.Unlock()
	if old != nil {
		h.log.Warnf("simulator %s superseded by %s", old.ID(), c.ID())
	}
	h.publish(events.SimulatorConnected{ConnID: c.ID()})
	h.log.Infof("simulator %s registered as authoritative", c.ID())
}

// UnregisterSimulator clears the authoritative pointer if it still belongs
// to the given connection. Forward calls fail fast until a new simulator
// registers.
func (h *Hub) UnregisterSimulator(c Conn) {
	h.mu.Lock()
	current := h.sim == c
	if current {
		h.sim = nil
	}
	h.mu.Unlock()
	if current {
		h.publish(events.SimulatorLost{ConnID: c.ID()})
		h.log.Warnf("simulator %s disconnected", c.ID())
	}
}

// Forward relays a command message verbatim to the simulator. When no
// simulator is connected or the send fails, only the originating observer
// receives an error frame; no shared state is touched.
func (h *Hub) Forward(origin Conn, msg protocol.Message) {
	h.mu.Lock()
	sim := h.sim
	h.mu.Unlock()

	if sim == nil {
		h.replyError(origin, ErrSimulatorNotConnected)
		return
	}
	if err := sim.Send(msg); err != nil {
		h.log.Warnf("forward %s to simulator: %v", msg.Command, err)
		h.replyError(origin, ErrSimulatorSendFailed)
		return
	}
	h.met.RecordForward()
}

func (h *Hub) replyError(origin Conn, cause error) {
	if err := origin.Send(protocol.Error(cause.Error())); err != nil {
		h.log.Debugf("error reply to %s: %v", origin.ID(), err)
	}
}

// Ingest handles a frame from the simulator side. Frames from a superseded
// connection are ignored. State updates are merged into the snapshot per
// the top-level field-replace rule, then the original message is broadcast
// verbatim to every observer. Other frame types are broadcast untouched.
func (h *Hub) Ingest(src Conn, msg protocol.Message) {
	h.mu.Lock()
	authoritative := h.sim == src
	h.mu.Unlock()
	if !authoritative {
		h.log.Debugf("ignoring frame from superseded simulator %s", src.ID())
		return
	}

	if msg.Type == protocol.TypeStateUpdate {
		if err := h.merge(msg); err != nil {
			h.log.Warnf("malformed state update: %v", err)
			h.met.RecordDroppedFrame("simulator")
			return
		}
	}
	h.broadcast(msg)
}

func (h *Hub) merge(msg protocol.Message) error {
	if msg.TargetID != "" {
		var u model.VehicleUpdate
		if err := json.Unmarshal(msg.Data, &u); err != nil {
			return err
		}
		v := h.store.Apply(msg.TargetID, u)
		h.publish(events.StateUpdated{VehicleID: msg.TargetID, Vehicle: v})
		return nil
	}
	var updates map[string]model.VehicleUpdate
	if err := json.Unmarshal(msg.Data, &updates); err != nil {
		return err
	}
	for id, u := range updates {
		v := h.store.Apply(id, u)
		h.publish(events.StateUpdated{VehicleID: id, Vehicle: v})
	}
	return nil
}

// broadcast fans the message out to every observer. Delivery is best
// effort: a failing observer is skipped, not retried, and never aborts the
// fan-out.
func (h *Hub) broadcast(msg protocol.Message) {
	h.mu.Lock()
	conns := make([]Conn, 0, len(h.observers))
	for _, c := range h.observers {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		if err := c.Send(msg); err != nil {
			h.log.Debugw("broadcast skipped", map[string]any{
				"observer": c.ID(),
				"command":  msg.Command,
				"error":    err.Error(),
			})
			h.met.RecordDroppedFrame("observer")
		}
	}
	h.met.RecordBroadcast()
}

func (h *Hub) publish(e eventbus.Event) {
	if h.bus != nil {
		h.bus.Publish(e)
	}
}
