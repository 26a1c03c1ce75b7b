package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/aeroswarm/aeroswarm/core/events"
	corehub "github.com/aeroswarm/aeroswarm/core/hub"
	"github.com/aeroswarm/aeroswarm/core/model"
	"github.com/aeroswarm/aeroswarm/core/protocol"
	"github.com/aeroswarm/aeroswarm/core/state"
	"github.com/aeroswarm/aeroswarm/infra/logger"
	"github.com/aeroswarm/aeroswarm/internal/eventbus"
)

type testRelay struct {
	ts  *httptest.Server
	hub *corehub.Hub
	bus *eventbus.Bus
	sub <-chan eventbus.Event
}

func newTestRelay(t *testing.T) *testRelay {
	t.Helper()
	bus := eventbus.New()
	h := corehub.New(state.NewStore(), logger.NopLogger{}, bus, nil)
	srv := NewServer(Config{}, h, logger.NopLogger{})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(bus.Close)
	return &testRelay{ts: ts, hub: h, bus: bus, sub: bus.Subscribe()}
}

func (r *testRelay) url(path string) string {
	return "ws" + strings.TrimPrefix(r.ts.URL, "http") + path
}

func (r *testRelay) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	sock, _, err := websocket.DefaultDialer.Dial(r.url(path), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sock.Close() })
	return sock
}

// waitFor blocks until an event of type E is published or the test times out.
func waitFor[E any](t *testing.T, sub <-chan eventbus.Event) E {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sub:
			if e, ok := ev.(E); ok {
				return e
			}
		case <-deadline:
			var zero E
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

func readFrame(t *testing.T, sock *websocket.Conn) protocol.Message {
	t.Helper()
	require.NoError(t, sock.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg protocol.Message
	require.NoError(t, sock.ReadJSON(&msg))
	return msg
}

func TestObserverReceivesInitialState(t *testing.T) {
	r := newTestRelay(t)
	r.hub.Store().Apply("u1", model.VehicleUpdate{})

	obs := r.dial(t, "/ws/observer")
	msg := readFrame(t, obs)
	require.Equal(t, protocol.TypeInitialState, msg.Type)

	var snapshot map[string]model.Vehicle
	require.NoError(t, json.Unmarshal(msg.Data, &snapshot))
	require.Contains(t, snapshot, "u1")
}

func TestTelemetryFlowsToObservers(t *testing.T) {
	r := newTestRelay(t)
	sim := r.dial(t, "/ws/simulator")
	waitFor[events.SimulatorConnected](t, r.sub)

	obs := r.dial(t, "/ws/observer")
	readFrame(t, obs) // initial_state

	update := protocol.Message{
		Type:     protocol.TypeStateUpdate,
		TargetID: "u1",
		Data:     json.RawMessage(`{"battery": 77, "status": "flying"}`),
	}
	require.NoError(t, sim.WriteJSON(update))

	msg := readFrame(t, obs)
	require.Equal(t, protocol.TypeStateUpdate, msg.Type)
	require.Equal(t, "u1", msg.TargetID)
	require.JSONEq(t, string(update.Data), string(msg.Data))

	waitFor[events.StateUpdated](t, r.sub)
	v, ok := r.hub.Store().Get("u1")
	require.True(t, ok)
	require.Equal(t, 77.0, v.Battery)
	require.Equal(t, model.StatusFlying, v.Status)
}

func TestCommandsForwardToSimulator(t *testing.T) {
	r := newTestRelay(t)
	sim := r.dial(t, "/ws/simulator")
	waitFor[events.SimulatorConnected](t, r.sub)

	obs := r.dial(t, "/ws/observer")
	readFrame(t, obs)

	require.NoError(t, obs.WriteJSON(protocol.Takeoff("u1", 80)))

	msg := readFrame(t, sim)
	require.Equal(t, protocol.TypeCommand, msg.Type)
	require.Equal(t, protocol.VerbTakeoff, msg.Command)
	require.Equal(t, "u1", msg.TargetID)
	require.Equal(t, 80.0, msg.Params["altitude"])
}

func TestForwardWithoutSimulatorRepliesError(t *testing.T) {
	r := newTestRelay(t)
	obs := r.dial(t, "/ws/observer")
	readFrame(t, obs)

	require.NoError(t, obs.WriteJSON(protocol.Arm("u1")))

	msg := readFrame(t, obs)
	require.Equal(t, protocol.TypeError, msg.Type)
	require.Equal(t, "simulator not connected", msg.Message)
}

func TestMalformedFrameKeepsConnectionOpen(t *testing.T) {
	r := newTestRelay(t)
	sim := r.dial(t, "/ws/simulator")
	waitFor[events.SimulatorConnected](t, r.sub)

	obs := r.dial(t, "/ws/observer")
	readFrame(t, obs)

	require.NoError(t, sim.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, sim.WriteJSON(protocol.Message{
		Type:     protocol.TypeStateUpdate,
		TargetID: "u1",
		Data:     json.RawMessage(`{"battery": 5}`),
	}))

	msg := readFrame(t, obs)
	require.Equal(t, protocol.TypeStateUpdate, msg.Type)
}
