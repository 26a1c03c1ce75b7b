package mission

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/aeroswarm/aeroswarm/core/formation"
	"github.com/aeroswarm/aeroswarm/core/metrics"
	"github.com/aeroswarm/aeroswarm/core/model"
	"github.com/aeroswarm/aeroswarm/core/protocol"
	"github.com/aeroswarm/aeroswarm/infra/logger"
)

// recorder collects dispatched commands.
type recorder struct {
	mu   sync.Mutex
	sent []protocol.Message
	fail bool
}

func (r *recorder) Send(msg protocol.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return fmt.Errorf("socket closed")
	}
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recorder) messages() []protocol.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]protocol.Message(nil), r.sent...)
}

// fakeRepo records reposition calls and optionally fails.
type fakeRepo struct {
	mu    sync.Mutex
	calls []repositionCall
	err   error
}

type repositionCall struct {
	x, y, radius float64
}

func (f *fakeRepo) Reposition(_ context.Context, x, y, radius float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, repositionCall{x, y, radius})
	return f.err
}

// blockingGate parks the run at its first phase gate until released.
type blockingGate struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *blockingGate) Wait(ctx context.Context, _ Phase) error {
	g.once.Do(func() { close(g.entered) })
	select {
	case <-g.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func fastConfig() Config {
	return Config{
		FormationRadiusM: 30,
		TakeoffAltitudeM: 100,
		TeleportRadiusM:  5,
		Assignment:       "index",
	}
}

func f(v float64) *float64 { return &v }

func lineMission(waypoints int) model.Mission {
	m := model.Mission{ID: "m1", Origin: model.Origin{Lng: 0, Lat: 0}}
	t := model.Trajectory{}
	for i := 0; i < waypoints; i++ {
		t.Waypoints = append(t.Waypoints, model.Waypoint{X: f(float64(i) * 100), Y: f(0)})
	}
	m.Trajectories = []model.Trajectory{t}
	return m
}

func sixVehicles() []string {
	return []string{"v0", "v1", "v2", "v3", "v4", "v5"}
}

func TestEndToEndDispatchSequence(t *testing.T) {
	rec := &recorder{}
	repo := &fakeRepo{}
	orch, err := New(rec, repo, nil, fastConfig(), nil, logger.NopLogger{}, nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	m := lineMission(3)
	ids := sixVehicles()
	if err := orch.Run(context.Background(), m, ids); err != nil {
		t.Fatalf("run: %v", err)
	}
	if orch.Phase() != PhaseComplete {
		t.Fatalf("expected complete, got %s", orch.Phase())
	}

	if len(repo.calls) != 1 {
		t.Fatalf("expected exactly one reposition call, got %d", len(repo.calls))
	}
	if repo.calls[0].radius != 5 {
		t.Fatalf("teleport radius %f, want 5", repo.calls[0].radius)
	}

	msgs := rec.messages()
	// 6 arm + 6 takeoff + 3 waypoints x 6 goto + 6 land
	if len(msgs) != 36 {
		t.Fatalf("expected 36 commands, got %d", len(msgs))
	}

	checkBatch := func(offset int, verb protocol.Verb, check func(i int, msg protocol.Message)) {
		t.Helper()
		for i := 0; i < 6; i++ {
			msg := msgs[offset+i]
			if msg.Command != verb {
				t.Fatalf("command %d: got %s, want %s", offset+i, msg.Command, verb)
			}
			if msg.TargetID != ids[i] {
				t.Fatalf("command %d: target %s, want %s (list order)", offset+i, msg.TargetID, ids[i])
			}
			if check != nil {
				check(i, msg)
			}
		}
	}

	checkBatch(0, protocol.VerbArm, nil)
	checkBatch(6, protocol.VerbTakeoff, func(i int, msg protocol.Message) {
		if msg.Params["altitude"] != 100 {
			t.Fatalf("takeoff altitude %f, want 100", msg.Params["altitude"])
		}
	})

	wantAlts := []float64{100, 50, 0}
	for wp := 0; wp < 3; wp++ {
		center := model.Vector3{X: float64(wp) * 100, Y: 0, Z: wantAlts[wp]}
		slots := formation.Hexagon(center, 30)
		checkBatch(12+wp*6, protocol.VerbGoto, func(i int, msg protocol.Message) {
			if msg.Params["z"] != wantAlts[wp] {
				t.Fatalf("waypoint %d altitude %f, want %f", wp, msg.Params["z"], wantAlts[wp])
			}
			if math.Abs(msg.Params["x"]-slots[i].X) > 1e-9 || math.Abs(msg.Params["y"]-slots[i].Y) > 1e-9 {
				t.Fatalf("waypoint %d slot %d: got (%f,%f), want (%f,%f)",
					wp, i, msg.Params["x"], msg.Params["y"], slots[i].X, slots[i].Y)
			}
		})
	}

	checkBatch(30, protocol.VerbLand, nil)
}

// phaseSink records phase transitions reported to the metrics sink.
type phaseSink struct {
	metrics.NopSink
	mu     sync.Mutex
	phases []string
}

func (s *phaseSink) RecordPhase(phase string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phases = append(s.phases, phase)
}

func (s *phaseSink) recorded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.phases...)
}

func TestPhaseTransitionsReachSink(t *testing.T) {
	rec := &recorder{}
	sink := &phaseSink{}
	orch, err := New(rec, &fakeRepo{}, nil, fastConfig(), nil, logger.NopLogger{}, nil, sink)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := orch.Run(context.Background(), lineMission(2), sixVehicles()); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []string{
		"teleport_to_origin", "arm_all", "takeoff_all",
		"assemble_formation", "traverse_waypoints", "land_all", "complete",
	}
	got := sink.recorded()
	if len(got) != len(want) {
		t.Fatalf("recorded %d phases %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("phase %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestFailedRunReachesSink(t *testing.T) {
	sink := &phaseSink{}
	orch, err := New(&recorder{}, nil, nil, fastConfig(), nil, logger.NopLogger{}, nil, sink)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := orch.Run(context.Background(), lineMission(2), nil); err == nil {
		t.Fatalf("expected error for empty vehicle list")
	}
	got := sink.recorded()
	if len(got) == 0 || got[len(got)-1] != "failed" {
		t.Fatalf("last recorded phase should be failed, got %v", got)
	}
}

func TestReentrancyRejected(t *testing.T) {
	rec := &recorder{}
	gate := &blockingGate{entered: make(chan struct{}), release: make(chan struct{})}
	orch, err := New(rec, nil, nil, fastConfig(), gate, logger.NopLogger{}, nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- orch.Run(context.Background(), lineMission(2), sixVehicles()) }()
	<-gate.entered

	before := orch.Dispatched()
	if err := orch.Run(context.Background(), lineMission(2), sixVehicles()); !errors.Is(err, ErrMissionActive) {
		t.Fatalf("expected ErrMissionActive, got %v", err)
	}
	if orch.Dispatched() != before {
		t.Fatalf("rejected run must not dispatch commands")
	}

	close(gate.release)
	if err := <-done; err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if orch.Phase() != PhaseComplete {
		t.Fatalf("first run should complete, got %s", orch.Phase())
	}
}

func TestAltitudeProfile(t *testing.T) {
	const initial = 100.0
	n := 5
	for i := 0; i < n; i++ {
		want := initial * (1 - float64(i)/float64(n-1))
		if got := AltitudeAt(i, n, initial); got != want {
			t.Fatalf("altitude at %d/%d: got %f, want %f", i, n, got, want)
		}
	}
	if AltitudeAt(0, 5, initial) != initial {
		t.Fatalf("first waypoint should keep initial altitude")
	}
	if AltitudeAt(4, 5, initial) != 0 {
		t.Fatalf("last waypoint should reach zero")
	}
	if AltitudeAt(0, 1, initial) != initial {
		t.Fatalf("single-waypoint path keeps initial altitude")
	}
}

func TestTeleportFailureIsNotFatal(t *testing.T) {
	rec := &recorder{}
	repo := &fakeRepo{err: fmt.Errorf("planner down")}
	orch, err := New(rec, repo, nil, fastConfig(), nil, logger.NopLogger{}, nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := orch.Run(context.Background(), lineMission(2), sixVehicles()); err != nil {
		t.Fatalf("run should proceed past a failed teleport: %v", err)
	}
	if orch.Phase() != PhaseComplete {
		t.Fatalf("expected complete, got %s", orch.Phase())
	}
}

func TestDispatchFailureIsNotFatal(t *testing.T) {
	rec := &recorder{fail: true}
	orch, err := New(rec, nil, nil, fastConfig(), nil, logger.NopLogger{}, nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := orch.Run(context.Background(), lineMission(2), sixVehicles()); err != nil {
		t.Fatalf("send failures must not abort the run: %v", err)
	}
	if orch.Phase() != PhaseComplete {
		t.Fatalf("expected complete, got %s", orch.Phase())
	}
}

func TestCancellationAbortsRun(t *testing.T) {
	rec := &recorder{}
	gate := &blockingGate{entered: make(chan struct{}), release: make(chan struct{})}
	orch, err := New(rec, nil, nil, fastConfig(), gate, logger.NopLogger{}, nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- orch.Run(ctx, lineMission(2), sixVehicles()) }()
	<-gate.entered
	cancel()

	runErr := <-done
	if !errors.Is(runErr, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", runErr)
	}
	if orch.Phase() != PhaseFailed {
		t.Fatalf("aborted run should end failed, got %s", orch.Phase())
	}
}

func TestRunRejectsEmptyInput(t *testing.T) {
	orch, err := New(&recorder{}, nil, nil, fastConfig(), nil, logger.NopLogger{}, nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := orch.Run(context.Background(), lineMission(2), nil); err == nil {
		t.Fatalf("expected error for empty vehicle list")
	}
	if err := orch.Run(context.Background(), model.Mission{ID: "empty"}, sixVehicles()); err == nil {
		t.Fatalf("expected error for empty path")
	}
	if orch.Phase() != PhaseFailed {
		t.Fatalf("invalid input should leave the run failed, got %s", orch.Phase())
	}
}

func TestNewValidatesConfig(t *testing.T) {
	if _, err := New(nil, nil, nil, fastConfig(), nil, logger.NopLogger{}, nil, nil); err == nil {
		t.Fatalf("expected error for nil sender")
	}
	bad := fastConfig()
	bad.Assignment = "magic"
	if _, err := New(&recorder{}, nil, nil, bad, nil, logger.NopLogger{}, nil, nil); err == nil {
		t.Fatalf("expected error for unknown assignment strategy")
	}
}
