// Package mission drives a vehicle group through one choreographed run:
// arm, takeoff, assemble into a hexagonal formation, traverse the mission
// path with a descending altitude profile, land.
package mission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/aeroswarm/aeroswarm/core/events"
	"github.com/aeroswarm/aeroswarm/core/formation"
	"github.com/aeroswarm/aeroswarm/core/logger"
	"github.com/aeroswarm/aeroswarm/core/metrics"
	"github.com/aeroswarm/aeroswarm/core/model"
	"github.com/aeroswarm/aeroswarm/core/protocol"
	"github.com/aeroswarm/aeroswarm/internal/eventbus"
)

// ErrMissionActive is returned when a run is started while one is already
// in flight. The active run is not affected.
var ErrMissionActive = errors.New("mission already active")

// Sender dispatches a command toward the simulator, typically through the
// hub over an observer connection.
type Sender interface {
	Send(protocol.Message) error
}

// Repositioner is the external collaborator that teleports vehicles around
// a center before a run.
type Repositioner interface {
	Reposition(ctx context.Context, centerX, centerY, radius float64) error
}

// StateView provides a point-in-time, possibly stale, copy of the
// canonical vehicle snapshot.
type StateView interface {
	Snapshot() map[string]model.Vehicle
}

// Orchestrator executes missions sequentially. Progression is time-based
// through the configured PhaseGate; no acknowledgment from the simulator is
// awaited.
type Orchestrator struct {
	sender Sender
	repo   Repositioner
	view   StateView
	gate   PhaseGate
	timing Timing
	assign formation.Assigner
	cfg    Config
	log    logger.Logger
	bus    eventbus.EventBus
	met    metrics.Sink

	running    atomic.Bool
	dispatched atomic.Int64

	mu    sync.Mutex
	phase Phase
	runID string
}

// New creates an orchestrator. repo, view, gate, bus and sink may be nil;
// a nil gate falls back to fixed-delay progression from the config.
func New(sender Sender, repo Repositioner, view StateView, cfg Config, gate PhaseGate, log logger.Logger, bus eventbus.EventBus, sink metrics.Sink) (*Orchestrator, error) {
	if sender == nil {
		return nil, fmt.Errorf("mission: nil sender provided to New")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if gate == nil {
		gate = FixedDelayGate{Timing: cfg.Timing()}
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Orchestrator{
		sender: sender,
		repo:   repo,
		view:   view,
		gate:   gate,
		timing: cfg.Timing(),
		assign: formation.AssignerFor(cfg.Assignment),
		cfg:    cfg,
		log:    log,
		bus:    bus,
		met:    sink,
		phase:  PhaseIdle,
	}, nil
}

// Phase returns the current phase.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// Dispatched returns the number of commands dispatched so far, across runs.
func (o *Orchestrator) Dispatched() int64 { return o.dispatched.Load() }

// Run executes one mission for the given vehicle ids. A second invocation
// while a run is active returns ErrMissionActive without issuing any
// command. Canceling the context aborts the run between dispatches and
// waits; the run then ends in the failed phase with the context error.
func (o *Orchestrator) Run(ctx context.Context, m model.Mission, vehicleIDs []string) (err error) {
	if !o.running.CompareAndSwap(false, true) {
		return ErrMissionActive
	}
	defer o.running.Store(false)

	o.mu.Lock()
	o.runID = uuid.NewString()[:8]
	o.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mission run panicked: %v", r)
		}
		if err != nil {
			o.setPhase(PhaseFailed)
			o.log.Errorf("mission %s failed: %v", m.ID, err)
		}
	}()

	if len(vehicleIDs) == 0 {
		return fmt.Errorf("mission %s: no target vehicles", m.ID)
	}
	path := m.Path()
	if len(path) == 0 {
		return fmt.Errorf("mission %s: no waypoints", m.ID)
	}
	o.log.Infof("mission %s starting for %d vehicles over %d waypoints", m.ID, len(vehicleIDs), len(path))

	if err := o.teleportToOrigin(ctx, m); err != nil {
		return err
	}
	if err := o.dispatchAll(ctx, PhaseArmAll, vehicleIDs, protocol.Arm); err != nil {
		return err
	}
	if err := o.dispatchAll(ctx, PhaseTakeoffAll, vehicleIDs, func(id string) protocol.Message {
		return protocol.Takeoff(id, o.cfg.TakeoffAltitudeM)
	}); err != nil {
		return err
	}
	if err := o.assemble(ctx, m, path, vehicleIDs); err != nil {
		return err
	}
	if err := o.traverse(ctx, m, path, vehicleIDs); err != nil {
		return err
	}
	if err := o.dispatchAll(ctx, PhaseLandAll, vehicleIDs, protocol.Land); err != nil {
		return err
	}

	o.setPhase(PhaseComplete)
	o.log.Infof("mission %s complete", m.ID)
	return nil
}

// teleportToOrigin repositions the fleet around the mission origin. A
// reposition failure is logged and the run proceeds; this mirrors the
// documented behavior and is flagged as an open product decision.
func (o *Orchestrator) teleportToOrigin(ctx context.Context, m model.Mission) error {
	o.setPhase(PhaseTeleportToOrigin)
	if o.repo == nil {
		o.log.Debugf("no repositioner configured, skipping teleport")
		return ctx.Err()
	}
	if err := o.repo.Reposition(ctx, m.Origin.Lng, m.Origin.Lat, o.cfg.TeleportRadiusM); err != nil {
		o.log.Warnf("teleport to origin failed, continuing: %v", err)
	}
	return ctx.Err()
}

// dispatchAll sends the same verb to every vehicle in list order with the
// inter-command delay, then waits for the phase gate.
func (o *Orchestrator) dispatchAll(ctx context.Context, p Phase, vehicleIDs []string, build func(id string) protocol.Message) error {
	o.setPhase(p)
	o.checkView(vehicleIDs)
	for _, id := range vehicleIDs {
		o.dispatch(build(id))
		if err := sleep(ctx, o.timing.InterCommand); err != nil {
			return err
		}
	}
	return o.gate.Wait(ctx, p)
}

// assemble computes the hexagon around the first waypoint at takeoff
// altitude and sends each vehicle to its slot.
func (o *Orchestrator) assemble(ctx context.Context, m model.Mission, path []model.Waypoint, vehicleIDs []string) error {
	o.setPhase(PhaseAssembleFormation)
	return o.formationGoto(ctx, m, path[0], o.cfg.TakeoffAltitudeM, vehicleIDs, PhaseAssembleFormation)
}

// traverse walks the remaining waypoints in strict order. The target
// altitude descends linearly with path progress, independent of distance
// remaining.
func (o *Orchestrator) traverse(ctx context.Context, m model.Mission, path []model.Waypoint, vehicleIDs []string) error {
	o.setPhase(PhaseTraverseWaypoints)
	n := len(path)
	for i := 1; i < n; i++ {
		alt := AltitudeAt(i, n, o.cfg.TakeoffAltitudeM)
		if err := o.formationGoto(ctx, m, path[i], alt, vehicleIDs, PhaseTraverseWaypoints); err != nil {
			return err
		}
	}
	return nil
}

// formationGoto recomputes the hexagon around the waypoint at the given
// altitude and dispatches one goto per vehicle, staggered, fire-and-forget.
func (o *Orchestrator) formationGoto(ctx context.Context, m model.Mission, wp model.Waypoint, altitude float64, vehicleIDs []string, p Phase) error {
	cx, cy, err := wp.Resolve(m.Origin)
	if err != nil {
		return err
	}
	center := model.Vector3{X: cx, Y: cy, Z: altitude}
	slots := formation.Hexagon(center, o.cfg.FormationRadiusM)
	assigned := o.assign.Assign(vehicleIDs, slots, o.snapshot())
	for _, id := range vehicleIDs {
		pos := assigned[id]
		o.dispatch(protocol.Goto(id, pos.X, pos.Y, pos.Z))
		if err := sleep(ctx, o.timing.Stagger); err != nil {
			return err
		}
	}
	return o.gate.Wait(ctx, p)
}

// dispatch sends one command. A transport failure is logged once and never
// aborts the run.
func (o *Orchestrator) dispatch(msg protocol.Message) {
	o.dispatched.Add(1)
	if err := o.sender.Send(msg); err != nil {
		o.log.Warnf("dispatch %s to %s: %v", msg.Command, msg.TargetID, err)
	}
}

// checkView logs vehicles whose snapshot state looks surprising for the
// upcoming phase. The view is eventually consistent; progression stays
// time-based regardless.
func (o *Orchestrator) checkView(vehicleIDs []string) {
	view := o.snapshot()
	if view == nil {
		return
	}
	for _, id := range vehicleIDs {
		v, ok := view[id]
		if !ok {
			o.log.Debugf("vehicle %s not yet in snapshot", id)
			continue
		}
		if v.Status == model.StatusFlying {
			o.log.Debugf("vehicle %s already flying", id)
		}
	}
}

func (o *Orchestrator) snapshot() map[string]model.Vehicle {
	if o.view == nil {
		return nil
	}
	return o.view.Snapshot()
}

func (o *Orchestrator) setPhase(p Phase) {
	o.mu.Lock()
	o.phase = p
	runID := o.runID
	o.mu.Unlock()
	o.met.RecordPhase(p.String())
	if o.bus != nil {
		o.bus.Publish(events.PhaseChanged{RunID: runID, Phase: p.String()})
	}
	o.log.Infof("run %s phase %s", runID, p)
}

// AltitudeAt returns the target altitude for waypoint index i of n total:
// a linear descent from the initial altitude at the first waypoint to zero
// at the last. A single-waypoint path keeps the initial altitude.
func AltitudeAt(i, n int, initial float64) float64 {
	if n <= 1 {
		return initial
	}
	return initial * (1 - float64(i)/float64(n-1))
}
