package mission

import (
	"context"
	"time"
)

// Phase identifies one step of the mission state machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseTeleportToOrigin
	PhaseArmAll
	PhaseTakeoffAll
	PhaseAssembleFormation
	PhaseTraverseWaypoints
	PhaseLandAll
	PhaseComplete
	PhaseFailed
)

var phaseNames = map[Phase]string{
	PhaseIdle:              "idle",
	PhaseTeleportToOrigin:  "teleport_to_origin",
	PhaseArmAll:            "arm_all",
	PhaseTakeoffAll:        "takeoff_all",
	PhaseAssembleFormation: "assemble_formation",
	PhaseTraverseWaypoints: "traverse_waypoints",
	PhaseLandAll:           "land_all",
	PhaseComplete:          "complete",
	PhaseFailed:            "failed",
}

func (p Phase) String() string {
	if n, ok := phaseNames[p]; ok {
		return n
	}
	return "unknown"
}

// Timing holds the fixed delays driving time-based phase progression.
type Timing struct {
	// InterCommand is the pause between consecutive dispatches within
	// arm/takeoff/land phases, avoiding command bursts.
	InterCommand time.Duration
	// Stagger is the pause between per-vehicle goto dispatches.
	Stagger time.Duration
	// Settle is the wait after arm/takeoff/assemble/land dispatches before
	// the phase is considered complete.
	Settle time.Duration
	// WaypointSettle is the wait after each traverse waypoint.
	WaypointSettle time.Duration
}

// PhaseGate signals when a phase may be considered complete. The current
// strategy is a fixed delay; a telemetry-confirmed convergence check can be
// substituted without touching the orchestrator.
type PhaseGate interface {
	Wait(ctx context.Context, p Phase) error
}

// FixedDelayGate completes each phase after a fixed settle window.
type FixedDelayGate struct {
	Timing Timing
}

func (g FixedDelayGate) Wait(ctx context.Context, p Phase) error {
	d := g.Timing.Settle
	if p == PhaseTraverseWaypoints {
		d = g.Timing.WaypointSettle
	}
	return sleep(ctx, d)
}

// sleep pauses for d or until the context is canceled.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
