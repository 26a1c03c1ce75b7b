// Package events defines the event types published on the internal bus.
package events

import "github.com/aeroswarm/aeroswarm/core/model"

// SimulatorConnected is published when a simulator registers as the
// authoritative connection, superseding any previous one.
type SimulatorConnected struct {
	ConnID string
}

// SimulatorLost is published when the authoritative simulator disconnects.
type SimulatorLost struct {
	ConnID string
}

// ObserverJoined is published when an observer registers.
type ObserverJoined struct {
	ConnID    string
	Observers int
}

// ObserverLeft is published when an observer disconnects.
type ObserverLeft struct {
	ConnID    string
	Observers int
}

// StateUpdated is published after a telemetry payload has been merged into
// the canonical snapshot. Vehicle carries the post-merge state.
type StateUpdated struct {
	VehicleID string
	Vehicle   model.Vehicle
}

// PhaseChanged is published by the orchestrator on every phase transition.
type PhaseChanged struct {
	RunID string
	Phase string
}
