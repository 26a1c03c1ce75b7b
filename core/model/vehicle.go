package model

import (
	"hash/fnv"
	"sort"
)

// VehicleStatus describes the flight state reported by the simulator.
type VehicleStatus string

const (
	StatusIdle    VehicleStatus = "idle"
	StatusArmed   VehicleStatus = "armed"
	StatusFlying  VehicleStatus = "flying"
	StatusLanding VehicleStatus = "landing"
)

// Vector3 is a position or velocity in simulator coordinates.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Orientation holds attitude angles in degrees.
type Orientation struct {
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
	Yaw   float64 `json:"yaw"`
}

// Vehicle represents one simulated aerial unit known to the relay.
type Vehicle struct {
	ID          string        `json:"id"`
	SwarmID     string        `json:"swarmId"`
	Position    Vector3       `json:"position"`
	Velocity    Vector3       `json:"velocity"`
	Orientation Orientation   `json:"orientation"`
	Battery     float64       `json:"battery"`
	Status      VehicleStatus `json:"status"`
	Armed       bool          `json:"armed"`
	Color       string        `json:"color"`
}

var palette = []string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8",
	"#f58231", "#911eb4", "#46f0f0", "#f032e6",
}

// NewVehicle seeds a vehicle with defaults. The display color is derived
// from the id so it stays stable across reconnects.
func NewVehicle(id string) Vehicle {
	h := fnv.New32a()
	h.Write([]byte(id))
	return Vehicle{
		ID:      id,
		Battery: 100,
		Status:  StatusIdle,
		Color:   palette[h.Sum32()%uint32(len(palette))],
	}
}

// VehicleUpdate is a partial telemetry payload. A nil field was absent from
// the payload and leaves the current value untouched; a present field
// replaces the whole top-level value, so a position update always carries
// all three coordinates.
type VehicleUpdate struct {
	SwarmID     *string        `json:"swarmId"`
	Position    *Vector3       `json:"position"`
	Velocity    *Vector3       `json:"velocity"`
	Orientation *Orientation   `json:"orientation"`
	Battery     *float64       `json:"battery"`
	Status      *VehicleStatus `json:"status"`
	Armed       *bool          `json:"armed"`
	Color       *string        `json:"color"`
}

// Apply merges the update into the vehicle, replacing only the fields
// present in the payload.
func (v *Vehicle) Apply(u VehicleUpdate) {
	if u.SwarmID != nil {
		v.SwarmID = *u.SwarmID
	}
	if u.Position != nil {
		v.Position = *u.Position
	}
	if u.Velocity != nil {
		v.Velocity = *u.Velocity
	}
	if u.Orientation != nil {
		v.Orientation = *u.Orientation
	}
	if u.Battery != nil {
		v.Battery = *u.Battery
	}
	if u.Status != nil {
		v.Status = *u.Status
	}
	if u.Armed != nil {
		v.Armed = *u.Armed
	}
	if u.Color != nil {
		v.Color = *u.Color
	}
}

// FilterBySwarm returns the vehicles belonging to the given swarm, ordered
// by id. Swarms have no store of their own; membership is derived.
func FilterBySwarm(vehicles map[string]Vehicle, swarmID string) []Vehicle {
	var res []Vehicle
	for _, v := range vehicles {
		if v.SwarmID == swarmID {
			res = append(res, v)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}
