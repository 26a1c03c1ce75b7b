// Package formation computes spatial arrangements for vehicle groups.
package formation

import (
	"math"

	"github.com/aeroswarm/aeroswarm/core/model"
)

// Slots is the number of positions in a hexagonal formation.
const Slots = 6

// Hexagon returns the six positions of a hexagonal formation around the
// center. Slot i sits at angle i*60 degrees from the center at exactly the
// given radius, at the center's altitude. The slot order is significant:
// assignment downstream is by index.
func Hexagon(center model.Vector3, radius float64) []model.Vector3 {
	positions := make([]model.Vector3, Slots)
	for i := range positions {
		angle := float64(i) * 60 * math.Pi / 180
		positions[i] = model.Vector3{
			X: center.X + radius*math.Cos(angle),
			Y: center.Y + radius*math.Sin(angle),
			Z: center.Z,
		}
	}
	return positions
}

// Assigner maps vehicles to formation slots. Implementations must return
// one slot per vehicle id, for at most len(slots) vehicles.
type Assigner interface {
	Assign(vehicleIDs []string, slots []model.Vector3, view map[string]model.Vehicle) map[string]model.Vector3
}

// IndexAssigner assigns slot i to vehicle i in list order.
type IndexAssigner struct{}

func (IndexAssigner) Assign(vehicleIDs []string, slots []model.Vector3, _ map[string]model.Vehicle) map[string]model.Vector3 {
	res := make(map[string]model.Vector3, len(vehicleIDs))
	for i, id := range vehicleIDs {
		res[id] = slots[i%len(slots)]
	}
	return res
}

// NearestAssigner greedily assigns each slot to the closest unassigned
// vehicle, using the last known positions from the state view. Vehicles
// missing from the view fall back to index order.
type NearestAssigner struct{}

func (NearestAssigner) Assign(vehicleIDs []string, slots []model.Vector3, view map[string]model.Vehicle) map[string]model.Vector3 {
	res := make(map[string]model.Vector3, len(vehicleIDs))
	taken := make(map[string]bool, len(vehicleIDs))
	for i := range vehicleIDs {
		slot := slots[i%len(slots)]
		best := ""
		bestDist := math.Inf(1)
		for _, id := range vehicleIDs {
			if taken[id] {
				continue
			}
			v, known := view[id]
			if !known {
				continue
			}
			d := math.Hypot(v.Position.X-slot.X, v.Position.Y-slot.Y)
			if d < bestDist {
				best, bestDist = id, d
			}
		}
		if best == "" {
			for _, id := range vehicleIDs {
				if !taken[id] {
					best = id
					break
				}
			}
		}
		taken[best] = true
		res[best] = slot
	}
	return res
}

// AssignerFor selects an assignment strategy by name. Unknown names fall
// back to index assignment.
func AssignerFor(name string) Assigner {
	if name == "nearest" {
		return NearestAssigner{}
	}
	return IndexAssigner{}
}
