// Package state holds the canonical per-vehicle snapshot owned by the hub.
package state

import (
	"sync"

	"github.com/aeroswarm/aeroswarm/core/model"
)

// Store is the canonical vehicle snapshot. It is mutated only by the hub's
// ingest path; everyone else reads point-in-time copies.
type Store struct {
	mu       sync.RWMutex
	vehicles map[string]model.Vehicle
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{vehicles: make(map[string]model.Vehicle)}
}

// Apply merges a partial update into the vehicle, creating it with defaults
// on first sight, and returns the resulting state.
func (s *Store) Apply(id string, u model.VehicleUpdate) model.Vehicle {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vehicles[id]
	if !ok {
		v = model.NewVehicle(id)
	}
	v.Apply(u)
	s.vehicles[id] = v
	return v
}

// Get returns the vehicle by id.
func (s *Store) Get(id string) (model.Vehicle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vehicles[id]
	return v, ok
}

// Snapshot returns a copy of the full vehicle map. The copy may lag the
// true simulator state by up to one broadcast interval.
func (s *Store) Snapshot() map[string]model.Vehicle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make(map[string]model.Vehicle, len(s.vehicles))
	for id, v := range s.vehicles {
		res[id] = v
	}
	return res
}

// Len returns the number of known vehicles.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vehicles)
}
