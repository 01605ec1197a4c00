// Package state owns the latest known sensor readings. One store instance is
// constructed at startup and injected into the components that need it;
// nothing else holds sensor state.
package state

import (
	"sync"
	"time"

	"github.com/dualtower/hydroai/internal/model"
)

// Reading is a sensor value with the instant it was observed. Value and At
// are always written together.
type Reading struct {
	Value float64
	At    time.Time
}

// Snapshot is a copy of readings keyed by quantity. A quantity absent from
// the map was never observed; callers must not substitute zero.
type Snapshot map[model.Quantity]Reading

// Get returns the reading for q, if any.
func (s Snapshot) Get(q model.Quantity) (Reading, bool) {
	r, ok := s[q]
	return r, ok
}

// Store holds per-tower readings plus the shared environment readings.
type Store struct {
	mu     sync.RWMutex
	towers map[model.Tower]Snapshot
	env    Snapshot
	notify func(model.Tower)
}

func NewStore() *Store {
	return &Store{
		towers: map[model.Tower]Snapshot{
			model.TowerCool: {},
			model.TowerWarm: {},
		},
		env: Snapshot{},
	}
}

// OnUpdate registers a listener invoked after every successful update with
// the tower whose evaluation should be rescheduled. Environment updates
// notify both towers. Must be called before the store is shared.
func (s *Store) OnUpdate(fn func(model.Tower)) { s.notify = fn }

// Update overwrites the stored value and timestamp for a tower quantity.
// Environment quantities go to the shared environment snapshot regardless of
// which tower's topic delivered them.
func (s *Store) Update(tower model.Tower, q model.Quantity, value float64, observedAt time.Time) {
	s.mu.Lock()
	if model.EnvironmentQuantity(q) {
		s.env[q] = Reading{Value: value, At: observedAt}
	} else {
		s.towers[tower][q] = Reading{Value: value, At: observedAt}
	}
	s.mu.Unlock()

	if s.notify != nil {
		if model.EnvironmentQuantity(q) {
			for _, t := range model.Towers {
				s.notify(t)
			}
		} else {
			s.notify(tower)
		}
	}
}

// UpdateEnvironment records a shared environment reading.
func (s *Store) UpdateEnvironment(q model.Quantity, value float64, observedAt time.Time) {
	s.mu.Lock()
	s.env[q] = Reading{Value: value, At: observedAt}
	s.mu.Unlock()

	if s.notify != nil {
		for _, t := range model.Towers {
			s.notify(t)
		}
	}
}

// Snapshot returns a copy of the tower's readings merged with the shared
// environment readings. The copy does not alias store internals.
func (s *Store) Snapshot(tower model.Tower) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(Snapshot, len(s.towers[tower])+len(s.env))
	for q, r := range s.towers[tower] {
		out[q] = r
	}
	for q, r := range s.env {
		out[q] = r
	}
	return out
}

// LastUpdate returns the most recent observation time among the tower's own
// quantities, or zero if nothing was ever observed. Environment readings are
// excluded; their staleness is tracked separately.
func (s *Store) LastUpdate(tower model.Tower) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest time.Time
	for _, r := range s.towers[tower] {
		if r.At.After(latest) {
			latest = r.At
		}
	}
	return latest
}

// EnvironmentLastUpdate returns the most recent environment observation time.
func (s *Store) EnvironmentLastUpdate() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest time.Time
	for _, r := range s.env {
		if r.At.After(latest) {
			latest = r.At
		}
	}
	return latest
}
