// Package store holds the per-workload policy state and last decision
// record, keyed by workload id (invariant I2). It does not own the state
// that drives evaluation: the multi-workload orchestrator evaluates through
// each workload's window orchestrator and writes the result here afterwards.
package store

import (
	"sync"

	"cgroupgov/pkg/policy"
	"cgroupgov/pkg/workload"
)

// entry bundles the state and last record for one workload.
type entry struct {
	state      policy.State
	lastRecord *policy.Record
}

// Store is a keyed container: workload-id -> (policy state, last decision
// record). Reads and writes are isolated per key (invariant I3): no
// operation ever reads or writes more than one workload's entry.
type Store struct {
	mu      sync.RWMutex
	entries map[workload.ID]entry
}

// New constructs an empty Store.
func New() *Store {
	return &Store{entries: make(map[workload.ID]entry)}
}

// GetState returns the current policy state for id, auto-initializing
// absent entries to (Normal, 0).
func (s *Store) GetState(id workload.ID) policy.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		e = entry{state: policy.Initial()}
		s.entries[id] = e
	}

	return e.state
}

// GetLastRecord returns the last decision record for id, or nil if no
// window has been processed for it yet.
func (s *Store) GetLastRecord(id workload.ID) *policy.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil
	}

	return e.lastRecord
}

// SetDecision persists the new state and decision record for id after a
// window has been evaluated.
func (s *Store) SetDecision(id workload.ID, state policy.State, record policy.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recordCopy := record
	s.entries[id] = entry{state: state, lastRecord: &recordCopy}
}

// Reset reinitializes id back to (Normal, 0) with no last record.
func (s *Store) Reset(id workload.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[id] = entry{state: policy.Initial()}
}
