// Package mem implements a durable store that keeps the snapshot in the memory
// of the process. It is mainly useful for tests and for short-lived
// applications.
package mem

import (
	"sync"

	"go.dedis.ch/syncdb/core/store"
)

// Store is an in-memory implementation of a durable store. It keeps a private
// copy of the last persisted snapshot so that callers can never alter it
// without going through Persist.
//
// - implements store.DurableStore
type Store struct {
	sync.Mutex

	snapshot store.Snapshot
	persists int
}

// NewStore creates a new empty in-memory store.
func NewStore() *Store {
	return &Store{
		snapshot: store.NewSnapshot(),
	}
}

// Load implements store.DurableStore. It returns a copy of the last persisted
// snapshot.
func (s *Store) Load() (store.Snapshot, error) {
	s.Lock()
	defer s.Unlock()

	return s.snapshot.Clone(), nil
}

// Persist implements store.DurableStore. It replaces the stored snapshot with a
// copy of the given one.
func (s *Store) Persist(snap store.Snapshot) error {
	s.Lock()
	defer s.Unlock()

	s.snapshot = snap.Clone()
	s.persists++

	return nil
}

// Persists returns the number of successful persist calls.
func (s *Store) Persists() int {
	s.Lock()
	defer s.Unlock()

	return s.persists
}
