package fake

import (
	"sync"

	"go.dedis.ch/syncdb/core/store"
)

// DurableStore is a fake implementation of a durable store. It keeps the
// snapshot in memory and can be configured to fail.
//
// - implements store.DurableStore
type DurableStore struct {
	sync.Mutex

	snapshot   store.Snapshot
	ErrLoad    error
	ErrPersist error

	// OnLoad is called, if set, every time Load is called and before
	// returning.
	OnLoad func()

	Loads    Call
	Persists Call
}

// NewDurableStore creates a new empty durable store.
func NewDurableStore() *DurableStore {
	return &DurableStore{
		snapshot: store.NewSnapshot(),
	}
}

// NewBadLoadStore creates a durable store that fails to load.
func NewBadLoadStore() *DurableStore {
	s := NewDurableStore()
	s.ErrLoad = fakeErr

	return s
}

// NewBadPersistStore creates a durable store that fails to persist.
func NewBadPersistStore() *DurableStore {
	s := NewDurableStore()
	s.ErrPersist = fakeErr

	return s
}

// Load implements store.DurableStore.
func (s *DurableStore) Load() (store.Snapshot, error) {
	s.Loads.Add()

	if s.OnLoad != nil {
		s.OnLoad()
	}

	s.Lock()
	defer s.Unlock()

	if s.ErrLoad != nil {
		return nil, s.ErrLoad
	}

	return s.snapshot.Clone(), nil
}

// Persist implements store.DurableStore.
func (s *DurableStore) Persist(snap store.Snapshot) error {
	s.Lock()
	defer s.Unlock()

	if s.ErrPersist != nil {
		return s.ErrPersist
	}

	s.snapshot = snap.Clone()
	s.Persists.Add(snap.Clone())

	return nil
}

// Snapshot returns a copy of the last persisted snapshot.
func (s *DurableStore) Snapshot() store.Snapshot {
	s.Lock()
	defer s.Unlock()

	return s.snapshot.Clone()
}

// SetErrors changes the errors returned by the store.
func (s *DurableStore) SetErrors(errLoad, errPersist error) {
	s.Lock()
	defer s.Unlock()

	s.ErrLoad = errLoad
	s.ErrPersist = errPersist
}
