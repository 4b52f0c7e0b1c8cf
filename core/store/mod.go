// Package store defines the primitives of a simple key/value storage that is
// loaded and persisted as a whole.
//
// A Snapshot is the complete key/value mapping at a given time. A DurableStore
// is the medium the snapshots are loaded from and persisted to. It keeps no
// state between two calls, so every Load observes the last successful Persist.
package store

import "context"

// Readable is the interface for a readable store.
type Readable interface {
	Get(key []byte) ([]byte, bool)
}

// Writable is the interface for a writable store.
type Writable interface {
	Set(key []byte, value []byte)

	Delete(key []byte) ([]byte, bool)
}

// DurableStore is the interface of a medium that can load and persist a whole
// snapshot.
type DurableStore interface {
	// Load reads the complete snapshot from the medium. A missing or empty
	// medium produces an empty snapshot.
	Load() (Snapshot, error)

	// Persist replaces the content of the medium with the snapshot. Concurrent
	// loaders never observe a partially written snapshot.
	Persist(Snapshot) error
}

// Unlock releases a lock taken on a durable store.
type Unlock func() error

// Lockable is implemented by the durable stores that can be shared by several
// processes. The caller holds the lock from the load to the end of the persist
// of an operation, so that two processes never interleave a mutation.
type Lockable interface {
	// Lock blocks until the lock of the medium is taken or the context is
	// done. A shared lock can be held by several callers at the same time,
	// while an exclusive one excludes any other.
	Lock(ctx context.Context, exclusive bool) (Unlock, error)
}
