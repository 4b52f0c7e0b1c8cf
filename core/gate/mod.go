// Package gate defines a readers-writer gate built from a bounded pool of
// permits and a writer exclusion lock.
//
// A reader takes one permit of the pool, so at most N readers are inside the
// gate at the same time. A writer first takes the exclusion lock, which makes
// sure only one writer drains the pool, and then takes all N permits. Holding
// the whole pool means no reader is left inside and no new one can enter.
//
//	IDLE -> READING(k <= N) -> IDLE
//	IDLE|READING -> DRAINING -> WRITING -> IDLE
//
// Write access is reported to the caller only once every permit is held. A
// caller must never acquire the write mode while it holds the read mode, as
// there is no upgrade path.
package gate

import "context"

// Release gives back what an acquisition took. Calling it more than once has
// no effect.
type Release func()

// Stats is a view of the current occupancy of a gate.
type Stats struct {
	// Readers is the number of callers holding the read mode.
	Readers int
	// Writers is the number of callers holding the write mode. It is either 0
	// or 1.
	Writers int
	// Available is the number of free permits in the pool.
	Available int
}

// Gate is the interface of a readers-writer gate.
type Gate interface {
	// AcquireRead blocks until a read permit is taken or the context is done.
	AcquireRead(ctx context.Context) (Release, error)

	// AcquireWrite blocks until the exclusive access is granted or the context
	// is done. Nothing is held when it returns an error.
	AcquireWrite(ctx context.Context) (Release, error)

	// Read executes the function while holding the read mode. The permit is
	// given back on every exit path of the function.
	Read(ctx context.Context, fn func() error) error

	// Write executes the function while holding the write mode. The gate is
	// released on every exit path of the function.
	Write(ctx context.Context, fn func() error) error

	// Stats returns the current occupancy of the gate.
	Stats() Stats
}
