package file

import (
	"context"
	"os"
	"time"

	"go.dedis.ch/syncdb/core/store"
	"golang.org/x/xerrors"
)

// lockRetry is the delay between two attempts to take the lock of the file.
const lockRetry = 5 * time.Millisecond

// LockPath returns the path of the file used to lock the store.
func (s *Store) LockPath() string {
	return s.path + ".lock"
}

// Lock implements store.Lockable. It takes an advisory lock on a file next to
// the store file, so that processes sharing the same path are coordinated. The
// lock is polled until it is taken or the context is done.
func (s *Store) Lock(ctx context.Context, exclusive bool) (store.Unlock, error) {
	f, err := os.OpenFile(s.LockPath(), os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, xerrors.Errorf("failed to open lock file: %v", err)
	}

	for {
		locked, err := tryLock(f, exclusive)
		if err != nil {
			f.Close()
			return nil, xerrors.Errorf("failed to take lock: %v", err)
		}

		if locked {
			break
		}

		timer := time.NewTimer(lockRetry)

		select {
		case <-ctx.Done():
			timer.Stop()
			f.Close()

			return nil, xerrors.Errorf("gave up waiting: %w", ctx.Err())
		case <-timer.C:
		}
	}

	s.logger.Trace().Bool("exclusive", exclusive).Msg("file locked")

	unlock := func() error {
		err := unlockFile(f)
		if err != nil {
			f.Close()
			return xerrors.Errorf("failed to unlock: %v", err)
		}

		err = f.Close()
		if err != nil {
			return xerrors.Errorf("failed to close lock file: %v", err)
		}

		return nil
	}

	return unlock, nil
}
