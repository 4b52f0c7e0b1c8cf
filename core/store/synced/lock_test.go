package synced

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/syncdb/core/gate"
	"go.dedis.ch/syncdb/core/store"
	"go.dedis.ch/syncdb/core/store/file"
	"go.dedis.ch/syncdb/internal/testing/fake"
)

func TestStore_SharedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.bin")

	// Each store has its own gate, as two processes would.
	stores := []*Store{
		NewStore(file.NewStore(path)),
		NewStore(file.NewStore(path)),
	}

	const n = 50

	wg := sync.WaitGroup{}
	errs := make(chan error, len(stores)*n)

	for i, s := range stores {
		for k := 0; k < n; k++ {
			wg.Add(1)

			go func(s *Store, key string) {
				defer wg.Done()

				errs <- s.Set(context.Background(), []byte(key), []byte(key))
			}(s, fmt.Sprintf("%d-%d", i, k))
		}
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	snap, err := file.NewStore(path).Load()
	require.NoError(t, err)
	require.Equal(t, len(stores)*n, snap.Len())

	for i := range stores {
		value, err := stores[i].Get(context.Background(), []byte(fmt.Sprintf("%d-%d", 1-i, 0)))
		require.NoError(t, err)
		require.Equal(t, []byte(fmt.Sprintf("%d-0", 1-i)), value)
	}
}

func TestStore_LockModes(t *testing.T) {
	durable := &lockStore{DurableStore: fake.NewDurableStore()}
	s := NewStore(durable)
	ctx := context.Background()

	_, err := s.Get(ctx, []byte("A"))
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, []byte("A"), []byte("a")))

	_, err = s.Delete(ctx, []byte("A"))
	require.NoError(t, err)

	require.Equal(t, []bool{false, true, true}, durable.modes)
	require.Equal(t, 3, durable.unlocks)
}

func TestStore_LockFailure(t *testing.T) {
	durable := &lockStore{DurableStore: fake.NewDurableStore(), err: fake.GetError()}
	s := NewStore(durable)

	err := s.Set(context.Background(), []byte("A"), []byte("a"))
	require.EqualError(t, err, "set failed: failed to lock: fake error")
	require.Equal(t, 0, durable.Loads.Len())
	require.Equal(t, gate.Stats{Available: gate.DefaultPermits}, s.Gate().Stats())

	_, err = s.Get(context.Background(), []byte("A"))
	require.EqualError(t, err, "get failed: failed to lock: fake error")
}

// -----------------------------------------------------------------------------
// Utility functions

// lockStore records the locks taken on a fake durable store.
type lockStore struct {
	*fake.DurableStore

	lock    sync.Mutex
	modes   []bool
	unlocks int
	err     error
}

func (s *lockStore) Lock(ctx context.Context, exclusive bool) (store.Unlock, error) {
	if s.err != nil {
		return nil, s.err
	}

	s.lock.Lock()
	s.modes = append(s.modes, exclusive)
	s.lock.Unlock()

	unlock := func() error {
		s.lock.Lock()
		s.unlocks++
		s.lock.Unlock()

		return nil
	}

	return unlock, nil
}
