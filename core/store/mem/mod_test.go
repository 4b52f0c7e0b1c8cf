package mem

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/syncdb/core/store"
)

func TestStore_Load(t *testing.T) {
	s := NewStore()

	snap, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, 0, snap.Len())

	s.snapshot["A"] = []byte{1}

	snap, err = s.Load()
	require.NoError(t, err)
	require.Equal(t, store.Snapshot{"A": {1}}, snap)

	// Modifying a loaded snapshot does not leak into the store.
	snap.Set([]byte("B"), []byte{2})
	require.Len(t, s.snapshot, 1)
}

func TestStore_Persist(t *testing.T) {
	s := NewStore()

	snap := store.NewSnapshot()
	snap.Set([]byte("A"), []byte{1})

	require.NoError(t, s.Persist(snap))
	require.Equal(t, 1, s.Persists())

	snap.Set([]byte("A"), []byte{2})
	require.Equal(t, []byte{1}, s.snapshot["A"])

	require.NoError(t, s.Persist(store.NewSnapshot()))
	require.Equal(t, 2, s.Persists())
	require.Len(t, s.snapshot, 0)
}
