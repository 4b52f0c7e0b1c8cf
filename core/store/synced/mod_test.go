package synced

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/syncdb/core/gate"
	"go.dedis.ch/syncdb/core/store"
	"go.dedis.ch/syncdb/internal/testing/fake"
	"go.dedis.ch/syncdb/internal/tracing"
)

const blockedDelay = 100 * time.Millisecond

func TestStore_New(t *testing.T) {
	s := NewStore(fake.NewDurableStore())
	require.NotNil(t, s.Gate())
	require.Equal(t, time.Duration(0), s.timeout)

	g := gate.NewPermitGate(gate.WithPermits(2))
	s = NewStore(fake.NewDurableStore(), WithGate(g), WithTimeout(time.Second),
		WithLogger(zerolog.Nop()))
	require.Equal(t, g, s.Gate())
	require.Equal(t, time.Second, s.timeout)
}

func TestStore_RoundTrip(t *testing.T) {
	durable := fake.NewDurableStore()
	s := NewStore(durable)
	ctx := context.Background()

	value, err := s.Get(ctx, []byte("A"))
	require.NoError(t, err)
	require.Nil(t, value)

	require.NoError(t, s.Set(ctx, []byte("A"), []byte("a")))

	value, err = s.Get(ctx, []byte("A"))
	require.NoError(t, err)
	require.Equal(t, []byte("a"), value)

	require.NoError(t, s.Set(ctx, []byte("A"), []byte("b")))

	value, err = s.Get(ctx, []byte("A"))
	require.NoError(t, err)
	require.Equal(t, []byte("b"), value)

	removed, err := s.Delete(ctx, []byte("A"))
	require.NoError(t, err)
	require.Equal(t, []byte("b"), removed)

	value, err = s.Get(ctx, []byte("A"))
	require.NoError(t, err)
	require.Nil(t, value)

	// Deleting again is not an error and leaves the store unchanged.
	removed, err = s.Delete(ctx, []byte("A"))
	require.NoError(t, err)
	require.Nil(t, removed)
	require.Equal(t, 0, durable.Snapshot().Len())
}

func TestStore_EmptyValue(t *testing.T) {
	s := NewStore(fake.NewDurableStore())

	require.NoError(t, s.Set(context.Background(), []byte("A"), nil))

	value, err := s.Get(context.Background(), []byte("A"))
	require.NoError(t, err)
	require.Equal(t, []byte{}, value)
	require.NotNil(t, value)
}

func TestStore_ReloadsEveryOperation(t *testing.T) {
	durable := fake.NewDurableStore()
	s := NewStore(durable)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, []byte("A"), []byte("a")))
	require.Equal(t, 1, durable.Loads.Len())
	require.Equal(t, 1, durable.Persists.Len())

	// A change made directly on the medium is seen by the next operation.
	require.NoError(t, durable.Persist(store.Snapshot{"A": []byte("z")}))

	value, err := s.Get(ctx, []byte("A"))
	require.NoError(t, err)
	require.Equal(t, []byte("z"), value)
	require.Equal(t, 2, durable.Loads.Len())

	_, err = s.Delete(ctx, []byte("B"))
	require.NoError(t, err)
	require.Equal(t, 3, durable.Loads.Len())
	require.Equal(t, 3, durable.Persists.Len())
	require.Equal(t, store.Snapshot{"A": []byte("z")}, durable.Persists.Get(2, 0))
}

func TestStore_LoadFailure(t *testing.T) {
	s := NewStore(fake.NewBadLoadStore())
	ctx := context.Background()

	_, err := s.Get(ctx, []byte("A"))
	require.EqualError(t, err, "get failed: failed to load: fake error")

	err = s.Set(ctx, []byte("A"), []byte("a"))
	require.EqualError(t, err, "set failed: failed to load: fake error")

	_, err = s.Delete(ctx, []byte("A"))
	require.EqualError(t, err, "delete failed: failed to load: fake error")

	require.Equal(t, gate.Stats{Available: gate.DefaultPermits}, s.Gate().Stats())
}

func TestStore_PersistFailure(t *testing.T) {
	durable := fake.NewDurableStore()
	s := NewStore(durable)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, []byte("A"), []byte("a")))

	durable.SetErrors(nil, fake.GetError())

	err := s.Set(ctx, []byte("A"), []byte("b"))
	require.EqualError(t, err, "set failed: failed to persist: fake error")

	removed, err := s.Delete(ctx, []byte("A"))
	require.EqualError(t, err, "delete failed: failed to persist: fake error")
	require.Nil(t, removed)

	// The gate is released: the following operations do not block.
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	value, err := s.Get(ctx, []byte("A"))
	require.NoError(t, err)
	require.Equal(t, []byte("a"), value)

	durable.SetErrors(nil, nil)

	require.NoError(t, s.Set(ctx, []byte("A"), []byte("c")))
	require.Equal(t, store.Snapshot{"A": []byte("c")}, durable.Snapshot())
}

func TestStore_Timeout(t *testing.T) {
	g := gate.NewPermitGate()
	s := NewStore(fake.NewDurableStore(), WithGate(g), WithTimeout(blockedDelay))

	release, err := g.AcquireWrite(context.Background())
	require.NoError(t, err)

	_, err = s.Get(context.Background(), []byte("A"))
	require.True(t, errors.Is(err, context.DeadlineExceeded))

	err = s.Set(context.Background(), []byte("A"), []byte("a"))
	require.True(t, errors.Is(err, context.DeadlineExceeded))

	release()

	require.NoError(t, s.Set(context.Background(), []byte("A"), []byte("a")))
}

func TestStore_Canceled(t *testing.T) {
	g := gate.NewPermitGate()
	durable := fake.NewDurableStore()
	s := NewStore(durable, WithGate(g))

	release, err := g.AcquireRead(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Delete(ctx, []byte("A"))
	require.True(t, errors.Is(err, context.Canceled))
	require.Equal(t, 0, durable.Loads.Len())

	release()
}

func TestStore_BoundedReaders(t *testing.T) {
	durable := fake.NewDurableStore()
	s := NewStore(durable)

	var inside int32
	full := make(chan struct{})
	proceed := make(chan struct{})

	durable.OnLoad = func() {
		if atomic.AddInt32(&inside, 1) == gate.DefaultPermits {
			close(full)
		}

		<-proceed
	}

	wg := sync.WaitGroup{}
	for i := 0; i < gate.DefaultPermits; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Get(context.Background(), []byte("A"))
		}()
	}

	select {
	case <-full:
	case <-time.After(5 * time.Second):
		t.Fatal("readers did not enter concurrently")
	}

	ctx, cancel := context.WithTimeout(context.Background(), blockedDelay)
	defer cancel()

	_, err := s.Get(ctx, []byte("A"))
	require.True(t, errors.Is(err, context.DeadlineExceeded))
	require.Equal(t, gate.DefaultPermits, durable.Loads.Len())

	close(proceed)
	wg.Wait()
}

func TestStore_WriteWaitsForReaders(t *testing.T) {
	durable := fake.NewDurableStore()
	s := NewStore(durable)

	var calls int32
	readerInside := make(chan struct{})
	proceed := make(chan struct{})

	durable.OnLoad = func() {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(readerInside)
			<-proceed
		}
	}

	wg := sync.WaitGroup{}
	wg.Add(2)

	go func() {
		defer wg.Done()
		s.Get(context.Background(), []byte("A"))
	}()

	<-readerInside

	go func() {
		defer wg.Done()
		s.Set(context.Background(), []byte("A"), []byte("a"))
	}()

	time.Sleep(blockedDelay)
	require.Equal(t, 1, durable.Loads.Len())
	require.Equal(t, 0, durable.Persists.Len())

	close(proceed)
	wg.Wait()

	require.Equal(t, 2, durable.Loads.Len())
	require.Equal(t, 1, durable.Persists.Len())
}

func TestStore_ReadWaitsForWriter(t *testing.T) {
	durable := fake.NewDurableStore()
	s := NewStore(durable)

	var calls int32
	writerInside := make(chan struct{})
	proceed := make(chan struct{})

	durable.OnLoad = func() {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(writerInside)
			<-proceed
		}
	}

	go func() {
		s.Set(context.Background(), []byte("A"), []byte("a"))
	}()

	<-writerInside

	result := make(chan []byte, 1)
	go func() {
		value, _ := s.Get(context.Background(), []byte("A"))
		result <- value
	}()

	time.Sleep(blockedDelay)
	require.Equal(t, 1, durable.Loads.Len())

	close(proceed)

	select {
	case value := <-result:
		// The reader observes the write that was in progress.
		require.Equal(t, []byte("a"), value)
	case <-time.After(5 * time.Second):
		t.Fatal("reader never returned")
	}
}

func TestStore_Tracing(t *testing.T) {
	tracer := mocktracer.New()
	s := NewStore(fake.NewDurableStore(), WithTracer(tracer))

	require.NoError(t, s.Set(context.Background(), []byte("A"), []byte("a")))

	_, err := NewStore(fake.NewBadLoadStore(), WithTracer(tracer)).
		Get(context.Background(), []byte("A"))
	require.Error(t, err)

	spans := tracer.FinishedSpans()
	require.Len(t, spans, 2)

	require.Equal(t, "syncdb.set", spans[0].OperationName)
	require.Equal(t, "set", spans[0].Tag(tracing.OperationTag))
	require.Nil(t, spans[0].Tag("error"))

	require.Equal(t, "syncdb.get", spans[1].OperationName)
	require.Equal(t, true, spans[1].Tag("error"))
}
