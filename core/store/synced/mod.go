// Package synced implements a key/value store that applies a readers-writer
// gate around every access to a durable store.
//
// Each operation loads the whole snapshot from the durable store. Get holds
// the read mode of the gate while it loads and looks up the key. Set and
// Delete hold the write mode while they load, mutate and persist the snapshot,
// so a mutation is either fully persisted before the gate is released, or
// dropped.
//
// The gate only coordinates the goroutines of one process. When the durable
// store is also a store.Lockable, its lock is taken inside the gate for the
// same section, shared for Get and exclusive for Set and Delete.
package synced

import (
	"context"
	"time"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"go.dedis.ch/syncdb"
	"go.dedis.ch/syncdb/core/gate"
	"go.dedis.ch/syncdb/core/store"
	"go.dedis.ch/syncdb/internal/tracing"
	"golang.org/x/xerrors"
)

// defines prometheus metrics
var (
	promOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "syncdb_store_operations_total",
		Help: "total number of store operations",
	}, []string{"operation"})

	promFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "syncdb_store_failures_total",
		Help: "total number of failed store operations",
	}, []string{"operation"})

	promDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "syncdb_store_operation_seconds",
		Help:    "duration of a store operation, including the gate",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	}, []string{"operation"})
)

func init() {
	syncdb.PromCollectors = append(syncdb.PromCollectors, promOps,
		promFailures, promDuration)
}

const (
	opGet    = "get"
	opSet    = "set"
	opDelete = "delete"
)

// Store is a key/value store synchronized by a gate.
type Store struct {
	durable store.DurableStore
	gate    gate.Gate
	timeout time.Duration
	tracer  opentracing.Tracer
	logger  zerolog.Logger
}

type storeTemplate struct {
	gate    gate.Gate
	timeout time.Duration
	tracer  opentracing.Tracer
	logger  zerolog.Logger
}

// StoreOption is the type of option to set some fields of a store.
type StoreOption func(*storeTemplate)

// WithGate sets the gate of the store. By default, the store creates its own
// permit gate with the default capacity.
func WithGate(g gate.Gate) StoreOption {
	return func(tmpl *storeTemplate) {
		tmpl.gate = g
	}
}

// WithTimeout bounds the time an operation waits for the gate. Zero, the
// default, waits indefinitely.
func WithTimeout(d time.Duration) StoreOption {
	return func(tmpl *storeTemplate) {
		tmpl.timeout = d
	}
}

// WithTracer sets the tracer used to create a span per operation.
func WithTracer(tracer opentracing.Tracer) StoreOption {
	return func(tmpl *storeTemplate) {
		tmpl.tracer = tracer
	}
}

// WithLogger sets the logger of the store.
func WithLogger(logger zerolog.Logger) StoreOption {
	return func(tmpl *storeTemplate) {
		tmpl.logger = logger
	}
}

// NewStore creates a new store on top of the durable store.
func NewStore(durable store.DurableStore, opts ...StoreOption) *Store {
	tmpl := storeTemplate{
		tracer: opentracing.NoopTracer{},
		logger: syncdb.Logger,
	}

	for _, opt := range opts {
		opt(&tmpl)
	}

	if tmpl.gate == nil {
		tmpl.gate = gate.NewPermitGate()
	}

	return &Store{
		durable: durable,
		gate:    tmpl.gate,
		timeout: tmpl.timeout,
		tracer:  tmpl.tracer,
		logger:  tmpl.logger,
	}
}

// Gate returns the gate of the store.
func (s *Store) Gate() gate.Gate {
	return s.gate
}

// Get returns the value associated to the key, or nil if the key does not
// exist. It waits while a writer is inside the gate.
func (s *Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	var value []byte

	err := s.run(ctx, opGet, key, func(ctx context.Context) error {
		return s.gate.Read(ctx, func() error {
			unlock, err := s.lockDurable(ctx, false)
			if err != nil {
				return err
			}

			defer s.unlockDurable(unlock)

			snap, err := s.durable.Load()
			if err != nil {
				return xerrors.Errorf("failed to load: %v", err)
			}

			value, _ = snap.Get(key)

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return value, nil
}

// Set inserts or updates the key. It returns an error if the snapshot could
// not be persisted, in which case the store is unchanged.
func (s *Store) Set(ctx context.Context, key, value []byte) error {
	return s.run(ctx, opSet, key, func(ctx context.Context) error {
		return s.gate.Write(ctx, func() error {
			unlock, err := s.lockDurable(ctx, true)
			if err != nil {
				return err
			}

			defer s.unlockDurable(unlock)

			snap, err := s.durable.Load()
			if err != nil {
				return xerrors.Errorf("failed to load: %v", err)
			}

			snap.Set(key, value)

			err = s.durable.Persist(snap)
			if err != nil {
				return xerrors.Errorf("failed to persist: %v", err)
			}

			return nil
		})
	})
}

// Delete removes the key and returns its value, or nil if it does not exist.
// The snapshot is persisted even when the key is absent.
func (s *Store) Delete(ctx context.Context, key []byte) ([]byte, error) {
	var removed []byte

	err := s.run(ctx, opDelete, key, func(ctx context.Context) error {
		return s.gate.Write(ctx, func() error {
			unlock, err := s.lockDurable(ctx, true)
			if err != nil {
				return err
			}

			defer s.unlockDurable(unlock)

			snap, err := s.durable.Load()
			if err != nil {
				return xerrors.Errorf("failed to load: %v", err)
			}

			value, _ := snap.Delete(key)

			err = s.durable.Persist(snap)
			if err != nil {
				return xerrors.Errorf("failed to persist: %v", err)
			}

			removed = value

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return removed, nil
}

// lockDurable takes the lock of the durable store if it has one.
func (s *Store) lockDurable(ctx context.Context, exclusive bool) (store.Unlock, error) {
	lockable, ok := s.durable.(store.Lockable)
	if !ok {
		return func() error { return nil }, nil
	}

	unlock, err := lockable.Lock(ctx, exclusive)
	if err != nil {
		return nil, xerrors.Errorf("failed to lock: %w", err)
	}

	return unlock, nil
}

func (s *Store) unlockDurable(unlock store.Unlock) {
	err := unlock()
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to unlock durable store")
	}
}

// run executes the operation with the timeout, the span and the logs shared by
// every operation.
func (s *Store) run(ctx context.Context, op string, key []byte, fn func(context.Context) error) error {
	start := time.Now()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	span, ctx := opentracing.StartSpanFromContextWithTracer(ctx, s.tracer, "syncdb."+op)
	span.SetTag(tracing.OperationTag, op)
	defer span.Finish()

	logger := s.logger.With().
		Str("op", op).
		Stringer("id", xid.New()).
		Hex("key", key).
		Logger()

	logger.Debug().Msg("operation started")

	promOps.WithLabelValues(op).Inc()

	err := fn(ctx)

	promDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if err != nil {
		promFailures.WithLabelValues(op).Inc()
		span.SetTag("error", true)
		span.LogKV("error", err.Error())

		logger.Warn().Err(err).Msg("operation failed")

		return xerrors.Errorf("%s failed: %w", op, err)
	}

	logger.Debug().Dur("elapsed", time.Since(start)).Msg("operation done")

	return nil
}
