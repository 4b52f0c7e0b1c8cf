package gate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"go.dedis.ch/syncdb"
	"golang.org/x/sync/semaphore"
	"golang.org/x/xerrors"
)

// DefaultPermits is the capacity of the permit pool when none is provided.
const DefaultPermits = 10

// DrainMode defines how a writer takes the permits of the pool.
type DrainMode byte

const (
	// DrainBulk takes the N permits in a single acquisition. The pool serves
	// acquisitions in arrival order, so readers arriving after a waiting
	// writer queue behind it and the writer waits only for the readers that
	// were already inside.
	DrainBulk DrainMode = iota

	// DrainSequential takes the N permits one by one. Readers that queue
	// while the writer waits for a permit are served before its next step, so
	// the writer waits longer than with DrainBulk. The pool serves waiters in
	// arrival order and the writer never gives a permit back during the
	// drain, which keeps the wait bounded. On a pool without that ordering, a
	// continuous stream of readers could starve the writer.
	DrainSequential
)

func (m DrainMode) String() string {
	switch m {
	case DrainBulk:
		return "bulk"
	case DrainSequential:
		return "sequential"
	default:
		return "unknown"
	}
}

// DrainModeFromName returns the drain mode matching the name.
func DrainModeFromName(name string) (DrainMode, error) {
	switch name {
	case "bulk", "":
		return DrainBulk, nil
	case "sequential":
		return DrainSequential, nil
	default:
		return 0, xerrors.Errorf("unknown drain mode '%s'", name)
	}
}

const (
	modeRead  = "read"
	modeWrite = "write"
)

// defines prometheus metrics
var (
	promReaders = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "syncdb_gate_readers",
		Help: "number of readers inside the gates",
	})

	promWriters = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "syncdb_gate_writers",
		Help: "number of writers inside the gates",
	})

	promWait = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "syncdb_gate_wait_seconds",
		Help:    "time spent waiting for a gate mode",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	}, []string{"mode"})

	promAborted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "syncdb_gate_aborted_total",
		Help: "total number of acquisitions that gave up",
	}, []string{"mode"})
)

func init() {
	syncdb.PromCollectors = append(syncdb.PromCollectors, promReaders,
		promWriters, promWait, promAborted)
}

// PermitGate is a gate made of a weighted semaphore of N permits and a
// weighted semaphore of a single permit acting as the writer exclusion lock.
// Both honour cancellation, which a sync.Mutex cannot.
//
// - implements gate.Gate
type PermitGate struct {
	permits     int64
	drain       DrainMode
	holdWarning time.Duration
	logger      zerolog.Logger

	pool   *semaphore.Weighted
	writer *semaphore.Weighted

	held    int64
	readers int64
	writers int64
}

type gateTemplate struct {
	permits     int64
	drain       DrainMode
	holdWarning time.Duration
}

// GateOption is the type of option to set some fields of a gate.
type GateOption func(*gateTemplate)

// WithPermits sets the capacity of the pool, which is also the maximum number
// of concurrent readers. Values below one are ignored.
func WithPermits(n int) GateOption {
	return func(tmpl *gateTemplate) {
		if n >= 1 {
			tmpl.permits = int64(n)
		}
	}
}

// WithDrain sets the way a writer drains the pool.
func WithDrain(mode DrainMode) GateOption {
	return func(tmpl *gateTemplate) {
		tmpl.drain = mode
	}
}

// WithHoldWarning enables a warning in the logs when a caller waits for, or
// holds, a gate mode longer than the given duration. Zero disables it.
func WithHoldWarning(d time.Duration) GateOption {
	return func(tmpl *gateTemplate) {
		tmpl.holdWarning = d
	}
}

// NewPermitGate creates a new gate with every permit available and the
// exclusion lock free.
func NewPermitGate(opts ...GateOption) *PermitGate {
	tmpl := gateTemplate{
		permits: DefaultPermits,
		drain:   DrainBulk,
	}

	for _, opt := range opts {
		opt(&tmpl)
	}

	logger := syncdb.Logger.With().
		Str("gate", xid.New().String()).
		Int64("permits", tmpl.permits).
		Stringer("drain", tmpl.drain).
		Logger()

	return &PermitGate{
		permits:     tmpl.permits,
		drain:       tmpl.drain,
		holdWarning: tmpl.holdWarning,
		logger:      logger,
		pool:        semaphore.NewWeighted(tmpl.permits),
		writer:      semaphore.NewWeighted(1),
	}
}

// Permits returns the capacity of the pool.
func (g *PermitGate) Permits() int {
	return int(g.permits)
}

// AcquireRead implements gate.Gate. It takes one permit of the pool. It does
// not touch the exclusion lock.
func (g *PermitGate) AcquireRead(ctx context.Context) (Release, error) {
	start := time.Now()

	waiting := g.startTimer(modeRead, "waiting for the read mode for too long")
	err := g.pool.Acquire(ctx, 1)
	stopTimer(waiting)

	if err != nil {
		promAborted.WithLabelValues(modeRead).Inc()
		return nil, xerrors.Errorf("failed to acquire read permit: %w", err)
	}

	atomic.AddInt64(&g.held, 1)
	atomic.AddInt64(&g.readers, 1)
	promReaders.Inc()
	promWait.WithLabelValues(modeRead).Observe(time.Since(start).Seconds())

	g.logger.Trace().Msg("acquired reading permissions")

	holding := g.startTimer(modeRead, "holding the read mode for too long")

	var once sync.Once

	release := func() {
		once.Do(func() {
			stopTimer(holding)

			promReaders.Dec()
			atomic.AddInt64(&g.readers, -1)
			atomic.AddInt64(&g.held, -1)
			g.pool.Release(1)

			g.logger.Trace().Msg("released reading permissions")
		})
	}

	return release, nil
}

// AcquireWrite implements gate.Gate. It takes the exclusion lock and then
// drains every permit of the pool. If the context is done in the middle, the
// permits already taken and the lock are given back before returning.
func (g *PermitGate) AcquireWrite(ctx context.Context) (Release, error) {
	start := time.Now()

	waiting := g.startTimer(modeWrite, "waiting for the write mode for too long")
	defer stopTimer(waiting)

	err := g.writer.Acquire(ctx, 1)
	if err != nil {
		promAborted.WithLabelValues(modeWrite).Inc()
		return nil, xerrors.Errorf("failed to acquire exclusion lock: %w", err)
	}

	err = g.drainPool(ctx)
	if err != nil {
		g.writer.Release(1)

		promAborted.WithLabelValues(modeWrite).Inc()
		return nil, xerrors.Errorf("failed to drain permits: %w", err)
	}

	atomic.AddInt64(&g.writers, 1)
	promWriters.Inc()
	promWait.WithLabelValues(modeWrite).Observe(time.Since(start).Seconds())

	g.logger.Trace().Msg("acquired writing permissions")

	holding := g.startTimer(modeWrite, "holding the write mode for too long")

	var once sync.Once

	release := func() {
		once.Do(func() {
			stopTimer(holding)

			promWriters.Dec()
			atomic.AddInt64(&g.writers, -1)
			atomic.AddInt64(&g.held, -g.permits)

			// Full capacity is restored before the next writer can start
			// draining.
			g.pool.Release(g.permits)
			g.writer.Release(1)

			g.logger.Trace().Msg("released writing permissions")
		})
	}

	return release, nil
}

// Read implements gate.Gate.
func (g *PermitGate) Read(ctx context.Context, fn func() error) error {
	release, err := g.AcquireRead(ctx)
	if err != nil {
		return err
	}

	defer release()

	return fn()
}

// Write implements gate.Gate.
func (g *PermitGate) Write(ctx context.Context, fn func() error) error {
	release, err := g.AcquireWrite(ctx)
	if err != nil {
		return err
	}

	defer release()

	return fn()
}

// Stats implements gate.Gate.
func (g *PermitGate) Stats() Stats {
	return Stats{
		Readers:   int(atomic.LoadInt64(&g.readers)),
		Writers:   int(atomic.LoadInt64(&g.writers)),
		Available: int(g.permits - atomic.LoadInt64(&g.held)),
	}
}

func (g *PermitGate) drainPool(ctx context.Context) error {
	if g.drain == DrainBulk {
		err := g.pool.Acquire(ctx, g.permits)
		if err != nil {
			return err
		}

		atomic.AddInt64(&g.held, g.permits)

		return nil
	}

	for i := int64(0); i < g.permits; i++ {
		err := g.pool.Acquire(ctx, 1)
		if err != nil {
			if i > 0 {
				atomic.AddInt64(&g.held, -i)
				g.pool.Release(i)
			}

			return err
		}

		atomic.AddInt64(&g.held, 1)
	}

	return nil
}
