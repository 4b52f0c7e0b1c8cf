package synced

import (
	"bytes"
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

// Scenario describes a concurrent workload run against a store. The keys are
// first primed, then readers and writers run concurrently, and finally the
// deleters remove the first keys concurrently.
type Scenario struct {
	// Keys is the number of keys primed and accessed by every worker.
	Keys int
	// Readers is the number of concurrent workers reading every key.
	Readers int
	// Writers is the number of concurrent workers writing every key.
	Writers int
	// Deleters is the number of concurrent workers deleting the first keys.
	Deleters int
	// Deleted is the number of keys removed by the deleters.
	Deleted int
}

// DefaultScenario is the workload of 50 readers and 5 writers over 100 keys,
// followed by 5 deleters removing the first 10 keys.
var DefaultScenario = Scenario{
	Keys:     100,
	Readers:  50,
	Writers:  5,
	Deleters: 5,
	Deleted:  10,
}

// Report is the outcome of a scenario.
type Report struct {
	Gets    int64
	Sets    int64
	Deletes int64
	Elapsed time.Duration
}

func (r Report) String() string {
	return fmt.Sprintf("gets=%d sets=%d deletes=%d elapsed=%v",
		r.Gets, r.Sets, r.Deletes, r.Elapsed)
}

// ScenarioKey returns the key of the index.
func ScenarioKey(i int) []byte {
	return []byte(fmt.Sprintf("%d", i))
}

// ScenarioValue returns the value written for the index.
func ScenarioValue(i int) []byte {
	return []byte(fmt.Sprintf("t%d", i))
}

// RunScenario executes the scenario. It stops at the first failure or
// unexpected value.
func RunScenario(ctx context.Context, s *Store, sc Scenario) (Report, error) {
	if sc.Deleted > sc.Keys {
		return Report{}, xerrors.Errorf("cannot delete %d keys out of %d", sc.Deleted, sc.Keys)
	}

	var report Report

	start := time.Now()

	for i := 0; i < sc.Keys; i++ {
		err := s.Set(ctx, ScenarioKey(i), ScenarioValue(i))
		if err != nil {
			return report, xerrors.Errorf("failed to prime: %v", err)
		}

		report.Sets++
	}

	group, gctx := errgroup.WithContext(ctx)

	for r := 0; r < sc.Readers; r++ {
		group.Go(func() error {
			return readRange(gctx, s, 0, sc.Keys, &report)
		})
	}

	for w := 0; w < sc.Writers; w++ {
		group.Go(func() error {
			for i := 0; i < sc.Keys; i++ {
				err := s.Set(gctx, ScenarioKey(i), ScenarioValue(i))
				if err != nil {
					return err
				}

				atomic.AddInt64(&report.Sets, 1)
			}

			return nil
		})
	}

	err := group.Wait()
	if err != nil {
		return report, xerrors.Errorf("concurrent phase failed: %v", err)
	}

	group, gctx = errgroup.WithContext(ctx)

	for d := 0; d < sc.Deleters; d++ {
		group.Go(func() error {
			for i := 0; i < sc.Deleted; i++ {
				_, err := s.Delete(gctx, ScenarioKey(i))
				if err != nil {
					return err
				}

				atomic.AddInt64(&report.Deletes, 1)
			}

			for i := 0; i < sc.Deleted; i++ {
				value, err := s.Get(gctx, ScenarioKey(i))
				if err != nil {
					return err
				}

				atomic.AddInt64(&report.Gets, 1)

				if value != nil {
					return xerrors.Errorf("key %d: expected deleted, got %q", i, value)
				}
			}

			return readRange(gctx, s, sc.Deleted, sc.Keys, &report)
		})
	}

	err = group.Wait()
	if err != nil {
		return report, xerrors.Errorf("delete phase failed: %v", err)
	}

	report.Elapsed = time.Since(start)

	return report, nil
}

func readRange(ctx context.Context, s *Store, from, to int, report *Report) error {
	for i := from; i < to; i++ {
		value, err := s.Get(ctx, ScenarioKey(i))
		if err != nil {
			return err
		}

		atomic.AddInt64(&report.Gets, 1)

		if !bytes.Equal(value, ScenarioValue(i)) {
			return xerrors.Errorf("key %d: expected %q, got %q", i, ScenarioValue(i), value)
		}
	}

	return nil
}
