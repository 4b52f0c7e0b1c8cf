package controller

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.dedis.ch/syncdb"
	"go.dedis.ch/syncdb/cli"
	"go.dedis.ch/syncdb/core/store/synced"
	"golang.org/x/xerrors"
)

// absent is printed when a key does not exist.
const absent = "(nil)"

// shutdownTimeout is the time given to the metrics server to stop.
const shutdownTimeout = 5 * time.Second

// withStore loads the configuration, opens the store and closes it after the
// function returns.
func (c Controller) withStore(flags cli.Flags, fn func(*synced.Store) error) error {
	config, err := LoadConfig(flags)
	if err != nil {
		return xerrors.Errorf("failed to load config: %v", err)
	}

	s, release, err := c.open(config)
	if err != nil {
		return xerrors.Errorf("failed to open store: %v", err)
	}

	err = fn(s)

	errClose := release()
	if err == nil && errClose != nil {
		return errClose
	}

	return err
}

func expectArgs(flags cli.Flags, n int, usage string) error {
	if flags.NArg() != n {
		return xerrors.Errorf("expected %d argument(s): %s", n, usage)
	}

	return nil
}

type getAction struct {
	ctrl Controller
}

// Execute implements cli.Action. It prints the value of the key.
func (a getAction) Execute(flags cli.Flags) error {
	err := expectArgs(flags, 1, "KEY")
	if err != nil {
		return err
	}

	return a.ctrl.withStore(flags, func(s *synced.Store) error {
		value, err := s.Get(context.Background(), []byte(flags.Arg(0)))
		if err != nil {
			return err
		}

		printValue(flags, value)

		return nil
	})
}

type setAction struct {
	ctrl Controller
}

// Execute implements cli.Action. It sets the key to the value.
func (a setAction) Execute(flags cli.Flags) error {
	err := expectArgs(flags, 2, "KEY VALUE")
	if err != nil {
		return err
	}

	return a.ctrl.withStore(flags, func(s *synced.Store) error {
		err := s.Set(context.Background(), []byte(flags.Arg(0)), []byte(flags.Arg(1)))
		if err != nil {
			return err
		}

		fmt.Fprintln(flags.Out(), "OK")

		return nil
	})
}

type deleteAction struct {
	ctrl Controller
}

// Execute implements cli.Action. It removes the key and prints its value.
func (a deleteAction) Execute(flags cli.Flags) error {
	err := expectArgs(flags, 1, "KEY")
	if err != nil {
		return err
	}

	return a.ctrl.withStore(flags, func(s *synced.Store) error {
		value, err := s.Delete(context.Background(), []byte(flags.Arg(0)))
		if err != nil {
			return err
		}

		printValue(flags, value)

		return nil
	})
}

type stressAction struct {
	ctrl Controller
}

// Execute implements cli.Action. It runs the scenario described by the flags
// and prints the report. If the metrics flag is set, the Prometheus handler is
// served for the duration of the run.
func (a stressAction) Execute(flags cli.Flags) error {
	scenario := synced.Scenario{
		Keys:     flags.Int("keys"),
		Readers:  flags.Int("readers"),
		Writers:  flags.Int("writers"),
		Deleters: flags.Int("deleters"),
		Deleted:  flags.Int("deleted"),
	}

	return a.ctrl.withStore(flags, func(s *synced.Store) error {
		addr := flags.String("metrics")
		if addr != "" {
			stop, err := serveMetrics(flags, addr)
			if err != nil {
				return err
			}

			defer stop()
		}

		report, err := synced.RunScenario(context.Background(), s, scenario)
		if err != nil {
			return xerrors.Errorf("scenario failed: %v", err)
		}

		fmt.Fprintln(flags.Out(), report)

		return nil
	})
}

// serveMetrics registers the collectors of the module in a new registry and
// serves it on the address. The returned function stops the server.
func serveMetrics(flags cli.Flags, addr string) (func(), error) {
	registry := prometheus.NewRegistry()

	for _, c := range syncdb.PromCollectors {
		err := registry.Register(c)
		if err != nil {
			return nil, xerrors.Errorf("failed to register: %v", err)
		}
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, xerrors.Errorf("failed to listen: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Handler: mux}

	go func() {
		err := srv.Serve(lis)
		if err != nil && err != http.ErrServerClosed {
			syncdb.Logger.Err(err).Msg("metrics server failed")
		}
	}()

	fmt.Fprintf(flags.Out(), "serving metrics on http://%s/metrics\n", lis.Addr())

	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		srv.Shutdown(ctx)
	}

	return stop, nil
}

func printValue(flags cli.Flags, value []byte) {
	if value == nil {
		fmt.Fprintln(flags.Out(), absent)
		return
	}

	fmt.Fprintln(flags.Out(), string(value))
}
