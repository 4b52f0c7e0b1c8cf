// Package controller implements the commands of the CLI to operate a
// synchronized store.
//
//	syncdb set KEY VALUE
//	syncdb get KEY
//	syncdb delete KEY
//	syncdb --backend bolt --db data.db stress --readers 50 --writers 5
package controller

import (
	"io"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/rs/zerolog"
	"go.dedis.ch/syncdb"
	"go.dedis.ch/syncdb/cli"
	"go.dedis.ch/syncdb/core/gate"
	"go.dedis.ch/syncdb/core/store"
	"go.dedis.ch/syncdb/core/store/file"
	"go.dedis.ch/syncdb/core/store/kv"
	"go.dedis.ch/syncdb/core/store/mem"
	"go.dedis.ch/syncdb/core/store/synced"
	"go.dedis.ch/syncdb/internal/tracing"
	"golang.org/x/xerrors"
)

// serviceName is the name of the service reported to the tracer.
const serviceName = "syncdb"

// Controller registers the flags and the commands of the store.
type Controller struct {
	tracerFac func(string) (opentracing.Tracer, error)
}

// NewController creates a new controller.
func NewController() Controller {
	return Controller{
		tracerFac: tracing.GetTracer,
	}
}

// Flags returns the global flags of the application.
func (c Controller) Flags() []cli.Flag {
	return globalFlags()
}

// SetCommands populates the builder with the commands of the store.
func (c Controller) SetCommands(builder cli.Builder) {
	builder.SetDescription("a persisted key/value store for concurrent readers and writers")

	cmd := builder.SetCommand("get")
	cmd.SetDescription("print the value of a key")
	cmd.SetArgs("KEY")
	cmd.SetAction(getAction{ctrl: c}.Execute)

	cmd = builder.SetCommand("set")
	cmd.SetDescription("insert or update a key")
	cmd.SetArgs("KEY VALUE")
	cmd.SetAction(setAction{ctrl: c}.Execute)

	cmd = builder.SetCommand("delete")
	cmd.SetDescription("remove a key and print its value")
	cmd.SetArgs("KEY")
	cmd.SetAction(deleteAction{ctrl: c}.Execute)

	cmd = builder.SetCommand("stress")
	cmd.SetDescription("run concurrent readers, writers and deleters against the store")
	cmd.SetFlags(
		cli.IntFlag{
			Name:  "keys",
			Usage: "number of keys",
			Value: synced.DefaultScenario.Keys,
		},
		cli.IntFlag{
			Name:  "readers",
			Usage: "number of concurrent readers",
			Value: synced.DefaultScenario.Readers,
		},
		cli.IntFlag{
			Name:  "writers",
			Usage: "number of concurrent writers",
			Value: synced.DefaultScenario.Writers,
		},
		cli.IntFlag{
			Name:  "deleters",
			Usage: "number of concurrent deleters",
			Value: synced.DefaultScenario.Deleters,
		},
		cli.IntFlag{
			Name:  "deleted",
			Usage: "number of keys removed by the deleters",
			Value: synced.DefaultScenario.Deleted,
		},
		cli.StringFlag{
			Name:  "metrics",
			Usage: "address to serve the Prometheus metrics on during the run",
		},
	)
	cmd.SetAction(stressAction{ctrl: c}.Execute)
}

// open creates the store described by the configuration. The returned
// function releases the resources of the store.
func (c Controller) open(config Config) (*synced.Store, func() error, error) {
	if config.Verbose {
		syncdb.Logger = syncdb.Logger.Level(zerolog.DebugLevel)
	}

	drain, err := gate.DrainModeFromName(config.Drain)
	if err != nil {
		return nil, nil, xerrors.Errorf("bad config: %v", err)
	}

	durable, closer, err := openDurable(config)
	if err != nil {
		return nil, nil, err
	}

	opts := []synced.StoreOption{
		synced.WithGate(gate.NewPermitGate(
			gate.WithPermits(config.Permits),
			gate.WithDrain(drain),
			gate.WithHoldWarning(config.HoldWarning),
		)),
		synced.WithTimeout(config.Timeout),
	}

	if config.Tracing {
		tracer, err := c.tracerFac(serviceName)
		if err != nil {
			closer.Close()
			return nil, nil, xerrors.Errorf("failed to get tracer: %v", err)
		}

		opts = append(opts, synced.WithTracer(tracer))
	}

	release := func() error {
		err := closer.Close()
		if err != nil {
			return xerrors.Errorf("failed to close store: %v", err)
		}

		if config.Tracing {
			err = tracing.CloseAll()
			if err != nil {
				return xerrors.Errorf("failed to close tracers: %v", err)
			}
		}

		return nil
	}

	return synced.NewStore(durable, opts...), release, nil
}

func openDurable(config Config) (store.DurableStore, io.Closer, error) {
	switch config.Backend {
	case backendFile:
		codec, err := file.CodecFromName(config.Codec)
		if err != nil {
			return nil, nil, xerrors.Errorf("bad config: %v", err)
		}

		opts := []file.StoreOption{file.WithCodec(codec)}
		if config.Compress {
			opts = append(opts, file.WithCompression())
		}

		return file.NewStore(config.Path, opts...), nopCloser{}, nil
	case backendBolt:
		db, err := kv.New(config.Path)
		if err != nil {
			return nil, nil, xerrors.Errorf("failed to open bolt: %v", err)
		}

		durable := kv.NewDurable(db, nil)

		return durable, durable, nil
	case backendMem:
		return mem.NewStore(), nopCloser{}, nil
	default:
		return nil, nil, xerrors.Errorf("bad config: unknown backend '%s'", config.Backend)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error {
	return nil
}
