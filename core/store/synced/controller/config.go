package controller

import (
	"os"
	"time"

	"go.dedis.ch/syncdb/cli"
	"go.dedis.ch/syncdb/core/store/file"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

const (
	backendFile = "file"
	backendBolt = "bolt"
	backendMem  = "mem"
)

// Config is the configuration of the store opened by the commands. It can be
// read from a YAML file and every field can be overridden by a flag.
type Config struct {
	// Backend is the durable store: file, bolt or mem.
	Backend string `yaml:"backend"`
	// Path is the file of the file or bolt backend.
	Path string `yaml:"path"`
	// Codec is the encoding of the file backend: gob, json or yaml.
	Codec string `yaml:"codec"`
	// Compress enables the xz compression of the file backend.
	Compress bool `yaml:"compress"`
	// Permits is the maximum number of concurrent readers.
	Permits int `yaml:"permits"`
	// Drain is the way writers take the permits: bulk or sequential.
	Drain string `yaml:"drain"`
	// Timeout bounds the wait for the gate. Zero waits indefinitely.
	Timeout time.Duration `yaml:"timeout"`
	// HoldWarning logs a warning when the gate is held longer than this.
	HoldWarning time.Duration `yaml:"holdWarning"`
	// Tracing enables the Jaeger tracer.
	Tracing bool `yaml:"tracing"`
	// Verbose enables the debug logs.
	Verbose bool `yaml:"verbose"`
}

// DefaultConfig returns the configuration used when nothing is specified.
func DefaultConfig() Config {
	return Config{
		Backend: backendFile,
		Path:    file.DefaultPath,
		Codec:   "gob",
		Permits: 10,
		Drain:   "bulk",
	}
}

// LoadConfig builds the configuration from the defaults, then the YAML file if
// the config flag is set, and finally the flags that are set.
func LoadConfig(flags cli.Flags) (Config, error) {
	config := DefaultConfig()

	path := flags.String("config")
	if path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return config, xerrors.Errorf("failed to read config file: %v", err)
		}

		err = yaml.UnmarshalStrict(buf, &config)
		if err != nil {
			return config, xerrors.Errorf("failed to unmarshal config: %v", err)
		}
	}

	if flags.String("backend") != "" {
		config.Backend = flags.String("backend")
	}
	if flags.String("db") != "" {
		config.Path = flags.String("db")
	}
	if flags.String("codec") != "" {
		config.Codec = flags.String("codec")
	}
	if flags.Bool("compress") {
		config.Compress = true
	}
	if flags.Int("permits") > 0 {
		config.Permits = flags.Int("permits")
	}
	if flags.String("drain") != "" {
		config.Drain = flags.String("drain")
	}
	if flags.Duration("timeout") > 0 {
		config.Timeout = flags.Duration("timeout")
	}
	if flags.Duration("hold-warning") > 0 {
		config.HoldWarning = flags.Duration("hold-warning")
	}
	if flags.Bool("tracing") {
		config.Tracing = true
	}
	if flags.Bool("verbose") {
		config.Verbose = true
	}

	if config.Permits < 1 {
		return config, xerrors.Errorf("invalid number of permits: %d", config.Permits)
	}

	return config, nil
}

// globalFlags returns the flags shared by every command.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "config",
			Usage: "path to a YAML configuration file",
		},
		cli.StringFlag{
			Name:  "backend",
			Usage: "durable store: file, bolt or mem (default file)",
		},
		cli.StringFlag{
			Name:  "db",
			Usage: "path to the database file (default " + file.DefaultPath + ")",
		},
		cli.StringFlag{
			Name:  "codec",
			Usage: "encoding of the file backend: gob, json or yaml (default gob)",
		},
		cli.BoolFlag{
			Name:  "compress",
			Usage: "compress the file backend with xz",
		},
		cli.IntFlag{
			Name:  "permits",
			Usage: "maximum number of concurrent readers (default 10)",
		},
		cli.StringFlag{
			Name:  "drain",
			Usage: "how writers drain the permits: bulk or sequential (default bulk)",
		},
		cli.DurationFlag{
			Name:  "timeout",
			Usage: "maximum wait for the gate, zero waits indefinitely",
		},
		cli.DurationFlag{
			Name:  "hold-warning",
			Usage: "log a warning when the gate is held longer than this",
		},
		cli.BoolFlag{
			Name:  "tracing",
			Usage: "report the operations to Jaeger (configured from JAEGER_* variables)",
		},
		cli.BoolFlag{
			Name:  "verbose",
			Usage: "enable debug logs",
		},
	}
}
