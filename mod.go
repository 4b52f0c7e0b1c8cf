// Package syncdb holds the process-wide facilities shared by the packages of
// the module, namely the logger and the list of Prometheus collectors.
package syncdb

import (
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var logout = zerolog.ConsoleWriter{
	Out:        os.Stdout,
	TimeFormat: time.RFC3339,
}

// Logger is a globally available logger instance.
var Logger = zerolog.New(logout).
	With().Timestamp().Logger().
	With().Caller().Logger().
	Level(zerolog.InfoLevel)

// PromCollectors exposes the Prometheus collectors created by the packages of
// the module. It is up to the application to register them.
var PromCollectors []prometheus.Collector
