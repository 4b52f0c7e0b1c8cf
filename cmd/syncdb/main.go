// Package main implements the command line of a persisted key/value store
// shared by concurrent readers and writers.
//
// Usage:
//
//	syncdb [--config FILE] [--backend file|bolt|mem] [--db PATH] COMMAND
package main

import (
	"fmt"
	"os"

	"go.dedis.ch/syncdb/cli/ucli"
	"go.dedis.ch/syncdb/core/store/synced/controller"
)

func main() {
	err := run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	ctrl := controller.NewController()

	builder := ucli.NewBuilder("syncdb", nil, ctrl.Flags()...)
	ctrl.SetCommands(builder)

	return builder.Build().Run(args)
}
