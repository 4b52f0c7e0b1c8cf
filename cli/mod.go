// Package cli defines the Builder type, which allows one to build a CLI
// application in a modular way.
//
//	builder := ucli.NewBuilder("syncdb", nil)
//
//	cmd := builder.SetCommand("get")
//	cmd.SetDescription("Read a key")
//	cmd.SetArgs("KEY")
//	cmd.SetAction(func(flags cli.Flags) error {
//		fmt.Printf("reading %s\n", flags.Arg(0))
//		return nil
//	})
//
//	builder.Build().Run(os.Args)
//
// An implementation of the builder is free to provide primitives to create more
// complex action.
package cli

import (
	"io"
	"time"
)

// Builder is an application builder interface. One can set properties of an
// application then build it.
type Builder interface {
	// SetDescription sets the usage text of the application.
	SetDescription(value string)

	// SetCommand creates a new command with the given name and returns its
	// builder.
	SetCommand(name string) CommandBuilder

	// Build returns the application.
	Build() Application
}

// Application is the main interface to run the CLI.
type Application interface {
	Run(arguments []string) error
}

// CommandBuilder is a command builder interface. One can set properties of a
// specific command like its name and description and what it should do when
// invoked.
type CommandBuilder interface {
	// SetDescription sets the value of the description for this command.
	SetDescription(value string)

	// SetArgs sets the usage of the positional arguments of the command.
	SetArgs(usage string)

	// SetFlags sets the flags for this command.
	SetFlags(...Flag)

	// SetAction sets the action for this command.
	SetAction(Action)

	// SetSubCommand creates a subcommand for this command.
	SetSubCommand(name string) CommandBuilder
}

// Action is a function that will be executed when a command is invoked.
type Action func(Flags) error

// Flag is an identifier for the definition of the flags.
type Flag interface {
	Flag()
}

// Flags provides the primitives to an action to read the flags and the
// positional arguments.
type Flags interface {
	String(name string) string

	Duration(name string) time.Duration

	Int(name string) int

	Bool(name string) bool

	// Arg returns the positional argument at the index, or an empty string.
	Arg(index int) string

	// NArg returns the number of positional arguments.
	NArg() int

	// Out returns the writer for the output of the action.
	Out() io.Writer
}
