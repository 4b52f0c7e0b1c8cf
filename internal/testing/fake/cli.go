package fake

import (
	"io"
	"time"

	"go.dedis.ch/syncdb/cli"
)

// Flags is a fake implementation of the cli.Flags interface backed by maps.
//
// - implements cli.Flags
type Flags struct {
	cli.Flags

	Strings   map[string]string
	Ints      map[string]int
	Durations map[string]time.Duration
	Bools     map[string]bool
	Args      []string
	Writer    io.Writer
}

// NewFlags creates a new empty set of flags that writes to the writer.
func NewFlags(w io.Writer) *Flags {
	return &Flags{
		Strings:   make(map[string]string),
		Ints:      make(map[string]int),
		Durations: make(map[string]time.Duration),
		Bools:     make(map[string]bool),
		Writer:    w,
	}
}

// String implements cli.Flags.
func (f *Flags) String(name string) string {
	return f.Strings[name]
}

// Int implements cli.Flags.
func (f *Flags) Int(name string) int {
	return f.Ints[name]
}

// Duration implements cli.Flags.
func (f *Flags) Duration(name string) time.Duration {
	return f.Durations[name]
}

// Bool implements cli.Flags.
func (f *Flags) Bool(name string) bool {
	return f.Bools[name]
}

// Arg implements cli.Flags.
func (f *Flags) Arg(index int) string {
	if index < 0 || index >= len(f.Args) {
		return ""
	}

	return f.Args[index]
}

// NArg implements cli.Flags.
func (f *Flags) NArg() int {
	return len(f.Args)
}

// Out implements cli.Flags.
func (f *Flags) Out() io.Writer {
	return f.Writer
}
