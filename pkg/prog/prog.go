// Package prog supports building testable, composable programs.
//
// The main package of cgv combines the programs of other packages with
// Composite and runs the result with Run.
package prog

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"src.cgv.sh/pkg/logutil"
)

// Program represents a subprogram.
type Program interface {
	// RegisterFlags registers the flags the program uses.
	RegisterFlags(fs *FlagSet)
	// Run runs the subprogram. It returns ErrNextProgram when the flags
	// don't ask for this subprogram.
	Run(fds [3]*os.File, args []string) error
}

// FlagSet wraps a flag.FlagSet with flags shared by several subprograms,
// registered the first time they are asked for.
type FlagSet struct {
	*flag.FlagSet
	json   *bool
	config *string
	db     *string
}

// JSON returns a pointer to the value of the -json flag.
func (fs *FlagSet) JSON() *bool {
	if fs.json == nil {
		var json bool
		fs.BoolVar(&json, "json", false,
			"show the output from -buildinfo, -version or -rpc answers in JSON")
		fs.json = &json
	}
	return fs.json
}

// Config returns a pointer to the value of the -config flag.
func (fs *FlagSet) Config() *string {
	if fs.config == nil {
		var config string
		fs.StringVar(&config, "config", "", "path to a YAML configuration file")
		fs.config = &config
	}
	return fs.config
}

// DB returns a pointer to the value of the -db flag.
func (fs *FlagSet) DB() *string {
	if fs.db == nil {
		var db string
		fs.StringVar(&db, "db", "", "path to the grammar database")
		fs.db = &db
	}
	return fs.db
}

func usage(out io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(out, "Usage: cgv [flags] [inputs...]")
	fmt.Fprintln(out, "Supported flags:")
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// Run parses command-line flags and runs the first applicable subprogram. It
// returns the exit status of the program.
func Run(fds [3]*os.File, args []string, p Program) int {
	fs := flag.NewFlagSet("cgv", flag.ContinueOnError)
	// Error and usage will be printed explicitly.
	fs.SetOutput(io.Discard)

	var log string
	var help bool
	fs.StringVar(&log, "log", "", "a file to write debug log to")
	fs.BoolVar(&help, "help", false, "show usage help and quit")
	p.RegisterFlags(&FlagSet{FlagSet: fs})

	err := fs.Parse(args[1:])
	if err != nil {
		if err == flag.ErrHelp {
			// (*flag.FlagSet).Parse returns ErrHelp when -h or -help was
			// requested but *not* defined. Cgv defines -help, but not -h; so
			// this means that -h has been requested. Handle this by printing
			// the same message as an undefined flag.
			fmt.Fprintln(fds[2], "flag provided but not defined: -h")
		} else {
			fmt.Fprintln(fds[2], err)
		}
		usage(fds[2], fs)
		return 2
	}

	if log != "" {
		err = logutil.SetOutputFile(log)
		if err == nil {
			defer logutil.SetOutput(io.Discard)
		} else {
			fmt.Fprintln(fds[2], err)
		}
	}

	if help {
		usage(fds[1], fs)
		return 0
	}

	err = p.Run(fds, fs.Args())
	if err == nil {
		return 0
	}
	if np, ok := err.(nextProgramError); ok {
		runCleanups(fds, np.cleanups)
		err = ErrNextProgram
	}
	if err == ErrNextProgram {
		err = errNoSuitableSubprogram
	}
	if msg := err.Error(); msg != "" {
		fmt.Fprintln(fds[2], msg)
	}
	var (
		bu badUsageError
		ex exitError
	)
	switch {
	case errors.As(err, &bu):
		usage(fds[2], fs)
	case errors.As(err, &ex):
		return ex.exit
	}
	return 2
}

// Composite returns a Program made up from a number of subprograms. It runs
// each of them in turn, until one of them returns an error that isn't
// ErrNextProgram.
func Composite(programs ...Program) Program {
	return composite(programs)
}

type composite []Program

func (cp composite) RegisterFlags(fs *FlagSet) {
	for _, p := range cp {
		p.RegisterFlags(fs)
	}
}

func (cp composite) Run(fds [3]*os.File, args []string) error {
	var cleanups []func([3]*os.File)
	defer func() { runCleanups(fds, cleanups) }()
	for _, p := range cp {
		err := p.Run(fds, args)
		if np, ok := err.(nextProgramError); ok {
			cleanups = append(cleanups, np.cleanups...)
		} else if err != ErrNextProgram {
			return err
		}
	}
	// If we have reached here, all subprograms have returned ErrNextProgram
	return ErrNextProgram
}

// Cleanups run in the reverse order of registration.
func runCleanups(fds [3]*os.File, cleanups []func([3]*os.File)) {
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i](fds)
	}
}

// ErrNextProgram is a special error that may be returned by Program.Run that
// is part of a Composite program, indicating that the next program should be
// tried.
var ErrNextProgram = errors.New("next program")

// NextProgram returns an error like ErrNextProgram, carrying functions that
// the Composite program calls after the program that handles the run
// returns.
func NextProgram(cleanups ...func([3]*os.File)) error {
	if len(cleanups) == 0 {
		return ErrNextProgram
	}
	return nextProgramError{cleanups}
}

type nextProgramError struct{ cleanups []func([3]*os.File) }

func (e nextProgramError) Error() string { return "next program" }

var errNoSuitableSubprogram = errors.New("internal error: no suitable subprogram")

// BadUsage returns a special error that may be returned by Program.Run. It
// causes the main function to print out a message, the usage information and
// exit with 2.
func BadUsage(msg string) error { return badUsageError{msg} }

type badUsageError struct{ msg string }

func (e badUsageError) Error() string { return e.msg }

// Exit returns a special error that may be returned by Program.Run. It causes
// the main function to exit with the given code without printing any error
// messages. Exit(0) returns nil.
func Exit(exit int) error {
	if exit == 0 {
		return nil
	}
	return exitError{exit}
}

type exitError struct{ exit int }

func (e exitError) Error() string { return "" }
