// Package pprof adds profiling support to cgv.
package pprof

import (
	"fmt"
	"io"
	"os"
	"runtime/pprof"

	"src.cgv.sh/pkg/prog"
)

// Program adds support for the -cpuprofile and -allocsprofile flags. It
// never handles a run itself; the profiles are written when the program that
// does returns.
type Program struct {
	cpuProfile    string
	allocsProfile string
}

func (p *Program) RegisterFlags(f *prog.FlagSet) {
	f.StringVar(&p.cpuProfile, "cpuprofile", "", "write CPU profile to file")
	f.StringVar(&p.allocsProfile, "allocsprofile", "", "write memory allocation profile to file")
}

func (p *Program) Run(fds [3]*os.File, _ []string) error {
	var cleanups []func([3]*os.File)
	if f := create(fds[2], p.cpuProfile, "CPU profile"); f != nil {
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintln(fds[2], "Warning: cannot start CPU profiling:", err)
			f.Close()
		} else {
			cleanups = append(cleanups, func([3]*os.File) {
				pprof.StopCPUProfile()
				f.Close()
			})
		}
	}
	if f := create(fds[2], p.allocsProfile, "memory allocation profile"); f != nil {
		cleanups = append(cleanups, func(fds [3]*os.File) {
			if err := pprof.Lookup("allocs").WriteTo(f, 0); err != nil {
				fmt.Fprintln(fds[2], "Warning: cannot write memory allocation profile:", err)
			}
			f.Close()
		})
	}
	return prog.NextProgram(cleanups...)
}

// create creates the named profile file, warning on w if that fails. It
// returns nil if name is empty or on failure.
func create(w io.Writer, name, what string) *os.File {
	if name == "" {
		return nil
	}
	f, err := os.Create(name)
	if err != nil {
		fmt.Fprintf(w, "Warning: cannot create %s: %v\n", what, err)
		fmt.Fprintf(w, "Continuing without the %s.\n", what)
		return nil
	}
	return f
}
