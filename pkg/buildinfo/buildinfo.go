// Package buildinfo contains build information.
//
// Build information should be set during compilation by passing
// -ldflags "-X src.cgv.sh/pkg/buildinfo.Var=value" to "go build" or
// "go install".
package buildinfo

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"src.cgv.sh/pkg/prog"
)

// VersionBase identifies the version of cgv. On development commits, it
// identifies the next release.
const VersionBase = "0.3.0"

// VersionSuffix is appended to VersionBase to build the full version string.
// It can be overridden when building cgv.
var VersionSuffix = "-dev.unknown"

// Reproducible identifies whether the build is reproducible. It can be
// overridden when building cgv.
var Reproducible = "false"

// Type contains all the build information fields.
type Type struct {
	Version      string `json:"version"`
	GoVersion    string `json:"goversion"`
	Reproducible bool   `json:"reproducible"`
}

// Value contains all the build information.
var Value = Type{
	Version:      VersionBase + VersionSuffix,
	GoVersion:    runtime.Version(),
	Reproducible: Reproducible == "true",
}

// Program is the buildinfo subprogram.
type Program struct {
	version, buildinfo bool
	json               *bool
}

func (p *Program) RegisterFlags(fs *prog.FlagSet) {
	fs.BoolVar(&p.version, "version", false, "show version and quit")
	fs.BoolVar(&p.buildinfo, "buildinfo", false, "show build info and quit")
	p.json = fs.JSON()
}

func (p *Program) Run(fds [3]*os.File, _ []string) error {
	switch {
	case p.buildinfo:
		if *p.json {
			fmt.Fprintln(fds[1], mustToJSON(Value))
		} else {
			fmt.Fprintln(fds[1], "Version:", Value.Version)
			fmt.Fprintln(fds[1], "Go version:", Value.GoVersion)
			fmt.Fprintln(fds[1], "Reproducible build:", Value.Reproducible)
		}
	case p.version:
		if *p.json {
			fmt.Fprintln(fds[1], mustToJSON(Value.Version))
		} else {
			fmt.Fprintln(fds[1], Value.Version)
		}
	default:
		return prog.ErrNextProgram
	}
	return nil
}

func mustToJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
