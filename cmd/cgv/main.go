// Command cgv interprets grammars and serves the editor RPC protocol.
package main

import (
	"os"

	"src.cgv.sh/pkg/buildinfo"
	"src.cgv.sh/pkg/pprof"
	"src.cgv.sh/pkg/prog"
	"src.cgv.sh/pkg/rpc"
	"src.cgv.sh/pkg/run"
)

func main() {
	os.Exit(prog.Run(
		[3]*os.File{os.Stdin, os.Stdout, os.Stderr}, os.Args,
		prog.Composite(
			&pprof.Program{}, &buildinfo.Program{}, &rpc.Program{}, &run.Program{})))
}
