package pprof_test

import (
	"os"
	"path/filepath"
	"testing"

	"src.cgv.sh/pkg/pprof"
	"src.cgv.sh/pkg/prog"
	"src.cgv.sh/pkg/prog/progtest"
)

var (
	Test    = progtest.Test
	ThatCgv = progtest.ThatCgv
)

func TestProgram(t *testing.T) {
	dir := t.TempDir()
	cpuProfile := filepath.Join(dir, "cpuprof")
	allocsProfile := filepath.Join(dir, "allocsprof")

	Test(t, prog.Composite(&pprof.Program{}, noopProgram{}),
		ThatCgv("-cpuprofile", cpuProfile).DoesNothing(),
		ThatCgv("-cpuprofile", "/a/bad/path").
			WritesStderrContaining("Warning: cannot create CPU profile:"),
		ThatCgv("-allocsprofile", allocsProfile).DoesNothing(),
		ThatCgv("-allocsprofile", "/a/bad/path").
			WritesStderrContaining("Warning: cannot create memory allocation profile:"),
	)

	// There isn't much to test beyond a sanity check that the profile files
	// now exist.
	for _, name := range []string{cpuProfile, allocsProfile} {
		if _, err := os.Stat(name); err != nil {
			t.Errorf("profile file does not exist: %v", err)
		}
	}
}

type noopProgram struct{}

func (noopProgram) RegisterFlags(*prog.FlagSet)     {}
func (noopProgram) Run([3]*os.File, []string) error { return nil }
