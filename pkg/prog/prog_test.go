package prog_test

import (
	"flag"
	"os"
	"path/filepath"
	"slices"
	"testing"

	. "src.cgv.sh/pkg/prog"
	"src.cgv.sh/pkg/prog/progtest"
)

var (
	Test    = progtest.Test
	ThatCgv = progtest.ThatCgv
)

func TestCommonFlagHandling(t *testing.T) {
	log := filepath.Join(t.TempDir(), "log")

	Test(t, testProgram{},
		ThatCgv("-bad-flag").
			ExitsWith(2).
			WritesStderrContaining("flag provided but not defined: -bad-flag\nUsage:"),
		// -h is treated as a bad flag
		ThatCgv("-h").
			ExitsWith(2).
			WritesStderrContaining("flag provided but not defined: -h\nUsage:"),

		ThatCgv("-help").
			WritesStdoutContaining("Usage: cgv [flags] [inputs...]"),

		ThatCgv("-log", log).DoesNothing(),
		ThatCgv("-log", "/a/bad/path/log").
			WritesStderrContaining("/a/bad/path/log"),
	)

	if _, err := os.Stat(log); err != nil {
		t.Errorf("log file does not exist: %v", err)
	}
}

func TestSharedFlags(t *testing.T) {
	fs := &FlagSet{FlagSet: flag.NewFlagSet("cgv", flag.ContinueOnError)}
	if fs.Config() != fs.Config() || fs.DB() != fs.DB() || fs.JSON() != fs.JSON() {
		t.Errorf("shared flags registered more than once")
	}
	if err := fs.Parse([]string{"-config", "c.yaml", "-db", "g.db", "-json"}); err != nil {
		t.Fatal(err)
	}
	if *fs.Config() != "c.yaml" || *fs.DB() != "g.db" || !*fs.JSON() {
		t.Errorf("got (%q, %q, %v), want (c.yaml, g.db, true)", *fs.Config(), *fs.DB(), *fs.JSON())
	}
}

func TestNoSuitableSubprogram(t *testing.T) {
	Test(t, testProgram{nextProgram: true},
		ThatCgv().
			ExitsWith(2).
			WritesStderr("internal error: no suitable subprogram\n"),
	)
}

func TestComposite(t *testing.T) {
	Test(t,
		Composite(testProgram{nextProgram: true}, testProgram{writeOut: "program 2"}),
		ThatCgv().WritesStdout("program 2"),
	)
}

func TestComposite_NoSuitableSubprogram(t *testing.T) {
	Test(t,
		Composite(testProgram{nextProgram: true}, testProgram{nextProgram: true}),
		ThatCgv().
			ExitsWith(2).
			WritesStderr("internal error: no suitable subprogram\n"),
	)
}

func TestComposite_PreferEarlierSubprogram(t *testing.T) {
	Test(t,
		Composite(
			testProgram{writeOut: "program 1"}, testProgram{writeOut: "program 2"}),
		ThatCgv().WritesStdout("program 1"),
	)
}

func TestBadUsageError(t *testing.T) {
	Test(t,
		testProgram{returnErr: BadUsage("lorem ipsum")},
		ThatCgv().ExitsWith(2).WritesStderrContaining("lorem ipsum\n"),
	)
}

func TestExitError(t *testing.T) {
	Test(t, testProgram{returnErr: Exit(3)},
		ThatCgv().ExitsWith(3),
	)
}

func TestExitError_0(t *testing.T) {
	Test(t, testProgram{returnErr: Exit(0)},
		ThatCgv().ExitsWith(0),
	)
}

type testProgram struct {
	nextProgram bool
	writeOut    string
	returnErr   error
}

func (testProgram) RegisterFlags(*FlagSet) {}

func (p testProgram) Run(fds [3]*os.File, args []string) error {
	if p.nextProgram {
		return ErrNextProgram
	}
	fds[1].WriteString(p.writeOut)
	return p.returnErr
}

func TestComposite_Cleanups(t *testing.T) {
	var calls []string
	cleanup := func(name string) Program {
		return cleanupProgram(func([3]*os.File) { calls = append(calls, name) })
	}
	Test(t,
		Composite(cleanup("1"), cleanup("2"), testProgram{writeOut: "program 3"}),
		ThatCgv().WritesStdout("program 3"),
	)
	if want := []string{"2", "1"}; !slices.Equal(calls, want) {
		t.Errorf("cleanups called in order %v, want %v", calls, want)
	}
}

type cleanupProgram func([3]*os.File)

func (cleanupProgram) RegisterFlags(*FlagSet) {}

func (p cleanupProgram) Run([3]*os.File, []string) error { return NextProgram(p) }
