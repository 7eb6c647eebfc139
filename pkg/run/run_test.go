package run

import (
	"path/filepath"
	"testing"

	"src.cgv.sh/pkg/ast"
	"src.cgv.sh/pkg/config"
	. "src.cgv.sh/pkg/prog/progtest"
	"src.cgv.sh/pkg/testutil"
)

// a --> (1 | 2 | 3) -> this * 10
var grammar = ast.Grammar{{Name: "a", Step: ast.NewSequential(
	ast.NewParallel(ast.NewRaw(1), ast.NewRaw(2), ast.NewRaw(3)),
	ast.NewBinary(ast.KindMultiply, ast.NewThis(), ast.NewRaw(10)))}}

func writeGrammar(t *testing.T, name string, g ast.Grammar) string {
	t.Helper()
	data, err := ast.MarshalGrammar(g)
	if err != nil {
		t.Fatal(err)
	}
	return testutil.TempFile(t, name, string(data))
}

func clearEnv(t *testing.T) {
	for _, name := range []string{config.EnvMaxSymbolDepth, config.EnvBatchSize, config.EnvSeed} {
		testutil.Unsetenv(t, name)
	}
}

func TestProgram(t *testing.T) {
	clearEnv(t)
	g := writeGrammar(t, "g.json", grammar)
	inc := writeGrammar(t, "inc.json", ast.Grammar{{Name: "a",
		Step: ast.NewBinary(ast.KindAdd, ast.NewThis(), ast.NewRaw(1))}})
	dangling := writeGrammar(t, "dangling.json", ast.Grammar{{Name: "a",
		Step: &ast.Symbol{Identifier: "b"}}})
	yamlGrammar := testutil.TempFile(t, "g.yaml",
		"- name: a\n  step:\n    type: add\n    children:\n      - type: this\n      - type: raw\n        value: 2\n")

	Test(t, &Program{},
		ThatCgv("-grammar", g, "0").WritesStdout("[10,20,30]\n"),
		ThatCgv("-grammar", g, "-json", "0").
			WritesStdout(`[{"index":[0],"value":10},{"index":[1],"value":20},{"index":[2],"value":30}]` + "\n"),
		ThatCgv("-grammar", g, "-min-depth", "2", "0").WritesStdout("_\n"),
		ThatCgv("-grammar", inc, "1", "2.5").WritesStdout("[2,3.5]\n"),
		ThatCgv("-grammar", inc, "-json", "1").WritesStdout(`[{"index":[],"value":2}]` + "\n"),
		ThatCgv("-grammar", yamlGrammar, "40").WritesStdout("42\n"),

		ThatCgv("-grammar", dangling, "0").
			ExitsWith(2).
			WritesStderrContaining(`unknown symbol "b"`),
		ThatCgv("-grammar", filepath.Join(t.TempDir(), "missing.json"), "0").
			ExitsWith(2).
			WritesStderrContaining("missing.json"),
		ThatCgv("-grammar", g).
			ExitsWith(2).
			WritesStderrContaining("no inputs\nUsage:"),
		ThatCgv("-grammar", g, "{").
			ExitsWith(2).
			WritesStderrContaining(`bad input "{"`),
		ThatCgv("0").
			ExitsWith(2).
			WritesStderrContaining("one of -grammar and -name is required"),
		ThatCgv("-grammar", g, "-name", "g", "0").
			ExitsWith(2).
			WritesStderrContaining("-grammar and -name are exclusive"),
		ThatCgv("-name", "g", "0").
			ExitsWith(2).
			WritesStderrContaining("-name and -store need -db"),
		ThatCgv("-grammar", g, "-seed", "x", "0").
			ExitsWith(2).
			WritesStderrContaining(`invalid value "x" for flag -seed`),
	)
}

func TestProgram_Store(t *testing.T) {
	clearEnv(t)
	g := writeGrammar(t, "g.json", grammar)
	db := filepath.Join(t.TempDir(), "cgv.db")

	Test(t, &Program{},
		ThatCgv("-name", "g", "-db", db, "0").
			ExitsWith(2).
			WritesStderrContaining("grammar g: no such grammar"),
		ThatCgv("-grammar", g, "-db", db, "-store", "g", "0").WritesStdout("[10,20,30]\n"),
		ThatCgv("-name", "g", "-db", db, "0").WritesStdout("[10,20,30]\n"),
	)
}

func TestProgram_Config(t *testing.T) {
	clearEnv(t)
	// a --> a, with a depth limit of 3
	g := writeGrammar(t, "loop.json", ast.Grammar{{Name: "a", Step: &ast.Symbol{Identifier: "a"}}})
	cfg := testutil.TempFile(t, "cgv.yaml", "max_symbol_depth: 3\n")

	Test(t, &Program{},
		ThatCgv("-grammar", g, "-config", cfg, "0").
			ExitsWith(2).
			WritesStderrContaining(`maximum symbol depth (3) reached for symbol "a"`),
	)
}
