// Package run implements the default subprogram of cgv, which interprets a
// grammar against inputs given on the command line.
package run

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/mattn/go-isatty"

	"src.cgv.sh/pkg/ast"
	"src.cgv.sh/pkg/config"
	"src.cgv.sh/pkg/diag"
	"src.cgv.sh/pkg/interp"
	"src.cgv.sh/pkg/logutil"
	"src.cgv.sh/pkg/matrix"
	"src.cgv.sh/pkg/ops"
	"src.cgv.sh/pkg/prog"
	"src.cgv.sh/pkg/store"
	"src.cgv.sh/pkg/telemetry"
)

var logger = logutil.GetLogger("[run] ")

// Program is the interpreting subprogram.
type Program struct {
	grammar, name, save string
	minDepth, maxDepth  int
	// Nil unless -seed is given.
	seed *int64

	config, db *string
	json       *bool
}

func (p *Program) RegisterFlags(fs *prog.FlagSet) {
	fs.StringVar(&p.grammar, "grammar", "", "path to a grammar in JSON or YAML")
	fs.StringVar(&p.name, "name", "", "name of a grammar in the database to interpret instead of -grammar")
	fs.StringVar(&p.save, "store", "", "save the grammar in the database under this name")
	fs.IntVar(&p.minDepth, "min-depth", 0, "drop outputs with shorter index paths")
	fs.IntVar(&p.maxDepth, "max-depth", 0, "drop outputs with longer index paths; 0 means no limit")
	p.seed = nil
	fs.Func("seed", "seed of random steps, overriding the configuration", func(s string) error {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return err
		}
		p.seed = &n
		return nil
	})
	p.config = fs.Config()
	p.db = fs.DB()
	p.json = fs.JSON()
}

func (p *Program) Run(fds [3]*os.File, args []string) error {
	diag.SetColor(isatty.IsTerminal(fds[2].Fd()))
	if p.grammar == "" && p.name == "" {
		return prog.BadUsage("one of -grammar and -name is required")
	}
	if p.grammar != "" && p.name != "" {
		return prog.BadUsage("-grammar and -name are exclusive")
	}
	if (p.name != "" || p.save != "") && *p.db == "" {
		return prog.BadUsage("-name and -store need -db")
	}
	inputs, err := parseInputs(args)
	if err != nil {
		return prog.BadUsage(err.Error())
	}

	cfg, err := config.Load(*p.config)
	if err != nil {
		return err
	}
	if p.seed != nil {
		cfg.Seed = *p.seed
	}
	if cfg.Tracing {
		shutdown, err := telemetry.Init(fds[2])
		if err != nil {
			return err
		}
		defer shutdown(context.Background())
	}

	g, err := p.loadGrammar()
	if err != nil {
		return err
	}

	err = interpret(fds, g, inputs, cfg, p.minDepth, p.maxDepth, *p.json)
	if err != nil {
		diag.ShowError(fds[2], err)
		return prog.Exit(2)
	}
	return nil
}

func parseInputs(args []string) ([]any, error) {
	if len(args) == 0 {
		return nil, errors.New("no inputs")
	}
	inputs := make([]any, len(args))
	for i, arg := range args {
		v, err := ast.DecodeValue([]byte(arg))
		if err != nil {
			return nil, fmt.Errorf("bad input %q: %w", arg, err)
		}
		inputs[i] = v
	}
	return inputs, nil
}

// loadGrammar reads the grammar from the file or the database, and saves it
// if asked to.
func (p *Program) loadGrammar() (ast.Grammar, error) {
	var db store.DBStore
	if *p.db != "" {
		var err error
		db, err = store.NewStore(*p.db)
		if err != nil {
			return nil, fmt.Errorf("open grammar database: %w", err)
		}
		defer db.Close()
	}

	var g ast.Grammar
	var err error
	if p.name != "" {
		g, err = db.Grammar(p.name)
		if err != nil {
			return nil, fmt.Errorf("grammar %s: %w", p.name, err)
		}
	} else {
		g, err = readGrammar(p.grammar)
		if err != nil {
			return nil, err
		}
	}
	if p.save != "" {
		seq, err := db.PutGrammar(p.save, g)
		if err != nil {
			return nil, fmt.Errorf("save grammar: %w", err)
		}
		logger.Printf("saved grammar %s revision %d", p.save, seq)
	}
	return g, nil
}

func readGrammar(path string) (ast.Grammar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var g ast.Grammar
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		g, err = ast.DecodeGrammarYAML(data)
	default:
		g, err = ast.UnmarshalGrammar(data)
	}
	if err != nil {
		return nil, fmt.Errorf("read grammar %s: %w", path, err)
	}
	return g, nil
}

type outputValue struct {
	Index []int `json:"index"`
	Value any   `json:"value"`
}

// interpret interprets g against the inputs and prints the final state of the
// output matrix. With several inputs, the index paths of the outputs start
// with the position of their input.
func interpret(fds [3]*os.File, g ast.Grammar, inputs []any, cfg config.Config, minDepth, maxDepth int, asJSON bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan interp.Value[any, struct{}], len(inputs))
	for i, v := range inputs {
		if len(inputs) > 1 {
			in <- interp.NewValue[any, struct{}](v, i)
		} else {
			in <- interp.NewValue[any, struct{}](v)
		}
	}
	close(in)
	run, err := interp.Interpret(ctx, in, g, ops.Builtins[any, struct{}](), cfg, minDepth, maxDepth)
	if err != nil {
		return err
	}
	m := matrix.Absent[any]()
	for c := range interp.ToChanges(ctx, run.Values()) {
		m = matrix.Apply(m, c)
	}
	if err := run.Wait(); err != nil {
		return err
	}

	if !asJSON {
		fmt.Fprintln(fds[1], m)
		return nil
	}
	outputs := []outputValue{}
	m.Each(func(index []int, v any) {
		outputs = append(outputs, outputValue{append([]int{}, index...), v})
	})
	return json.NewEncoder(fds[1]).Encode(outputs)
}
