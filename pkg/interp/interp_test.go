package interp

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"src.cgv.sh/pkg/ast"
	"src.cgv.sh/pkg/config"
	"src.cgv.sh/pkg/errs"
	"src.cgv.sh/pkg/matrix"
)

type value = Value[any, struct{}]

var testOps = Operations[any, struct{}]{
	"double": {Execute: SimpleExecution(func(c Call[any, struct{}]) ([]InterpretationValue[any], error) {
		return []InterpretationValue[any]{{c.Args[0].Value.(int) * 2, c.Args[0].EventDepthMap}}, nil
	})},
	"pair": {
		IncludeThis: true,
		Execute: SimpleExecution(func(c Call[any, struct{}]) ([]InterpretationValue[any], error) {
			return []InterpretationValue[any]{{c.Args[0].Value, nil}, {c.Args[1].Value, nil}}, nil
		}),
	},
}

func input(values ...value) <-chan value {
	ch := make(chan value, len(values))
	for _, v := range values {
		ch <- v
	}
	close(ch)
	return ch
}

func interpret(t *testing.T, g ast.Grammar, in ...value) ([]value, error) {
	t.Helper()
	run, err := Interpret(context.Background(), input(in...), g, testOps, config.Default(), 0, 0)
	if err != nil {
		return nil, err
	}
	return Collect(run)
}

type result struct {
	Index []int
	Raw   any
}

func results(values []value) []result {
	var rs []result
	for _, v := range values {
		rs = append(rs, result{v.Index, v.Raw})
	}
	return rs
}

func this() ast.Step           { return ast.NewThis() }
func raw(v any) ast.Step       { return ast.NewRaw(v) }
func sym(name string) ast.Step { return &ast.Symbol{Identifier: name} }

var interpretTests = []struct {
	name string
	g    ast.Grammar
	in   []value
	want []result
}{
	{
		name: "sequence of arithmetic",
		// a --> 10 -> this * 10 -> this + 1
		g: ast.Grammar{{Name: "a", Step: ast.NewSequential(
			raw(10),
			ast.NewBinary(ast.KindMultiply, this(), raw(10)),
			ast.NewBinary(ast.KindAdd, this(), raw(1)))}},
		in:   []value{NewValue[any, struct{}](4)},
		want: []result{{nil, 101}},
	},
	{
		name: "recursion",
		// a --> if this == 0 then { 0 } else { 1 | this - 1 -> a }
		g: ast.Grammar{{Name: "a", Step: ast.NewIf(
			ast.NewBinary(ast.KindEqual, this(), raw(0)),
			raw(0),
			ast.NewParallel(raw(1), ast.NewSequential(
				ast.NewBinary(ast.KindSubtract, this(), raw(1)),
				sym("a"))))}},
		in: []value{NewValue[any, struct{}](4)},
		want: []result{
			{[]int{0}, 1}, {[]int{1, 0}, 1}, {[]int{1, 1, 0}, 1},
			{[]int{1, 1, 1, 0}, 1}, {[]int{1, 1, 1, 1}, 0},
		},
	},
	{
		name: "return skips the rest of the sequence",
		// a --> return -> a
		g:    ast.Grammar{{Name: "a", Step: ast.NewSequential(&ast.Return{}, sym("a"))}},
		in:   []value{NewValue[any, struct{}](22)},
		want: []result{{nil, 22}},
	},
	{
		name: "return leaves only the noun",
		// a --> b -> this + 1
		// b --> return -> 5
		g: ast.Grammar{
			{Name: "a", Step: ast.NewSequential(sym("b"), ast.NewBinary(ast.KindAdd, this(), raw(1)))},
			{Name: "b", Step: ast.NewSequential(&ast.Return{}, raw(5))},
		},
		in:   []value{NewValue[any, struct{}](1)},
		want: []result{{nil, 2}},
	},
	{
		name: "null drops values",
		g:    ast.Grammar{{Name: "a", Step: ast.NewParallel(ast.NewNull(), raw("x"))}},
		in:   []value{NewValue[any, struct{}](0)},
		want: []result{{[]int{1}, "x"}},
	},
	{
		name: "switch",
		// a --> switch this { case 1: "one" default: "other" }
		g: ast.Grammar{{Name: "a", Step: &ast.Switch{Value: this(), Cases: []any{1, ast.Default},
			Steps: []ast.Step{raw("one"), raw("other")}}}},
		in:   []value{NewValue[any, struct{}](1, 0), NewValue[any, struct{}](2, 1)},
		want: []result{{[]int{0, 0}, "one"}, {[]int{1, 1}, "other"}},
	},
	{
		name: "switch without match",
		g: ast.Grammar{{Name: "a", Step: &ast.Switch{Value: this(), Cases: []any{1},
			Steps: []ast.Step{raw("one")}}}},
		in: []value{NewValue[any, struct{}](2)},
	},
	{
		name: "variables",
		// a --> $x = 5 -> $x + this
		g: ast.Grammar{{Name: "a", Step: ast.NewSequential(
			&ast.SetVariable{Identifier: "x", Value: raw(5)},
			ast.NewBinary(ast.KindAdd, &ast.GetVariable{Identifier: "x"}, this()))}},
		in:   []value{NewValue[any, struct{}](1)},
		want: []result{{nil, 6}},
	},
	{
		name: "operations",
		// a --> (1 | 2) -> double(this)
		g: ast.Grammar{{Name: "a", Step: ast.NewSequential(
			ast.NewParallel(raw(1), raw(2)),
			ast.NewOperation("double", this()))}},
		in:   []value{NewValue[any, struct{}](0)},
		want: []result{{[]int{0}, 2}, {[]int{1}, 4}},
	},
	{
		name: "operation with several results",
		// a --> pair(7)
		g:    ast.Grammar{{Name: "a", Step: ast.NewOperation("pair", raw(7))}},
		in:   []value{NewValue[any, struct{}](3)},
		want: []result{{[]int{0}, 3}, {[]int{1}, 7}},
	},
	{
		name: "operand with several values",
		// a --> (1 | 2) * 10
		g:    ast.Grammar{{Name: "a", Step: ast.NewBinary(ast.KindMultiply, ast.NewParallel(raw(1), raw(2)), raw(10))}},
		in:   []value{NewValue[any, struct{}](0)},
		want: []result{{[]int{0}, 10}, {[]int{1}, 20}},
	},
	{
		name: "unary",
		g:    ast.Grammar{{Name: "a", Step: ast.NewParallel(&ast.Unary{Op: ast.KindNot, Operand: this()}, &ast.Unary{Op: ast.KindInvert, Operand: this()})}},
		in:   []value{NewValue[any, struct{}](3)},
		want: []result{{[]int{0}, false}, {[]int{1}, -3}},
	},
}

func TestInterpret(t *testing.T) {
	for _, test := range interpretTests {
		t.Run(test.name, func(t *testing.T) {
			values, err := interpret(t, test.g, test.in...)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(test.want, results(values)); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestInterpret_ReferenceErrors(t *testing.T) {
	g := ast.Grammar{{Name: "a", Step: ast.NewParallel(sym("b"), ast.NewOperation("drive"))}}
	_, err := interpret(t, g, NewValue[any, struct{}](0))
	if err == nil {
		t.Fatal("no error")
	}
	for _, want := range []string{`unknown symbol "b"`, `unknown operation "drive"`} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not contain %q", err, want)
		}
	}
}

func TestInterpret_EmptyGrammar(t *testing.T) {
	_, err := interpret(t, nil)
	if err != ErrEmptyGrammar {
		t.Errorf("got error %v, want ErrEmptyGrammar", err)
	}
}

func TestInterpret_SymbolDepthExceeded(t *testing.T) {
	// a --> this -> a
	g := ast.Grammar{{Name: "a", Step: ast.NewSequential(this(), sym("a"))}}
	_, err := interpret(t, g, NewValue[any, struct{}](0))
	var depthErr errs.SymbolDepthExceeded
	if !errors.As(err, &depthErr) {
		t.Fatalf("got error %v, want SymbolDepthExceeded", err)
	}
	if got, want := err.Error(), `maximum symbol depth (50) reached for symbol "a"`; got != want {
		t.Errorf("got message %q, want %q", got, want)
	}
}

func TestInterpret_UnknownVariable(t *testing.T) {
	g := ast.Grammar{{Name: "a", Step: &ast.GetVariable{Identifier: "x"}}}
	_, err := interpret(t, g, NewValue[any, struct{}](0))
	if err != (errs.UnknownVariable{Name: "x"}) {
		t.Errorf("got error %v, want UnknownVariable", err)
	}
}

func TestInterpret_DepthWindow(t *testing.T) {
	// a --> 1 | (2 | 3)
	g := ast.Grammar{{Name: "a", Step: ast.NewParallel(raw(1), ast.NewParallel(raw(2), raw(3)))}}
	run, err := Interpret(context.Background(), input(NewValue[any, struct{}](0)), g, testOps, config.Default(), 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	values, err := Collect(run)
	if err != nil {
		t.Fatal(err)
	}
	want := []result{{[]int{1, 0}, 2}, {[]int{1, 1}, 3}}
	if diff := cmp.Diff(want, results(values)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

type pathRecorder struct {
	mutex sync.Mutex
	paths map[string]int
}

func (r *pathRecorder) Record(p ast.Path, v value) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.paths[p.String()]++
}

func TestInterpret_Recorder(t *testing.T) {
	// a --> 10 -> this + 1
	g := ast.Grammar{{Name: "a", Step: ast.NewSequential(raw(10), ast.NewBinary(ast.KindAdd, this(), raw(1)))}}
	rec := &pathRecorder{paths: make(map[string]int)}
	run, err := Interpret(context.Background(), input(NewValue[any, struct{}](0)), g, testOps, config.Default(), 0, 0,
		WithRecorder[any, struct{}](rec))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Collect(run); err != nil {
		t.Fatal(err)
	}
	var paths []string
	for p := range rec.paths {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	want := []string{"a", "a/0", "a/1", "a/1/0", "a/1/1"}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestInterpret_ReactsToVariables(t *testing.T) {
	// a --> $x * 2
	g := ast.Grammar{{Name: "a", Step: ast.NewBinary(ast.KindMultiply, &ast.GetVariable{Identifier: "x"}, raw(2))}}
	x := NewVariable[any](1)
	v := NewValue[any, struct{}](0)
	v.Variables = map[string]*Variable[any]{"x": x}

	ctx := context.Background()
	run, err := Interpret(ctx, input(v), g, testOps, config.Default(), 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	changes := ToChanges(ctx, run.Values())
	first := <-changes
	if first.Type != matrix.ChangeSet || first.Value != 2 {
		t.Errorf("got first change %v, want set to 2", first)
	}
	m := matrix.Apply(matrix.Absent[any](), first)

	x.Set(3)
	x.Close()
	for c := range changes {
		m = matrix.Apply(m, c)
	}
	if err := run.Wait(); err != nil {
		t.Fatal(err)
	}
	if want := matrix.Scalar[any](6); !m.Equal(want) {
		t.Errorf("got %v, want %v", m, want)
	}
}

func TestOperation_ChangesTime(t *testing.T) {
	same := func(c Call[any, struct{}]) ([]InterpretationValue[any], error) {
		return []InterpretationValue[any]{{c.Value.Raw, nil}}, nil
	}
	ops := Operations[any, struct{}]{
		"plain": {Execute: SimpleExecution(same)},
		"fresh": {Execute: SimpleExecution(same), ChangesTime: true},
	}
	tests := []struct {
		op              string
		wantInvalidated bool
	}{
		{"plain", true},
		{"fresh", false},
	}
	for _, test := range tests {
		t.Run(test.op, func(t *testing.T) {
			v := NewValue[any, struct{}](1)
			v.Invalid = NewInvalid()
			g := ast.Grammar{{Name: "a", Step: ast.NewOperation(test.op)}}
			run, err := Interpret(context.Background(), input(v), g, ops, config.Default(), 0, 0)
			if err != nil {
				t.Fatal(err)
			}
			out, ok := <-run.Values()
			if !ok {
				t.Fatal("no output")
			}
			v.Invalid.Invalidate()
			if test.wantInvalidated {
				select {
				case <-out.Invalid.Done():
				case <-time.After(10 * time.Second):
					t.Errorf("output not invalidated with its input")
				}
			} else if out.Invalid == nil || out.Invalid.Invalidated() {
				t.Errorf("output should carry its own validity signal, got %v", out.Invalid)
			}
			for range run.Values() {
			}
			if err := run.Wait(); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestPick(t *testing.T) {
	if i := pick(1, []int{0}, []float64{0, 1}); i != 1 {
		t.Errorf("got %d, want 1", i)
	}
	if i := pick(1, []int{0}, []float64{0, 0}); i != -1 {
		t.Errorf("got %d, want -1", i)
	}
	for _, index := range [][]int{nil, {1}, {2, 3}} {
		if a, b := pick(7, index, []float64{0.5, 0.5}), pick(7, index, []float64{0.5, 0.5}); a != b {
			t.Errorf("pick not deterministic for index %v: %d != %d", index, a, b)
		}
	}
}

func TestRandom_ChoosesOneBranch(t *testing.T) {
	g := ast.Grammar{{Name: "a", Step: &ast.Random{Probabilities: []float64{0.5, 0.5}, Steps: []ast.Step{raw("x"), raw("y")}}}}
	values, err := interpret(t, g, NewValue[any, struct{}](0))
	if err != nil {
		t.Fatal(err)
	}
	if len(values) != 1 {
		t.Fatalf("got %d values, want 1", len(values))
	}
	if got := values[0]; (got.Raw == "x") != (got.Index[0] == 0) {
		t.Errorf("value %v has index %v", got.Raw, got.Index)
	}
}

func TestMergeEventDepth(t *testing.T) {
	a := map[string]int{"0": 1, "1": 0}
	b := map[string]int{"0": 3, "2": 2}
	want := map[string]int{"0": 3, "1": 0, "2": 2}
	if diff := cmp.Diff(want, MergeEventDepth(a, b)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if a["0"] != 1 {
		t.Errorf("argument modified")
	}
}

func TestAnyOf(t *testing.T) {
	a, b := NewInvalid(), NewInvalid()
	if AnyOf(context.Background(), nil, a, a) != a {
		t.Errorf("single distinct signal not returned as is")
	}
	if AnyOf(context.Background()) != nil {
		t.Errorf("no signals should give nil")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := AnyOf(ctx, a, b)
	b.Invalidate()
	<-c.Done()
	if !c.Invalidated() {
		t.Errorf("combined signal did not fire")
	}
}

func TestSymbolDepth(t *testing.T) {
	var d SymbolDepth
	d2 := d.Inc("a").Inc("a").Inc("b")
	if d.Get("a") != 0 {
		t.Errorf("Inc modified the receiver")
	}
	if diff := cmp.Diff(map[string]int{"a": 2, "b": 1}, d2.Map()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestIndexKey(t *testing.T) {
	if got := IndexKey([]int{0, 2}); got != "0,2" {
		t.Errorf("got %q", got)
	}
	if CompareIndex([]int{1}, []int{1, 0}) >= 0 || CompareIndex([]int{2}, []int{1, 5}) <= 0 {
		t.Errorf("CompareIndex is not lexicographic")
	}
}
