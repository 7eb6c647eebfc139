// Package storetest keeps test suites against storedefs.Store.
package storetest

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"src.cgv.sh/pkg/ast"
	"src.cgv.sh/pkg/store/storedefs"
)

var (
	grammar1 = ast.Grammar{{Name: "a", Step: ast.NewParallel(ast.NewRaw(1), ast.NewRaw(2))}}
	grammar2 = ast.Grammar{
		{Name: "a", Step: ast.NewSequential(&ast.Symbol{Identifier: "b"}, ast.NewOperation("sum", ast.NewThis()))},
		{Name: "b", Step: ast.NewIf(ast.NewThis(), ast.NewRaw(1.5), ast.NewNull())},
	}
)

// TestGrammar tests the grammar functionality of a Store.
func TestGrammar(t *testing.T, store storedefs.Store) {
	if _, err := store.Grammar("a"); !errors.Is(err, storedefs.ErrNoGrammar) {
		t.Errorf("Grammar(a) of empty store -> error %v, want ErrNoGrammar", err)
	}

	for i, g := range []ast.Grammar{grammar1, grammar2} {
		seq, err := store.PutGrammar("a", g)
		if err != nil {
			t.Fatalf("PutGrammar(a) -> error %v", err)
		}
		if seq != i+1 {
			t.Errorf("PutGrammar(a) -> seq %d, want %d", seq, i+1)
		}
	}
	if _, err := store.PutGrammar("b", grammar1); err != nil {
		t.Fatalf("PutGrammar(b) -> error %v", err)
	}

	g, err := store.Grammar("a")
	if err != nil || !g.Equal(grammar2) {
		t.Errorf("Grammar(a) -> (%s, %v), want (%s, nil)", g.Format(), err, grammar2.Format())
	}
	names, err := store.GrammarNames()
	if diff := cmp.Diff([]string{"a", "b"}, names); diff != "" || err != nil {
		t.Errorf("GrammarNames() -> error %v, diff (-want +got):\n%s", err, diff)
	}

	if err := store.DelGrammar("b"); err != nil {
		t.Errorf("DelGrammar(b) -> error %v", err)
	}
	if err := store.DelGrammar("b"); !errors.Is(err, storedefs.ErrNoGrammar) {
		t.Errorf("DelGrammar(b) again -> error %v, want ErrNoGrammar", err)
	}
	if _, err := store.Revisions("b"); !errors.Is(err, storedefs.ErrNoGrammar) {
		t.Errorf("Revisions(b) after delete -> error %v, want ErrNoGrammar", err)
	}
}

// TestRevision tests the revision history of a Store.
func TestRevision(t *testing.T, store storedefs.Store) {
	for _, g := range []ast.Grammar{grammar1, grammar2, grammar1} {
		if _, err := store.PutGrammar("a", g); err != nil {
			t.Fatalf("PutGrammar(a) -> error %v", err)
		}
	}

	revisions, err := store.Revisions("a")
	if err != nil {
		t.Fatalf("Revisions(a) -> error %v", err)
	}
	want := []ast.Grammar{grammar1, grammar2, grammar1}
	if len(revisions) != len(want) {
		t.Fatalf("Revisions(a) -> %d revisions, want %d", len(revisions), len(want))
	}
	for i, r := range revisions {
		if r.Seq != i+1 || !r.Grammar.Equal(want[i]) {
			t.Errorf("revision %d is (%d, %s), want (%d, %s)",
				i, r.Seq, r.Grammar.Format(), i+1, want[i].Format())
		}
	}

	g, err := store.Revision("a", 2)
	if err != nil || !g.Equal(grammar2) {
		t.Errorf("Revision(a, 2) -> (%s, %v), want (%s, nil)", g.Format(), err, grammar2.Format())
	}
	if _, err := store.Revision("a", 4); !errors.Is(err, storedefs.ErrNoRevision) {
		t.Errorf("Revision(a, 4) -> error %v, want ErrNoRevision", err)
	}
	if _, err := store.Revision("x", 1); !errors.Is(err, storedefs.ErrNoGrammar) {
		t.Errorf("Revision(x, 1) -> error %v, want ErrNoGrammar", err)
	}
}
