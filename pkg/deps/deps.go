// Package deps computes the reference graph between the nouns of a grammar.
package deps

import (
	"sort"

	"src.cgv.sh/pkg/ast"
	"src.cgv.sh/pkg/diag"
	"src.cgv.sh/pkg/errs"
	"src.cgv.sh/pkg/errutil"
)

// Map maps the name of each noun to the sorted names of the nouns it
// references. Every noun of the grammar has an entry, possibly empty.
type Map map[string][]string

// Compute computes the dependency map of a grammar. References to nouns that
// don't exist are included; use Check to find them.
func Compute(g ast.Grammar) Map {
	m := make(Map, len(g))
	for _, n := range g {
		set := make(map[string]bool)
		ast.WalkStep(n.Step, ast.RootPath(n.Name), func(step ast.Step, _ ast.Path) bool {
			if s, ok := step.(*ast.Symbol); ok {
				set[s.Identifier] = true
			}
			return true
		})
		refs := make([]string, 0, len(set))
		for name := range set {
			refs = append(refs, name)
		}
		sort.Strings(refs)
		m[n.Name] = refs
	}
	return m
}

// Equal reports whether two dependency maps are the same.
func (m Map) Equal(o Map) bool {
	if len(m) != len(o) {
		return false
	}
	for name, refs := range m {
		orefs, ok := o[name]
		if !ok || len(refs) != len(orefs) {
			return false
		}
		for i := range refs {
			if refs[i] != orefs[i] {
				return false
			}
		}
	}
	return true
}

// Check looks for references to nouns that are not in the grammar, and, if
// knownOp is not nil, to operations for which it returns false. All problems
// are returned, combined with errutil.Multi; each one is a *diag.Error whose
// cause is errs.UnknownSymbol or errs.UnknownOperation.
func Check(g ast.Grammar, knownOp func(string) bool) error {
	names := make(map[string]bool, len(g))
	for _, n := range g {
		names[n.Name] = true
	}
	var problems []error
	ast.Walk(g, func(step ast.Step, p ast.Path) bool {
		switch step := step.(type) {
		case *ast.Symbol:
			if !names[step.Identifier] {
				problems = append(problems,
					diag.New("reference error", p, errs.UnknownSymbol{Name: step.Identifier}))
			}
		case *ast.Operation:
			if knownOp != nil && !knownOp(step.Identifier) {
				problems = append(problems,
					diag.New("reference error", p, errs.UnknownOperation{Name: step.Identifier}))
			}
		}
		return true
	})
	return errutil.Multi(problems...)
}

// Reachable returns the set of nouns reachable from roots, roots included.
// Names in roots that are not in m are ignored.
func Reachable(m Map, roots []string) map[string]bool {
	seen := make(map[string]bool)
	var visit func(string)
	visit = func(name string) {
		refs, ok := m[name]
		if !ok || seen[name] {
			return
		}
		seen[name] = true
		for _, ref := range refs {
			visit(ref)
		}
	}
	for _, root := range roots {
		visit(root)
	}
	return seen
}

// RemoveUnused returns the grammar without the nouns unreachable from roots,
// keeping the order of the remaining nouns, together with its dependency map.
// If roots is empty, the first noun is the only root.
func RemoveUnused(g ast.Grammar, roots []string) (ast.Grammar, Map) {
	if len(roots) == 0 {
		if root, ok := g.Root(); ok {
			roots = []string{root.Name}
		}
	}
	reachable := Reachable(Compute(g), roots)
	var kept ast.Grammar
	for _, n := range g {
		if reachable[n.Name] {
			kept = append(kept, n)
		}
	}
	return kept, Compute(kept)
}
