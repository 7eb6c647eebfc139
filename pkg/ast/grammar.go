package ast

import (
	"fmt"
	"reflect"
)

// Noun is a named grammar rule.
type Noun struct {
	Name string
	Step Step
}

// Grammar is an ordered collection of nouns. The first noun is the entry point
// of interpretation.
type Grammar []Noun

// Noun returns the noun with the given name.
func (g Grammar) Noun(name string) (Noun, bool) {
	for _, n := range g {
		if n.Name == name {
			return n, true
		}
	}
	return Noun{}, false
}

// Root returns the first noun of the grammar.
func (g Grammar) Root() (Noun, bool) {
	if len(g) == 0 {
		return Noun{}, false
	}
	return g[0], true
}

// Names returns the names of all nouns, in order.
func (g Grammar) Names() []string {
	names := make([]string, len(g))
	for i, n := range g {
		names[i] = n.Name
	}
	return names
}

// Get returns the step addressed by p.
func (g Grammar) Get(p Path) (Step, error) {
	noun, ok := g.Noun(p.Noun)
	if !ok {
		return nil, fmt.Errorf("no noun %q", p.Noun)
	}
	step := noun.Step
	for _, i := range p.Steps {
		children := step.Children()
		if i >= len(children) {
			return nil, fmt.Errorf("bad path %s: %s step has no child %d", p, step.Kind(), i)
		}
		step = children[i]
	}
	return step, nil
}

// ReplaceAt returns a copy of the grammar where the step addressed by p is
// replaced with step. Only the steps along p are copied; everything else is
// shared with g.
func ReplaceAt(g Grammar, p Path, step Step) (Grammar, error) {
	for i, n := range g {
		if n.Name != p.Noun {
			continue
		}
		newStep, err := replaceAt(n.Step, p.Steps, step)
		if err != nil {
			return nil, fmt.Errorf("bad path %s: %w", p, err)
		}
		newGrammar := append(Grammar(nil), g...)
		newGrammar[i] = Noun{n.Name, newStep}
		return newGrammar, nil
	}
	return nil, fmt.Errorf("no noun %q", p.Noun)
}

func replaceAt(root Step, steps []int, step Step) (Step, error) {
	if len(steps) == 0 {
		return step, nil
	}
	children := root.Children()
	i := steps[0]
	if i >= len(children) {
		return nil, fmt.Errorf("%s step has no child %d", root.Kind(), i)
	}
	child, err := replaceAt(children[i], steps[1:], step)
	if err != nil {
		return nil, err
	}
	children[i] = child
	return root.WithChildren(children), nil
}

// Walk calls f for every step of the grammar in depth-first pre-order. The
// walk does not descend into a step if f returns false for it.
func Walk(g Grammar, f func(step Step, p Path) bool) {
	for _, n := range g {
		walk(n.Step, RootPath(n.Name), f)
	}
}

// WalkStep is like Walk, but for a single step tree rooted at p.
func WalkStep(step Step, p Path, f func(step Step, p Path) bool) {
	walk(step, p, f)
}

func walk(step Step, p Path, f func(Step, Path) bool) {
	if !f(step, p) {
		return
	}
	for i, child := range step.Children() {
		walk(child, p.Child(i), f)
	}
}

// Equal reports whether two steps are structurally equal.
func Equal(a, b Step) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch a := a.(type) {
	case *Raw:
		return reflect.DeepEqual(a.Value, b.(*Raw).Value)
	case *Symbol:
		return a.Identifier == b.(*Symbol).Identifier
	case *GetVariable:
		return a.Identifier == b.(*GetVariable).Identifier
	case *SetVariable:
		if a.Identifier != b.(*SetVariable).Identifier {
			return false
		}
	case *Operation:
		if a.Identifier != b.(*Operation).Identifier {
			return false
		}
	case *Random:
		if !reflect.DeepEqual(a.Probabilities, b.(*Random).Probabilities) {
			return false
		}
	case *Switch:
		if !reflect.DeepEqual(a.Cases, b.(*Switch).Cases) {
			return false
		}
	}
	ac, bc := a.Children(), b.Children()
	if len(ac) != len(bc) {
		return false
	}
	for i := range ac {
		if !Equal(ac[i], bc[i]) {
			return false
		}
	}
	return true
}

// Equal reports whether two grammars have the same nouns in the same order,
// with structurally equal steps.
func (g Grammar) Equal(h Grammar) bool {
	if len(g) != len(h) {
		return false
	}
	for i := range g {
		if g[i].Name != h[i].Name || !Equal(g[i].Step, h[i].Step) {
			return false
		}
	}
	return true
}
