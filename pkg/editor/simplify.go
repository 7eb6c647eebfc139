package editor

import (
	"src.cgv.sh/pkg/ast"
)

// DefaultParameterFunc returns the step substituted for a removed argument of
// an operation. It returns false if the operation is unknown and a nil step if
// the operation has no default for the position. The DefaultParameter method
// of interp.Operations has this signature.
type DefaultParameterFunc func(operation string, i int) (ast.Step, bool)

// NeutralStep returns the step that takes the place of the child at position i
// of parent when the child is removed, so that the parent keeps its arity. A
// nil parent stands for the noun owning a root step. It returns false for
// children that cannot be removed: conditions of if steps, discriminants of
// switch steps, operands, and arguments of unknown operations.
func NeutralStep(parent ast.Step, i int, defaults DefaultParameterFunc) (ast.Step, bool) {
	if parent == nil {
		return ast.NewThis(), true
	}
	switch parent := parent.(type) {
	case *ast.Operation:
		if defaults == nil {
			return ast.NewNull(), true
		}
		step, ok := defaults(parent.Identifier, i)
		if !ok {
			return nil, false
		}
		if step == nil {
			return ast.NewNull(), true
		}
		return step, true
	case *ast.Sequential:
		return ast.NewThis(), true
	case *ast.Parallel, *ast.Random:
		return ast.NewNull(), true
	case *ast.Switch, *ast.If:
		if i == 0 {
			return nil, false
		}
		return ast.NewNull(), true
	}
	return nil, false
}

// Simplify removes redundant steps from every noun until nothing changes:
// this steps of sequences and null steps of parallel steps when other
// children remain, null steps of random steps with their probabilities, null
// cases of switch steps with their labels, and sequences and parallel steps
// with a single child.
func Simplify(g ast.Grammar) ast.Grammar {
	result := make(ast.Grammar, len(g))
	for i, n := range g {
		step := n.Step
		for {
			simplified := simplifyStep(step)
			if ast.Equal(simplified, step) {
				break
			}
			step = simplified
		}
		result[i] = ast.Noun{Name: n.Name, Step: step}
	}
	return result
}

func simplifyStep(step ast.Step) ast.Step {
	children := step.Children()
	if len(children) == 0 {
		return step
	}
	for i, c := range children {
		children[i] = simplifyStep(c)
	}
	switch step := step.(type) {
	case *ast.Sequential:
		return collapse(&ast.Sequential{Steps: dropRedundant(children, ast.KindThis)})
	case *ast.Parallel:
		return collapse(&ast.Parallel{Steps: dropRedundant(children, ast.KindNull)})
	case *ast.Random:
		var probs []float64
		var steps []ast.Step
		for i, c := range children {
			if c.Kind() != ast.KindNull {
				probs = append(probs, step.Probabilities[i])
				steps = append(steps, c)
			}
		}
		return &ast.Random{Probabilities: probs, Steps: steps}
	case *ast.Switch:
		var cases []any
		var steps []ast.Step
		for i, c := range children[1:] {
			if c.Kind() != ast.KindNull {
				cases = append(cases, step.Cases[i])
				steps = append(steps, c)
			}
		}
		return &ast.Switch{Value: children[0], Cases: cases, Steps: steps}
	}
	return step.WithChildren(children)
}

// dropRedundant removes children of the given kind, from the last one on,
// as long as more than one child remains.
func dropRedundant(children []ast.Step, kind ast.Kind) []ast.Step {
	for i := len(children) - 1; i >= 0 && len(children) > 1; i-- {
		if children[i].Kind() == kind {
			children = append(children[:i], children[i+1:]...)
		}
	}
	return children
}

func collapse(step ast.Step) ast.Step {
	if children := step.Children(); len(children) == 1 {
		return children[0]
	}
	return step
}
