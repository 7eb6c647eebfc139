package interp

import (
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"src.cgv.sh/pkg/ast"
	"src.cgv.sh/pkg/errs"
	"src.cgv.sh/pkg/vals"
)

// compute derives the outputs of a step that maps each value on its own. The
// returned signal fires when the outputs may have changed while v is still
// valid.
func (r *runner[T, A]) compute(step ast.Step, p ast.Path, v Value[T, A]) ([]Value[T, A], *Invalid, error) {
	switch step := step.(type) {
	case *ast.This:
		return []Value[T, A]{v}, nil, nil
	case *ast.Raw:
		raw, err := vals.To[T](step.Value)
		if err != nil {
			return nil, nil, err
		}
		return []Value[T, A]{v.withRaw(raw)}, nil, nil
	case *ast.Null:
		return nil, nil, nil
	case *ast.Return:
		v.returned = true
		return []Value[T, A]{v}, nil, nil
	case *ast.GetVariable:
		variable, ok := v.Variables[step.Identifier]
		if !ok {
			return nil, nil, errs.UnknownVariable{Name: step.Identifier}
		}
		raw, changed := variable.Get()
		return []Value[T, A]{v.withRaw(raw).withInvalid(AnyOf(r.life, v.Invalid, changed))}, changed, nil
	case *ast.SetVariable:
		results, deps, err := r.eval(step.Value, p.Child(0), v)
		if err != nil || len(results) == 0 {
			return []Value[T, A]{v}, deps, err
		}
		res := results[0]
		variables := make(map[string]*Variable[T], len(v.Variables)+1)
		for name, variable := range v.Variables {
			variables[name] = variable
		}
		variables[step.Identifier] = Constant(res.Raw)
		out := v.withInvalid(AnyOf(r.life, v.Invalid, res.Invalid))
		out.Variables = variables
		return []Value[T, A]{out}, deps, nil
	case *ast.Binary:
		lefts, ldeps, err := r.eval(step.Left, p.Child(0), v)
		if err != nil {
			return nil, nil, err
		}
		rights, rdeps, err := r.eval(step.Right, p.Child(1), v)
		if err != nil {
			return nil, nil, err
		}
		n := len(lefts) * len(rights)
		outs := make([]Value[T, A], 0, n)
		for i, left := range lefts {
			for j, right := range rights {
				x, err := binaryOp(step.Op, any(left.Raw), any(right.Raw))
				if err != nil {
					return nil, nil, err
				}
				raw, err := vals.To[T](x)
				if err != nil {
					return nil, nil, err
				}
				out := v.withRaw(raw).withInvalid(AnyOf(r.life, v.Invalid, left.Invalid, right.Invalid))
				if n > 1 {
					out = out.withIndex(i*len(rights) + j)
				}
				outs = append(outs, out)
			}
		}
		return outs, AnyOf(r.life, ldeps, rdeps), nil
	case *ast.Unary:
		operands, deps, err := r.eval(step.Operand, p.Child(0), v)
		if err != nil {
			return nil, nil, err
		}
		outs := make([]Value[T, A], 0, len(operands))
		for i, operand := range operands {
			var x any = vals.Not(any(operand.Raw))
			if step.Op == ast.KindInvert {
				if x, err = vals.Neg(any(operand.Raw)); err != nil {
					return nil, nil, err
				}
			}
			raw, err := vals.To[T](x)
			if err != nil {
				return nil, nil, err
			}
			out := v.withRaw(raw).withInvalid(AnyOf(r.life, v.Invalid, operand.Invalid))
			if len(operands) > 1 {
				out = out.withIndex(i)
			}
			outs = append(outs, out)
		}
		return outs, deps, nil
	}
	return nil, nil, fmt.Errorf("cannot compute %s step", step.Kind())
}

func binaryOp(op ast.Kind, x, y any) (any, error) {
	switch op {
	case ast.KindAdd:
		return vals.Add(x, y)
	case ast.KindSubtract:
		return vals.Sub(x, y)
	case ast.KindMultiply:
		return vals.Mul(x, y)
	case ast.KindDivide:
		return vals.Div(x, y)
	case ast.KindModulo:
		return vals.Mod(x, y)
	case ast.KindEqual:
		return vals.Equal(x, y), nil
	case ast.KindUnequal:
		return !vals.Equal(x, y), nil
	case ast.KindAnd:
		return vals.Truthy(x) && vals.Truthy(y), nil
	case ast.KindOr:
		return vals.Truthy(x) || vals.Truthy(y), nil
	}
	c, err := vals.Compare(x, y)
	if err != nil {
		return nil, err
	}
	switch op {
	case ast.KindSmaller:
		return c < 0, nil
	case ast.KindSmallerEqual:
		return c <= 0, nil
	case ast.KindGreater:
		return c > 0, nil
	case ast.KindGreaterEqual:
		return c >= 0, nil
	}
	return nil, fmt.Errorf("%s is not a binary operator", op)
}

// eval evaluates an expression step for a single value and waits for all of
// its outputs, which are returned ordered by index. The returned signal fires
// when any output becomes stale for reasons other than v becoming stale.
func (r *runner[T, A]) eval(step ast.Step, p ast.Path, v Value[T, A]) ([]Value[T, A], *Invalid, error) {
	switch step := step.(type) {
	case *ast.This:
		r.record(p, v)
		return []Value[T, A]{v}, nil, nil
	case *ast.Raw:
		r.record(p, v)
		raw, err := vals.To[T](step.Value)
		if err != nil {
			return nil, nil, err
		}
		return []Value[T, A]{v.withRaw(raw)}, nil, nil
	}

	g, ctx := errgroup.WithContext(r.ctx)
	sub := &runner[T, A]{
		ctx: ctx, life: r.life, g: g,
		nouns: r.nouns, ops: r.ops, cfg: r.cfg, rec: r.rec,
		expr: true,
	}
	in := make(chan Value[T, A], 1)
	in <- v
	close(in)
	out := sub.start(step, p, in)

	var results []Value[T, A]
	g.Go(func() error {
		return sub.each(out, func(res Value[T, A]) error {
			res.returned = false
			results = append(results, res)
			return nil
		})
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	slices.SortStableFunc(results, func(a, b Value[T, A]) int { return CompareIndex(a.Index, b.Index) })

	var signals []*Invalid
	for _, res := range results {
		if res.Invalid != v.Invalid {
			signals = append(signals, res.Invalid)
		}
	}
	return results, AnyOf(r.life, signals...), nil
}

// product enumerates the combinations of one position out of each of n lists
// with the given lengths, the last list varying fastest.
func product(lens []int) [][]int {
	combos := [][]int{{}}
	for _, n := range lens {
		next := make([][]int, 0, len(combos)*n)
		for _, c := range combos {
			for i := 0; i < n; i++ {
				next = append(next, append(slices.Clone(c), i))
			}
		}
		combos = next
	}
	return combos
}
