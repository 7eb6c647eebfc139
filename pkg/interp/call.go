package interp

import (
	"sync"

	"src.cgv.sh/pkg/ast"
	"src.cgv.sh/pkg/errs"
)

// operation starts the stage of an operation step. It runs three parts
// connected by channels: a feeder that evaluates the arguments of each value
// into calls, the execution of the operation, and a mapper that turns results
// into output values.
func (r *runner[T, A]) operation(step *ast.Operation, p ast.Path, in <-chan Value[T, A]) <-chan Value[T, A] {
	out := make(chan Value[T, A])
	op, ok := r.ops[step.Identifier]
	if !ok {
		r.g.Go(func() error {
			close(out)
			return errs.UnknownOperation{Name: step.Identifier}
		})
		return out
	}

	calls := make(chan Call[T, A])
	results := make(chan Result[T, A])

	var feedWG sync.WaitGroup
	var eventsMutex sync.Mutex
	events := make(map[string]int)
	r.react(&feedWG, p, in, func(v Value[T, A]) (*Invalid, error) {
		args := make([][]Value[T, A], len(step.Args))
		lens := make([]int, len(step.Args))
		var signals []*Invalid
		for i, arg := range step.Args {
			res, deps, err := r.eval(arg, p.Child(i), v)
			if err != nil {
				return nil, err
			}
			args[i], lens[i] = res, len(res)
			signals = append(signals, deps)
		}
		deps := AnyOf(r.life, signals...)

		key := v.Key()
		eventsMutex.Lock()
		events[key]++
		depth := map[string]int{key: events[key]}
		eventsMutex.Unlock()

		combos := product(lens)
		for c, combo := range combos {
			call := Call[T, A]{Value: v}
			if len(combos) > 1 {
				call.Value = v.withIndex(c)
			}
			invalids := []*Invalid{v.Invalid}
			if op.IncludeThis {
				call.Args = append(call.Args, InterpretationValue[T]{v.Raw, depth})
			}
			for i, pos := range combo {
				a := args[i][pos]
				invalids = append(invalids, a.Invalid)
				call.Args = append(call.Args, InterpretationValue[T]{a.Raw, depth})
			}
			call.Value.Invalid = AnyOf(r.life, invalids...)
			select {
			case calls <- call:
			case <-r.ctx.Done():
				return nil, r.ctx.Err()
			}
		}
		return deps, nil
	})
	closeAfter(&feedWG, calls)

	r.g.Go(func() error {
		err := op.Execute(r.ctx, Site{p, r.cfg.BatchSize}, calls, results)
		close(results)
		if err != nil {
			return err
		}
		// Calls the execution left unread would block the feeder.
		for {
			select {
			case _, ok := <-calls:
				if !ok {
					return nil
				}
			case <-r.ctx.Done():
				return r.ctx.Err()
			}
		}
	})

	r.g.Go(func() error {
		defer close(out)
		// Validity signals of the outputs last produced for each call value.
		own := make(map[string][]*Invalid)
		for {
			var res Result[T, A]
			select {
			case r0, ok := <-results:
				if !ok {
					return nil
				}
				res = r0
			case <-r.ctx.Done():
				return r.ctx.Err()
			}
			key := res.Value.Key()
			for _, s := range own[key] {
				s.Invalidate()
			}
			own[key] = nil
			for j, x := range res.Results {
				v := res.Value.withRaw(x.Value)
				if len(res.Results) > 1 {
					v = v.withIndex(j)
				}
				switch {
				case r.expr && op.ChangesTime:
					v.Invalid = nil
				case r.expr:
				case op.ChangesTime:
					s := NewInvalid()
					own[key] = append(own[key], s)
					v.Invalid = s
				default:
					s := NewInvalid()
					own[key] = append(own[key], s)
					v.Invalid = AnyOf(r.life, res.Value.Invalid, s)
				}
				if err := r.send(out, v); err != nil {
					return err
				}
			}
		}
	})
	return out
}
