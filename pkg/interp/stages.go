package interp

import (
	"encoding/binary"
	"hash/fnv"
	"math/rand"
	"sync"

	"src.cgv.sh/pkg/ast"
	"src.cgv.sh/pkg/errs"
	"src.cgv.sh/pkg/vals"
)

// routed is a value sent to one of the outputs of a routing stage.
type routed[T, A any] struct {
	to int
	v  Value[T, A]
}

// routeFunc decides where a value goes. The returned signal, if not nil,
// fires when the decision may have changed for reasons other than the value
// itself becoming stale, such as a variable changing.
type routeFunc[T, A any] func(v Value[T, A]) ([]routed[T, A], *Invalid, error)

// route starts a stage that sends each value from in to the outputs chosen by
// f, and closes the outputs when done.
func (r *runner[T, A]) route(p ast.Path, in <-chan Value[T, A], outs []chan Value[T, A], f routeFunc[T, A]) {
	var wg sync.WaitGroup
	r.react(&wg, p, in, func(v Value[T, A]) (*Invalid, error) {
		routes, deps, err := f(v)
		if err != nil {
			return nil, err
		}
		for _, rt := range routes {
			if err := r.send(outs[rt.to], rt.v); err != nil {
				return nil, err
			}
		}
		return deps, nil
	})
	closeAfter(&wg, outs...)
}

// react calls emit for each value from in. When the signal returned by emit
// fires while the value is still valid, emit is called again with the same
// value. All goroutines are counted by wg.
func (r *runner[T, A]) react(wg *sync.WaitGroup, p ast.Path, in <-chan Value[T, A], emit func(Value[T, A]) (*Invalid, error)) {
	watch := func(v Value[T, A], deps *Invalid) {
		if r.expr || deps == nil {
			return
		}
		r.spawn(wg, func() error {
			for deps != nil {
				select {
				case <-deps.Done():
				case <-v.Invalid.Done():
					return nil
				case <-r.ctx.Done():
					return nil
				}
				if v.Invalid.Invalidated() {
					return nil
				}
				var err error
				if deps, err = emit(v); err != nil {
					return err
				}
			}
			return nil
		})
	}
	r.spawn(wg, func() error {
		return r.each(in, func(v Value[T, A]) error {
			r.record(p, v)
			deps, err := emit(v)
			if err != nil {
				return err
			}
			watch(v, deps)
			return nil
		})
	})
}

// branch starts the stages of children, each fed by one output of a routing
// stage, and merges their outputs.
func (r *runner[T, A]) branch(p ast.Path, in <-chan Value[T, A], children []ast.Step, firstChild int, f routeFunc[T, A]) <-chan Value[T, A] {
	ins := make([]chan Value[T, A], len(children))
	outs := make([]<-chan Value[T, A], len(children))
	for i, child := range children {
		ins[i] = make(chan Value[T, A])
		outs[i] = r.start(child, p.Child(firstChild+i), ins[i])
	}
	r.route(p, in, ins, f)
	return r.merge(outs...)
}

func (r *runner[T, A]) mapStage(step ast.Step, p ast.Path, in <-chan Value[T, A]) <-chan Value[T, A] {
	out := make(chan Value[T, A])
	r.route(p, in, []chan Value[T, A]{out}, func(v Value[T, A]) ([]routed[T, A], *Invalid, error) {
		values, deps, err := r.compute(step, p, v)
		if err != nil {
			return nil, nil, err
		}
		routes := make([]routed[T, A], len(values))
		for i, v := range values {
			routes[i] = routed[T, A]{0, v}
		}
		return routes, deps, nil
	})
	return out
}

func (r *runner[T, A]) sequential(step *ast.Sequential, p ast.Path, in <-chan Value[T, A]) <-chan Value[T, A] {
	if len(step.Steps) == 0 {
		return r.mapStage(&ast.This{}, p, in)
	}
	out := make(chan Value[T, A])
	var wg sync.WaitGroup
	cur := in
	if r.rec != nil {
		tapped := make(chan Value[T, A])
		var tapWG sync.WaitGroup
		r.spawn(&tapWG, func() error {
			return r.each(in, func(v Value[T, A]) error {
				r.record(p, v)
				return r.send(tapped, v)
			})
		})
		closeAfter(&tapWG, tapped)
		cur = tapped
	}
	for i, child := range step.Steps {
		childOut := r.start(child, p.Child(i), cur)
		if i == len(step.Steps)-1 {
			r.spawn(&wg, func() error {
				return r.each(childOut, func(v Value[T, A]) error { return r.send(out, v) })
			})
			break
		}
		// Returned values skip the rest of the sequence.
		next := make(chan Value[T, A])
		var gateWG sync.WaitGroup
		gateWG.Add(1)
		r.spawn(&wg, func() error {
			defer gateWG.Done()
			return r.each(childOut, func(v Value[T, A]) error {
				if v.returned {
					return r.send(out, v)
				}
				return r.send(next, v)
			})
		})
		closeAfter(&gateWG, next)
		cur = next
	}
	closeAfter(&wg, out)
	return out
}

func (r *runner[T, A]) parallel(step *ast.Parallel, p ast.Path, in <-chan Value[T, A]) <-chan Value[T, A] {
	return r.branch(p, in, step.Steps, 0, func(v Value[T, A]) ([]routed[T, A], *Invalid, error) {
		routes := make([]routed[T, A], len(step.Steps))
		for i := range step.Steps {
			routes[i] = routed[T, A]{i, v.withIndex(i)}
		}
		return routes, nil, nil
	})
}

func (r *runner[T, A]) random(step *ast.Random, p ast.Path, in <-chan Value[T, A]) <-chan Value[T, A] {
	return r.branch(p, in, step.Steps, 0, func(v Value[T, A]) ([]routed[T, A], *Invalid, error) {
		i := pick(r.cfg.Seed, v.Index, step.Probabilities)
		if i < 0 {
			return nil, nil, nil
		}
		return []routed[T, A]{{i, v.withIndex(i)}}, nil, nil
	})
}

// pick chooses a position with the given weights, deterministically from the
// seed and the index. It returns -1 if no weight is positive.
func pick(seed int64, index []int, weights []float64) int {
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return -1
	}
	h := fnv.New64a()
	binary.Write(h, binary.LittleEndian, seed)
	for _, i := range index {
		binary.Write(h, binary.LittleEndian, int64(i))
	}
	x := rand.New(rand.NewSource(int64(h.Sum64()))).Float64() * total
	last := -1
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		if x < w {
			return i
		}
		x -= w
		last = i
	}
	return last
}

func (r *runner[T, A]) switchStep(step *ast.Switch, p ast.Path, in <-chan Value[T, A]) <-chan Value[T, A] {
	return r.branch(p, in, step.Steps, 1, func(v Value[T, A]) ([]routed[T, A], *Invalid, error) {
		results, deps, err := r.eval(step.Value, p.Child(0), v)
		if err != nil || len(results) == 0 {
			return nil, deps, err
		}
		d := results[0]
		match, fallback := -1, -1
		for i, c := range step.Cases {
			if c == ast.Default {
				if fallback < 0 {
					fallback = i
				}
				continue
			}
			if vals.Equal(c, any(d.Raw)) {
				match = i
				break
			}
		}
		if match < 0 {
			match = fallback
		}
		if match < 0 {
			return nil, deps, nil
		}
		out := v.withIndex(match).withInvalid(AnyOf(r.life, v.Invalid, d.Invalid))
		return []routed[T, A]{{match, out}}, deps, nil
	})
}

func (r *runner[T, A]) ifStep(step *ast.If, p ast.Path, in <-chan Value[T, A]) <-chan Value[T, A] {
	return r.branch(p, in, []ast.Step{step.Then, step.Else}, 1, func(v Value[T, A]) ([]routed[T, A], *Invalid, error) {
		results, deps, err := r.eval(step.Cond, p.Child(0), v)
		if err != nil || len(results) == 0 {
			return nil, deps, err
		}
		c := results[0]
		to := 1
		if vals.Truthy(any(c.Raw)) {
			to = 0
		}
		return []routed[T, A]{{to, v.withInvalid(AnyOf(r.life, v.Invalid, c.Invalid))}}, deps, nil
	})
}

// symbol starts the pipeline of the referenced noun when the first value
// arrives, so that recursive nouns only unfold as deep as values go.
func (r *runner[T, A]) symbol(step *ast.Symbol, p ast.Path, in <-chan Value[T, A]) <-chan Value[T, A] {
	name := step.Identifier
	out := make(chan Value[T, A])
	var wg sync.WaitGroup
	r.spawn(&wg, func() error {
		var nounIn chan Value[T, A]
		defer func() {
			if nounIn != nil {
				close(nounIn)
			}
		}()
		return r.each(in, func(v Value[T, A]) error {
			r.record(p, v)
			if v.SymbolDepth.Get(name) >= r.cfg.MaxSymbolDepth {
				return errs.SymbolDepthExceeded{Noun: name, Max: r.cfg.MaxSymbolDepth}
			}
			if nounIn == nil {
				noun, ok := r.nouns[name]
				if !ok {
					return errs.UnknownSymbol{Name: name}
				}
				nounIn = make(chan Value[T, A])
				nounOut := r.start(noun, ast.RootPath(name), nounIn)
				r.spawn(&wg, func() error {
					return r.each(nounOut, func(v Value[T, A]) error {
						v.returned = false
						return r.send(out, v)
					})
				})
			}
			v.SymbolDepth = v.SymbolDepth.Inc(name)
			return r.send(nounIn, v)
		})
	})
	closeAfter(&wg, out)
	return out
}
