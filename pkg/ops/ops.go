// Package ops contains the built-in operations.
package ops

import (
	"context"
	"slices"

	"src.cgv.sh/pkg/interp"
	"src.cgv.sh/pkg/logutil"
	"src.cgv.sh/pkg/vals"
)

var logger = logutil.GetLogger("[ops] ")

// Builtins returns a registry with all built-in operations. Synthesized
// pattern conditions refer to "index" and "id".
func Builtins[T, A any]() interp.Operations[T, A] {
	return interp.Operations[T, A]{
		"index": Index[T, A](),
		"id":    ID[T, A](),
		"sum":   Sum[T, A](),
	}
}

// Index returns the operation yielding the last segment of the index of the
// current value. Values with an empty index yield nothing.
func Index[T, A any]() *interp.Operation[T, A] {
	return &interp.Operation[T, A]{
		Execute: interp.SimpleExecution(func(c interp.Call[T, A]) ([]interp.InterpretationValue[T], error) {
			index := c.Value.Index
			if len(index) == 0 {
				return nil, nil
			}
			return one[T](index[len(index)-1])
		}),
	}
}

// ID returns the operation yielding the index of the current value as a
// comma-joined string.
func ID[T, A any]() *interp.Operation[T, A] {
	return &interp.Operation[T, A]{
		Execute: interp.SimpleExecution(func(c interp.Call[T, A]) ([]interp.InterpretationValue[T], error) {
			return one[T](c.Value.Key())
		}),
	}
}

func one[T any](v any) ([]interp.InterpretationValue[T], error) {
	t, err := vals.To[T](v)
	if err != nil {
		return nil, err
	}
	return []interp.InterpretationValue[T]{{Value: t}}, nil
}

// Sum returns the reducing operation adding up all the values reaching its
// call site.
//
// Pending calls are read in batches of at most the batch size of the site.
// After each batch the latest live contribution of every index is combined
// and emitted as one value. Its index is the longest common prefix of the
// parent indices of the contributions, so that the sum of the branches of
// a fan-out lands where the fan-out started.
func Sum[T, A any]() *interp.Operation[T, A] {
	return &interp.Operation[T, A]{IncludeThis: true, Execute: sum[T, A]}
}

func sum[T, A any](ctx context.Context, site interp.Site, calls <-chan interp.Call[T, A], results chan<- interp.Result[T, A]) error {
	latest := make(map[string]interp.Call[T, A])
	stale := make(chan struct{}, 1)
	var (
		emitted  bool
		lastBase interp.Value[T, A]
	)

	add := func(c interp.Call[T, A]) {
		latest[c.Value.Key()] = c
		if inv := c.Value.Invalid; inv != nil {
			go func() {
				select {
				case <-inv.Done():
					select {
					case stale <- struct{}{}:
					default:
					}
				case <-ctx.Done():
				}
			}()
		}
	}
	send := func(r interp.Result[T, A]) error {
		select {
		case results <- r:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	emit := func() error {
		var live []interp.Call[T, A]
		for key, c := range latest {
			if c.Value.Invalid.Invalidated() {
				delete(latest, key)
				continue
			}
			live = append(live, c)
		}
		slices.SortFunc(live, func(a, b interp.Call[T, A]) int {
			return interp.CompareIndex(a.Value.Index, b.Value.Index)
		})
		if len(live) == 0 {
			if emitted {
				emitted = false
				return send(interp.Result[T, A]{Value: lastBase})
			}
			return nil
		}
		contributions := make([]interp.InterpretationValue[T], len(live))
		indices := make([][]int, len(live))
		for i, c := range live {
			contributions[i] = c.Args[0]
			indices[i] = c.Value.Index
		}
		total, err := Combine(contributions)
		if err != nil {
			return err
		}
		base := live[len(live)-1].Value
		base.Index = commonParentPrefix(indices)
		base.Invalid = nil
		if emitted && lastBase.Key() != base.Key() {
			if err := send(interp.Result[T, A]{Value: lastBase}); err != nil {
				return err
			}
		}
		emitted, lastBase = true, base
		return send(interp.Result[T, A]{Value: base, Results: []interp.InterpretationValue[T]{total}})
	}

	for {
		select {
		case c, ok := <-calls:
			if !ok {
				return nil
			}
			add(c)
		case <-stale:
		case <-ctx.Done():
			return ctx.Err()
		}
		n := 1
	batch:
		for n < site.BatchSize {
			select {
			case c, ok := <-calls:
				if !ok {
					break batch
				}
				add(c)
				n++
			default:
				break batch
			}
		}
		logger.Printf("sum at %s: batch of %d, %d contributions", site.Path, n, len(latest))
		if err := emit(); err != nil {
			return err
		}
	}
}

// Combine adds up the payloads of values and merges their event depth maps.
// The result does not depend on the order of values as long as the addition
// of the payloads is associative and commutative, which holds for integers.
func Combine[T any](values []interp.InterpretationValue[T]) (interp.InterpretationValue[T], error) {
	var total any = 0
	depths := make([]map[string]int, len(values))
	for i, v := range values {
		var err error
		if total, err = vals.Add(total, any(v.Value)); err != nil {
			return interp.InterpretationValue[T]{}, err
		}
		depths[i] = v.EventDepthMap
	}
	t, err := vals.To[T](total)
	if err != nil {
		return interp.InterpretationValue[T]{}, err
	}
	return interp.InterpretationValue[T]{Value: t, EventDepthMap: interp.MergeEventDepth(depths...)}, nil
}

func commonParentPrefix(indices [][]int) []int {
	var prefix []int
	for i, index := range indices {
		parent := index
		if len(parent) > 0 {
			parent = parent[:len(parent)-1]
		}
		if i == 0 {
			prefix = slices.Clone(parent)
			continue
		}
		n := 0
		for n < len(prefix) && n < len(parent) && prefix[n] == parent[n] {
			n++
		}
		prefix = prefix[:n]
	}
	if len(prefix) == 0 {
		return nil
	}
	return prefix
}
