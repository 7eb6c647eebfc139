package interp

import (
	"context"
	"slices"
	"sync"

	"src.cgv.sh/pkg/matrix"
)

// Collect drains the values of a run and waits for it to end. It returns the
// latest value for each index that is still valid at the end, ordered by
// index.
func Collect[T, A any](run *Run[T, A]) ([]Value[T, A], error) {
	latest := make(map[string]Value[T, A])
	for v := range run.Values() {
		latest[v.Key()] = v
	}
	if err := run.Wait(); err != nil {
		return nil, err
	}
	values := make([]Value[T, A], 0, len(latest))
	for _, v := range latest {
		if !v.Invalid.Invalidated() {
			values = append(values, v)
		}
	}
	slices.SortFunc(values, func(a, b Value[T, A]) int { return CompareIndex(a.Index, b.Index) })
	return values, nil
}

// Raws returns the payloads of values.
func Raws[T, A any](values []Value[T, A]) []T {
	raws := make([]T, len(values))
	for i, v := range values {
		raws[i] = v.Raw
	}
	return raws
}

// ToChanges turns a stream of values into a stream of matrix changes: a set
// for every valid value, and an unset when a value becomes stale without
// having been replaced by a newer value with the same index. The returned
// channel is closed after values is closed, or when ctx is done.
func ToChanges[T, A any](ctx context.Context, values <-chan Value[T, A]) <-chan matrix.Change[T] {
	out := make(chan matrix.Change[T])
	finished := make(chan struct{})
	var (
		// Serializes sends and protects generations, so that a set and an
		// unset for the same index are never reordered.
		mutex       sync.Mutex
		generations = make(map[string]int)
		wg          sync.WaitGroup
	)
	send := func(c matrix.Change[T]) bool {
		select {
		case out <- c:
			return true
		case <-ctx.Done():
			return false
		}
	}
	watch := func(v Value[T, A], key string, gen int) {
		defer wg.Done()
		select {
		case <-v.Invalid.Done():
		case <-finished:
			if !v.Invalid.Invalidated() {
				return
			}
		case <-ctx.Done():
			return
		}
		mutex.Lock()
		defer mutex.Unlock()
		if generations[key] == gen {
			send(matrix.UnsetChange[T](v.Index))
		}
	}

	go func() {
		defer func() {
			close(finished)
			wg.Wait()
			close(out)
		}()
		for {
			var v Value[T, A]
			select {
			case v0, ok := <-values:
				if !ok {
					return
				}
				v = v0
			case <-ctx.Done():
				return
			}
			if v.Invalid.Invalidated() {
				continue
			}
			key := v.Key()
			mutex.Lock()
			generations[key]++
			gen := generations[key]
			ok := send(matrix.SetChange(v.Index, v.Raw))
			mutex.Unlock()
			if !ok {
				return
			}
			if v.Invalid != nil {
				wg.Add(1)
				go watch(v, key, gen)
			}
		}
	}()
	return out
}
