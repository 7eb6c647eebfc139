// Package pattern infers conditions that tell a selection of values apart
// from the other values reaching the same step.
//
// A Type is a strategy generating patterns for a selection. MatchingCondition
// asks for patterns selecting exactly the given values, ContainingCondition
// accepts patterns selecting a superset. When more than one type succeeds, a
// Selector picks the pattern to use; it may block, for example to ask a
// human.
package pattern

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"src.cgv.sh/pkg/ast"
	"src.cgv.sh/pkg/interp"
)

// ErrNoPatternFound is returned when none of the pattern types could describe
// a selection. Supplying the ID type avoids it for matching patterns.
var ErrNoPatternFound = errors.New("no pattern found")

// Pattern describes a set of values.
type Pattern[T, A any] struct {
	Description string
	IsSelected  func(v interp.Value[T, A]) bool
	// GenerateStep builds a condition step that is true exactly for the
	// selected values. It is nil for patterns that select everything.
	GenerateStep func() ast.Step
	// Number of disjuncts of the condition.
	KeySize int
	// Number of values the pattern selects.
	SelectionSize int
}

// Type is a strategy for generating patterns. The methods return nil when the
// strategy cannot describe the selection.
type Type[T, A any] interface {
	// GenerateMatching returns a pattern selecting exactly the values in
	// selected.
	GenerateMatching(all, selected []interp.Value[T, A]) *Pattern[T, A]
	// GenerateContaining returns a pattern selecting at least the values in
	// selected.
	GenerateContaining(all, selected []interp.Value[T, A]) *Pattern[T, A]
}

// Selector chooses one of the candidate patterns, which are never empty.
type Selector[T, A any] func(ctx context.Context, candidates []*Pattern[T, A]) (*Pattern[T, A], error)

// SelectFirst is a Selector choosing the first candidate.
func SelectFirst[T, A any](ctx context.Context, candidates []*Pattern[T, A]) (*Pattern[T, A], error) {
	return candidates[0], nil
}

// SelectSmallest is a Selector choosing the candidate with the fewest
// disjuncts, the first one among equals.
func SelectSmallest[T, A any](ctx context.Context, candidates []*Pattern[T, A]) (*Pattern[T, A], error) {
	return slices.MinFunc(candidates, func(a, b *Pattern[T, A]) int {
		return cmp.Compare(a.KeySize, b.KeySize)
	}), nil
}

// AllPattern returns the pattern selecting every value.
func AllPattern[T, A any](size int) *Pattern[T, A] {
	return &Pattern[T, A]{
		Description:   "all",
		IsSelected:    func(interp.Value[T, A]) bool { return true },
		SelectionSize: size,
	}
}

// MatchingCondition returns a pattern selecting exactly the values in
// selected among all.
func MatchingCondition[T, A any](ctx context.Context, all, selected []interp.Value[T, A], types []Type[T, A], selector Selector[T, A]) (*Pattern[T, A], error) {
	return condition(ctx, all, selected, types, selector, Type[T, A].GenerateMatching)
}

// ContainingCondition returns a pattern selecting at least the values in
// selected among all.
func ContainingCondition[T, A any](ctx context.Context, all, selected []interp.Value[T, A], types []Type[T, A], selector Selector[T, A]) (*Pattern[T, A], error) {
	return condition(ctx, all, selected, types, selector, Type[T, A].GenerateContaining)
}

func condition[T, A any](ctx context.Context, all, selected []interp.Value[T, A], types []Type[T, A], selector Selector[T, A],
	generate func(Type[T, A], []interp.Value[T, A], []interp.Value[T, A]) *Pattern[T, A]) (*Pattern[T, A], error) {

	if SelectsAll(all, selected) {
		return AllPattern[T, A](len(all)), nil
	}
	var candidates []*Pattern[T, A]
	for _, t := range types {
		if p := generate(t, all, selected); p != nil {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w for %d of %d values", ErrNoPatternFound, len(selected), len(all))
	}
	return selector(ctx, candidates)
}

// SelectsAll reports whether selected contains every index present in all.
func SelectsAll[T, A any](all, selected []interp.Value[T, A]) bool {
	keys := make(map[string]bool, len(selected))
	for _, v := range selected {
		keys[v.Key()] = true
	}
	for _, v := range all {
		if !keys[v.Key()] {
			return false
		}
	}
	return true
}

// IsMatching reports whether newSelected holds the same indices as selected.
func IsMatching[T, A any](selected, newSelected []interp.Value[T, A]) bool {
	want := make(map[string]bool, len(selected))
	for _, v := range selected {
		want[v.Key()] = true
	}
	got := make(map[string]bool, len(newSelected))
	for _, v := range newSelected {
		if !want[v.Key()] {
			return false
		}
		got[v.Key()] = true
	}
	return len(got) == len(want)
}

// ComputePattern builds a pattern selecting all values whose key is the key of
// a selected value. Its condition is the disjunction of the conditions
// generated for one selected value per key, in ascending key order. It returns
// nil if selected is empty or check, when not nil, rejects the values the
// pattern would select.
func ComputePattern[T, A any, K cmp.Ordered](
	describe func(keys []K) string,
	all, selected []interp.Value[T, A],
	key func(interp.Value[T, A]) (K, bool),
	condition func(interp.Value[T, A]) ast.Step,
	check func(newSelected []interp.Value[T, A]) bool) *Pattern[T, A] {

	return ComputePatternFunc(cmp.Compare[K], describe, all, selected, key, condition, check)
}

// ComputePatternFunc is like ComputePattern, with keys ordered by compare.
func ComputePatternFunc[T, A any, K comparable](
	compare func(a, b K) int,
	describe func(keys []K) string,
	all, selected []interp.Value[T, A],
	key func(interp.Value[T, A]) (K, bool),
	condition func(interp.Value[T, A]) ast.Step,
	check func(newSelected []interp.Value[T, A]) bool) *Pattern[T, A] {

	byKey := make(map[K]interp.Value[T, A])
	for _, v := range selected {
		k, ok := key(v)
		if !ok {
			return nil
		}
		if _, seen := byKey[k]; !seen {
			byKey[k] = v
		}
	}
	if len(byKey) == 0 {
		return nil
	}
	keys := make([]K, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compare)

	isSelected := func(v interp.Value[T, A]) bool {
		k, ok := key(v)
		if !ok {
			return false
		}
		_, in := byKey[k]
		return in
	}
	var newSelected []interp.Value[T, A]
	for _, v := range all {
		if isSelected(v) {
			newSelected = append(newSelected, v)
		}
	}
	if check != nil && !check(newSelected) {
		return nil
	}
	return &Pattern[T, A]{
		Description: describe(keys),
		IsSelected:  isSelected,
		GenerateStep: func() ast.Step {
			var cond ast.Step
			for _, k := range keys {
				c := condition(byKey[k])
				if cond == nil {
					cond = c
				} else {
					cond = ast.NewBinary(ast.KindOr, cond, c)
				}
			}
			return cond
		},
		KeySize:       len(keys),
		SelectionSize: len(newSelected),
	}
}
