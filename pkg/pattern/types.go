package pattern

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"src.cgv.sh/pkg/ast"
	"src.cgv.sh/pkg/interp"
)

// All is the type of the pattern selecting everything. Its matching pattern is
// only generated when the selection is complete.
type All[T, A any] struct{}

func (All[T, A]) GenerateMatching(all, selected []interp.Value[T, A]) *Pattern[T, A] {
	if !SelectsAll(all, selected) {
		return nil
	}
	return AllPattern[T, A](len(all))
}

func (All[T, A]) GenerateContaining(all, selected []interp.Value[T, A]) *Pattern[T, A] {
	return AllPattern[T, A](len(all))
}

// IndexModulo selects values by the remainder of the last segment of their
// index divided by a modulo. The modulo candidates are the smallest selected
// segment plus one and the gap between the two smallest selected segments.
type IndexModulo[T, A any] struct{}

func (IndexModulo[T, A]) GenerateMatching(all, selected []interp.Value[T, A]) *Pattern[T, A] {
	return bestModuloPattern(all, selected,
		func(newSelected []interp.Value[T, A]) bool { return IsMatching(selected, newSelected) },
		func(p, best *Pattern[T, A]) bool { return p.KeySize < best.KeySize })
}

func (IndexModulo[T, A]) GenerateContaining(all, selected []interp.Value[T, A]) *Pattern[T, A] {
	return bestModuloPattern(all, selected, nil,
		func(p, best *Pattern[T, A]) bool { return p.SelectionSize > best.SelectionSize })
}

func bestModuloPattern[T, A any](all, selected []interp.Value[T, A], check func([]interp.Value[T, A]) bool, better func(p, best *Pattern[T, A]) bool) *Pattern[T, A] {
	indices := distinctLastSegments(selected)
	if len(indices) == 0 {
		return nil
	}
	modulos := []int{indices[0] + 1}
	// A gap needs two distinct segments.
	if len(indices) >= 2 {
		modulos = append(modulos, indices[1]-indices[0])
	}
	var best *Pattern[T, A]
	for _, m := range modulos {
		p := moduloPattern(all, selected, m, check)
		if p != nil && (best == nil || better(p, best)) {
			best = p
		}
	}
	return best
}

func moduloPattern[T, A any](all, selected []interp.Value[T, A], modulo int, check func([]interp.Value[T, A]) bool) *Pattern[T, A] {
	return ComputePattern(
		func(keys []int) string {
			return fmt.Sprintf("index %% %d is in %s", modulo, joinInts(keys))
		},
		all, selected,
		func(v interp.Value[T, A]) (int, bool) {
			i, ok := lastSegment(v)
			return i % modulo, ok
		},
		func(v interp.Value[T, A]) ast.Step {
			i, _ := lastSegment(v)
			return ast.NewBinary(ast.KindEqual,
				ast.NewBinary(ast.KindModulo, ast.NewOperation("index"), ast.NewRaw(modulo)),
				ast.NewRaw(i%modulo))
		},
		check)
}

func lastSegment[T, A any](v interp.Value[T, A]) (int, bool) {
	if len(v.Index) == 0 {
		return 0, false
	}
	return v.Index[len(v.Index)-1], true
}

func distinctLastSegments[T, A any](values []interp.Value[T, A]) []int {
	var indices []int
	for _, v := range values {
		if i, ok := lastSegment(v); ok {
			indices = append(indices, i)
		}
	}
	slices.Sort(indices)
	return slices.Compact(indices)
}

func joinInts(ints []int) string {
	strs := make([]string, len(ints))
	for i, n := range ints {
		strs[i] = strconv.Itoa(n)
	}
	return strings.Join(strs, ", ")
}

// ID selects values by their whole index. It distinguishes any selection,
// but has no containing patterns. Conditions list the indices in index order.
type ID[T, A any] struct{}

func (ID[T, A]) GenerateMatching(all, selected []interp.Value[T, A]) *Pattern[T, A] {
	return ComputePatternFunc(compareKeys,
		func(keys []string) string { return "id is in " + strings.Join(keys, "; ") },
		all, selected,
		func(v interp.Value[T, A]) (string, bool) { return v.Key(), true },
		func(v interp.Value[T, A]) ast.Step {
			return ast.NewBinary(ast.KindEqual, ast.NewOperation("id"), ast.NewRaw(v.Key()))
		},
		func(newSelected []interp.Value[T, A]) bool { return IsMatching(selected, newSelected) })
}

func (ID[T, A]) GenerateContaining(all, selected []interp.Value[T, A]) *Pattern[T, A] {
	return nil
}

// compareKeys compares two index keys as the indices they encode.
func compareKeys(a, b string) int {
	return interp.CompareIndex(parseKey(a), parseKey(b))
}

func parseKey(key string) []int {
	if key == "" {
		return nil
	}
	fields := strings.Split(key, ",")
	index := make([]int, len(fields))
	for i, f := range fields {
		index[i], _ = strconv.Atoi(f)
	}
	return index
}
