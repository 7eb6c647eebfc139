// Package matrix implements the sparse nested container that holds the values
// produced by an interpretation, addressed by index path.
//
// A Matrix is either absent, a scalar, or a sequence of matrices. Matrices are
// persistent: Set and Unset return new matrices and share structure with the
// old one. Sequences never end with an absent element, and a sequence whose
// elements are all absent collapses to absent.
package matrix

import (
	"fmt"
	"strings"

	"github.com/xiaq/persistent/vector"

	"src.cgv.sh/pkg/vals"
)

type kind uint8

const (
	absent kind = iota
	scalar
	sequence
)

// Matrix is a sparse nested container of values of type T. The zero value is
// absent.
type Matrix[T any] struct {
	kind  kind
	value T
	// Elements are of type Matrix[T].
	seq vector.Vector
}

// Absent returns the absent matrix.
func Absent[T any]() Matrix[T] { return Matrix[T]{} }

// Scalar returns a matrix holding a single value at the empty index path.
func Scalar[T any](v T) Matrix[T] { return Matrix[T]{kind: scalar, value: v} }

// Of builds a matrix from a literal description. Each element is nil for an
// absent element, a Matrix[T], a []any describing a nested sequence, or a
// value of type T. The result is normalized.
func Of[T any](elems ...any) Matrix[T] {
	seq := vector.Empty
	for _, e := range elems {
		seq = seq.Cons(of[T](e))
	}
	return normalize(Matrix[T]{kind: sequence, seq: seq})
}

func of[T any](e any) Matrix[T] {
	switch e := e.(type) {
	case nil:
		return Matrix[T]{}
	case Matrix[T]:
		return e
	case []any:
		return Of[T](e...)
	case T:
		return Scalar(e)
	}
	panic(fmt.Sprintf("matrix.Of: bad element %v of type %T", e, e))
}

// IsAbsent reports whether m is absent.
func (m Matrix[T]) IsAbsent() bool { return m.kind == absent }

// Value returns the value of a scalar matrix, and false otherwise.
func (m Matrix[T]) Value() (T, bool) {
	return m.value, m.kind == scalar
}

// Len returns the number of elements of a sequence, and 0 otherwise.
func (m Matrix[T]) Len() int {
	if m.kind != sequence {
		return 0
	}
	return m.seq.Len()
}

// Elem returns the i-th element of a sequence. It returns the absent matrix if
// m is not a sequence or i is out of range.
func (m Matrix[T]) Elem(i int) Matrix[T] {
	if m.kind != sequence || i < 0 || i >= m.seq.Len() {
		return Matrix[T]{}
	}
	e, _ := m.seq.Index(i)
	return e.(Matrix[T])
}

// Set returns a matrix where the element at index is the scalar v. Missing
// sequence levels are created, with absent siblings; a scalar on the way is
// replaced.
func Set[T any](m Matrix[T], index []int, v T) Matrix[T] {
	if len(index) == 0 {
		return Scalar(v)
	}
	i := index[0]
	seq := vector.Empty
	if m.kind == sequence {
		seq = m.seq
	}
	for seq.Len() <= i {
		seq = seq.Cons(Matrix[T]{})
	}
	old, _ := seq.Index(i)
	return Matrix[T]{kind: sequence, seq: seq.Assoc(i, Set(old.(Matrix[T]), index[1:], v))}
}

// Unset returns a matrix where the element at index is absent. Sequences that
// end up with trailing absent elements are trimmed, and empty sequences
// collapse to absent. Unsetting a path that is already absent returns m.
func Unset[T any](m Matrix[T], index []int) Matrix[T] {
	if len(index) == 0 {
		return Matrix[T]{}
	}
	i := index[0]
	if m.kind != sequence || i >= m.seq.Len() {
		return m
	}
	old, _ := m.seq.Index(i)
	elem := Unset(old.(Matrix[T]), index[1:])
	if elem.kind == absent && old.(Matrix[T]).kind == absent {
		return m
	}
	return trim(Matrix[T]{kind: sequence, seq: m.seq.Assoc(i, elem)})
}

func trim[T any](m Matrix[T]) Matrix[T] {
	seq := m.seq
	for seq.Len() > 0 {
		last, _ := seq.Index(seq.Len() - 1)
		if last.(Matrix[T]).kind != absent {
			break
		}
		seq = seq.Pop()
	}
	if seq.Len() == 0 {
		return Matrix[T]{}
	}
	return Matrix[T]{kind: sequence, seq: seq}
}

// Normalize returns a matrix equal to m that satisfies the structural
// invariants: no trailing absent elements at any depth, and no empty
// sequences.
func Normalize[T any](m Matrix[T]) Matrix[T] { return normalize(m) }

func normalize[T any](m Matrix[T]) Matrix[T] {
	if m.kind != sequence {
		return m
	}
	seq := vector.Empty
	for it := m.seq.Iterator(); it.HasElem(); it.Next() {
		seq = seq.Cons(normalize(it.Elem().(Matrix[T])))
	}
	return trim(Matrix[T]{kind: sequence, seq: seq})
}

// Get returns the value at index, and false if there is no scalar there.
func (m Matrix[T]) Get(index []int) (T, bool) {
	for _, i := range index {
		m = m.Elem(i)
	}
	return m.Value()
}

// Equal reports whether two matrices hold equal values at the same index
// paths. Both matrices are normalized before comparison; scalars are compared
// with vals.Equal.
func (m Matrix[T]) Equal(o Matrix[T]) bool {
	return equal(normalize(m), normalize(o))
}

func equal[T any](a, b Matrix[T]) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case scalar:
		return vals.Equal(any(a.value), any(b.value))
	case sequence:
		if a.seq.Len() != b.seq.Len() {
			return false
		}
		for i := 0; i < a.seq.Len(); i++ {
			if !equal(a.Elem(i), b.Elem(i)) {
				return false
			}
		}
	}
	return true
}

// Each calls f for every scalar of m, in lexicographic order of index paths.
// The index slice passed to f must not be retained.
func (m Matrix[T]) Each(f func(index []int, v T)) {
	each(m, nil, f)
}

func each[T any](m Matrix[T], index []int, f func([]int, T)) {
	switch m.kind {
	case scalar:
		f(index, m.value)
	case sequence:
		for i := 0; i < m.seq.Len(); i++ {
			each(m.Elem(i), append(index, i), f)
		}
	}
}

// String renders the matrix with "_" for absent elements, like "[_,_,7]".
func (m Matrix[T]) String() string {
	var sb strings.Builder
	write(&sb, m)
	return sb.String()
}

func write[T any](sb *strings.Builder, m Matrix[T]) {
	switch m.kind {
	case absent:
		sb.WriteByte('_')
	case scalar:
		fmt.Fprint(sb, m.value)
	case sequence:
		sb.WriteByte('[')
		for i := 0; i < m.seq.Len(); i++ {
			if i > 0 {
				sb.WriteByte(',')
			}
			write(sb, m.Elem(i))
		}
		sb.WriteByte(']')
	}
}
