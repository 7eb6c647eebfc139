package matrix

import "fmt"

// ChangeType is the type of a Change.
type ChangeType uint8

// Possible values for ChangeType.
const (
	ChangeSet ChangeType = iota
	ChangeUnset
)

func (t ChangeType) String() string {
	switch t {
	case ChangeSet:
		return "SET"
	case ChangeUnset:
		return "UNSET"
	}
	return fmt.Sprintf("ChangeType(%d)", uint8(t))
}

// Change is an incremental edit of a matrix. Value is ignored for
// ChangeUnset.
type Change[T any] struct {
	Type  ChangeType
	Index []int
	Value T
}

// SetChange returns a ChangeSet change.
func SetChange[T any](index []int, v T) Change[T] {
	return Change[T]{Type: ChangeSet, Index: index, Value: v}
}

// UnsetChange returns a ChangeUnset change.
func UnsetChange[T any](index []int) Change[T] {
	return Change[T]{Type: ChangeUnset, Index: index}
}

func (c Change[T]) String() string {
	if c.Type == ChangeUnset {
		return fmt.Sprintf("UNSET(%v)", c.Index)
	}
	return fmt.Sprintf("SET(%v, %v)", c.Index, c.Value)
}

// Apply applies changes to m in order.
func Apply[T any](m Matrix[T], changes ...Change[T]) Matrix[T] {
	for _, c := range changes {
		switch c.Type {
		case ChangeSet:
			m = Set(m, c.Index, c.Value)
		case ChangeUnset:
			m = Unset(m, c.Index)
		}
	}
	return m
}

// Changes returns the SET changes that build m from the absent matrix, in
// lexicographic order of index paths.
func Changes[T any](m Matrix[T]) []Change[T] {
	var changes []Change[T]
	m.Each(func(index []int, v T) {
		changes = append(changes, SetChange(append([]int(nil), index...), v))
	})
	return changes
}
