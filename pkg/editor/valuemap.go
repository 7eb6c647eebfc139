package editor

import (
	"slices"
	"sync"

	"src.cgv.sh/pkg/ast"
	"src.cgv.sh/pkg/interp"
)

// ValueMap records the values entering every step during interpretations. It
// implements interp.Recorder and is safe for concurrent use.
type ValueMap[T, A any] struct {
	mutex sync.Mutex
	// Path -> index key -> latest value.
	values map[string]map[string]interp.Value[T, A]
}

// NewValueMap returns an empty ValueMap.
func NewValueMap[T, A any]() *ValueMap[T, A] {
	return &ValueMap[T, A]{values: make(map[string]map[string]interp.Value[T, A])}
}

// Record records a value entering the step at p, replacing an earlier value
// with the same index.
func (m *ValueMap[T, A]) Record(p ast.Path, v interp.Value[T, A]) {
	key := p.String()
	m.mutex.Lock()
	defer m.mutex.Unlock()
	byIndex, ok := m.values[key]
	if !ok {
		byIndex = make(map[string]interp.Value[T, A])
		m.values[key] = byIndex
	}
	byIndex[v.Key()] = v
}

// Values returns the values that entered the step at p and are still valid,
// ordered by index.
func (m *ValueMap[T, A]) Values(p ast.Path) []interp.Value[T, A] {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	var values []interp.Value[T, A]
	for _, v := range m.values[p.String()] {
		if !v.Invalid.Invalidated() {
			values = append(values, v)
		}
	}
	slices.SortFunc(values, func(a, b interp.Value[T, A]) int { return interp.CompareIndex(a.Index, b.Index) })
	return values
}

// Reset forgets all values. Paths change with every edit, so the map must be
// reset once the grammar it was recorded for is replaced.
func (m *ValueMap[T, A]) Reset() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.values = make(map[string]map[string]interp.Value[T, A])
}

// Selection is a set of values selected at one step.
type Selection[T, A any] struct {
	Path ast.Path
	// Values selected at Path. Nil selects all values recorded at Path.
	Values []interp.Value[T, A]
}
