package interp

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/xiaq/persistent/hash"
	"github.com/xiaq/persistent/hashmap"
)

// Value is one datum flowing through an interpretation.
//
// Values are never mutated once sent on a channel; stages derive new values
// with the helper methods, which copy what they change.
type Value[T, A any] struct {
	Raw T
	// Index locates the value among the fan-out branches that produced it.
	Index []int
	// Meta is arbitrary data attached by the caller and carried along.
	Meta A
	// Invalid fires when the value becomes stale. A nil Invalid never fires.
	Invalid *Invalid
	// Variables visible to steps reading this value.
	Variables map[string]*Variable[T]
	// SymbolDepth counts the invocations of each noun on the way to this
	// value.
	SymbolDepth SymbolDepth

	returned bool
}

// NewValue returns a value with the given payload and index, and no other
// attributes.
func NewValue[T, A any](raw T, index ...int) Value[T, A] {
	return Value[T, A]{Raw: raw, Index: index}
}

func (v Value[T, A]) withRaw(raw T) Value[T, A] {
	v.Raw = raw
	return v
}

// withIndex returns v with its index extended by i. The index slice is always
// copied so that siblings never share a backing array.
func (v Value[T, A]) withIndex(i ...int) Value[T, A] {
	index := make([]int, len(v.Index), len(v.Index)+len(i))
	copy(index, v.Index)
	v.Index = append(index, i...)
	return v
}

func (v Value[T, A]) withInvalid(inv *Invalid) Value[T, A] {
	v.Invalid = inv
	return v
}

// Key returns the index of the value as a comparable string, like "0,2".
func (v Value[T, A]) Key() string { return IndexKey(v.Index) }

// IndexKey renders an index path as comma-separated integers. The empty path
// is the empty string.
func IndexKey(index []int) string {
	var sb strings.Builder
	for i, n := range index {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(n))
	}
	return sb.String()
}

// CompareIndex compares two index paths lexicographically.
func CompareIndex(a, b []int) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

// Invalid is a one-shot signal that a value has become stale.
type Invalid struct {
	once sync.Once
	done chan struct{}
}

// NewInvalid returns a signal that has not fired.
func NewInvalid() *Invalid {
	return &Invalid{done: make(chan struct{})}
}

// Invalidate fires the signal. It is safe to call more than once, and on nil.
func (i *Invalid) Invalidate() {
	if i == nil {
		return
	}
	i.once.Do(func() { close(i.done) })
}

// Done returns a channel that is closed when the signal fires. It returns nil
// for a nil signal, so that receiving from it blocks forever.
func (i *Invalid) Done() <-chan struct{} {
	if i == nil {
		return nil
	}
	return i.done
}

// Invalidated reports whether the signal has fired.
func (i *Invalid) Invalidated() bool {
	if i == nil {
		return false
	}
	select {
	case <-i.done:
		return true
	default:
		return false
	}
}

// AnyOf returns a signal that fires as soon as any of the given signals fires.
// Nil signals are ignored; if there is only one distinct signal left, it is
// returned as is. The goroutines that watch the signals exit when ctx is done.
func AnyOf(ctx context.Context, signals ...*Invalid) *Invalid {
	var uniq []*Invalid
	for _, s := range signals {
		if s == nil {
			continue
		}
		if s.Invalidated() {
			return s
		}
		dup := false
		for _, u := range uniq {
			if u == s {
				dup = true
				break
			}
		}
		if !dup {
			uniq = append(uniq, s)
		}
	}
	switch len(uniq) {
	case 0:
		return nil
	case 1:
		return uniq[0]
	}
	combined := NewInvalid()
	for _, s := range uniq {
		go func(s *Invalid) {
			select {
			case <-s.done:
				combined.Invalidate()
			case <-combined.done:
			case <-ctx.Done():
			}
		}(s)
	}
	return combined
}

// Variable is a reactive cell read by get-variable steps.
type Variable[T any] struct {
	mutex  sync.Mutex
	value  T
	signal *Invalid
	closed bool
}

// NewVariable returns a variable that can be changed with Set.
func NewVariable[T any](initial T) *Variable[T] {
	return &Variable[T]{value: initial, signal: NewInvalid()}
}

// Constant returns a variable that never changes.
func Constant[T any](v T) *Variable[T] {
	return &Variable[T]{value: v, closed: true}
}

// Get returns the current value of the variable and a signal that fires when
// it changes. The signal is nil once the variable can no longer change.
func (v *Variable[T]) Get() (T, *Invalid) {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	return v.value, v.signal
}

// Set changes the value of the variable, firing the signal returned by the
// previous Get calls. It does nothing on a closed variable.
func (v *Variable[T]) Set(value T) {
	v.mutex.Lock()
	if v.closed {
		v.mutex.Unlock()
		return
	}
	old := v.signal
	v.value, v.signal = value, NewInvalid()
	v.mutex.Unlock()
	old.Invalidate()
}

// Close marks the variable as unchanging. Readers waiting for a change are
// woken up once more and then see a nil signal.
func (v *Variable[T]) Close() {
	v.mutex.Lock()
	if v.closed {
		v.mutex.Unlock()
		return
	}
	old := v.signal
	v.closed, v.signal = true, nil
	v.mutex.Unlock()
	old.Invalidate()
}

var emptyDepthMap = hashmap.New(
	func(a, b any) bool { return a == b },
	func(k any) uint32 { return hash.String(k.(string)) })

// SymbolDepth maps noun names to how many times they have been invoked. It is
// persistent: Inc returns a new map sharing structure with the old one. The
// zero value is empty.
type SymbolDepth struct{ m hashmap.Map }

// Get returns the depth of a noun.
func (d SymbolDepth) Get(noun string) int {
	if d.m == nil {
		return 0
	}
	if n, ok := d.m.Index(noun); ok {
		return n.(int)
	}
	return 0
}

// Inc returns a map where the depth of noun is one more.
func (d SymbolDepth) Inc(noun string) SymbolDepth {
	m := d.m
	if m == nil {
		m = emptyDepthMap
	}
	return SymbolDepth{m.Assoc(noun, d.Get(noun)+1)}
}

// Map returns the depths as a Go map.
func (d SymbolDepth) Map() map[string]int {
	result := make(map[string]int)
	if d.m == nil {
		return result
	}
	for it := d.m.Iterator(); it.HasElem(); it.Next() {
		k, v := it.Elem()
		result[k.(string)] = v.(int)
	}
	return result
}

// InterpretationValue is an argument or result of an operation. The event
// depth map counts, per originating index, how many upstream changes
// contributed to the value.
type InterpretationValue[T any] struct {
	Value         T
	EventDepthMap map[string]int
}

// MergeEventDepth returns the element-wise maximum of event depth maps. The
// arguments are not modified.
func MergeEventDepth(maps ...map[string]int) map[string]int {
	merged := make(map[string]int)
	for _, m := range maps {
		for k, n := range m {
			if cur, ok := merged[k]; !ok || n > cur {
				merged[k] = n
			}
		}
	}
	return merged
}
