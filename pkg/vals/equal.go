package vals

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Equaler wraps the Equal method.
type Equaler interface {
	// Equal compares the receiver to another value.
	Equal(other any) bool
}

// Equal returns whether two values are equal. Numbers compare by value
// regardless of representation, so 2 equals 2.0. Lists and maps compare
// element-wise. Types satisfying Equaler use their Equal method. For other
// types, it uses reflect.DeepEqual.
func Equal(x, y any) bool {
	if a, b, ok := UnifyNums2(x, y, FixInt); ok {
		return a == b
	}
	switch x := x.(type) {
	case nil:
		return y == nil
	case bool:
		return x == y
	case string:
		return x == y
	case Equaler:
		return x.Equal(y)
	case []any:
		yy, ok := y.([]any)
		if !ok || len(x) != len(yy) {
			return false
		}
		for i := range x {
			if !Equal(x[i], yy[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		yy, ok := y.(map[string]any)
		if !ok || len(x) != len(yy) {
			return false
		}
		for k, v := range x {
			if w, ok := yy[k]; !ok || !Equal(v, w) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(x, y)
}

// Truthy returns the boolean value of a value. nil, false, zero numbers and
// the empty string are false; everything else is true.
func Truthy(v any) bool {
	if n, ok := ToNum(v); ok {
		switch n := n.(type) {
		case int:
			return n != 0
		case float64:
			return n != 0
		}
	}
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	}
	return true
}

// Not returns the negation of the boolean value of v.
func Not(v any) bool { return !Truthy(v) }

// Compare compares two numbers or two strings, returning -1, 0 or 1.
func Compare(x, y any) (int, error) {
	if a, b, ok := UnifyNums2(x, y, FixInt); ok {
		if a, ok := a.(int); ok {
			return cmp3(a < b.(int), a > b.(int)), nil
		}
		af, bf := a.(float64), b.(float64)
		return cmp3(af < bf, af > bf), nil
	}
	if a, ok := x.(string); ok {
		if b, ok := y.(string); ok {
			return strings.Compare(a, b), nil
		}
	}
	return 0, fmt.Errorf("cannot compare %s and %s", Repr(x), Repr(y))
}

func cmp3(lt, gt bool) int {
	switch {
	case lt:
		return -1
	case gt:
		return 1
	}
	return 0
}

// ToString converts a value to a string. Strings are returned as is; numbers
// use the shortest representation that round-trips.
func ToString(v any) string {
	switch v := mustNum(v).(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case nil:
		return "null"
	}
	return fmt.Sprint(v)
}

// Repr returns a representation of a value suitable for error messages.
// Strings are quoted.
func Repr(v any) string {
	if s, ok := v.(string); ok {
		return strconv.Quote(s)
	}
	return ToString(v)
}
