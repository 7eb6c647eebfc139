// Package vals contains the algebra of the dynamic payloads flowing through
// an interpretation: numbers, strings, booleans and lists of them.
package vals

import (
	"fmt"
	"math"

	"src.cgv.sh/pkg/errs"
)

// NumType identifies the representation of a number.
type NumType uint8

// Precedence used for unifying number types.
const (
	NotNum NumType = iota
	FixInt
	Float64
)

// ToNum converts any Go integer or floating point value to int or float64. It
// returns false for all other values.
func ToNum(v any) (any, bool) {
	switch v := v.(type) {
	case int:
		return v, true
	case int8:
		return int(v), true
	case int16:
		return int(v), true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case uint:
		return int(v), true
	case uint8:
		return int(v), true
	case uint16:
		return int(v), true
	case uint32:
		return int(v), true
	case uint64:
		return int(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return nil, false
}

func getNumType(v any) NumType {
	switch v.(type) {
	case int:
		return FixInt
	case float64:
		return Float64
	}
	return NotNum
}

// UnifyNums2 converts two values to numbers of the same type, which is the
// higher of their types and at least typ. It returns false if either value is
// not a number.
func UnifyNums2(x, y any, typ NumType) (any, any, bool) {
	x, okx := ToNum(x)
	y, oky := ToNum(y)
	if !okx || !oky {
		return nil, nil, false
	}
	if t := getNumType(x); t > typ {
		typ = t
	}
	if t := getNumType(y); t > typ {
		typ = t
	}
	if typ == Float64 {
		return toFloat64(x), toFloat64(y), true
	}
	return x, y, true
}

func toFloat64(v any) float64 {
	if i, ok := v.(int); ok {
		return float64(i)
	}
	return v.(float64)
}

// Add adds two numbers, or concatenates the string forms of two values if
// either one is a string.
func Add(x, y any) (any, error) {
	_, xs := x.(string)
	_, ys := y.(string)
	if xs || ys {
		return ToString(x) + ToString(y), nil
	}
	return arith(x, y, "+",
		func(a, b int) int { return a + b },
		func(a, b float64) float64 { return a + b })
}

// Sub subtracts y from x.
func Sub(x, y any) (any, error) {
	return arith(x, y, "-",
		func(a, b int) int { return a - b },
		func(a, b float64) float64 { return a - b })
}

// Mul multiplies two numbers.
func Mul(x, y any) (any, error) {
	return arith(x, y, "*",
		func(a, b int) int { return a * b },
		func(a, b float64) float64 { return a * b })
}

// Div divides x by y. The result is always a float64; dividing by zero yields
// an infinity or NaN.
func Div(x, y any) (any, error) {
	return arith(x, y, "/", nil,
		func(a, b float64) float64 { return a / b })
}

// Mod returns the remainder of x divided by y, with the sign of x. It is an
// error to take the integer remainder of a division by zero.
func Mod(x, y any) (any, error) {
	if a, b, ok := UnifyNums2(x, y, FixInt); ok {
		if b, ok := b.(int); ok {
			if b == 0 {
				return nil, errs.BadValue{What: "divisor", Valid: "non-zero", Actual: "0"}
			}
			return a.(int) % b, nil
		}
	}
	return arith(x, y, "%", nil, math.Mod)
}

// Neg negates a number.
func Neg(x any) (any, error) {
	switch x := mustNum(x).(type) {
	case int:
		return -x, nil
	case float64:
		return -x, nil
	}
	return nil, errs.BadValue{What: "operand of -", Valid: "number", Actual: Repr(x)}
}

func mustNum(x any) any {
	if n, ok := ToNum(x); ok {
		return n
	}
	return x
}

func arith(x, y any, op string, fi func(a, b int) int, ff func(a, b float64) float64) (any, error) {
	typ := FixInt
	if fi == nil {
		typ = Float64
	}
	a, b, ok := UnifyNums2(x, y, typ)
	if !ok {
		bad := x
		if _, ok := ToNum(x); ok {
			bad = y
		}
		return nil, errs.BadValue{
			What: fmt.Sprintf("operand of %s", op), Valid: "number", Actual: Repr(bad)}
	}
	if a, ok := a.(int); ok {
		return fi(a, b.(int)), nil
	}
	return ff(a.(float64), b.(float64)), nil
}
