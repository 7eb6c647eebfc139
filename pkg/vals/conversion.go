package vals

import (
	"fmt"
	"reflect"

	"src.cgv.sh/pkg/errs"
)

// To converts a dynamic value back to a payload of type T. Values that
// already have type T are returned as is; numbers convert between numeric
// types, and booleans convert to 1 and 0 when T is numeric.
func To[T any](v any) (T, error) {
	if t, ok := v.(T); ok {
		return t, nil
	}
	var zero T
	target := reflect.TypeOf(&zero).Elem()
	if b, ok := v.(bool); ok && isNumKind(target.Kind()) {
		v = 0
		if b {
			v = 1
		}
	}
	if n, ok := ToNum(v); ok && isNumKind(target.Kind()) {
		return reflect.ValueOf(n).Convert(target).Interface().(T), nil
	}
	if v == nil && target.Kind() == reflect.Interface {
		return zero, nil
	}
	return zero, errs.BadValue{
		What: "value", Valid: fmt.Sprintf("%v", target), Actual: Repr(v)}
}

func isNumKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
