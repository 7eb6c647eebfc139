// Package errs contains reusable error types raised by the interpreter.
package errs

import "fmt"

// SymbolDepthExceeded is raised when a symbol reference would push the
// recursion depth of a noun past the configured maximum.
type SymbolDepthExceeded struct {
	Noun string
	Max  int
}

func (e SymbolDepthExceeded) Error() string {
	return fmt.Sprintf("maximum symbol depth (%d) reached for symbol %q", e.Max, e.Noun)
}

// UnknownSymbol is raised when a symbol reference names a noun that is not in
// the grammar.
type UnknownSymbol struct {
	Name string
}

func (e UnknownSymbol) Error() string {
	return fmt.Sprintf("unknown symbol %q", e.Name)
}

// UnknownOperation is raised when an operation step names an operation that
// is not registered.
type UnknownOperation struct {
	Name string
}

func (e UnknownOperation) Error() string {
	return fmt.Sprintf("unknown operation %q", e.Name)
}

// UnknownVariable is raised when a value reads a variable that is not visible
// to it.
type UnknownVariable struct {
	Name string
}

func (e UnknownVariable) Error() string {
	return fmt.Sprintf("unknown variable %q", e.Name)
}

// BadValue is raised when an operator or operation receives a value it can't
// handle.
type BadValue struct {
	What   string
	Valid  string
	Actual string
}

func (e BadValue) Error() string {
	return fmt.Sprintf("bad value: %v must be %v, but is %v", e.What, e.Valid, e.Actual)
}

// ArityMismatch is raised when an operation is called with the wrong number
// of arguments.
type ArityMismatch struct {
	What     string
	ValidLow int
	// -1 means no upper bound.
	ValidHigh int
	Actual    int
}

func (e ArityMismatch) Error() string {
	switch {
	case e.ValidHigh == e.ValidLow:
		return fmt.Sprintf("arity mismatch: %v must be %v, but is %v",
			e.What, nValues(e.ValidLow), nValues(e.Actual))
	case e.ValidHigh == -1:
		return fmt.Sprintf("arity mismatch: %v must be %v or more values, but is %v",
			e.What, e.ValidLow, nValues(e.Actual))
	default:
		return fmt.Sprintf("arity mismatch: %v must be %v to %v values, but is %v",
			e.What, e.ValidLow, e.ValidHigh, nValues(e.Actual))
	}
}

func nValues(n int) string {
	if n == 1 {
		return "1 value"
	}
	return fmt.Sprintf("%d values", n)
}
