package interp

import (
	"context"

	"src.cgv.sh/pkg/ast"
)

// Operation is an entry of the operation registry.
type Operation[T, A any] struct {
	// Execute runs the operation for one call site.
	Execute Execution[T, A]
	// DefaultParameters[i] builds the step substituted for argument i when
	// the argument is removed. It may be shorter than the argument list, and
	// elements may be nil.
	DefaultParameters []func() ast.Step
	// IncludeThis prepends the current value to the arguments.
	IncludeThis bool
	// ChangesTime makes the results of the operation carry a fresh validity
	// signal instead of the one of the call.
	ChangesTime bool
}

// Site describes a call site of an operation.
type Site struct {
	// Path of the operation step.
	Path ast.Path
	// BatchSize bounds how many pending calls a reducing operation may
	// combine.
	BatchSize int
}

// Call is one invocation of an operation: the value reaching the call site
// and the evaluated arguments.
type Call[T, A any] struct {
	Value Value[T, A]
	Args  []InterpretationValue[T]
}

// Result is the outcome of one or more calls. Value determines the index and
// validity of the outputs; each element of Results becomes one output value.
type Result[T, A any] struct {
	Value   Value[T, A]
	Results []InterpretationValue[T]
}

// Execution runs an operation at one call site. It reads calls until the
// channel is closed and writes results; it must not close results. Returning
// a non-nil error aborts the interpretation.
type Execution[T, A any] func(ctx context.Context, site Site, calls <-chan Call[T, A], results chan<- Result[T, A]) error

// SimpleExecution builds an Execution that maps each call to zero or more
// results independently.
func SimpleExecution[T, A any](f func(c Call[T, A]) ([]InterpretationValue[T], error)) Execution[T, A] {
	return func(ctx context.Context, site Site, calls <-chan Call[T, A], results chan<- Result[T, A]) error {
		for c := range calls {
			out, err := f(c)
			if err != nil {
				return err
			}
			select {
			case results <- Result[T, A]{c.Value, out}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}
}

// Operations is the operation registry.
type Operations[T, A any] map[string]*Operation[T, A]

// Has reports whether an operation is registered.
func (ops Operations[T, A]) Has(name string) bool {
	_, ok := ops[name]
	return ok
}

// DefaultParameter returns the default step for argument i of the named
// operation, and false if the operation is unknown. The step is nil if no
// default is registered for the position.
func (ops Operations[T, A]) DefaultParameter(name string, i int) (ast.Step, bool) {
	op, ok := ops[name]
	if !ok {
		return nil, false
	}
	if i < len(op.DefaultParameters) && op.DefaultParameters[i] != nil {
		return op.DefaultParameters[i](), true
	}
	return nil, true
}
