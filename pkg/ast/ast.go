// Package ast defines the steps that grammars are built from.
//
// Steps form a closed set of variants. Each variant is a pointer to a struct
// type defined in this package; code that needs to handle every variant does
// so with a type switch, and panics in the default branch. Steps are immutable
// once constructed: edits build new steps along the edited path and share the
// rest of the tree (see ReplaceAt).
package ast

import "fmt"

// Kind identifies the variant of a step. It is also the "type" tag of the
// interchange format.
type Kind string

// Step kinds.
const (
	KindRaw         Kind = "raw"
	KindThis        Kind = "this"
	KindNull        Kind = "null"
	KindReturn      Kind = "return"
	KindSymbol      Kind = "symbol"
	KindOperation   Kind = "operation"
	KindSequential  Kind = "sequential"
	KindParallel    Kind = "parallel"
	KindRandom      Kind = "random"
	KindSwitch      Kind = "switch"
	KindIf          Kind = "if"
	KindGetVariable Kind = "get-variable"
	KindSetVariable Kind = "set-variable"

	KindAdd          Kind = "add"
	KindSubtract     Kind = "subtract"
	KindMultiply     Kind = "multiply"
	KindDivide       Kind = "divide"
	KindModulo       Kind = "modulo"
	KindEqual        Kind = "equal"
	KindUnequal      Kind = "unequal"
	KindSmaller      Kind = "smaller"
	KindSmallerEqual Kind = "smaller-equal"
	KindGreater      Kind = "greater"
	KindGreaterEqual Kind = "greater-equal"
	KindAnd          Kind = "and"
	KindOr           Kind = "or"

	KindNot    Kind = "not"
	KindInvert Kind = "invert"
)

var binaryKinds = map[Kind]bool{
	KindAdd: true, KindSubtract: true, KindMultiply: true, KindDivide: true,
	KindModulo: true, KindEqual: true, KindUnequal: true, KindSmaller: true,
	KindSmallerEqual: true, KindGreater: true, KindGreaterEqual: true,
	KindAnd: true, KindOr: true,
}

var unaryKinds = map[Kind]bool{KindNot: true, KindInvert: true}

// IsBinary reports whether k is the kind of a Binary step.
func IsBinary(k Kind) bool { return binaryKinds[k] }

// IsUnary reports whether k is the kind of a Unary step.
func IsUnary(k Kind) bool { return unaryKinds[k] }

// Step is a node of a grammar.
type Step interface {
	// Kind returns the variant tag of the step.
	Kind() Kind
	// Children returns a fresh slice of the child steps, in the order used by
	// paths.
	Children() []Step
	// WithChildren returns a copy of the step with its children replaced. It
	// panics if the number of children is not valid for the variant.
	WithChildren(children []Step) Step
	isStep()
}

// Raw is a literal constant.
type Raw struct{ Value any }

// This passes the current value through.
type This struct{}

// Null discards the current value.
type Null struct{}

// Return makes the current value skip the rest of the enclosing sequences, up
// to the end of the current noun.
type Return struct{}

// Symbol invokes the noun with the given name.
type Symbol struct{ Identifier string }

// GetVariable reads a variable visible to the current value.
type GetVariable struct{ Identifier string }

// SetVariable binds the first result of Value to a variable for everything
// downstream of the current value.
type SetVariable struct {
	Identifier string
	Value      Step
}

// Operation calls a named operation from the operation registry. Args are the
// evaluated arguments.
type Operation struct {
	Identifier string
	Args       []Step
}

// Sequential threads a value through Steps in order.
type Sequential struct{ Steps []Step }

// Parallel fans a value out to all Steps.
type Parallel struct{ Steps []Step }

// Random fans a value out to one of Steps, chosen with the weights in
// Probabilities. Both slices always have the same length.
type Random struct {
	Probabilities []float64
	Steps         []Step
}

// Switch evaluates Value and dispatches to the step whose case label equals
// the result. Cases and Steps always have the same length; a label equal to
// Default matches when no other label does.
type Switch struct {
	Value Step
	Cases []any
	Steps []Step
}

// If evaluates Cond and dispatches to Then or Else.
type If struct{ Cond, Then, Else Step }

// Binary is an arithmetic, comparison or logic operator with two operands.
type Binary struct {
	Op          Kind
	Left, Right Step
}

// Unary is an operator with one operand.
type Unary struct {
	Op      Kind
	Operand Step
}

// Default is the case label of a switch default case.
var Default any = defaultCase{}

type defaultCase struct{}

func (defaultCase) String() string { return "default" }

func (*Raw) isStep()         {}
func (*This) isStep()        {}
func (*Null) isStep()        {}
func (*Return) isStep()      {}
func (*Symbol) isStep()      {}
func (*GetVariable) isStep() {}
func (*SetVariable) isStep() {}
func (*Operation) isStep()   {}
func (*Sequential) isStep()  {}
func (*Parallel) isStep()    {}
func (*Random) isStep()      {}
func (*Switch) isStep()      {}
func (*If) isStep()          {}
func (*Binary) isStep()      {}
func (*Unary) isStep()       {}

func (*Raw) Kind() Kind         { return KindRaw }
func (*This) Kind() Kind        { return KindThis }
func (*Null) Kind() Kind        { return KindNull }
func (*Return) Kind() Kind      { return KindReturn }
func (*Symbol) Kind() Kind      { return KindSymbol }
func (*GetVariable) Kind() Kind { return KindGetVariable }
func (*SetVariable) Kind() Kind { return KindSetVariable }
func (*Operation) Kind() Kind   { return KindOperation }
func (*Sequential) Kind() Kind  { return KindSequential }
func (*Parallel) Kind() Kind    { return KindParallel }
func (*Random) Kind() Kind      { return KindRandom }
func (*Switch) Kind() Kind      { return KindSwitch }
func (*If) Kind() Kind          { return KindIf }
func (s *Binary) Kind() Kind    { return s.Op }
func (s *Unary) Kind() Kind     { return s.Op }

func (*Raw) Children() []Step         { return nil }
func (*This) Children() []Step        { return nil }
func (*Null) Children() []Step        { return nil }
func (*Return) Children() []Step      { return nil }
func (*Symbol) Children() []Step      { return nil }
func (*GetVariable) Children() []Step { return nil }
func (s *SetVariable) Children() []Step {
	return []Step{s.Value}
}
func (s *Operation) Children() []Step  { return clone(s.Args) }
func (s *Sequential) Children() []Step { return clone(s.Steps) }
func (s *Parallel) Children() []Step   { return clone(s.Steps) }
func (s *Random) Children() []Step     { return clone(s.Steps) }
func (s *Switch) Children() []Step {
	return append([]Step{s.Value}, s.Steps...)
}
func (s *If) Children() []Step     { return []Step{s.Cond, s.Then, s.Else} }
func (s *Binary) Children() []Step { return []Step{s.Left, s.Right} }
func (s *Unary) Children() []Step  { return []Step{s.Operand} }

func (s *Raw) WithChildren(c []Step) Step         { mustArity(s, c, 0); return s }
func (s *This) WithChildren(c []Step) Step        { mustArity(s, c, 0); return s }
func (s *Null) WithChildren(c []Step) Step        { mustArity(s, c, 0); return s }
func (s *Return) WithChildren(c []Step) Step      { mustArity(s, c, 0); return s }
func (s *Symbol) WithChildren(c []Step) Step      { mustArity(s, c, 0); return s }
func (s *GetVariable) WithChildren(c []Step) Step { mustArity(s, c, 0); return s }

func (s *SetVariable) WithChildren(c []Step) Step {
	mustArity(s, c, 1)
	return &SetVariable{s.Identifier, c[0]}
}

func (s *Operation) WithChildren(c []Step) Step {
	return &Operation{s.Identifier, clone(c)}
}

func (s *Sequential) WithChildren(c []Step) Step { return &Sequential{clone(c)} }
func (s *Parallel) WithChildren(c []Step) Step   { return &Parallel{clone(c)} }

func (s *Random) WithChildren(c []Step) Step {
	mustArity(s, c, len(s.Probabilities))
	return &Random{s.Probabilities, clone(c)}
}

func (s *Switch) WithChildren(c []Step) Step {
	mustArity(s, c, len(s.Cases)+1)
	return &Switch{c[0], s.Cases, clone(c[1:])}
}

func (s *If) WithChildren(c []Step) Step {
	mustArity(s, c, 3)
	return &If{c[0], c[1], c[2]}
}

func (s *Binary) WithChildren(c []Step) Step {
	mustArity(s, c, 2)
	return &Binary{s.Op, c[0], c[1]}
}

func (s *Unary) WithChildren(c []Step) Step {
	mustArity(s, c, 1)
	return &Unary{s.Op, c[0]}
}

func mustArity(s Step, c []Step, n int) {
	if len(c) != n {
		panic(fmt.Sprintf("%s step needs %d children, got %d", s.Kind(), n, len(c)))
	}
}

func clone(s []Step) []Step {
	if s == nil {
		return nil
	}
	return append([]Step(nil), s...)
}

// NewRaw returns a Raw step.
func NewRaw(v any) *Raw { return &Raw{v} }

// NewThis returns a This step.
func NewThis() *This { return &This{} }

// NewNull returns a Null step.
func NewNull() *Null { return &Null{} }

// NewSequential returns a Sequential step.
func NewSequential(steps ...Step) *Sequential { return &Sequential{steps} }

// NewParallel returns a Parallel step.
func NewParallel(steps ...Step) *Parallel { return &Parallel{steps} }

// NewOperation returns an Operation step.
func NewOperation(name string, args ...Step) *Operation {
	return &Operation{name, args}
}

// NewBinary returns a Binary step. It panics if op is not a binary kind.
func NewBinary(op Kind, left, right Step) *Binary {
	if !IsBinary(op) {
		panic("not a binary operator: " + string(op))
	}
	return &Binary{op, left, right}
}

// NewIf returns an If step.
func NewIf(cond, then, els Step) *If { return &If{cond, then, els} }
