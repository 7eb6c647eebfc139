package ast

import (
	"fmt"
	"strconv"
	"strings"
)

var binarySymbols = map[Kind]string{
	KindAdd: "+", KindSubtract: "-", KindMultiply: "*", KindDivide: "/",
	KindModulo: "%", KindEqual: "==", KindUnequal: "!=", KindSmaller: "<",
	KindSmallerEqual: "<=", KindGreater: ">", KindGreaterEqual: ">=",
	KindAnd: "&&", KindOr: "||",
}

// Format renders a step in a compact, human readable notation. The notation is
// for diagnostics and descriptions only and is not meant to be parsed back.
func Format(step Step) string {
	var sb strings.Builder
	format(&sb, step, top)
	return sb.String()
}

// Format renders a grammar one noun per line, in the form "name --> step".
func (g Grammar) Format() string {
	var sb strings.Builder
	for i, n := range g {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(n.Name)
		sb.WriteString(" --> ")
		format(&sb, n.Step, top)
	}
	return sb.String()
}

// Nesting levels of a step being formatted. Lists are parenthesized unless at
// the top; operators only when they are operands themselves.
const (
	top = iota
	element
	operand
)

func format(sb *strings.Builder, step Step, level int) {
	switch step := step.(type) {
	case *Raw:
		sb.WriteString(FormatValue(step.Value))
	case *This, *Null, *Return:
		sb.WriteString(string(step.Kind()))
	case *Symbol:
		sb.WriteString(step.Identifier)
	case *GetVariable:
		sb.WriteString("$" + step.Identifier)
	case *SetVariable:
		sb.WriteString("$" + step.Identifier + " = ")
		format(sb, step.Value, element)
	case *Operation:
		sb.WriteString(step.Identifier)
		sb.WriteByte('(')
		for i, arg := range step.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			format(sb, arg, top)
		}
		sb.WriteByte(')')
	case *Sequential:
		formatList(sb, step.Steps, " -> ", level)
	case *Parallel:
		formatList(sb, step.Steps, " | ", level)
	case *Random:
		sb.WriteString("{ ")
		for i, s := range step.Steps {
			fmt.Fprintf(sb, "%s%%: ", strconv.FormatFloat(step.Probabilities[i]*100, 'f', -1, 64))
			format(sb, s, element)
			sb.WriteByte(' ')
		}
		sb.WriteByte('}')
	case *Switch:
		sb.WriteString("switch ")
		format(sb, step.Value, element)
		sb.WriteString(" { ")
		for i, s := range step.Steps {
			if step.Cases[i] == Default {
				sb.WriteString("default: ")
			} else {
				sb.WriteString("case " + FormatValue(step.Cases[i]) + ": ")
			}
			format(sb, s, element)
			sb.WriteByte(' ')
		}
		sb.WriteByte('}')
	case *If:
		sb.WriteString("if ")
		format(sb, step.Cond, element)
		sb.WriteString(" then { ")
		format(sb, step.Then, top)
		sb.WriteString(" } else { ")
		format(sb, step.Else, top)
		sb.WriteString(" }")
	case *Binary:
		if level == operand {
			sb.WriteByte('(')
		}
		format(sb, step.Left, operand)
		sb.WriteString(" " + binarySymbols[step.Op] + " ")
		format(sb, step.Right, operand)
		if level == operand {
			sb.WriteByte(')')
		}
	case *Unary:
		if step.Op == KindNot {
			sb.WriteByte('!')
		} else {
			sb.WriteByte('-')
		}
		format(sb, step.Operand, operand)
	default:
		panic(fmt.Sprintf("unknown step type %T", step))
	}
}

func formatList(sb *strings.Builder, steps []Step, sep string, level int) {
	if level != top {
		sb.WriteByte('(')
	}
	for i, s := range steps {
		if i > 0 {
			sb.WriteString(sep)
		}
		format(sb, s, element)
	}
	if level != top {
		sb.WriteByte(')')
	}
}

// FormatValue renders a literal value; strings are quoted.
func FormatValue(v any) string {
	switch v := v.(type) {
	case string:
		return strconv.Quote(v)
	case nil:
		return "null"
	}
	return fmt.Sprint(v)
}
