// Package diag formats errors that point at a step of a grammar.
package diag

import (
	"fmt"
	"strings"

	"src.cgv.sh/pkg/ast"
)

// Error represents an error attached to a step of a grammar that can be
// showed.
type Error struct {
	Type    string
	Message string
	Context ast.Path
	// The underlying error, if any. It is reachable with errors.Is and
	// errors.As.
	Cause error
}

// New returns an Error wrapping cause. The message is taken from cause.
func New(typ string, p ast.Path, cause error) *Error {
	return &Error{Type: typ, Message: cause.Error(), Context: p, Cause: cause}
}

// Error returns a plain text representation of the error.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Type, e.Context, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Cause }

// Show shows the error.
func (e *Error) Show(indent string) string {
	return fmt.Sprintf("%s: %s%s%s\n%s  at %s",
		title(e.Type), messageStart, e.Message, messageEnd, indent, e.Context)
}

// Variables controlling the style of the message, changed in tests and when
// the output is not a terminal.
var (
	messageStart = "\033[31;1m"
	messageEnd   = "\033[m"
)

// SetColor turns the ANSI styling of shown errors on or off.
func SetColor(on bool) {
	if on {
		messageStart, messageEnd = "\033[31;1m", "\033[m"
	} else {
		messageStart, messageEnd = "", ""
	}
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
