package diag

import (
	"errors"
	"fmt"
	"io"
)

// Shower is implemented by errors that know how to show themselves.
type Shower interface {
	// Show returns the text shown for the error, indenting continuation lines
	// with indent.
	Show(indent string) string
}

// ShowError shows an error. It uses the Show method if the error
// implements Shower, and uses Complain to print the error message otherwise.
// Errors combining several errors are shown one by one.
func ShowError(w io.Writer, err error) {
	var multi interface{ Unwrap() []error }
	if errors.As(err, &multi) {
		if _, ok := err.(Shower); !ok {
			for _, e := range multi.Unwrap() {
				ShowError(w, e)
			}
			return
		}
	}
	if shower, ok := err.(Shower); ok {
		fmt.Fprintln(w, shower.Show(""))
	} else {
		Complain(w, err.Error())
	}
}

// Complain prints a message to w in bold and red, adding a trailing newline.
func Complain(w io.Writer, msg string) {
	fmt.Fprintf(w, "%s%s%s\n", messageStart, msg, messageEnd)
}

// Complainf is like Complain, but accepts a format string and arguments.
func Complainf(w io.Writer, format string, args ...any) {
	Complain(w, fmt.Sprintf(format, args...))
}
