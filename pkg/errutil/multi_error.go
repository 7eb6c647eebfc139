// Package errutil contains utilities for working with errors.
package errutil

import "strings"

// Multi combines the non-nil errors among errs. It returns nil when there are
// none and the error itself when there is exactly one. Results of earlier
// calls are flattened, so Multi(Multi(a, b), c) is the same as Multi(a, b, c).
//
// The combined error supports errors.Is and errors.As on each of its parts;
// validation of a grammar uses it to report every problem at once.
func Multi(errs ...error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			if multi, ok := err.(multiError); ok {
				nonNil = append(nonNil, multi...)
			} else {
				nonNil = append(nonNil, err)
			}
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	default:
		return multiError(nonNil)
	}
}

// Errors returns the parts of an error returned by Multi, or a slice
// containing just err otherwise. It returns nil for a nil error.
func Errors(err error) []error {
	if err == nil {
		return nil
	}
	if multi, ok := err.(multiError); ok {
		return append([]error(nil), multi...)
	}
	return []error{err}
}

type multiError []error

func (me multiError) Error() string {
	var sb strings.Builder
	sb.WriteString("multiple errors: ")
	for i, e := range me {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(e.Error())
	}
	return sb.String()
}

func (me multiError) Unwrap() []error { return me }
