package errs

import (
	"testing"
)

var errorMessageTests = []struct {
	err     error
	wantMsg string
}{
	{
		SymbolDepthExceeded{Noun: "a", Max: 50},
		`maximum symbol depth (50) reached for symbol "a"`,
	},
	{UnknownSymbol{Name: "b"}, `unknown symbol "b"`},
	{UnknownOperation{Name: "drive"}, `unknown operation "drive"`},
	{UnknownVariable{Name: "x"}, `unknown variable "x"`},
	{
		BadValue{What: "divisor", Valid: "non-zero", Actual: "0"},
		"bad value: divisor must be non-zero, but is 0",
	},
	{
		ArityMismatch{What: "arguments of sum", ValidLow: 1, ValidHigh: 1, Actual: 2},
		"arity mismatch: arguments of sum must be 1 value, but is 2 values",
	},
	{
		ArityMismatch{What: "arguments", ValidLow: 2, ValidHigh: -1, Actual: 1},
		"arity mismatch: arguments must be 2 or more values, but is 1 value",
	},
	{
		ArityMismatch{What: "arguments", ValidLow: 2, ValidHigh: 3, Actual: 1},
		"arity mismatch: arguments must be 2 to 3 values, but is 1 value",
	},
}

func TestErrorMessages(t *testing.T) {
	for _, test := range errorMessageTests {
		if gotMsg := test.err.Error(); gotMsg != test.wantMsg {
			t.Errorf("got message %v, want %v", gotMsg, test.wantMsg)
		}
	}
}
