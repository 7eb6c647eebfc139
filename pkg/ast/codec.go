package ast

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"gopkg.in/yaml.v3"
)

// Record is the interchange form of a step, a plain nested record exchanged
// with grammar parsers, printers and editor front ends.
type Record struct {
	Type          Kind      `json:"type" yaml:"type"`
	Children      []*Record `json:"children,omitempty" yaml:"children,omitempty"`
	Identifier    string    `json:"identifier,omitempty" yaml:"identifier,omitempty"`
	Value         any       `json:"value,omitempty" yaml:"value,omitempty"`
	Probabilities []float64 `json:"probabilities,omitempty" yaml:"probabilities,omitempty"`
	Cases         []any     `json:"cases,omitempty" yaml:"cases,omitempty"`
}

// NounRecord is the interchange form of a noun.
type NounRecord struct {
	Name string  `json:"name" yaml:"name"`
	Step *Record `json:"step" yaml:"step"`
}

// ToRecord converts a step to its interchange form.
func ToRecord(step Step) *Record {
	r := &Record{Type: step.Kind()}
	for _, child := range step.Children() {
		r.Children = append(r.Children, ToRecord(child))
	}
	switch step := step.(type) {
	case *Raw:
		r.Value = step.Value
	case *Symbol:
		r.Identifier = step.Identifier
	case *GetVariable:
		r.Identifier = step.Identifier
	case *SetVariable:
		r.Identifier = step.Identifier
	case *Operation:
		r.Identifier = step.Identifier
	case *Random:
		r.Probabilities = step.Probabilities
	case *Switch:
		r.Cases = make([]any, len(step.Cases))
		for i, c := range step.Cases {
			if c == Default {
				r.Cases[i] = map[string]any{"default": true}
			} else {
				r.Cases[i] = c
			}
		}
	}
	return r
}

// FromRecord converts an interchange record to a step, validating the kind
// and the number of children.
func FromRecord(r *Record) (Step, error) {
	if r == nil {
		return nil, fmt.Errorf("missing step")
	}
	children := make([]Step, len(r.Children))
	for i, c := range r.Children {
		child, err := FromRecord(c)
		if err != nil {
			return nil, err
		}
		children[i] = child
	}
	arity := func(n int) error {
		if len(children) != n {
			return fmt.Errorf("%s step needs %d children, got %d", r.Type, n, len(children))
		}
		return nil
	}
	needIdentifier := func() error {
		if r.Identifier == "" {
			return fmt.Errorf("%s step needs an identifier", r.Type)
		}
		return arity(0)
	}
	switch r.Type {
	case KindRaw:
		if err := arity(0); err != nil {
			return nil, err
		}
		return &Raw{normalize(r.Value)}, nil
	case KindThis:
		return &This{}, arity(0)
	case KindNull:
		return &Null{}, arity(0)
	case KindReturn:
		return &Return{}, arity(0)
	case KindSymbol:
		return &Symbol{r.Identifier}, needIdentifier()
	case KindGetVariable:
		return &GetVariable{r.Identifier}, needIdentifier()
	case KindSetVariable:
		if r.Identifier == "" {
			return nil, fmt.Errorf("%s step needs an identifier", r.Type)
		}
		if err := arity(1); err != nil {
			return nil, err
		}
		return &SetVariable{r.Identifier, children[0]}, nil
	case KindOperation:
		if r.Identifier == "" {
			return nil, fmt.Errorf("%s step needs an identifier", r.Type)
		}
		return &Operation{r.Identifier, children}, nil
	case KindSequential:
		return &Sequential{children}, nil
	case KindParallel:
		return &Parallel{children}, nil
	case KindRandom:
		if err := arity(len(r.Probabilities)); err != nil {
			return nil, err
		}
		for _, p := range r.Probabilities {
			if p < 0 || math.IsNaN(p) {
				return nil, fmt.Errorf("random step has bad probability %v", p)
			}
		}
		return &Random{r.Probabilities, children}, nil
	case KindSwitch:
		if err := arity(len(r.Cases) + 1); err != nil {
			return nil, err
		}
		cases := make([]any, len(r.Cases))
		for i, c := range r.Cases {
			cases[i] = caseLabel(normalize(c))
		}
		return &Switch{children[0], cases, children[1:]}, nil
	case KindIf:
		if err := arity(3); err != nil {
			return nil, err
		}
		return &If{children[0], children[1], children[2]}, nil
	}
	if IsBinary(r.Type) {
		if err := arity(2); err != nil {
			return nil, err
		}
		return &Binary{r.Type, children[0], children[1]}, nil
	}
	if IsUnary(r.Type) {
		if err := arity(1); err != nil {
			return nil, err
		}
		return &Unary{r.Type, children[0]}, nil
	}
	return nil, fmt.Errorf("unknown step type %q", r.Type)
}

func caseLabel(c any) any {
	if m, ok := c.(map[string]any); ok && len(m) == 1 && m["default"] == true {
		return Default
	}
	return c
}

// normalize converts decoded numbers to int when they are integral and to
// float64 otherwise, so that values decoded from JSON and YAML compare equal
// to values written in Go.
func normalize(v any) any {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i)
		}
		f, _ := v.Float64()
		return f
	case int64:
		return int(v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = normalize(e)
		}
		return out
	}
	return v
}

// ToRecords converts a grammar to its interchange form.
func ToRecords(g Grammar) []NounRecord {
	records := make([]NounRecord, len(g))
	for i, n := range g {
		records[i] = NounRecord{n.Name, ToRecord(n.Step)}
	}
	return records
}

// FromRecords converts the interchange form of a grammar back to a grammar.
// Noun names must be non-empty and unique.
func FromRecords(records []NounRecord) (Grammar, error) {
	g := make(Grammar, len(records))
	seen := make(map[string]bool)
	for i, r := range records {
		if r.Name == "" {
			return nil, fmt.Errorf("noun %d has no name", i)
		}
		if seen[r.Name] {
			return nil, fmt.Errorf("duplicate noun %q", r.Name)
		}
		seen[r.Name] = true
		step, err := FromRecord(r.Step)
		if err != nil {
			return nil, fmt.Errorf("noun %q: %w", r.Name, err)
		}
		g[i] = Noun{r.Name, step}
	}
	return g, nil
}

// MarshalStep encodes a step as JSON.
func MarshalStep(step Step) ([]byte, error) {
	return json.Marshal(ToRecord(step))
}

// UnmarshalStep decodes a step from JSON.
func UnmarshalStep(data []byte) (Step, error) {
	var r Record
	if err := decodeJSON(data, &r); err != nil {
		return nil, err
	}
	return FromRecord(&r)
}

// MarshalGrammar encodes a grammar as JSON.
func MarshalGrammar(g Grammar) ([]byte, error) {
	return json.Marshal(ToRecords(g))
}

// UnmarshalGrammar decodes a grammar from JSON.
func UnmarshalGrammar(data []byte) (Grammar, error) {
	var records []NounRecord
	if err := decodeJSON(data, &records); err != nil {
		return nil, err
	}
	return FromRecords(records)
}

// DecodeGrammarYAML decodes a grammar from a YAML document with the same
// structure as the JSON interchange format.
func DecodeGrammarYAML(data []byte) (Grammar, error) {
	var records []NounRecord
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return FromRecords(records)
}

// DecodeValue decodes a JSON value like the value of a raw step: integral
// numbers become int and other numbers float64.
func DecodeValue(data []byte) (any, error) {
	var v any
	if err := decodeJSON(data, &v); err != nil {
		return nil, err
	}
	return normalize(v), nil
}

func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
