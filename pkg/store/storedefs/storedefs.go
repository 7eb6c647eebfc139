// Package storedefs contains definitions of the store API.
//
// It is a separate package so that packages that only depend on the store API
// does not need to depend on the concrete implementation.
package storedefs

import (
	"errors"

	"src.cgv.sh/pkg/ast"
)

// ErrNoGrammar is returned when querying a grammar that is not stored.
var ErrNoGrammar = errors.New("no such grammar")

// ErrNoRevision is returned when querying a revision that is not stored.
var ErrNoRevision = errors.New("no such revision")

// Store is an interface satisfied by the storage service.
type Store interface {
	PutGrammar(name string, g ast.Grammar) (int, error)
	Grammar(name string) (ast.Grammar, error)
	GrammarNames() ([]string, error)
	DelGrammar(name string) error

	Revision(name string, seq int) (ast.Grammar, error)
	Revisions(name string) ([]Revision, error)
}

// Revision is an entry in the history of a grammar.
type Revision struct {
	Seq     int
	Grammar ast.Grammar
}
