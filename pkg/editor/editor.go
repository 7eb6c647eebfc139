// Package editor implements structural edits of grammars driven by
// selections of the values produced by an interpretation.
//
// The committed grammar of an Editor is an immutable Snapshot. Edits happen
// in a Transaction on a private draft and become visible all at once on
// Commit.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"src.cgv.sh/pkg/ast"
	"src.cgv.sh/pkg/deps"
	"src.cgv.sh/pkg/logutil"
)

var (
	logger = logutil.GetLogger("[editor] ")
	tracer = otel.Tracer("cgv.editor")
	meter  = otel.Meter("cgv.editor")

	commitsTotal metric.Int64Counter = noop.Int64Counter{}
	metricsOnce  sync.Once
)

func initMetrics() {
	metricsOnce.Do(func() {
		c, err := meter.Int64Counter("cgv_editor_commits_total",
			metric.WithDescription("Number of committed edit transactions"))
		if err != nil {
			logger.Println("create metric:", err)
			return
		}
		commitsTotal = c
	})
}

// Errors returned by transactions.
var (
	// ErrStaleTransaction is returned when committing a transaction after
	// another transaction has been committed since it began.
	ErrStaleTransaction = errors.New("grammar changed since the transaction began")
	// ErrTransactionDone is returned when using a committed or discarded
	// transaction.
	ErrTransactionDone = errors.New("transaction already committed or discarded")
)

// Snapshot is a committed state of the grammar. It must not be modified.
type Snapshot struct {
	ID           uuid.UUID
	Grammar      ast.Grammar
	Hierarchy    *ast.Hierarchy
	Dependencies deps.Map
	// Nouns kept on commit; unreachable nouns are dropped. Empty means the
	// first noun.
	Roots []string
}

// Editor holds the committed grammar.
type Editor struct {
	current atomic.Pointer[Snapshot]
	knownOp func(string) bool
}

// New returns an Editor whose committed grammar is g. References in g are
// checked like on commit; knownOp, if not nil, decides which operation names
// are valid.
func New(g ast.Grammar, roots []string, knownOp func(string) bool) (*Editor, error) {
	initMetrics()
	e := &Editor{knownOp: knownOp}
	s, err := e.snapshot(g, roots)
	if err != nil {
		return nil, err
	}
	e.current.Store(s)
	return e, nil
}

func (e *Editor) snapshot(g ast.Grammar, roots []string) (*Snapshot, error) {
	g, dependencies := deps.RemoveUnused(g, roots)
	if len(g) == 0 {
		return nil, errors.New("no noun is reachable from the roots")
	}
	if err := deps.Check(g, e.knownOp); err != nil {
		return nil, err
	}
	return &Snapshot{
		ID:           uuid.New(),
		Grammar:      g,
		Hierarchy:    ast.Link(g),
		Dependencies: dependencies,
		Roots:        roots,
	}, nil
}

// Snapshot returns the committed state.
func (e *Editor) Snapshot() *Snapshot { return e.current.Load() }

// Begin starts a transaction on the committed state.
func (e *Editor) Begin() *Transaction {
	base := e.current.Load()
	return &Transaction{ID: uuid.New(), editor: e, base: base, draft: base.Grammar}
}

// Transaction is an edit in progress. It is not safe for concurrent use.
type Transaction struct {
	ID     uuid.UUID
	editor *Editor
	base   *Snapshot
	draft  ast.Grammar
	done   bool
}

// Base returns the snapshot the transaction started from.
func (tx *Transaction) Base() *Snapshot { return tx.base }

// Draft returns the current draft.
func (tx *Transaction) Draft() ast.Grammar { return tx.draft }

// Get returns the step at p in the draft.
func (tx *Transaction) Get(p ast.Path) (ast.Step, error) { return tx.draft.Get(p) }

// ReplaceAt replaces the step at p in the draft.
func (tx *Transaction) ReplaceAt(p ast.Path, step ast.Step) error {
	if tx.done {
		return ErrTransactionDone
	}
	g, err := ast.ReplaceAt(tx.draft, p, step)
	if err != nil {
		return err
	}
	tx.draft = g
	return nil
}

// SetDraft replaces the whole draft.
func (tx *Transaction) SetDraft(g ast.Grammar) error {
	if tx.done {
		return ErrTransactionDone
	}
	tx.draft = g
	return nil
}

// Commit makes the draft the committed grammar: nouns unreachable from the
// roots of the base snapshot are dropped, dependencies are recomputed and
// checked, and the hierarchy is rebuilt. On error the transaction is
// discarded and the committed grammar is unchanged.
func (tx *Transaction) Commit(ctx context.Context) (*Snapshot, error) {
	if tx.done {
		return nil, ErrTransactionDone
	}
	tx.done = true
	_, span := tracer.Start(ctx, "editor.Commit",
		trace.WithAttributes(attribute.String("cgv.transaction", tx.ID.String())))
	defer span.End()

	s, err := tx.editor.snapshot(tx.draft, tx.base.Roots)
	if err == nil && !tx.editor.current.CompareAndSwap(tx.base, s) {
		err = ErrStaleTransaction
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("commit %s: %w", tx.ID, err)
	}
	commitsTotal.Add(ctx, 1)
	logger.Printf("committed %s: %d nouns", tx.ID, len(s.Grammar))
	span.SetStatus(codes.Ok, "")
	return s, nil
}

// Discard drops the draft.
func (tx *Transaction) Discard() {
	tx.done = true
	tx.draft = nil
}
