package editor

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"src.cgv.sh/pkg/ast"
	"src.cgv.sh/pkg/pattern"
)

// ErrNotRemovable is returned when removing a step whose parent cannot do
// without it, like the condition of an if step.
var ErrNotRemovable = errors.New("step cannot be removed")

// ReplaceWith generates the step replacing the step at p in the draft of tx.
type ReplaceWith func(tx *Transaction, p ast.Path, step ast.Step) (ast.Step, error)

// Replace replaces the selected values of each selection in the draft of tx.
//
// For each selection, a pattern telling the selected values apart from all
// the values recorded at its path is inferred. The step at the path is then
// replaced by "if <pattern> then <replacement> else <step>", so that only the
// selected values take the replacement; if the pattern selects everything,
// the step is replaced outright. Deeper paths are processed first, so that
// the paths of the remaining selections stay valid.
func Replace[T, A any](ctx context.Context, tx *Transaction, values *ValueMap[T, A], selections []Selection[T, A],
	types []pattern.Type[T, A], selector pattern.Selector[T, A], replaceWith ReplaceWith) error {

	ctx, span := tracer.Start(ctx, "editor.Replace",
		trace.WithAttributes(
			attribute.String("cgv.transaction", tx.ID.String()),
			attribute.Int("cgv.selections", len(selections))))
	defer span.End()

	ordered := slices.Clone(selections)
	slices.SortStableFunc(ordered, func(a, b Selection[T, A]) int {
		return cmp.Compare(len(b.Path.Steps), len(a.Path.Steps))
	})
	for _, sel := range ordered {
		if err := replaceOne(ctx, tx, values, sel, types, selector, replaceWith); err != nil {
			span.RecordError(err)
			return fmt.Errorf("replace at %s: %w", sel.Path, err)
		}
	}
	return nil
}

func replaceOne[T, A any](ctx context.Context, tx *Transaction, values *ValueMap[T, A], sel Selection[T, A],
	types []pattern.Type[T, A], selector pattern.Selector[T, A], replaceWith ReplaceWith) error {

	step, err := tx.Get(sel.Path)
	if err != nil {
		return err
	}
	all := values.Values(sel.Path)
	selected := sel.Values
	if selected == nil {
		selected = all
	}
	p, err := pattern.MatchingCondition(ctx, all, selected, types, selector)
	if err != nil {
		return err
	}
	replacement, err := replaceWith(tx, sel.Path, step)
	if err != nil {
		return err
	}
	if p.GenerateStep != nil {
		replacement = ast.NewIf(p.GenerateStep(), replacement, step)
	}
	logger.Printf("replacing %s where %s", sel.Path, p.Description)
	return tx.ReplaceAt(sel.Path, replacement)
}

// Remove removes the selected values in a new transaction and commits it.
// Each selected step is replaced by its NeutralStep for the selected values,
// the grammar is simplified, and nouns no longer reachable from the roots are
// dropped.
func Remove[T, A any](ctx context.Context, e *Editor, values *ValueMap[T, A], selections []Selection[T, A],
	types []pattern.Type[T, A], selector pattern.Selector[T, A], defaults DefaultParameterFunc) (*Snapshot, error) {

	tx := e.Begin()
	err := Replace(ctx, tx, values, selections, types, selector, func(tx *Transaction, p ast.Path, step ast.Step) (ast.Step, error) {
		var parent ast.Step
		if pp, ok := p.Parent(); ok {
			var err error
			if parent, err = tx.Get(pp); err != nil {
				return nil, err
			}
		}
		neutral, ok := NeutralStep(parent, p.Last(), defaults)
		if !ok {
			return nil, ErrNotRemovable
		}
		return neutral, nil
	})
	if err != nil {
		tx.Discard()
		return nil, err
	}
	if err := tx.SetDraft(Simplify(tx.Draft())); err != nil {
		return nil, err
	}
	return tx.Commit(ctx)
}
