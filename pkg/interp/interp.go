// Package interp interprets grammars against streams of values.
//
// Each step of a grammar becomes a pipeline stage: one or more goroutines
// reading values from a channel and writing derived values to another. All
// stages of one interpretation run in an errgroup, so the first error stops
// the whole pipeline. Expressions (conditions, operands, arguments) are
// evaluated per value by private sub-pipelines that run to completion.
package interp

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"src.cgv.sh/pkg/ast"
	"src.cgv.sh/pkg/config"
	"src.cgv.sh/pkg/deps"
	"src.cgv.sh/pkg/logutil"
)

var logger = logutil.GetLogger("[interp] ")

// ErrEmptyGrammar is returned when interpreting a grammar without nouns.
var ErrEmptyGrammar = errors.New("grammar has no nouns")

// Recorder is notified of every value entering a step.
type Recorder[T, A any] interface {
	Record(p ast.Path, v Value[T, A])
}

// Option customizes an interpretation.
type Option[T, A any] func(*runner[T, A])

// WithRecorder reports every value entering a step to rec. Record may be
// called concurrently.
func WithRecorder[T, A any](rec Recorder[T, A]) Option[T, A] {
	return func(r *runner[T, A]) { r.rec = rec }
}

// Run is a running interpretation.
type Run[T, A any] struct {
	out    <-chan Value[T, A]
	g      *errgroup.Group
	cancel context.CancelFunc
	span   trace.Span

	waitOnce sync.Once
	err      error
}

// Values returns the output values. The channel is closed when the
// interpretation ends. It must be drained, or the context of the run
// cancelled, for Wait to return.
func (r *Run[T, A]) Values() <-chan Value[T, A] { return r.out }

// Wait waits for the interpretation to end and returns the first error of any
// stage.
func (r *Run[T, A]) Wait() error {
	r.waitOnce.Do(func() {
		r.err = r.g.Wait()
		r.cancel()
		if r.err != nil {
			r.span.RecordError(r.err)
			r.span.SetStatus(codes.Error, r.err.Error())
			logger.Println("interpretation failed:", r.err)
		} else {
			r.span.SetStatus(codes.Ok, "")
		}
		r.span.End()
	})
	return r.err
}

// Interpret starts interpreting the first noun of a grammar against the
// values from in, which the caller must close. Output values whose index
// length is below minDepth or above maxDepth are dropped; a maxDepth of 0 or
// less means no upper bound.
//
// References to unknown nouns and operations are reported before anything
// starts.
func Interpret[T, A any](ctx context.Context, in <-chan Value[T, A], grammar ast.Grammar, ops Operations[T, A], cfg config.Config, minDepth, maxDepth int, opts ...Option[T, A]) (*Run[T, A], error) {
	root, ok := grammar.Root()
	if !ok {
		return nil, ErrEmptyGrammar
	}
	if err := deps.Check(grammar, ops.Has); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	initMetrics()

	ctx, span := tracer.Start(ctx, "interp.Interpret",
		trace.WithAttributes(
			attribute.String("cgv.root", root.Name),
			attribute.Int("cgv.nouns", len(grammar)),
		))
	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)

	r := &runner[T, A]{
		ctx: gctx, life: gctx, g: g,
		nouns: make(map[string]ast.Step, len(grammar)),
		ops:   ops, cfg: cfg,
	}
	for _, n := range grammar {
		r.nouns[n.Name] = n.Step
	}
	for _, opt := range opts {
		opt(r)
	}
	runsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("root", root.Name)))
	logger.Printf("interpreting noun %s of a grammar with %d nouns", root.Name, len(grammar))

	stepOut := r.start(root.Step, ast.RootPath(root.Name), in)
	out := make(chan Value[T, A])
	g.Go(func() error {
		defer close(out)
		return r.each(stepOut, func(v Value[T, A]) error {
			v.returned = false
			if n := len(v.Index); n < minDepth || (maxDepth > 0 && n > maxDepth) {
				return nil
			}
			valuesTotal.Add(gctx, 1)
			return r.send(out, v)
		})
	})
	return &Run[T, A]{out: out, g: g, cancel: cancel, span: span}, nil
}

// runner holds the state shared by the stages of one pipeline.
type runner[T, A any] struct {
	ctx context.Context
	// Outlives the sub-pipelines of expressions; used for combined validity
	// signals that are handed out with values.
	life  context.Context
	g     *errgroup.Group
	nouns map[string]ast.Step
	ops   Operations[T, A]
	cfg   config.Config
	rec   Recorder[T, A]
	// Set for the sub-pipelines of expressions, which run to completion and
	// don't watch variables.
	expr bool
}

func (r *runner[T, A]) record(p ast.Path, v Value[T, A]) {
	if r.rec != nil {
		r.rec.Record(p, v)
	}
}

func (r *runner[T, A]) send(ch chan<- Value[T, A], v Value[T, A]) error {
	select {
	case ch <- v:
		return nil
	case <-r.ctx.Done():
		return r.ctx.Err()
	}
}

// each calls f for every value from in, until in is closed or the pipeline is
// cancelled.
func (r *runner[T, A]) each(in <-chan Value[T, A], f func(Value[T, A]) error) error {
	for {
		select {
		case v, ok := <-in:
			if !ok {
				return nil
			}
			if err := f(v); err != nil {
				return err
			}
		case <-r.ctx.Done():
			return r.ctx.Err()
		}
	}
}

// spawn runs f in the errgroup, counted by wg.
func (r *runner[T, A]) spawn(wg *sync.WaitGroup, f func() error) {
	wg.Add(1)
	r.g.Go(func() error {
		defer wg.Done()
		return f()
	})
}

// closeAfter closes the channels once all goroutines counted by wg are done.
// Goroutines may only be added to wg from goroutines that wg already counts.
func closeAfter[C any](wg *sync.WaitGroup, chs ...chan C) {
	go func() {
		wg.Wait()
		for _, ch := range chs {
			close(ch)
		}
	}()
}

// merge forwards the values of all channels to one channel.
func (r *runner[T, A]) merge(chans ...<-chan Value[T, A]) <-chan Value[T, A] {
	if len(chans) == 1 {
		return chans[0]
	}
	out := make(chan Value[T, A])
	var wg sync.WaitGroup
	for _, ch := range chans {
		ch := ch
		r.spawn(&wg, func() error {
			return r.each(ch, func(v Value[T, A]) error { return r.send(out, v) })
		})
	}
	closeAfter(&wg, out)
	return out
}

// start starts the stage of a step and returns its output.
func (r *runner[T, A]) start(step ast.Step, p ast.Path, in <-chan Value[T, A]) <-chan Value[T, A] {
	switch step := step.(type) {
	case *ast.Sequential:
		return r.sequential(step, p, in)
	case *ast.Parallel:
		return r.parallel(step, p, in)
	case *ast.Random:
		return r.random(step, p, in)
	case *ast.Switch:
		return r.switchStep(step, p, in)
	case *ast.If:
		return r.ifStep(step, p, in)
	case *ast.Symbol:
		return r.symbol(step, p, in)
	case *ast.Operation:
		return r.operation(step, p, in)
	default:
		return r.mapStage(step, p, in)
	}
}
