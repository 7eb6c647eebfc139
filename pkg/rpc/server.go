package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	lsp "github.com/sourcegraph/go-lsp"
	"github.com/sourcegraph/jsonrpc2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"src.cgv.sh/pkg/ast"
	"src.cgv.sh/pkg/config"
	"src.cgv.sh/pkg/diag"
	"src.cgv.sh/pkg/editor"
	"src.cgv.sh/pkg/errutil"
	"src.cgv.sh/pkg/interp"
	"src.cgv.sh/pkg/logutil"
	"src.cgv.sh/pkg/pattern"
	"src.cgv.sh/pkg/store/storedefs"
)

var (
	logger = logutil.GetLogger("[rpc] ")
	tracer = otel.Tracer("cgv.rpc")
)

var (
	errMethodNotFound = &jsonrpc2.Error{
		Code: jsonrpc2.CodeMethodNotFound, Message: "method not found"}
	errInvalidParams = &jsonrpc2.Error{
		Code: jsonrpc2.CodeInvalidParams, Message: "invalid params"}
	errNoStore = &jsonrpc2.Error{
		Code: jsonrpc2.CodeInvalidRequest, Message: "no grammar database"}
)

type (
	value    = interp.Value[any, struct{}]
	valueMap = editor.ValueMap[any, struct{}]
)

type server struct {
	cfg   config.Config
	ops   interp.Operations[any, struct{}]
	types []pattern.Type[any, struct{}]
	// Nil when the server runs without a database.
	store storedefs.Store

	mutex sync.Mutex
	docs  map[lsp.DocumentURI]*document
	// Set by initialize when the client answers cgv/selectPattern.
	interactive bool
}

// document is an open grammar document.
type document struct {
	// Serializes interpretations and edits of the document.
	mutex sync.Mutex
	text  string
	// Nil when text is not a valid grammar.
	editor *editor.Editor
	values *valueMap
}

func newServer(cfg config.Config, ops interp.Operations[any, struct{}], st storedefs.Store) *server {
	return &server{
		cfg: cfg,
		ops: ops,
		types: []pattern.Type[any, struct{}]{
			pattern.All[any, struct{}]{},
			pattern.IndexModulo[any, struct{}]{},
			pattern.ID[any, struct{}]{},
		},
		store: st,
		docs:  make(map[lsp.DocumentURI]*document),
	}
}

// Document notifications are handled in the order they arrive. Everything
// else runs concurrently, so that a handler can wait for the client to answer
// cgv/selectPattern.
func handler(s *server) jsonrpc2.Handler {
	h := routingHandler(map[string]method{
		"initialize":             s.initialize,
		"textDocument/didOpen":   s.didOpen,
		"textDocument/didChange": s.didChange,
		"textDocument/didClose":  s.didClose,

		"cgv/interpret": s.interpret,
		"cgv/remove":    s.remove,
		"cgv/replace":   s.replace,
		"cgv/save":      s.save,
		"cgv/load":      s.load,

		// Required by the LSP protocol.
		"initialized": noop,
		"shutdown":    noop,
		"exit":        noop,
	})
	return orderedHandler{inOrder: h, async: jsonrpc2.AsyncHandler(h)}
}

type orderedHandler struct{ inOrder, async jsonrpc2.Handler }

func (h orderedHandler) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	if req.Notif && strings.HasPrefix(req.Method, "textDocument/") {
		h.inOrder.Handle(ctx, conn, req)
	} else {
		h.async.Handle(ctx, conn, req)
	}
}

type method func(context.Context, jsonrpc2.JSONRPC2, json.RawMessage) (any, error)

func noop(_ context.Context, _ jsonrpc2.JSONRPC2, _ json.RawMessage) (any, error) {
	return nil, nil
}

func routingHandler(methods map[string]method) jsonrpc2.Handler {
	return jsonrpc2.HandlerWithError(func(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
		fn, ok := methods[req.Method]
		if !ok {
			return nil, errMethodNotFound
		}
		ctx, span := tracer.Start(ctx, "rpc."+req.Method)
		defer span.End()
		params := json.RawMessage("null")
		if req.Params != nil {
			params = *req.Params
		}
		result, err := fn(ctx, conn, params)
		if err != nil {
			logger.Printf("%s: %v", req.Method, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			var rpcErr *jsonrpc2.Error
			if errors.As(err, &rpcErr) {
				err = rpcErr
			} else {
				err = &jsonrpc2.Error{Code: jsonrpc2.CodeInternalError, Message: err.Error()}
			}
		}
		return result, err
	})
}

type initializationOptions struct {
	// The client answers cgv/selectPattern requests.
	SelectPattern bool `json:"selectPattern"`
}

func (s *server) initialize(_ context.Context, _ jsonrpc2.JSONRPC2, rawParams json.RawMessage) (any, error) {
	var params lsp.InitializeParams
	if json.Unmarshal(rawParams, &params) != nil {
		return nil, errInvalidParams
	}
	if params.InitializationOptions != nil {
		// The options are decoded to a generic value; round-trip them.
		data, err := json.Marshal(params.InitializationOptions)
		var opts initializationOptions
		if err != nil || json.Unmarshal(data, &opts) != nil {
			return nil, errInvalidParams
		}
		s.mutex.Lock()
		s.interactive = opts.SelectPattern
		s.mutex.Unlock()
	}
	return &lsp.InitializeResult{
		Capabilities: lsp.ServerCapabilities{
			TextDocumentSync: &lsp.TextDocumentSyncOptionsOrKind{
				Options: &lsp.TextDocumentSyncOptions{
					OpenClose: true,
					Change:    lsp.TDSKFull,
				},
			},
		},
	}, nil
}

func (s *server) didOpen(ctx context.Context, conn jsonrpc2.JSONRPC2, rawParams json.RawMessage) (any, error) {
	var params lsp.DidOpenTextDocumentParams
	if json.Unmarshal(rawParams, &params) != nil {
		return nil, errInvalidParams
	}
	s.update(ctx, conn, params.TextDocument.URI, params.TextDocument.Text)
	return nil, nil
}

func (s *server) didChange(ctx context.Context, conn jsonrpc2.JSONRPC2, rawParams json.RawMessage) (any, error) {
	var params lsp.DidChangeTextDocumentParams
	if json.Unmarshal(rawParams, &params) != nil || len(params.ContentChanges) == 0 {
		return nil, errInvalidParams
	}
	// ContentChanges includes full text since the server is only advertised to
	// support that; see the initialize method.
	s.update(ctx, conn, params.TextDocument.URI, params.ContentChanges[0].Text)
	return nil, nil
}

func (s *server) didClose(_ context.Context, _ jsonrpc2.JSONRPC2, rawParams json.RawMessage) (any, error) {
	var params lsp.DidCloseTextDocumentParams
	if json.Unmarshal(rawParams, &params) != nil {
		return nil, errInvalidParams
	}
	s.mutex.Lock()
	delete(s.docs, params.TextDocument.URI)
	s.mutex.Unlock()
	return nil, nil
}

// update replaces the content of a document and publishes its diagnostics.
func (s *server) update(ctx context.Context, conn jsonrpc2.JSONRPC2, uri lsp.DocumentURI, text string) {
	doc := &document{text: text, values: editor.NewValueMap[any, struct{}]()}
	g, err := decodeGrammar(uri, text)
	if err == nil {
		doc.editor, err = editor.New(g, s.cfg.Roots, s.ops.Has)
	}
	s.mutex.Lock()
	s.docs[uri] = doc
	s.mutex.Unlock()
	conn.Notify(ctx, "textDocument/publishDiagnostics",
		lsp.PublishDiagnosticsParams{URI: uri, Diagnostics: diagnostics(text, err)})
}

func decodeGrammar(uri lsp.DocumentURI, text string) (ast.Grammar, error) {
	if strings.HasSuffix(string(uri), ".yaml") || strings.HasSuffix(string(uri), ".yml") {
		return ast.DecodeGrammarYAML([]byte(text))
	}
	return ast.UnmarshalGrammar([]byte(text))
}

func diagnostics(text string, err error) []lsp.Diagnostic {
	errs := errutil.Errors(err)
	diags := make([]lsp.Diagnostic, len(errs))
	for i, err := range errs {
		d := lsp.Diagnostic{Severity: lsp.Error, Source: "grammar", Message: err.Error()}
		var de *diag.Error
		if errors.As(err, &de) {
			d.Source = de.Type
			d.Message = fmt.Sprintf("%s: %s", de.Context, de.Message)
			d.Range = nounRange(text, de.Context.Noun)
		}
		diags[i] = d
	}
	return diags
}

// nounRange returns the range of the first occurrence of the name of a noun
// in the text, or an empty range at the start if there is none.
func nounRange(text, noun string) lsp.Range {
	name := strconv.Quote(noun)
	i := strings.Index(text, name)
	if i == -1 {
		name = noun
		if i = strings.Index(text, name); i == -1 {
			return lsp.Range{}
		}
	}
	return lsp.Range{
		Start: lspPositionFromIdx(text, i),
		End:   lspPositionFromIdx(text, i+len(name)),
	}
}

func (s *server) document(uri lsp.DocumentURI) (*document, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	doc, ok := s.docs[uri]
	if !ok {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "document not open: " + string(uri)}
	}
	if doc.editor == nil {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidRequest, Message: "document has errors: " + string(uri)}
	}
	return doc, nil
}

type interpretParams struct {
	URI      lsp.DocumentURI   `json:"uri"`
	Inputs   []json.RawMessage `json:"inputs"`
	MinDepth int               `json:"minDepth"`
	MaxDepth int               `json:"maxDepth"`
}

type outputValue struct {
	Index []int `json:"index"`
	Value any   `json:"value"`
}

// interpret interprets a document against the inputs and returns the live
// outputs. The values reaching each step are recorded for later edits.
func (s *server) interpret(ctx context.Context, _ jsonrpc2.JSONRPC2, rawParams json.RawMessage) (any, error) {
	var params interpretParams
	if json.Unmarshal(rawParams, &params) != nil {
		return nil, errInvalidParams
	}
	doc, err := s.document(params.URI)
	if err != nil {
		return nil, err
	}
	inputs := make([]value, len(params.Inputs))
	for i, raw := range params.Inputs {
		v, err := ast.DecodeValue(raw)
		if err != nil {
			return nil, errInvalidParams
		}
		if len(params.Inputs) > 1 {
			inputs[i] = interp.NewValue[any, struct{}](v, i)
		} else {
			inputs[i] = interp.NewValue[any, struct{}](v)
		}
	}

	doc.mutex.Lock()
	defer doc.mutex.Unlock()
	doc.values.Reset()
	in := make(chan value, len(inputs))
	for _, v := range inputs {
		in <- v
	}
	close(in)
	run, err := interp.Interpret(ctx, in, doc.editor.Snapshot().Grammar, s.ops, s.cfg,
		params.MinDepth, params.MaxDepth, interp.WithRecorder[any, struct{}](doc.values))
	if err != nil {
		return nil, err
	}
	values, err := interp.Collect(run)
	if err != nil {
		return nil, err
	}
	outputs := make([]outputValue, len(values))
	for i, v := range values {
		outputs[i] = outputValue{Index: v.Index, Value: v.Raw}
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("cgv.outputs", len(outputs)))
	return outputs, nil
}

type selectionParams struct {
	Path string `json:"path"`
	// Index paths of the selected values. Nil selects all values.
	Indexes [][]int `json:"indexes,omitempty"`
}

type editParams struct {
	URI        lsp.DocumentURI   `json:"uri"`
	Selections []selectionParams `json:"selections"`
	// The replacement of cgv/replace.
	Step json.RawMessage `json:"step,omitempty"`
}

type editResult struct {
	Snapshot string           `json:"snapshot"`
	Grammar  []ast.NounRecord `json:"grammar"`
}

type selectPatternParams struct {
	URI        lsp.DocumentURI `json:"uri"`
	Candidates []string        `json:"candidates"`
}

// remove removes the selected values from a document.
func (s *server) remove(ctx context.Context, conn jsonrpc2.JSONRPC2, rawParams json.RawMessage) (any, error) {
	var params editParams
	if json.Unmarshal(rawParams, &params) != nil {
		return nil, errInvalidParams
	}
	doc, err := s.document(params.URI)
	if err != nil {
		return nil, err
	}
	doc.mutex.Lock()
	defer doc.mutex.Unlock()
	selections, err := resolveSelections(doc.values, params.Selections)
	if err != nil {
		return nil, err
	}
	snapshot, err := editor.Remove(ctx, doc.editor, doc.values, selections,
		s.types, s.selector(conn, params.URI), s.ops.DefaultParameter)
	if err != nil {
		return nil, err
	}
	return doc.committed(snapshot)
}

// replace guards the selected values of a document with a replacement step.
func (s *server) replace(ctx context.Context, conn jsonrpc2.JSONRPC2, rawParams json.RawMessage) (any, error) {
	var params editParams
	if json.Unmarshal(rawParams, &params) != nil || params.Step == nil {
		return nil, errInvalidParams
	}
	step, err := ast.UnmarshalStep(params.Step)
	if err != nil {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
	}
	doc, err := s.document(params.URI)
	if err != nil {
		return nil, err
	}
	doc.mutex.Lock()
	defer doc.mutex.Unlock()
	selections, err := resolveSelections(doc.values, params.Selections)
	if err != nil {
		return nil, err
	}
	tx := doc.editor.Begin()
	err = editor.Replace(ctx, tx, doc.values, selections, s.types, s.selector(conn, params.URI),
		func(*editor.Transaction, ast.Path, ast.Step) (ast.Step, error) { return step, nil })
	if err != nil {
		tx.Discard()
		return nil, err
	}
	snapshot, err := tx.Commit(ctx)
	if err != nil {
		return nil, err
	}
	return doc.committed(snapshot)
}

// committed updates a document after a commit. The recorded values belong to
// the previous grammar and are dropped. Must be called with doc.mutex held.
func (doc *document) committed(snapshot *editor.Snapshot) (any, error) {
	doc.values.Reset()
	data, err := ast.MarshalGrammar(snapshot.Grammar)
	if err != nil {
		return nil, err
	}
	doc.text = string(data)
	return editResult{Snapshot: snapshot.ID.String(), Grammar: ast.ToRecords(snapshot.Grammar)}, nil
}

func resolveSelections(values *valueMap, params []selectionParams) ([]editor.Selection[any, struct{}], error) {
	selections := make([]editor.Selection[any, struct{}], len(params))
	for i, sp := range params {
		p, err := ast.ParsePath(sp.Path)
		if err != nil {
			return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
		}
		selections[i].Path = p
		if sp.Indexes == nil {
			continue
		}
		recorded := make(map[string]value)
		for _, v := range values.Values(p) {
			recorded[v.Key()] = v
		}
		selected := make([]value, 0, len(sp.Indexes))
		for _, index := range sp.Indexes {
			v, ok := recorded[interp.IndexKey(index)]
			if !ok {
				return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams,
					Message: fmt.Sprintf("no value with index %v at %s", index, p)}
			}
			selected = append(selected, v)
		}
		selections[i].Values = selected
	}
	return selections, nil
}

// selector returns the pattern selector of an edit. In interactive sessions
// the client chooses among several candidates.
func (s *server) selector(conn jsonrpc2.JSONRPC2, uri lsp.DocumentURI) pattern.Selector[any, struct{}] {
	s.mutex.Lock()
	interactive := s.interactive
	s.mutex.Unlock()
	if !interactive {
		return pattern.SelectSmallest[any, struct{}]
	}
	return func(ctx context.Context, candidates []*pattern.Pattern[any, struct{}]) (*pattern.Pattern[any, struct{}], error) {
		if len(candidates) == 1 {
			return candidates[0], nil
		}
		descriptions := make([]string, len(candidates))
		for i, c := range candidates {
			descriptions[i] = c.Description
		}
		var i int
		err := conn.Call(ctx, "cgv/selectPattern",
			selectPatternParams{URI: uri, Candidates: descriptions}, &i)
		if err != nil {
			return nil, err
		}
		if i < 0 || i >= len(candidates) {
			return nil, fmt.Errorf("client selected pattern %d of %d", i, len(candidates))
		}
		return candidates[i], nil
	}
}

type saveParams struct {
	URI  lsp.DocumentURI `json:"uri"`
	Name string          `json:"name"`
}

type loadParams struct {
	Name string `json:"name"`
	// Zero loads the latest revision.
	Revision int `json:"revision,omitempty"`
}

// save stores the committed grammar of a document in the database and
// returns the sequence number of the new revision.
func (s *server) save(_ context.Context, _ jsonrpc2.JSONRPC2, rawParams json.RawMessage) (any, error) {
	var params saveParams
	if json.Unmarshal(rawParams, &params) != nil || params.Name == "" {
		return nil, errInvalidParams
	}
	if s.store == nil {
		return nil, errNoStore
	}
	doc, err := s.document(params.URI)
	if err != nil {
		return nil, err
	}
	return s.store.PutGrammar(params.Name, doc.editor.Snapshot().Grammar)
}

// load returns a grammar from the database.
func (s *server) load(_ context.Context, _ jsonrpc2.JSONRPC2, rawParams json.RawMessage) (any, error) {
	var params loadParams
	if json.Unmarshal(rawParams, &params) != nil || params.Name == "" {
		return nil, errInvalidParams
	}
	if s.store == nil {
		return nil, errNoStore
	}
	var g ast.Grammar
	var err error
	if params.Revision == 0 {
		g, err = s.store.Grammar(params.Name)
	} else {
		g, err = s.store.Revision(params.Name, params.Revision)
	}
	if err != nil {
		return nil, err
	}
	return ast.ToRecords(g), nil
}

func lspPositionFromIdx(s string, idx int) lsp.Position {
	var pos lsp.Position
	walkString(s, func(i int, p lsp.Position) bool {
		pos = p
		return i < idx
	})
	return pos
}

// Generates (index, lspPosition) pairs in s, stopping if f returns false.
func walkString(s string, f func(i int, p lsp.Position) bool) {
	var p lsp.Position
	lastCR := false

	for i, r := range s {
		if !f(i, p) {
			return
		}
		switch {
		case r == '\r':
			p.Line++
			p.Character = 0
		case r == '\n':
			if lastCR {
				// Ignore \n if it's part of a \r\n sequence
			} else {
				p.Line++
				p.Character = 0
			}
		case r <= 0xFFFF:
			// Encoded in UTF-16 with one unit
			p.Character++
		default:
			// Encoded in UTF-16 with two units
			p.Character += 2
		}
		lastCR = r == '\r'
	}
	f(len(s), p)
}
