// Package rpc implements the JSON-RPC server through which an editor UI edits
// grammars.
//
// The server speaks the base protocol of the language server protocol on
// stdio. Grammar documents are opened and changed with the usual text
// document notifications, and their problems are published as diagnostics.
// The cgv/* methods interpret a document and edit it through selections of
// the values recorded during the last interpretation.
package rpc

import (
	"context"
	"fmt"
	"os"

	"github.com/sourcegraph/jsonrpc2"

	"src.cgv.sh/pkg/config"
	"src.cgv.sh/pkg/ops"
	"src.cgv.sh/pkg/prog"
	"src.cgv.sh/pkg/store"
	"src.cgv.sh/pkg/store/storedefs"
	"src.cgv.sh/pkg/telemetry"
)

// Program is the RPC subprogram.
type Program struct {
	run    bool
	config *string
	db     *string
}

func (p *Program) RegisterFlags(fs *prog.FlagSet) {
	fs.BoolVar(&p.run, "rpc", false, "run the editor RPC server on stdio instead of interpreting")
	p.config = fs.Config()
	p.db = fs.DB()
}

func (p *Program) Run(fds [3]*os.File, _ []string) error {
	if !p.run {
		return prog.ErrNextProgram
	}
	cfg, err := config.Load(*p.config)
	if err != nil {
		return err
	}
	if cfg.Tracing {
		// Stdout carries the protocol.
		shutdown, err := telemetry.Init(fds[2])
		if err != nil {
			return err
		}
		defer shutdown(context.Background())
	}
	var st storedefs.Store
	if *p.db != "" {
		db, err := store.NewStore(*p.db)
		if err != nil {
			return fmt.Errorf("open grammar database: %w", err)
		}
		defer db.Close()
		st = db
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newServer(cfg, ops.Builtins[any, struct{}](), st)
	conn := jsonrpc2.NewConn(ctx,
		jsonrpc2.NewBufferedStream(transport{fds[0], fds[1]}, jsonrpc2.VSCodeObjectCodec{}),
		handler(s))
	<-conn.DisconnectNotify()
	return nil
}

type transport struct{ in, out *os.File }

func (c transport) Read(p []byte) (int, error)  { return c.in.Read(p) }
func (c transport) Write(p []byte) (int, error) { return c.out.Write(p) }

func (c transport) Close() error {
	if err := c.in.Close(); err != nil {
		c.out.Close()
		return err
	}
	return c.out.Close()
}
