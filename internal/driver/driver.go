// Package driver runs one compilation of kale source: it parses and
// lowers every top-level item, synthesizes the entry point, and executes
// the result in process or emits it as an object file.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/you-not-fish/kale/internal/codegen"
	"github.com/you-not-fish/kale/internal/jit"
	"github.com/you-not-fish/kale/internal/ssa"
	"github.com/you-not-fish/kale/internal/ssa/passes"
	"github.com/you-not-fish/kale/internal/syntax"
)

const (
	// EntryName is the function synthesized from the top-level
	// expression runs.
	EntryName = "main"

	// DefaultObjectPath is where EmitObject writes when Config.ObjectPath
	// is empty.
	DefaultObjectPath = "output.o"
)

var (
	ErrCompileFailed = errors.New("driver: compilation failed")
	ErrNoMain        = errors.New("driver: no main function")
	ErrNotCompiled   = errors.New("driver: nothing compiled")
)

// Config configures a Session.
type Config struct {
	Filename string
	TabWidth int // DefaultTabWidth if zero

	// Externs are declared before parsing, as if by extern.
	Externs []*syntax.Prototype
	// Resolver supplies the implementations of declared functions.
	Resolver jit.Resolver

	ObjectPath string // EmitObject destination; DefaultObjectPath if empty
	EmitObject bool   // Run also writes an object file
	EmitIR     bool   // report the IR as an Info diagnostic after compiling
	Optimize   bool   // promote variable slots to registers

	// Passes controls dumping around the pass pipeline. Verification
	// after every pass is always on.
	Passes passes.Config

	// Diag receives every diagnostic as it is reported.
	Diag func(msg string, sev Severity)

	Options jit.Options
}

// Session holds all state of one compilation unit. A Session is not safe
// for concurrent use; Reset starts a new unit.
type Session struct {
	cfg Config

	buf     *syntax.Buffer
	ops     *syntax.OpTable
	parser  *syntax.Parser
	mod     *ssa.Module
	builder *ssa.Builder
	runs    []string // top-level functions, in source order

	log      []Diagnostic
	compiled bool
	state    State
}

// NewSession returns an idle session.
func NewSession(cfg Config) *Session {
	if cfg.TabWidth <= 0 {
		cfg.TabWidth = syntax.DefaultTabWidth
	}
	if cfg.ObjectPath == "" {
		cfg.ObjectPath = DefaultObjectPath
	}
	return &Session{cfg: cfg}
}

// Reset discards all per-compilation state, loads source into a fresh
// buffer terminated by the end-of-file sentinel, primes the first token
// and declares the external prototypes.
func (s *Session) Reset(source string) {
	s.buf = syntax.NewBuffer(source)
	s.buf.Terminate()
	s.ops = syntax.NewOpTable()
	s.mod = ssa.NewModule(s.cfg.Filename)
	s.builder = ssa.NewBuilder(s.mod, s.codegenError)
	s.runs = nil
	s.log = nil
	s.compiled = true

	sc := syntax.NewScanner(s.cfg.Filename, s.buf, s.cfg.TabWidth, s.lexError)
	s.parser = syntax.NewParser(sc, s.ops, s.parseError)

	for _, p := range s.cfg.Externs {
		s.builder.DeclareProto(p)
	}
	s.state = StatePrimed
}

// Compile parses and lowers every item of the source and synthesizes the
// entry point. It reports whether code generation succeeded: items that
// fail to parse are skipped, but any code generation error fails the
// whole unit.
func (s *Session) Compile() bool {
	if s.state != StatePrimed {
		s.report(syntax.Pos{}, "compile without a fresh source buffer", Error)
		return false
	}
	s.state = StateParsing

	p := s.parser
	for !p.AtEOF() {
		it, ok := p.ParseItem()
		if !ok {
			p.Skip()
			continue
		}
		switch d := it.(type) {
		case *syntax.FuncDecl:
			s.funcDecl(d)
		case *syntax.ExternDecl:
			if _, ok := s.builder.DeclareProto(d.Proto); !ok {
				s.compiled = false
			}
		}
	}

	s.finalize(p.Pos())
	if !s.compiled {
		s.state = StateFailed
		return false
	}
	s.state = StateFinalized
	return true
}

// funcDecl lowers a definition and settles its operator edit.
func (s *Session) funcDecl(d *syntax.FuncDecl) {
	if _, ok := s.builder.BuildFunc(d); !ok {
		d.Edit.Rollback()
		s.compiled = false
		return
	}
	d.Edit.Commit()
	if d.TopLevel {
		s.runs = append(s.runs, d.Proto.Name)
	}
}

// finalize synthesizes the entry point, runs the pass pipeline and dumps
// the IR if asked to.
func (s *Session) finalize(pos syntax.Pos) {
	if !s.compiled {
		return
	}
	if _, ok := s.builder.BuildEntry(EntryName, pos, s.runs); !ok {
		s.compiled = false
		return
	}
	cfg := s.cfg.Passes
	cfg.Verify = true
	if err := passes.RunModule(s.mod, passes.Standard(s.cfg.Optimize), cfg); err != nil {
		s.report(pos, err.Error(), Error)
		s.compiled = false
		return
	}
	if s.cfg.EmitIR {
		s.report(syntax.Pos{}, ssa.SprintModule(s.mod), Info)
	}
}

// Execute runs the entry point of a compiled unit and returns its result.
func (s *Session) Execute(ctx context.Context) (float64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if s.mod.Lookup(EntryName) == nil {
		s.fail(ErrNoMain)
		return 0, ErrNoMain
	}
	e, err := jit.New(s.mod, s.cfg.Resolver, s.cfg.Options)
	if err != nil {
		err = fmt.Errorf("driver: creating execution engine: %w", err)
		s.fail(err)
		return 0, err
	}
	v, err := e.Run(ctx, EntryName)
	if err != nil {
		err = fmt.Errorf("driver: running %s: %w", EntryName, err)
		s.fail(err)
		return 0, err
	}
	s.state = StateExecuted
	return v, nil
}

// EmitObject writes the compiled unit as a relocatable object file to
// the configured path.
func (s *Session) EmitObject(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	m, err := codegen.Generate(s.mod)
	if err == nil {
		err = codegen.EmitObject(ctx, m, s.cfg.ObjectPath)
	}
	if err != nil {
		err = fmt.Errorf("driver: emitting %s: %w", s.cfg.ObjectPath, err)
		s.fail(err)
		return err
	}
	s.report(syntax.Pos{}, "wrote "+s.cfg.ObjectPath, Info)
	return nil
}

// WriteLL writes the compiled unit as textual LLVM IR.
func (s *Session) WriteLL(w io.Writer) error {
	if err := s.ready(); err != nil {
		return err
	}
	m, err := codegen.Generate(s.mod)
	if err != nil {
		return err
	}
	return codegen.WriteIR(w, m)
}

// Run compiles source from scratch, optionally writes the object file,
// and executes the entry point.
func (s *Session) Run(ctx context.Context, source string) (float64, error) {
	s.Reset(source)
	if !s.Compile() {
		return 0, ErrCompileFailed
	}
	if s.cfg.EmitObject {
		if err := s.EmitObject(ctx); err != nil {
			return 0, err
		}
	}
	return s.Execute(ctx)
}

// ready reports whether the session holds a successfully compiled unit.
func (s *Session) ready() error {
	switch s.state {
	case StateFinalized, StateExecuted:
		return nil
	case StateFailed:
		return ErrCompileFailed
	}
	return ErrNotCompiled
}

func (s *Session) fail(err error) {
	s.report(syntax.Pos{}, err.Error(), Error)
	s.state = StateFailed
}

// Compiled reports whether the last compilation produced no code
// generation errors.
func (s *Session) Compiled() bool { return s.compiled }

// State returns the current state.
func (s *Session) State() State { return s.state }

// Module returns the module of the current unit.
func (s *Session) Module() *ssa.Module { return s.mod }

// Precedence returns the current precedence of the binary operator op,
// or -1.
func (s *Session) Precedence(op byte) int {
	if s.ops == nil {
		return -1
	}
	prec, ok := s.ops.Lookup(op)
	if !ok {
		return -1
	}
	return prec
}
