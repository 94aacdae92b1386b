// Package jit executes a finished SSA module in process.
//
// The engine interprets the IR directly: each call gets a frame with one
// register per value ID and a slot array for its allocas. Calls of
// declarations go to external routines supplied by a Resolver.
package jit

import (
	"context"
	"errors"
	"fmt"

	"github.com/you-not-fish/kale/internal/ssa"
)

// DefaultMaxDepth is the call depth limit when Options.MaxDepth is zero.
const DefaultMaxDepth = 10000

var (
	ErrNoEntry       = errors.New("jit: no such function")
	ErrUnresolved    = errors.New("jit: unresolved external symbol")
	ErrStackOverflow = errors.New("jit: stack overflow")
	ErrStepLimit     = errors.New("jit: step limit exceeded")
	ErrDivideByZero  = errors.New("jit: integer divide by zero")
)

// Arg is an argument passed to an external routine. Str is set for
// string parameters, Num for everything else.
type Arg struct {
	Num float64
	Str string
}

// ExternFunc implements an external symbol.
type ExternFunc func(args []Arg) (float64, error)

// Resolver looks up external symbols by name.
type Resolver interface {
	Resolve(name string) (ExternFunc, bool)
}

// MapResolver resolves symbols from a map.
type MapResolver map[string]ExternFunc

// Resolve implements Resolver.
func (r MapResolver) Resolve(name string) (ExternFunc, bool) {
	fn, ok := r[name]
	return fn, ok
}

// Options limits execution.
type Options struct {
	MaxDepth int   // call depth limit; DefaultMaxDepth if zero
	MaxSteps int64 // executed value limit per Run; unlimited if zero
}

// Engine runs functions of one module.
type Engine struct {
	mod     *ssa.Module
	funcs   map[string]*ssa.Func
	externs map[string]ExternFunc
	opts    Options
}

// New prepares m for execution. Every defined function must verify and
// every declaration called from a defined function must resolve.
func New(m *ssa.Module, r Resolver, opts Options) (*Engine, error) {
	if err := ssa.VerifyModule(m); err != nil {
		return nil, fmt.Errorf("jit: %w", err)
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	e := &Engine{
		mod:     m,
		funcs:   make(map[string]*ssa.Func, len(m.Funcs)),
		externs: make(map[string]ExternFunc),
		opts:    opts,
	}
	for _, f := range m.Funcs {
		e.funcs[f.Name] = f
	}
	for _, name := range calledDecls(m) {
		var fn ExternFunc
		ok := false
		if r != nil {
			fn, ok = r.Resolve(name)
		}
		if !ok || fn == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnresolved, name)
		}
		e.externs[name] = fn
	}
	return e, nil
}

// calledDecls returns the declarations called from defined functions, in
// module order.
func calledDecls(m *ssa.Module) []string {
	called := make(map[string]bool)
	for _, f := range m.Defined() {
		for _, b := range f.Blocks {
			for _, v := range b.Values {
				if v.Op == ssa.OpCall {
					called[v.Name()] = true
				}
			}
		}
	}
	var names []string
	for _, f := range m.Funcs {
		if f.IsDecl() && called[f.Name] {
			names = append(names, f.Name)
		}
	}
	return names
}

// Run calls the zero-argument function name and returns its result.
// Cancellation of ctx is observed before each external call.
func (e *Engine) Run(ctx context.Context, name string) (float64, error) {
	f := e.funcs[name]
	if f == nil || f.IsDecl() {
		return 0, fmt.Errorf("%w: %s", ErrNoEntry, name)
	}
	if len(f.Params) != 0 {
		return 0, fmt.Errorf("jit: %s takes %d arguments", name, len(f.Params))
	}
	r := &runner{ctx: ctx, e: e}
	v, err := r.call(f, nil, 1)
	if err != nil {
		return 0, err
	}
	return v.num, nil
}

// Options returns the limits in effect, with defaults filled in.
func (e *Engine) Options() Options { return e.opts }
