// Package scope binds variable names to storage slots during code
// generation. Bindings follow a stack discipline: inner scopes shadow outer
// bindings and unwinding a scope restores exactly what it replaced.
package scope

import (
	"fmt"
	"sort"
	"strings"
)

// Env maps names to slots of type S.
type Env[S any] struct {
	elems map[string]S
	undo  []saved[S]
}

// saved is the binding a Bind replaced.
type saved[S any] struct {
	name string
	slot S
	had  bool
}

// New returns an empty environment.
func New[S any]() *Env[S] {
	return &Env[S]{elems: make(map[string]S)}
}

// Lookup returns the slot currently bound to name.
func (e *Env[S]) Lookup(name string) (S, bool) {
	s, ok := e.elems[name]
	return s, ok
}

// Bind binds name to slot, shadowing any existing binding until the
// enclosing mark is unwound.
func (e *Env[S]) Bind(name string, slot S) {
	old, had := e.elems[name]
	e.undo = append(e.undo, saved[S]{name: name, slot: old, had: had})
	e.elems[name] = slot
}

// Mark returns the current scope depth, to be passed to Unwind.
func (e *Env[S]) Mark() int {
	return len(e.undo)
}

// Unwind undoes every Bind made since mark, most recent first.
func (e *Env[S]) Unwind(mark int) {
	if mark < 0 || mark > len(e.undo) {
		panic(fmt.Sprintf("scope: unwind to %d with %d bindings", mark, len(e.undo)))
	}
	for i := len(e.undo) - 1; i >= mark; i-- {
		u := e.undo[i]
		if u.had {
			e.elems[u.name] = u.slot
		} else {
			delete(e.elems, u.name)
		}
	}
	e.undo = e.undo[:mark]
}

// Len returns the number of names currently bound.
func (e *Env[S]) Len() int {
	return len(e.elems)
}

// Reset drops all bindings. Code generation resets the environment at the
// start of every function.
func (e *Env[S]) Reset() {
	clear(e.elems)
	e.undo = e.undo[:0]
}

// String lists the bound names in sorted order.
func (e *Env[S]) String() string {
	names := make([]string, 0, len(e.elems))
	for name := range e.elems {
		names = append(names, name)
	}
	sort.Strings(names)
	return "{" + strings.Join(names, " ") + "}"
}
