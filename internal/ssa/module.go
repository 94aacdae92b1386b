package ssa

import (
	"fmt"

	"github.com/you-not-fish/kale/internal/syntax"
)

// ScopeKind is the kind of a debug scope.
type ScopeKind uint8

const (
	ScopeFile ScopeKind = iota
	ScopeSubprogram
	ScopeLexical
)

var scopeKindNames = [...]string{
	ScopeFile:       "file",
	ScopeSubprogram: "subprogram",
	ScopeLexical:    "lexical",
}

func (k ScopeKind) String() string {
	if int(k) < len(scopeKindNames) {
		return scopeKindNames[k]
	}
	return "unknown"
}

// DebugScope is one entry of the chain of debug scopes a value was
// generated in: the file, a function, or a block nested inside it.
type DebugScope struct {
	Kind   ScopeKind
	Name   string
	Pos    syntax.Pos
	Parent *DebugScope
}

// String returns the innermost scope as "kind name".
func (s *DebugScope) String() string {
	if s.Name == "" {
		return fmt.Sprintf("{%s %d:%d}", s.Kind, s.Pos.Line(), s.Pos.Col())
	}
	return fmt.Sprintf("{%s %s}", s.Kind, s.Name)
}

// Subprogram returns the closest enclosing subprogram scope.
func (s *DebugScope) Subprogram() *DebugScope {
	for ; s != nil; s = s.Parent {
		if s.Kind == ScopeSubprogram {
			return s
		}
	}
	return nil
}

// Module is a translation unit: the ordered set of functions and
// declarations produced by one compilation, plus the string constants they
// reference.
type Module struct {
	Name    string
	Funcs   []*Func
	Strings []string

	// Unit is the file scope at the root of every debug scope chain.
	Unit *DebugScope

	funcs   map[string]*Func
	strings map[string]int
}

// NewModule returns an empty module for the named source file.
func NewModule(name string) *Module {
	return &Module{
		Name:    name,
		Unit:    &DebugScope{Kind: ScopeFile, Name: name},
		funcs:   make(map[string]*Func),
		strings: make(map[string]int),
	}
}

// Lookup returns the function or declaration with the given name.
func (m *Module) Lookup(name string) *Func {
	return m.funcs[name]
}

// Add appends f to the module. It returns false if a function of the same
// name already exists.
func (m *Module) Add(f *Func) bool {
	if _, ok := m.funcs[f.Name]; ok {
		return false
	}
	m.funcs[f.Name] = f
	m.Funcs = append(m.Funcs, f)
	return true
}

// Remove deletes f from the module.
func (m *Module) Remove(f *Func) {
	if m.funcs[f.Name] != f {
		return
	}
	delete(m.funcs, f.Name)
	for i, g := range m.Funcs {
		if g == f {
			m.Funcs = append(m.Funcs[:i], m.Funcs[i+1:]...)
			break
		}
	}
}

// Intern returns the index of s in Strings, adding it if needed.
func (m *Module) Intern(s string) int {
	if i, ok := m.strings[s]; ok {
		return i
	}
	i := len(m.Strings)
	m.Strings = append(m.Strings, s)
	m.strings[s] = i
	return i
}

// Defined returns the functions that have a body, in definition order.
func (m *Module) Defined() []*Func {
	var fs []*Func
	for _, f := range m.Funcs {
		if !f.IsDecl() {
			fs = append(fs, f)
		}
	}
	return fs
}
