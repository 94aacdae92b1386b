package ssa

import (
	"fmt"

	"github.com/you-not-fish/kale/internal/scope"
	"github.com/you-not-fish/kale/internal/syntax"
)

// ErrorHandler receives code generation errors.
type ErrorHandler func(pos syntax.Pos, msg string)

// Builder lowers prototypes and function definitions into a Module.
//
// Functions are resolved by name, first against the module and then
// against the registry of prototypes seen so far. A function may call
// itself and anything declared before it; calling a later definition
// needs an extern first.
type Builder struct {
	mod    *Module
	protos map[string]*syntax.Prototype
	errh   ErrorHandler
	errcnt int

	// Per-function state.
	fn     *Func
	b      *Block             // current block
	env    *scope.Env[*Value] // variable name -> Alloca
	scopes []*DebugScope      // debug scope stack
	pos    syntax.Pos         // location of the node being lowered
}

// NewBuilder returns a builder emitting into m. Errors are reported to
// errh, which may be nil.
func NewBuilder(m *Module, errh ErrorHandler) *Builder {
	return &Builder{
		mod:    m,
		protos: make(map[string]*syntax.Prototype),
		errh:   errh,
		env:    scope.New[*Value](),
	}
}

// Module returns the module being built.
func (b *Builder) Module() *Module { return b.mod }

// Errors returns the number of errors reported so far.
func (b *Builder) Errors() int { return b.errcnt }

// Prototype returns the registered prototype with the given name.
func (b *Builder) Prototype(name string) *syntax.Prototype {
	return b.protos[name]
}

func (b *Builder) errorAt(pos syntax.Pos, msg string) {
	b.errcnt++
	if b.errh != nil {
		b.errh(pos, msg)
	}
}

func (b *Builder) errorf(pos syntax.Pos, format string, args ...interface{}) {
	b.errorAt(pos, fmt.Sprintf(format, args...))
}

// DeclareProto registers p and declares it in the module. Declaring the
// same prototype again returns the existing function.
func (b *Builder) DeclareProto(p *syntax.Prototype) (*Func, bool) {
	params, ok := b.params(p)
	if !ok {
		return nil, false
	}
	if f := b.mod.Lookup(p.Name); f != nil {
		if len(f.Params) != len(params) {
			b.errorAt(p.Pos(), "function redeclared with different arity")
			return nil, false
		}
		b.protos[p.Name] = p
		return f, true
	}
	b.protos[p.Name] = p
	return b.declare(p.Name, p.Pos(), params), true
}

// params converts the parameter list of p.
func (b *Builder) params(p *syntax.Prototype) ([]Param, bool) {
	params := make([]Param, len(p.Params))
	for i, a := range p.Params {
		t, ok := TypeOf(a.Type)
		if !ok {
			b.errorAt(p.Pos(), "unknown argument type")
			return nil, false
		}
		params[i] = Param{Name: a.Name, Type: t}
	}
	return params, true
}

func (b *Builder) declare(name string, pos syntax.Pos, params []Param) *Func {
	f := NewDecl(name, params...)
	f.Pos = pos
	b.mod.Add(f)
	return f
}

// function returns the function called name, declaring it from the
// prototype registry if the module does not have it yet.
func (b *Builder) function(name string) *Func {
	if f := b.mod.Lookup(name); f != nil {
		return f
	}
	p, ok := b.protos[name]
	if !ok {
		return nil
	}
	f, _ := b.DeclareProto(p)
	return f
}

// BuildFunc lowers a function definition. On failure nothing of the
// definition remains in the module: a new function is removed, and a
// function that was declared before reverts to its declaration.
func (b *Builder) BuildFunc(fd *syntax.FuncDecl) (*Func, bool) {
	p := fd.Proto
	params, ok := b.params(p)
	if !ok {
		return nil, false
	}

	f := b.mod.Lookup(p.Name)
	wasDecl := f != nil
	switch {
	case f == nil:
		f = b.declare(p.Name, p.Pos(), params)
	case !f.IsDecl():
		b.errorAt(p.Pos(), "redefinition of function")
		return nil, false
	case len(f.Params) != len(params):
		b.errorAt(p.Pos(), "function redeclared with different arity")
		return nil, false
	}
	oldProto, hadProto := b.protos[p.Name]
	b.protos[p.Name] = p

	if !b.body(f, p, params, fd.Body) {
		if wasDecl {
			f.Undefine()
		} else {
			b.mod.Remove(f)
		}
		if hadProto {
			b.protos[p.Name] = oldProto
		} else {
			delete(b.protos, p.Name)
		}
		return nil, false
	}
	return f, true
}

// body lowers the body of f into a fresh CFG.
func (b *Builder) body(f *Func, p *syntax.Prototype, params []Param, body syntax.Expr) bool {
	f.Params = params
	f.Pos = p.Pos()
	f.Define()

	sp := &DebugScope{Kind: ScopeSubprogram, Name: f.Name, Pos: p.Pos(), Parent: b.mod.Unit}
	f.Scope = sp
	b.pushScope(sp)
	defer b.popScope()

	b.fn = f
	b.b = f.Entry
	b.env.Reset()
	defer func() {
		b.fn, b.b = nil, nil
		b.env.Reset()
	}()

	b.pos = p.Pos()
	args := make([]*Value, len(params))
	for i, prm := range params {
		args[i] = b.fn.NewValueLoc(f.Entry, OpArg, prm.Type, b.loc())
		args[i].AuxInt = int64(i)
		args[i].Aux = prm.Name
	}
	for i, prm := range params {
		arg := args[i]
		slot := b.entryAlloca(prm.Type, prm.Name)
		b.store(slot, arg)
		b.env.Bind(prm.Name, slot)
	}

	b.pos = body.Pos()
	ret := b.expr(body)
	if ret == nil {
		return false
	}
	if ret.Type != TypeFloat {
		b.errorAt(body.Pos(), "function result must be a number")
		return false
	}
	b.b.Kind = BlockReturn
	b.b.SetControl(ret)

	if err := Verify(f); err != nil {
		b.errorAt(p.Pos(), err.Error())
		return false
	}
	return true
}

// BuildEntry defines a function called name that calls each of runs in
// order and returns the result of the last one, or 0.0 if runs is empty.
func (b *Builder) BuildEntry(name string, pos syntax.Pos, runs []string) (*Func, bool) {
	if b.mod.Lookup(name) != nil {
		b.errorAt(pos, "redefinition of function")
		return nil, false
	}
	f := b.declare(name, pos, nil)
	f.Define()
	sp := &DebugScope{Kind: ScopeSubprogram, Name: name, Pos: pos, Parent: b.mod.Unit}
	f.Scope = sp
	loc := Loc{Pos: pos, Scope: sp}

	var ret *Value
	for _, run := range runs {
		callee := b.mod.Lookup(run)
		if callee == nil || len(callee.Params) != 0 {
			b.errorf(pos, "unknown function referenced: %s", run)
			b.mod.Remove(f)
			return nil, false
		}
		ret = f.NewValueLoc(f.Entry, OpCall, TypeFloat, loc)
		ret.Aux = run
	}
	if ret == nil {
		ret = f.NewValueLoc(f.Entry, OpConstFloat, TypeFloat, loc)
	}
	f.Entry.Kind = BlockReturn
	f.Entry.SetControl(ret)
	return f, true
}

// entryAlloca creates a slot in the entry block, after the arguments and
// any slots created before it, so every slot dominates all its uses.
func (b *Builder) entryAlloca(elem Type, name string) *Value {
	entry := b.fn.Entry
	i := 0
	for i < len(entry.Values) && (entry.Values[i].Op == OpArg || entry.Values[i].Op == OpAlloca) {
		i++
	}
	slot := b.fn.NewValueAt(entry, i, OpAlloca, TypePtr)
	slot.AuxInt = int64(elem)
	slot.Aux = name
	slot.Loc = b.loc()
	return slot
}

func (b *Builder) store(slot, v *Value) {
	b.fn.NewValueLoc(b.b, OpStore, TypeVoid, b.loc(), slot, v)
}

func (b *Builder) load(slot *Value) *Value {
	v := b.fn.NewValueLoc(b.b, OpLoad, slot.Elem(), b.loc(), slot)
	v.Aux = slot.Aux
	return v
}

// newValue appends a value with the current location to the current block.
func (b *Builder) newValue(op Op, typ Type, args ...*Value) *Value {
	return b.fn.NewValueLoc(b.b, op, typ, b.loc(), args...)
}

// jump ends the current block with an unconditional branch to to.
func (b *Builder) jump(to *Block) {
	b.b.Kind = BlockPlain
	b.b.AddSucc(to)
}

// branch ends the current block with a conditional branch.
func (b *Builder) branch(cond *Value, then, els *Block) {
	b.b.Kind = BlockIf
	b.b.SetControl(cond)
	b.b.AddSucc(then)
	b.b.AddSucc(els)
}

// ----------------------------------------------------------------------------
// Debug scopes

func (b *Builder) pushScope(s *DebugScope) {
	b.scopes = append(b.scopes, s)
}

func (b *Builder) popScope() {
	b.scopes = b.scopes[:len(b.scopes)-1]
}

// lexicalScope opens a block scope nested in the current one.
func (b *Builder) lexicalScope(pos syntax.Pos) {
	b.pushScope(&DebugScope{Kind: ScopeLexical, Pos: pos, Parent: b.scope()})
}

func (b *Builder) scope() *DebugScope {
	if len(b.scopes) == 0 {
		return b.mod.Unit
	}
	return b.scopes[len(b.scopes)-1]
}

// loc returns the current debug location.
func (b *Builder) loc() Loc {
	return Loc{Pos: b.pos, Scope: b.scope()}
}

// ScopeDepth returns the depth of the debug scope stack.
func (b *Builder) ScopeDepth() int { return len(b.scopes) }
