package ssa

import (
	"fmt"

	"github.com/you-not-fish/kale/internal/syntax"
)

// expr lowers an expression to an SSA value. It returns nil after
// reporting an error; callers stop lowering at the first nil.
func (b *Builder) expr(e syntax.Expr) *Value {
	b.pos = e.Pos()

	switch e := e.(type) {
	case *syntax.NumberLit:
		return b.constFloat(e.Value)

	case *syntax.StringLit:
		v := b.newValue(OpConstString, TypeString)
		v.Aux = e.Value
		b.mod.Intern(e.Value)
		return v

	case *syntax.VarRef:
		slot, ok := b.env.Lookup(e.Name)
		if !ok {
			b.errorAt(e.Pos(), "unknown variable name")
			return nil
		}
		return b.load(slot)

	case *syntax.Unary:
		return b.unaryExpr(e)

	case *syntax.Binary:
		return b.binaryExpr(e)

	case *syntax.Call:
		return b.callExpr(e)

	case *syntax.IfExpr:
		return b.ifExpr(e)

	case *syntax.ForExpr:
		return b.forExpr(e)

	case *syntax.VarExpr:
		return b.varExpr(e)

	case *syntax.Compound:
		return b.compound(e)

	default:
		panic(fmt.Sprintf("ssa.Builder.expr: unhandled %T", e))
	}
}

func (b *Builder) constFloat(x float64) *Value {
	v := b.newValue(OpConstFloat, TypeFloat)
	v.AuxFloat = x
	return v
}

// number reports an error unless v is a float.
func (b *Builder) number(v *Value, pos syntax.Pos, what string) bool {
	if v.Type != TypeFloat {
		b.errorf(pos, "%s must be a number, not %s", what, v.Type)
		return false
	}
	return true
}

// unaryExpr lowers op x to a call of the function "unary" + op.
func (b *Builder) unaryExpr(e *syntax.Unary) *Value {
	x := b.expr(e.X)
	if x == nil {
		return nil
	}
	b.pos = e.Pos()
	f := b.function("unary" + string(e.Op))
	if f == nil {
		b.errorAt(e.Pos(), "unknown unary operator")
		return nil
	}
	return b.call(f, e.Pos(), x)
}

// binaryExpr lowers assignment, the builtin operators, and calls of user
// defined "binary" + op functions, in that order of priority.
func (b *Builder) binaryExpr(e *syntax.Binary) *Value {
	if e.Op == '=' {
		return b.assign(e)
	}

	x := b.expr(e.X)
	if x == nil {
		return nil
	}
	y := b.expr(e.Y)
	if y == nil {
		return nil
	}
	b.pos = e.Pos()

	var op Op
	switch e.Op {
	case '+':
		op = OpAddF
	case '-':
		op = OpSubF
	case '*':
		op = OpMulF
	case '/':
		op = OpDivF
	case '<':
		op = OpCmpULT
	case '>':
		op = OpCmpUGT
	case '%':
		return b.rem(e, x, y)
	default:
		f := b.function("binary" + string(e.Op))
		if f == nil {
			b.errorAt(e.Pos(), "unknown binary operator")
			return nil
		}
		return b.call(f, e.Pos(), x, y)
	}

	what := fmt.Sprintf("operand of '%c'", e.Op)
	if !b.number(x, e.Pos(), what) || !b.number(y, e.Pos(), what) {
		return nil
	}
	v := b.newValue(op, op.ResultType(), x, y)
	if v.Type == TypeBool {
		v = b.newValue(OpBoolToFloat, TypeFloat, v)
	}
	return v
}

// rem lowers x % y: srem for integers, x - floor(x/y)*y for floats.
func (b *Builder) rem(e *syntax.Binary, x, y *Value) *Value {
	switch {
	case x.Type == TypeInt && y.Type == TypeInt:
		return b.newValue(OpRemI, TypeInt, x, y)
	case x.Type == TypeFloat && y.Type == TypeFloat:
		div := b.newValue(OpDivF, TypeFloat, x, y)
		fl := b.newValue(OpFloor, TypeFloat, div)
		mul := b.newValue(OpMulF, TypeFloat, fl, y)
		return b.newValue(OpSubF, TypeFloat, x, mul)
	}
	b.errorAt(e.Pos(), "operands to % must be both integers or both floats")
	return nil
}

// assign lowers name = value. The result is the stored value.
func (b *Builder) assign(e *syntax.Binary) *Value {
	dst, ok := e.X.(*syntax.VarRef)
	if !ok {
		b.errorAt(e.Pos(), "destination of '=' must be a variable")
		return nil
	}
	v := b.expr(e.Y)
	if v == nil {
		return nil
	}
	b.pos = e.Pos()
	slot, ok := b.env.Lookup(dst.Name)
	if !ok {
		b.errorAt(e.Pos(), "unknown variable name")
		return nil
	}
	if v.Type != slot.Elem() {
		b.errorf(e.Pos(), "cannot assign %s to %s variable %s", v.Type, slot.Elem(), dst.Name)
		return nil
	}
	b.store(slot, v)
	return v
}

// callExpr lowers callee(args...). Arguments are evaluated left to right
// and lowering stops at the first one that fails.
func (b *Builder) callExpr(e *syntax.Call) *Value {
	f := b.function(e.Callee)
	if f == nil {
		b.errorf(e.Pos(), "unknown function referenced: %s", e.Callee)
		return nil
	}
	if len(f.Params) != len(e.Args) {
		b.errorAt(e.Pos(), "incorrect # arguments passed")
		return nil
	}
	args := make([]*Value, len(e.Args))
	for i, a := range e.Args {
		if args[i] = b.expr(a); args[i] == nil {
			return nil
		}
	}
	b.pos = e.Pos()
	return b.call(f, e.Pos(), args...)
}

// call emits a call of f after checking argument count and types.
func (b *Builder) call(f *Func, pos syntax.Pos, args ...*Value) *Value {
	if len(f.Params) != len(args) {
		b.errorAt(pos, "incorrect # arguments passed")
		return nil
	}
	for i, a := range args {
		if want := f.Params[i].Type; a.Type != want {
			b.errorf(pos, "argument %d of %s must be %s, not %s", i+1, f.Name, want, a.Type)
			return nil
		}
	}
	v := b.newValue(OpCall, TypeFloat, args...)
	v.Aux = f.Name
	return v
}

// truth emits x != 0.0 as a branch condition.
func (b *Builder) truth(x *Value) *Value {
	zero := b.constFloat(0)
	return b.newValue(OpCmpONE, TypeBool, x, zero)
}

// ifExpr lowers if/then/else to a diamond whose merge block joins the
// two branch results with a phi. Either branch may leave the builder in a
// different block than it started in; the phi uses the blocks the
// branches actually ended in.
func (b *Builder) ifExpr(e *syntax.IfExpr) *Value {
	cond := b.expr(e.Cond)
	if cond == nil || !b.number(cond, e.Cond.Pos(), "condition") {
		return nil
	}
	b.pos = e.Pos()
	cond = b.truth(cond)

	bThen := b.fn.NewBlock(BlockPlain)
	bElse := b.fn.NewBlock(BlockPlain)
	bMerge := b.fn.NewBlock(BlockPlain)
	b.branch(cond, bThen, bElse)

	b.b = bThen
	thenV := b.expr(e.Then)
	if thenV == nil {
		return nil
	}
	b.jump(bMerge)

	b.b = bElse
	elseV := b.expr(e.Else)
	if elseV == nil {
		return nil
	}
	b.jump(bMerge)

	if thenV.Type != elseV.Type {
		b.errorf(e.Pos(), "if branches have different types %s and %s", thenV.Type, elseV.Type)
		return nil
	}

	b.b = bMerge
	b.pos = e.Pos()
	return b.newValue(OpPhi, thenV.Type, thenV, elseV)
}

// forExpr lowers
//
//	for v = start, end, step in body
//
// to a slot for v, a condition block that evaluates end on every
// iteration, the body followed by v = v + step, and an exit block. The
// value of the loop is 0.0.
func (b *Builder) forExpr(e *syntax.ForExpr) *Value {
	slot := b.entryAlloca(TypeFloat, e.Var)

	start := b.expr(e.Start)
	if start == nil || !b.number(start, e.Start.Pos(), "loop start") {
		return nil
	}
	b.pos = e.Pos()
	b.store(slot, start)

	mark := b.env.Mark()
	defer b.env.Unwind(mark)
	b.env.Bind(e.Var, slot)

	b.lexicalScope(e.Pos())
	defer b.popScope()

	bCond := b.fn.NewBlock(BlockPlain)
	bBody := b.fn.NewBlock(BlockPlain)
	bExit := b.fn.NewBlock(BlockPlain)
	b.jump(bCond)

	b.b = bCond
	end := b.expr(e.End)
	if end == nil || !b.number(end, e.End.Pos(), "loop condition") {
		return nil
	}
	b.pos = e.End.Pos()
	b.branch(b.truth(end), bBody, bExit)

	b.b = bBody
	if b.expr(e.Body) == nil {
		return nil
	}

	var step *Value
	if e.Step != nil {
		if step = b.expr(e.Step); step == nil || !b.number(step, e.Step.Pos(), "loop step") {
			return nil
		}
	} else {
		step = b.constFloat(1)
	}
	b.pos = e.Pos()
	cur := b.load(slot)
	next := b.newValue(OpAddF, TypeFloat, cur, step)
	b.store(slot, next)
	b.jump(bCond)

	b.b = bExit
	return b.constFloat(0)
}

// varExpr lowers var a = x, b = y in body. Each initializer is evaluated
// before its own name is bound, so it sees the outer binding.
func (b *Builder) varExpr(e *syntax.VarExpr) *Value {
	mark := b.env.Mark()
	defer b.env.Unwind(mark)

	for _, vb := range e.Vars {
		var init *Value
		if vb.Init != nil {
			if init = b.expr(vb.Init); init == nil {
				return nil
			}
		} else {
			init = b.constFloat(0)
		}
		b.pos = vb.Pos()
		slot := b.entryAlloca(init.Type, vb.Name)
		b.store(slot, init)
		b.env.Bind(vb.Name, slot)
	}

	b.lexicalScope(e.Pos())
	defer b.popScope()
	return b.expr(e.Body)
}

// compound lowers a sequence; its value is the last expression's.
func (b *Builder) compound(e *syntax.Compound) *Value {
	if len(e.List) == 0 {
		return b.constFloat(0)
	}
	var v *Value
	for _, x := range e.List {
		if v = b.expr(x); v == nil {
			return nil
		}
	}
	return v
}
