package ssa

import (
	"strings"
	"testing"

	"github.com/you-not-fish/kale/internal/syntax"
)

// buildSource parses src item by item and lowers every item, committing
// or rolling back operator edits the way the driver does. It returns the
// module, the builder and all parse and codegen errors.
func buildSource(t *testing.T, ops *syntax.OpTable, src string) (*Module, *Builder, []string) {
	t.Helper()

	var errs []string
	errh := func(pos syntax.Pos, msg string) {
		errs = append(errs, pos.String()+": "+msg)
	}

	buf := syntax.NewBuffer(src)
	buf.Terminate()
	p := syntax.NewParser(syntax.NewScanner("test.ks", buf, syntax.DefaultTabWidth, nil), ops, errh)

	m := NewModule("test.ks")
	bld := NewBuilder(m, errh)
	for i := 0; !p.AtEOF(); i++ {
		if i > 1000 {
			t.Fatal("parser did not terminate")
		}
		it, ok := p.ParseItem()
		if !ok {
			p.Skip()
			continue
		}
		switch d := it.(type) {
		case *syntax.FuncDecl:
			if _, ok := bld.BuildFunc(d); ok {
				d.Edit.Commit()
			} else {
				d.Edit.Rollback()
			}
		case *syntax.ExternDecl:
			bld.DeclareProto(d.Proto)
		}
	}
	return m, bld, errs
}

// mustBuild builds src and fails the test on any error. Every function is
// verified.
func mustBuild(t *testing.T, src string) *Module {
	t.Helper()
	m, _, errs := buildSource(t, syntax.NewOpTable(), src)
	if len(errs) > 0 {
		t.Fatalf("errors building %q:\n%s", src, strings.Join(errs, "\n"))
	}
	if err := VerifyModule(m); err != nil {
		t.Fatalf("VerifyModule failed:\n%v\nSSA:\n%s", err, SprintModule(m))
	}
	return m
}

// getFunc returns the named function or calls t.Fatal.
func getFunc(t *testing.T, m *Module, name string) *Func {
	t.Helper()
	f := m.Lookup(name)
	if f == nil {
		t.Fatalf("function %q not found in module:\n%s", name, SprintModule(m))
	}
	return f
}

// countOp counts the values with the given op in f.
func countOp(f *Func, op Op) int {
	n := 0
	for _, b := range f.Blocks {
		for _, v := range b.Values {
			if v.Op == op {
				n++
			}
		}
	}
	return n
}

// valuesOf returns the values with the given op in f, in block order.
func valuesOf(f *Func, op Op) []*Value {
	var vs []*Value
	for _, b := range f.Blocks {
		for _, v := range b.Values {
			if v.Op == op {
				vs = append(vs, v)
			}
		}
	}
	return vs
}

func TestBuildArith(t *testing.T) {
	m := mustBuild(t, "def f(x) x * 2 + 1")
	f := getFunc(t, m, "f")

	if len(f.Params) != 1 || f.Params[0] != (Param{Name: "x", Type: TypeFloat}) {
		t.Errorf("Params = %v, want [{x double}]", f.Params)
	}
	if f.NumBlocks() != 1 {
		t.Errorf("NumBlocks = %d, want 1", f.NumBlocks())
	}
	for _, op := range []Op{OpArg, OpMulF, OpAddF} {
		if countOp(f, op) != 1 {
			t.Errorf("count(%v) = %d, want 1:\n%s", op, countOp(f, op), Sprint(f))
		}
	}
	if ret := f.Entry.Controls[0]; ret.Op != OpAddF {
		t.Errorf("returns %v, want AddF", ret.LongString())
	}
}

func TestBuildParamsStored(t *testing.T) {
	m := mustBuild(t, "def f(x y) y")
	f := getFunc(t, m, "f")

	// Arguments first, then their slots, then the stores.
	want := []Op{OpArg, OpArg, OpAlloca, OpAlloca, OpStore, OpStore, OpLoad}
	vals := f.Entry.Values
	if len(vals) != len(want) {
		t.Fatalf("entry has %d values, want %d:\n%s", len(vals), len(want), Sprint(f))
	}
	for i, op := range want {
		if vals[i].Op != op {
			t.Errorf("Values[%d] = %v, want %v", i, vals[i].Op, op)
		}
	}
	if vals[6].Args[0] != vals[3] {
		t.Errorf("load of y reads %v, want slot %v", vals[6].Args[0], vals[3])
	}
}

func TestBuildTopLevel(t *testing.T) {
	m := mustBuild(t, "1 + 2; 3\ndef g() 4\n5")
	for _, name := range []string{"__anon_expr.0", "__anon_expr.1", "g"} {
		f := getFunc(t, m, name)
		if len(f.Params) != 0 {
			t.Errorf("%s has %d params, want 0", name, len(f.Params))
		}
	}
}

func TestBuildCompare(t *testing.T) {
	tests := []struct {
		src string
		op  Op
	}{
		{"def f(a b) a < b", OpCmpULT},
		{"def f(a b) a > b", OpCmpUGT},
	}
	for _, tt := range tests {
		m := mustBuild(t, tt.src)
		f := getFunc(t, m, "f")
		if countOp(f, tt.op) != 1 || countOp(f, OpBoolToFloat) != 1 {
			t.Errorf("%q:\n%s", tt.src, Sprint(f))
		}
	}
}

func TestBuildRemFloat(t *testing.T) {
	m := mustBuild(t, "def f(a b) a % b")
	f := getFunc(t, m, "f")

	ret := f.Entry.Controls[0]
	if ret.Op != OpSubF {
		t.Fatalf("returns %s, want SubF:\n%s", ret.LongString(), Sprint(f))
	}
	mul := ret.Args[1]
	if mul.Op != OpMulF || mul.Args[0].Op != OpFloor || mul.Args[0].Args[0].Op != OpDivF {
		t.Errorf("want a - floor(a/b)*b, got:\n%s", Sprint(f))
	}
	if countOp(f, OpRemI) != 0 {
		t.Errorf("float remainder should not use RemI")
	}
}

func TestBuildBuiltinBeatsUserOperator(t *testing.T) {
	m := mustBuild(t, "def binary+ 20 (a b) 0; def f(x) x + 1")
	f := getFunc(t, m, "f")
	if countOp(f, OpCall) != 0 || countOp(f, OpAddF) != 1 {
		t.Errorf("'+' should lower to AddF:\n%s", Sprint(f))
	}
}

func TestBuildUserOperators(t *testing.T) {
	m := mustBuild(t, "def unary!(v) if v then 0 else 1\ndef binary| 5 (a b) if a then 1 else if b then 1 else 0\ndef f(x) !x | x")
	f := getFunc(t, m, "f")

	calls := valuesOf(f, OpCall)
	if len(calls) != 2 {
		t.Fatalf("got %d calls, want 2:\n%s", len(calls), Sprint(f))
	}
	if calls[0].Name() != "unary!" || calls[1].Name() != "binary|" {
		t.Errorf("calls = %s, %s", calls[0].Name(), calls[1].Name())
	}
	if calls[1].Args[0] != calls[0] {
		t.Errorf("'!' should bind tighter than '|'")
	}
}

func TestBuildIf(t *testing.T) {
	m := mustBuild(t, "def f(x) if x < 1 then 1 else 2")
	f := getFunc(t, m, "f")

	if f.NumBlocks() != 4 {
		t.Fatalf("NumBlocks = %d, want 4:\n%s", f.NumBlocks(), Sprint(f))
	}
	if f.Entry.Kind != BlockIf || f.Entry.Controls[0].Op != OpCmpONE {
		t.Errorf("entry should branch on x != 0:\n%s", Sprint(f))
	}

	phis := valuesOf(f, OpPhi)
	if len(phis) != 1 {
		t.Fatalf("got %d phis, want 1", len(phis))
	}
	phi := phis[0]
	merge := phi.Block
	if len(merge.Preds) != 2 || len(phi.Args) != 2 {
		t.Fatalf("merge has %d preds, phi %d args", len(merge.Preds), len(phi.Args))
	}
	for i, arg := range phi.Args {
		if arg.Block != merge.Preds[i] {
			t.Errorf("phi arg %d comes from %s, want %s", i, arg.Block, merge.Preds[i])
		}
	}
	if merge.Kind != BlockReturn || merge.Controls[0] != phi {
		t.Errorf("merge block should return the phi:\n%s", Sprint(f))
	}

	ComputeDom(f)
	if err := VerifyDom(f); err != nil {
		t.Errorf("VerifyDom failed: %v", err)
	}
}

func TestBuildNestedIf(t *testing.T) {
	// The outer phi must use the blocks the inner if ended in.
	m := mustBuild(t, "def f(x) if x then (if x < 5 then 1 else 2) else 3")
	f := getFunc(t, m, "f")

	phis := valuesOf(f, OpPhi)
	if len(phis) != 2 {
		t.Fatalf("got %d phis, want 2:\n%s", len(phis), Sprint(f))
	}
	for _, phi := range phis {
		for i, arg := range phi.Args {
			pred := phi.Block.Preds[i]
			if arg.Block != pred && arg.Op != OpPhi {
				t.Errorf("%s arg %d defined in %s, pred is %s", phi, i, arg.Block, pred)
			}
		}
	}
	ComputeDom(f)
	if err := VerifyDom(f); err != nil {
		t.Errorf("VerifyDom failed: %v\n%s", err, Sprint(f))
	}
}

func TestBuildFor(t *testing.T) {
	m := mustBuild(t, "extern putchard(c)\ndef f(n) for i = 0, i < n in putchard(65)")
	f := getFunc(t, m, "f")

	if f.NumBlocks() != 4 {
		t.Fatalf("NumBlocks = %d, want 4:\n%s", f.NumBlocks(), Sprint(f))
	}
	cond, body, exit := f.Blocks[1], f.Blocks[2], f.Blocks[3]

	if len(cond.Preds) != 2 || cond.Preds[0] != f.Entry || cond.Preds[1] != body {
		t.Errorf("condition preds = %v, want [b0 %s]", cond.Preds, body)
	}
	if cond.Kind != BlockIf || cond.Succs[0] != body || cond.Succs[1] != exit {
		t.Errorf("condition should branch to body or exit:\n%s", Sprint(f))
	}
	if countOp(f, OpAlloca) != 2 {
		t.Errorf("want slots for n and i:\n%s", Sprint(f))
	}
	ret := exit.Controls[0]
	if ret.Op != OpConstFloat || ret.AuxFloat != 0 {
		t.Errorf("for loop value = %s, want ConstFloat 0", ret.LongString())
	}
	// The body ends with i = i + 1 and a back edge.
	var add *Value
	for _, v := range body.Values {
		if v.Op == OpAddF {
			add = v
		}
	}
	if add == nil || add.Args[1].Op != OpConstFloat || add.Args[1].AuxFloat != 1 {
		t.Errorf("body should add the default step 1:\n%s", Sprint(f))
	}

	ComputeDom(f)
	if err := VerifyDom(f); err != nil {
		t.Errorf("VerifyDom failed: %v", err)
	}
}

func TestBuildForStepAndScope(t *testing.T) {
	// The loop variable is visible in end, step and body, and gone after.
	m, _, errs := buildSource(t, syntax.NewOpTable(), "def f(n) { for i = 0, i < n, i + 1 in i; i }")
	if len(errs) != 1 || !strings.Contains(errs[0], "1:42: unknown variable name") {
		t.Fatalf("errors = %v, want unknown variable at 1:42", errs)
	}
	if m.Lookup("f") != nil {
		t.Errorf("failed definition left f in the module")
	}
}

func TestBuildVarShadow(t *testing.T) {
	m := mustBuild(t, "def f() var a = 5 in (var a = a + 1 in a)")
	f := getFunc(t, m, "f")

	slots := valuesOf(f, OpAlloca)
	if len(slots) != 2 || slots[0].Name() != "a" || slots[1].Name() != "a" {
		t.Fatalf("slots = %v:\n%s", slots, Sprint(f))
	}
	outer, inner := slots[0], slots[1]

	loads := valuesOf(f, OpLoad)
	if len(loads) != 2 {
		t.Fatalf("got %d loads, want 2:\n%s", len(loads), Sprint(f))
	}
	if loads[0].Args[0] != outer {
		t.Errorf("inner initializer should read the outer a")
	}
	if loads[1].Args[0] != inner {
		t.Errorf("inner body should read the inner a")
	}
}

func TestBuildVarDefaultsAndStrings(t *testing.T) {
	m := mustBuild(t, `extern printcl(string s)
def f() var n, s = "hi" in printcl(s) + n`)
	f := getFunc(t, m, "f")

	slots := valuesOf(f, OpAlloca)
	if len(slots) != 2 || slots[0].Elem() != TypeFloat || slots[1].Elem() != TypeString {
		t.Fatalf("slots = %v:\n%s", slots, Sprint(f))
	}
	stores := valuesOf(f, OpStore)
	if stores[0].Args[1].Op != OpConstFloat || stores[0].Args[1].AuxFloat != 0 {
		t.Errorf("n should default to 0.0:\n%s", Sprint(f))
	}
	if len(m.Strings) != 1 || m.Strings[0] != "hi" {
		t.Errorf("Strings = %q, want [hi]", m.Strings)
	}
}

func TestBuildEntryAllocasAtFront(t *testing.T) {
	m := mustBuild(t, "def f(x) { x = 1; var y = 2 in for i = 0, i < y in x = x + i; x }")
	f := getFunc(t, m, "f")

	seenOther := false
	for _, v := range f.Entry.Values {
		switch v.Op {
		case OpArg, OpAlloca:
			if seenOther {
				t.Errorf("%s follows other values in the entry block:\n%s", v.LongString(), Sprint(f))
			}
		default:
			seenOther = true
		}
	}
	if countOp(f, OpAlloca) != 3 {
		t.Errorf("want slots for x, y and i:\n%s", Sprint(f))
	}
	for _, b := range f.Blocks[1:] {
		for _, v := range b.Values {
			if v.Op == OpAlloca {
				t.Errorf("slot %s outside the entry block", v)
			}
		}
	}
}

func TestBuildCompound(t *testing.T) {
	m := mustBuild(t, "extern putchard(c)\ndef f() { putchard(1); 7 }\ndef g() {}")
	f := getFunc(t, m, "f")
	if ret := f.Entry.Controls[0]; ret.Op != OpConstFloat || ret.AuxFloat != 7 {
		t.Errorf("compound value = %s, want 7", ret.LongString())
	}
	g := getFunc(t, m, "g")
	if ret := g.Entry.Controls[0]; ret.Op != OpConstFloat || ret.AuxFloat != 0 {
		t.Errorf("empty compound value = %s, want 0", ret.LongString())
	}
}

func TestBuildAssignResult(t *testing.T) {
	m := mustBuild(t, "def f(x) x = 3")
	f := getFunc(t, m, "f")
	ret := f.Entry.Controls[0]
	if ret.Op != OpConstFloat || ret.AuxFloat != 3 {
		t.Errorf("assignment value = %s, want the stored 3", ret.LongString())
	}
}

func TestBuildForwardDeclaration(t *testing.T) {
	m := mustBuild(t, "extern b(x)\ndef a(x) b(x)\ndef b(x) x + 1")
	b := getFunc(t, m, "b")
	if b.IsDecl() {
		t.Errorf("b should be defined")
	}
	if n := len(m.Funcs); n != 2 {
		t.Errorf("module has %d functions, want 2", n)
	}
}

func TestBuildRecursion(t *testing.T) {
	m := mustBuild(t, "def fib(x) if x < 3 then 1 else fib(x-1) + fib(x-2)")
	f := getFunc(t, m, "fib")
	for _, c := range valuesOf(f, OpCall) {
		if c.Name() != "fib" {
			t.Errorf("call of %s, want fib", c.Name())
		}
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unknown variable", "def f() y", "1:9: unknown variable name"},
		{"assign to expression", "def f(x) 1 + 2 = 3", "1:16: destination of '=' must be a variable"},
		{"assign to unknown", "def f(x) y = 3", "1:12: unknown variable name"},
		{"unknown unary", "def f(x) !x", "1:10: unknown unary operator"},
		{"unknown function", "def f(x) g(x)", "1:10: unknown function referenced: g"},
		{"argument count", "extern g(a b)\ndef f(x) g(x)", "2:10: incorrect # arguments passed"},
		{"mixed remainder", "def f(string s) s % 2", "1:19: operands to % must be both integers or both floats"},
		{"redefinition", "def f(x) x\ndef f(y) y", "2:5: redefinition of function"},
		{"arity", "extern g(a)\ndef g(a b) a", "2:5: function redeclared with different arity"},
		{"argument type", "extern printcl(string s)\ndef f(x) printcl(x)", "2:10: argument 1 of printcl must be string, not double"},
		{"string result", "def f(string s) s", "1:17: function result must be a number"},
		{"string arithmetic", "def f(string s) s + 1", "1:19: operand of '+' must be a number, not string"},
		{"string condition", `def f() if "x" then 1 else 2`, "1:12: condition must be a number, not string"},
		{"branch types", `def f(x) if x then "a" else 1`, "1:10: if branches have different types string and double"},
		{"assign type", `def f(x) x = "a"`, "1:12: cannot assign string to double variable x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, bld, errs := buildSource(t, syntax.NewOpTable(), tt.src)
			if len(errs) == 0 {
				t.Fatalf("no error, want %q", tt.want)
			}
			if !strings.HasSuffix(errs[0], tt.want) {
				t.Errorf("error = %q, want suffix %q", errs[0], tt.want)
			}
			if bld.Errors() == 0 {
				t.Errorf("Errors() = 0 after a codegen error")
			}
			if bld.ScopeDepth() != 0 {
				t.Errorf("ScopeDepth() = %d after failure, want 0", bld.ScopeDepth())
			}
		})
	}
}

func TestBuildUnknownBinaryOperator(t *testing.T) {
	ops := syntax.NewOpTable()
	ops.Begin('|', 5).Commit()
	_, _, errs := buildSource(t, ops, "def f(x) x | x")
	if len(errs) != 1 || !strings.HasSuffix(errs[0], "1:12: unknown binary operator") {
		t.Errorf("errors = %v, want unknown binary operator at 1:12", errs)
	}
}

func TestBuildUnknownArgumentType(t *testing.T) {
	var errs []string
	bld := NewBuilder(NewModule("test.ks"), func(pos syntax.Pos, msg string) {
		errs = append(errs, msg)
	})
	p := syntax.NewPrototype("f", syntax.Param{Name: "x", Type: syntax.ParamType(9)})
	if _, ok := bld.DeclareProto(p); ok {
		t.Fatal("DeclareProto succeeded with an unknown parameter type")
	}
	if len(errs) != 1 || errs[0] != "unknown argument type" {
		t.Errorf("errors = %v", errs)
	}
}

func TestBuildRollback(t *testing.T) {
	m, bld, errs := buildSource(t, syntax.NewOpTable(), "def f(x) y")
	if len(errs) != 1 {
		t.Fatalf("errors = %v", errs)
	}
	if m.Lookup("f") != nil {
		t.Errorf("failed function left in module:\n%s", SprintModule(m))
	}
	if bld.Prototype("f") != nil {
		t.Errorf("failed prototype left in registry")
	}
}

func TestBuildRollbackKeepsDeclaration(t *testing.T) {
	m, bld, errs := buildSource(t, syntax.NewOpTable(), "extern f(x)\ndef f(x) y")
	if len(errs) != 1 {
		t.Fatalf("errors = %v", errs)
	}
	f := getFunc(t, m, "f")
	if !f.IsDecl() {
		t.Errorf("f should revert to a declaration:\n%s", Sprint(f))
	}
	if p := bld.Prototype("f"); p == nil || p.Pos().Line() != 1 {
		t.Errorf("registry should hold the extern prototype, got %v", p)
	}
}

func TestBuildOperatorRollback(t *testing.T) {
	ops := syntax.NewOpTable()
	_, _, errs := buildSource(t, ops, "def binary% 10 (a b) {a - c}")
	if len(errs) != 1 || !strings.Contains(errs[0], "unknown variable name") {
		t.Fatalf("errors = %v", errs)
	}
	if prec, ok := ops.Lookup('%'); !ok || prec != 40 {
		t.Errorf("'%%' precedence = %d, %v after rollback; want builtin 40", prec, ok)
	}
}

func TestBuildContinuesAfterError(t *testing.T) {
	m, _, errs := buildSource(t, syntax.NewOpTable(), "def f(x) 1 + 2 = 3\ndef g(x) x + 1")
	if len(errs) != 1 {
		t.Fatalf("errors = %v, want 1", errs)
	}
	if g := m.Lookup("g"); g == nil || g.IsDecl() {
		t.Errorf("g should still compile after f failed")
	}
}

func TestBuildEntry(t *testing.T) {
	m, bld, errs := buildSource(t, syntax.NewOpTable(), "1; 2\nextern putchard(c)\n3")
	if len(errs) > 0 {
		t.Fatalf("errors = %v", errs)
	}
	pos := syntax.NewPos("test.ks", 1, 1)
	main, ok := bld.BuildEntry("main", pos, []string{"__anon_expr.0", "__anon_expr.1"})
	if !ok {
		t.Fatal("BuildEntry failed")
	}
	calls := valuesOf(main, OpCall)
	if len(calls) != 2 || calls[0].Name() != "__anon_expr.0" || calls[1].Name() != "__anon_expr.1" {
		t.Fatalf("main calls = %v:\n%s", calls, Sprint(main))
	}
	if main.Entry.Controls[0] != calls[1] {
		t.Errorf("main should return the last run's value")
	}
	if main.Scope == nil || main.Scope.Kind != ScopeSubprogram {
		t.Errorf("main has no subprogram scope")
	}
	if err := VerifyModule(m); err != nil {
		t.Errorf("VerifyModule: %v", err)
	}

	if _, ok := bld.BuildEntry("main", pos, nil); ok {
		t.Error("second BuildEntry(main) succeeded")
	}
}

func TestBuildEntryEmpty(t *testing.T) {
	m := NewModule("test.ks")
	bld := NewBuilder(m, nil)
	main, ok := bld.BuildEntry("main", syntax.Pos{}, nil)
	if !ok {
		t.Fatal("BuildEntry failed")
	}
	ret := main.Entry.Controls[0]
	if ret.Op != OpConstFloat || ret.AuxFloat != 0 {
		t.Errorf("empty main returns %s, want 0", ret.LongString())
	}
}

func TestBuildEntryUnknownRun(t *testing.T) {
	m := NewModule("test.ks")
	bld := NewBuilder(m, nil)
	if _, ok := bld.BuildEntry("main", syntax.Pos{}, []string{"nope"}); ok {
		t.Fatal("BuildEntry succeeded with an unknown run")
	}
	if m.Lookup("main") != nil {
		t.Error("failed main left in module")
	}
}

func TestBuildDebugLocations(t *testing.T) {
	m := mustBuild(t, "def f(x)\n  x + 1\ndef g(x) var y = x in y * 2")

	f := getFunc(t, m, "f")
	add := valuesOf(f, OpAddF)[0]
	if add.Loc.Pos.Line() != 2 || add.Loc.Pos.Col() != 5 {
		t.Errorf("AddF at %s, want 2:5", add.Loc.Pos)
	}
	sp := add.Loc.Scope
	if sp == nil || sp.Kind != ScopeSubprogram || sp.Name != "f" || sp.Parent != m.Unit {
		t.Errorf("AddF scope = %v, want subprogram f in the file scope", sp)
	}
	if f.Scope != sp {
		t.Errorf("f.Scope = %v, want %v", f.Scope, sp)
	}

	g := getFunc(t, m, "g")
	mul := valuesOf(g, OpMulF)[0]
	if s := mul.Loc.Scope; s == nil || s.Kind != ScopeLexical || s.Parent != g.Scope {
		t.Errorf("var body scope = %v, want a lexical scope inside g", s)
	}
	if s := mul.Loc.Scope.Subprogram(); s != g.Scope {
		t.Errorf("Subprogram() = %v, want %v", s, g.Scope)
	}
}
