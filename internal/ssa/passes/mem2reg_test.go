package passes

import (
	"strings"
	"testing"

	"github.com/you-not-fish/kale/internal/ssa"
	"github.com/you-not-fish/kale/internal/syntax"
)

// buildFromSource parses and lowers src, failing on any error, and
// verifies the result.
func buildFromSource(t *testing.T, src string) *ssa.Module {
	t.Helper()

	var errs []string
	errh := func(pos syntax.Pos, msg string) {
		errs = append(errs, pos.String()+": "+msg)
	}

	buf := syntax.NewBuffer(src)
	buf.Terminate()
	p := syntax.NewParser(syntax.NewScanner("test.ks", buf, syntax.DefaultTabWidth, nil), syntax.NewOpTable(), errh)

	m := ssa.NewModule("test.ks")
	b := ssa.NewBuilder(m, errh)
	for !p.AtEOF() && len(errs) == 0 {
		it, ok := p.ParseItem()
		if !ok {
			break
		}
		switch d := it.(type) {
		case *syntax.FuncDecl:
			if _, ok := b.BuildFunc(d); ok {
				d.Edit.Commit()
			}
		case *syntax.ExternDecl:
			b.DeclareProto(d.Proto)
		}
	}
	if len(errs) > 0 {
		t.Fatalf("errors building %q:\n%s", src, strings.Join(errs, "\n"))
	}
	if err := ssa.VerifyModule(m); err != nil {
		t.Fatalf("VerifyModule before passes failed:\n%v\nSSA:\n%s", err, ssa.SprintModule(m))
	}
	return m
}

// buildAndRun builds src, runs mem2reg on every function, and verifies.
func buildAndRun(t *testing.T, src string) *ssa.Module {
	t.Helper()
	m := buildFromSource(t, src)
	for _, fn := range m.Defined() {
		Mem2Reg(fn)
		if err := ssa.Verify(fn); err != nil {
			t.Fatalf("Verify(%s) after mem2reg failed:\n%v\nSSA:\n%s", fn.Name, err, ssa.Sprint(fn))
		}
	}
	return m
}

func getFunc(t *testing.T, m *ssa.Module, name string) *ssa.Func {
	t.Helper()
	f := m.Lookup(name)
	if f == nil {
		t.Fatalf("function %q not found", name)
	}
	return f
}

func countOp(f *ssa.Func, op ssa.Op) int {
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

func assertPromoted(t *testing.T, fn *ssa.Func) {
	t.Helper()
	for _, op := range []ssa.Op{ssa.OpAlloca, ssa.OpLoad, ssa.OpStore} {
		if n := countOp(fn, op); n != 0 {
			t.Errorf("%v after mem2reg = %d, want 0:\n%s", op, n, ssa.Sprint(fn))
		}
	}
}

// --- Tests ---

func TestMem2RegSimpleVar(t *testing.T) {
	m := buildAndRun(t, "def f() var x = 42 in x")
	fn := getFunc(t, m, "f")

	assertPromoted(t, fn)
	ret := fn.Entry.Controls[0]
	if ret.Op != ssa.OpConstFloat || ret.AuxFloat != 42 {
		t.Errorf("returns %s, want ConstFloat [42]", ret.LongString())
	}
}

func TestMem2RegParameter(t *testing.T) {
	m := buildAndRun(t, "def f(x) x + 1")
	fn := getFunc(t, m, "f")

	assertPromoted(t, fn)
	add := fn.Entry.Controls[0]
	if add.Op != ssa.OpAddF || add.Args[0].Op != ssa.OpArg {
		t.Errorf("returns %s, want AddF of the argument", add.LongString())
	}
}

func TestMem2RegReassignment(t *testing.T) {
	m := buildAndRun(t, "def f(x) var y = 1 in (y = y + x) * y")
	fn := getFunc(t, m, "f")

	assertPromoted(t, fn)
	mul := fn.Entry.Controls[0]
	if mul.Op != ssa.OpMulF || mul.Args[0] != mul.Args[1] || mul.Args[0].Op != ssa.OpAddF {
		t.Errorf("returns %s, want MulF of the reassigned value with itself:\n%s", mul.LongString(), ssa.Sprint(fn))
	}
}

func TestMem2RegDiamondPhi(t *testing.T) {
	m := buildAndRun(t, "def f(x) var y = 0 in (if x < 1 then y = 2 else y = 3) + y")
	fn := getFunc(t, m, "f")

	assertPromoted(t, fn)
	// One phi for the if value, one for y.
	if n := countOp(fn, ssa.OpPhi); n != 2 {
		t.Errorf("phis = %d, want 2:\n%s", n, ssa.Sprint(fn))
	}
}

func TestMem2RegLoopPhi(t *testing.T) {
	m := buildAndRun(t, "def f(n) var acc = 0 in (for i = 0, i < n in acc = acc + i) + acc")
	fn := getFunc(t, m, "f")

	assertPromoted(t, fn)
	var header *ssa.Block
	for _, b := range fn.Blocks {
		if b.NumPreds() == 2 {
			header = b
		}
	}
	if header == nil {
		t.Fatalf("no loop header:\n%s", ssa.Sprint(fn))
	}
	phis := 0
	for _, v := range header.Values {
		if v.Op == ssa.OpPhi {
			phis++
			if len(v.Args) != 2 || v.Args[0] == nil || v.Args[1] == nil {
				t.Errorf("phi %s is incomplete", v.LongString())
			}
		}
	}
	if phis != 2 {
		t.Errorf("header phis = %d, want 2 (i and acc):\n%s", phis, ssa.Sprint(fn))
	}
}

func TestMem2RegStringVar(t *testing.T) {
	m := buildAndRun(t, `extern printcl(string s); def f() var s = "hi" in printcl(s)`)
	fn := getFunc(t, m, "f")

	assertPromoted(t, fn)
	call := fn.Entry.Controls[0]
	if call.Op != ssa.OpCall || call.Args[0].Op != ssa.OpConstString || call.Args[0].Name() != "hi" {
		t.Errorf("returns %s, want call with the string constant", call.LongString())
	}
}

func TestMem2RegDefaultInit(t *testing.T) {
	m := buildAndRun(t, "def f() var x in x")
	fn := getFunc(t, m, "f")

	assertPromoted(t, fn)
	ret := fn.Entry.Controls[0]
	if ret.Op != ssa.OpConstFloat || ret.AuxFloat != 0 {
		t.Errorf("returns %s, want ConstFloat [0]", ret.LongString())
	}
}

func TestMem2RegKeepsArgs(t *testing.T) {
	m := buildAndRun(t, "def f(x y) 1")
	fn := getFunc(t, m, "f")

	assertPromoted(t, fn)
	if n := countOp(fn, ssa.OpArg); n != 2 {
		t.Errorf("args = %d, want 2", n)
	}
}

func TestMem2RegAllFunctionsVerify(t *testing.T) {
	tests := []string{
		"def f() 1",
		"def f(x) x",
		"def f(x) if x then x else 0 - 1",
		"def f(x) for i = 1, i < x, 2 in x = x + i",
		"def f(x) var a = x, b = a in a * b",
		"def f(x) var x = x + 1 in var x = x * 2 in x",
		"def f(x) if x < 1 then (if x < 0 then 1 else 2) else var y = x in y",
		"def binary| 5 (a b) if a then 1 else if b then 1 else 0; def f(x) x | 0",
		"def f(n) for i = 0, i < n in for j = 0, j < i in n = n - 1",
		"1 + 2; 3",
	}
	for _, src := range tests {
		t.Run(src, func(t *testing.T) {
			m := buildAndRun(t, src)
			for _, fn := range m.Defined() {
				if n := countOp(fn, ssa.OpAlloca); n != 0 {
					t.Errorf("%s: allocas = %d, want 0", fn.Name, n)
				}
			}
		})
	}
}

func TestMem2RegPassRunner(t *testing.T) {
	m := buildFromSource(t, "def f(x) var y = x + 1 in y")
	fn := getFunc(t, m, "f")

	pipeline := []Pass{
		{Name: "mem2reg", Fn: Mem2Reg},
	}

	err := Run(fn, pipeline, Config{Verify: true})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if n := countOp(fn, ssa.OpAlloca); n != 0 {
		t.Errorf("allocas after pass runner = %d, want 0", n)
	}
}
