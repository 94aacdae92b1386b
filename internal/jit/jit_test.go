package jit

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/you-not-fish/kale/internal/ssa"
	"github.com/you-not-fish/kale/internal/ssa/passes"
	"github.com/you-not-fish/kale/internal/syntax"
)

// compile builds src into a module with a synthesized main, optionally
// running the optimizing pipeline.
func compile(t *testing.T, src string, optimize bool) *ssa.Module {
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
	var runs []string
	for !p.AtEOF() && len(errs) == 0 {
		it, ok := p.ParseItem()
		if !ok {
			break
		}
		switch d := it.(type) {
		case *syntax.FuncDecl:
			if _, ok := b.BuildFunc(d); ok {
				d.Edit.Commit()
				if d.TopLevel {
					runs = append(runs, d.Proto.Name)
				}
			}
		case *syntax.ExternDecl:
			b.DeclareProto(d.Proto)
		}
	}
	b.BuildEntry("main", syntax.Pos{}, runs)
	if len(errs) > 0 {
		t.Fatalf("errors compiling %q:\n%s", src, strings.Join(errs, "\n"))
	}
	if err := passes.RunModule(m, passes.Standard(optimize), passes.Config{Verify: true}); err != nil {
		t.Fatalf("passes: %v", err)
	}
	return m
}

// run compiles src with and without optimization and checks that both
// agree before returning the result of main.
func run(t *testing.T, src string, r Resolver) float64 {
	t.Helper()
	var results [2]float64
	for i, opt := range []bool{false, true} {
		e, err := New(compile(t, src, opt), r, Options{})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		results[i], err = e.Run(context.Background(), "main")
		if err != nil {
			t.Fatalf("Run(optimize=%v): %v", opt, err)
		}
	}
	if !sameFloat(results[0], results[1]) {
		t.Fatalf("%q: unoptimized %v, optimized %v", src, results[0], results[1])
	}
	return results[0]
}

func sameFloat(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}

func TestRunPrograms(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want float64
	}{
		{"empty", "", 0},
		{"arith", "1 + 2 * 3", 7},
		{"left assoc", "8 - 3 - 2", 3},
		{"last run wins", "1; 2; 3", 3},
		{"runs in order", "def f(x) x * 10; f(1); f(2)", 20},
		{"less", "1 < 2", 1},
		{"greater", "1 > 2", 0},
		{"nan less", "(0/0) < 1", 1},
		{"nan greater", "(0/0) > 1", 1},
		{"nan if", "if 0/0 then 1 else 2", 2},
		{"rem", "7.5 % 2", 1.5},
		{"rem negative", "(0 - 7) % 3", 2},
		{"if", "def f(x) if x < 3 then 1 else 2; f(1) * 10 + f(5)", 12},
		{"nested if", "def sgn(x) if x < 0 then 0 - 1 else if x > 0 then 1 else 0; sgn(0-4) + sgn(9) * 10 + sgn(0) * 100", 9},
		{"fib", "def fib(x) if x < 3 then 1 else fib(x-1) + fib(x-2); fib(10)", 55},
		{"for sum", "def f(n) var acc = 0 in (for i = 0, i < n in acc = acc + i) + acc; f(5)", 10},
		{"for step", "def f() var acc = 0 in (for i = 10, i > 0, 0 - 3 in acc = acc + i) + acc; f()", 22},
		{"for value", "def f() for i = 0, i < 3 in 1; f()", 0},
		{"var default", "def f() var x in x + 1; f()", 1},
		{"var sees outer", "def f(x) var x = x + 1, y = x in y * 10; f(1)", 20},
		{"shadow restore", "def f(x) (var x = 5 in x) + x; f(1)", 6},
		{"assign result", "def f() var a in (a = 4) + a; f()", 8},
		{"compound body", "def f(x) { x = x + 1; x = x * 2; x }; f(1)", 4},
		{"empty compound", "def f() {}; f() + 1", 1},
		{"binary op", "def binary| 5 (a b) if a then 1 else if b then 1 else 0; (0 | 0) + (0 | 2) * 10", 10},
		{"unary op", "def unary!(v) if v then 0 else 1; !0 + !5", 1},
		{"precedence", "def binary^ 50 (a b) a * a + b; 1 + 2 ^ 3", 8},
		{"forward extern", "extern g(x); def f(x) g(x) + 1; def g(x) x * 3; f(2)", 7},
		{"mutual recursion", "extern odd(n); def even(n) if n < 1 then 1 else odd(n-1); def odd(n) if n < 1 then 0 else even(n-1); even(10) + odd(7) * 10", 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := run(t, tt.src, nil); !sameFloat(got, tt.want) {
				t.Errorf("%q = %v, want %v", tt.src, got, tt.want)
			}
		})
	}
}

func TestExternals(t *testing.T) {
	var printed []string
	var nums []float64
	r := MapResolver{
		"printcl": func(args []Arg) (float64, error) {
			printed = append(printed, args[0].Str)
			return 0, nil
		},
		"printd": func(args []Arg) (float64, error) {
			nums = append(nums, args[0].Num)
			return 0, nil
		},
	}
	src := `extern printcl(string s); extern printd(x);
def show(string s, x) { printcl(s); printd(x) };
show("a", 1); show("b", 2); 5`

	e, err := New(compile(t, src, true), r, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := e.Run(context.Background(), "main")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got != 5 {
		t.Errorf("main = %v, want 5", got)
	}
	if strings.Join(printed, ",") != "a,b" {
		t.Errorf("printed %v, want [a b]", printed)
	}
	if len(nums) != 2 || nums[0] != 1 || nums[1] != 2 {
		t.Errorf("printd got %v, want [1 2]", nums)
	}
}

func TestExternalError(t *testing.T) {
	boom := errors.New("boom")
	r := MapResolver{"fail": func([]Arg) (float64, error) { return 0, boom }}
	e, err := New(compile(t, "extern fail(); fail()", false), r, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := e.Run(context.Background(), "main"); !errors.Is(err, boom) {
		t.Errorf("Run = %v, want boom", err)
	}
}

func TestUnresolvedExternal(t *testing.T) {
	m := compile(t, "extern missing(x); extern unused(); missing(1)", false)
	_, err := New(m, MapResolver{}, Options{})
	if !errors.Is(err, ErrUnresolved) || !strings.Contains(err.Error(), "missing") {
		t.Errorf("New = %v, want unresolved missing", err)
	}
}

func TestUncalledDeclarationNeedsNoSymbol(t *testing.T) {
	m := compile(t, "extern unused(); 1", false)
	e, err := New(m, nil, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got, err := e.Run(context.Background(), "main"); err != nil || got != 1 {
		t.Errorf("Run = %v, %v; want 1", got, err)
	}
}

func TestNoEntry(t *testing.T) {
	m := compile(t, "extern decl(); def f(x) x", false)
	e, err := New(m, nil, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, name := range []string{"nope", "decl"} {
		if _, err := e.Run(context.Background(), name); !errors.Is(err, ErrNoEntry) {
			t.Errorf("Run(%s) = %v, want ErrNoEntry", name, err)
		}
	}
	if _, err := e.Run(context.Background(), "f"); err == nil {
		t.Error("Run(f) with a parameter succeeded")
	}
}

func TestStackOverflow(t *testing.T) {
	m := compile(t, "def f(x) f(x + 1); f(0)", false)
	e, err := New(m, nil, Options{MaxDepth: 100})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := e.Run(context.Background(), "main"); !errors.Is(err, ErrStackOverflow) {
		t.Errorf("Run = %v, want ErrStackOverflow", err)
	}
	if e.Options().MaxDepth != 100 {
		t.Errorf("MaxDepth = %d, want 100", e.Options().MaxDepth)
	}
}

func TestDefaultDepth(t *testing.T) {
	e, err := New(compile(t, "1", false), nil, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if e.Options().MaxDepth != DefaultMaxDepth {
		t.Errorf("MaxDepth = %d, want %d", e.Options().MaxDepth, DefaultMaxDepth)
	}
}

func TestStepLimit(t *testing.T) {
	m := compile(t, "def f() for i = 0, 1 in 0; f()", true)
	e, err := New(m, nil, Options{MaxSteps: 10000})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := e.Run(context.Background(), "main"); !errors.Is(err, ErrStepLimit) {
		t.Errorf("Run = %v, want ErrStepLimit", err)
	}
}

func TestCanceledBeforeExternalCall(t *testing.T) {
	called := false
	r := MapResolver{"tick": func([]Arg) (float64, error) {
		called = true
		return 0, nil
	}}
	e, err := New(compile(t, "extern tick(); tick()", false), r, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Run(ctx, "main"); !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
	if called {
		t.Error("external routine ran after cancellation")
	}
}

func TestIntegerRemainder(t *testing.T) {
	f := ssa.NewFunc("main")
	x := f.NewValue(f.Entry, ssa.OpConstInt, ssa.TypeInt)
	x.AuxInt = -7
	y := f.NewValue(f.Entry, ssa.OpConstInt, ssa.TypeInt)
	y.AuxInt = 3
	rem := f.NewValue(f.Entry, ssa.OpRemI, ssa.TypeInt, x, y)
	one := f.NewValue(f.Entry, ssa.OpConstFloat, ssa.TypeFloat)
	one.AuxFloat = 1
	f.Entry.Kind = ssa.BlockReturn
	f.Entry.SetControl(one)

	m := ssa.NewModule("test.ks")
	m.Add(f)
	e, err := New(m, nil, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r := &runner{ctx: context.Background(), e: e}
	fr := &frame{regs: make([]cell, f.NumValueIDs())}
	for _, v := range f.Entry.Values {
		if err := r.exec(fr, v, nil, 1); err != nil {
			t.Fatalf("exec %s: %v", v, err)
		}
	}
	if got := fr.regs[rem.ID].i; got != -1 {
		t.Errorf("-7 srem 3 = %d, want -1", got)
	}

	y.AuxInt = 0
	for _, v := range f.Entry.Values {
		if err := r.exec(fr, v, nil, 1); err != nil {
			if !errors.Is(err, ErrDivideByZero) {
				t.Fatalf("exec %s: %v", v, err)
			}
			return
		}
	}
	t.Error("remainder by zero did not fail")
}
