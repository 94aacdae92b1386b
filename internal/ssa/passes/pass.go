// Package passes holds the transformations run over built SSA functions.
package passes

import (
	"fmt"
	"io"
	"os"

	"github.com/you-not-fish/kale/internal/ssa"
)

// Pass describes a single SSA optimization pass.
type Pass struct {
	Name string
	Fn   func(f *ssa.Func)
}

// Config controls pass execution behavior.
type Config struct {
	DumpBefore string    // dump SSA before this pass ("*" for all)
	DumpAfter  string    // dump SSA after this pass ("*" for all)
	Verify     bool      // verify SSA before/after each pass
	DumpFunc   string    // restrict dumps to this function name
	Out        io.Writer // dump destination; os.Stderr if nil
}

// Standard returns the default pipeline. With optimize set, variable
// slots are promoted to registers first.
func Standard(optimize bool) []Pass {
	if optimize {
		return []Pass{
			{Name: "mem2reg", Fn: Mem2Reg},
			{Name: "deadcode", Fn: Deadcode},
		}
	}
	return []Pass{{Name: "deadcode", Fn: Deadcode}}
}

// Run executes the given passes on f in order. Declarations are skipped.
func Run(f *ssa.Func, passes []Pass, cfg Config) error {
	if f.IsDecl() {
		return nil
	}
	out := cfg.Out
	if out == nil {
		out = os.Stderr
	}
	for _, p := range passes {
		if shouldDump(cfg.DumpBefore, p.Name) && matchFunc(cfg.DumpFunc, f.Name) {
			fmt.Fprintf(out, "--- before %s (%s) ---\n", p.Name, f.Name)
			ssa.Fprint(out, f)
			fmt.Fprintln(out)
		}

		if cfg.Verify {
			if err := ssa.Verify(f); err != nil {
				return fmt.Errorf("verify before %s: %w", p.Name, err)
			}
		}

		p.Fn(f)

		if cfg.Verify {
			if err := ssa.Verify(f); err != nil {
				return fmt.Errorf("verify after %s: %w", p.Name, err)
			}
		}

		if shouldDump(cfg.DumpAfter, p.Name) && matchFunc(cfg.DumpFunc, f.Name) {
			fmt.Fprintf(out, "--- after %s (%s) ---\n", p.Name, f.Name)
			ssa.Fprint(out, f)
			fmt.Fprintln(out)
		}
	}
	return nil
}

// RunModule runs passes over every defined function of m.
func RunModule(m *ssa.Module, passes []Pass, cfg Config) error {
	for _, f := range m.Defined() {
		if err := Run(f, passes, cfg); err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
	}
	return nil
}

func shouldDump(pattern, name string) bool {
	return pattern == "*" || pattern == name
}

func matchFunc(filter, name string) bool {
	return filter == "" || filter == name
}
