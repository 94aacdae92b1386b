package codegen

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/llir/llvm/ir"
)

// WriteIR writes m as textual LLVM IR.
func WriteIR(w io.Writer, m *ir.Module) error {
	_, err := io.WriteString(w, m.String())
	return err
}

// EmitObject compiles m to a native object file at path. It runs llc, or
// clang if llc is not installed.
func EmitObject(ctx context.Context, m *ir.Module, path string) error {
	tool, args, err := objectCommand(path)
	if err != nil {
		return err
	}

	dir, err := os.MkdirTemp("", "kale-")
	if err != nil {
		return fmt.Errorf("codegen: %w", err)
	}
	defer os.RemoveAll(dir)

	ll := filepath.Join(dir, "module.ll")
	f, err := os.Create(ll)
	if err != nil {
		return fmt.Errorf("codegen: %w", err)
	}
	if err := WriteIR(f, m); err != nil {
		f.Close()
		return fmt.Errorf("codegen: writing %s: %w", ll, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("codegen: %w", err)
	}

	cmd := exec.CommandContext(ctx, tool, append(args, ll)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("codegen: %s failed: %w\n%s", filepath.Base(tool), err, out)
	}
	return nil
}

// objectCommand returns the tool and arguments, minus the input file,
// that compile LLVM IR to an object file at path.
func objectCommand(path string) (string, []string, error) {
	if llc, err := exec.LookPath("llc"); err == nil {
		return llc, []string{"-filetype=obj", "-relocation-model=pic", "-o", path}, nil
	}
	if clang, err := exec.LookPath("clang"); err == nil {
		return clang, []string{"-c", "-Wno-override-module", "-o", path, "-x", "ir"}, nil
	}
	return "", nil, ErrNoTarget
}
