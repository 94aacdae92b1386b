// Package codegen lowers an SSA module to LLVM IR and emits object files.
package codegen

import (
	"errors"
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"

	"github.com/you-not-fish/kale/internal/ssa"
)

// ErrNoTarget is returned by EmitObject when neither llc nor clang is
// available.
var ErrNoTarget = errors.New("codegen: no llc or clang in PATH")

// generator keeps track of top-level entities while translating an SSA
// module to LLVM IR.
type generator struct {
	// SSA module being lowered.
	src *ssa.Module
	// LLVM IR module being generated.
	m *ir.Module
	// funcs maps from function name to its IR function.
	funcs map[string]*ir.Func
	// strs maps from string contents to its private global.
	strs map[string]*ir.Global
	// floor is @llvm.floor.f64, declared on first use.
	floor *ir.Func
}

// Generate lowers every function of src, declarations included, to an
// LLVM IR module. src must verify.
func Generate(src *ssa.Module) (*ir.Module, error) {
	if err := ssa.VerifyModule(src); err != nil {
		return nil, fmt.Errorf("codegen: %w", err)
	}
	g := &generator{
		src:   src,
		m:     ir.NewModule(),
		funcs: make(map[string]*ir.Func, len(src.Funcs)),
		strs:  make(map[string]*ir.Global),
	}
	g.m.SourceFilename = src.Name

	// Declare everything first so calls can refer to functions defined
	// later in the module.
	for _, f := range src.Funcs {
		params := make([]*ir.Param, len(f.Params))
		for i, p := range f.Params {
			params[i] = ir.NewParam(p.Name, llType(p.Type))
		}
		g.funcs[f.Name] = g.m.NewFunc(f.Name, types.Double, params...)
	}
	for _, f := range src.Defined() {
		if err := g.lowerFunc(f); err != nil {
			return nil, fmt.Errorf("codegen: %s: %w", f.Name, err)
		}
	}
	return g.m, nil
}

// stringPtr returns an i8* to a NUL-terminated private copy of s.
func (g *generator) stringPtr(s string) constant.Constant {
	glob, ok := g.strs[s]
	if !ok {
		init := constant.NewCharArrayFromString(s + "\x00")
		glob = g.m.NewGlobalDef(fmt.Sprintf(".str.%d", len(g.strs)), init)
		glob.Linkage = enum.LinkagePrivate
		glob.UnnamedAddr = enum.UnnamedAddrUnnamedAddr
		glob.Immutable = true
		g.strs[s] = glob
	}
	zero := constant.NewInt(types.I64, 0)
	return constant.NewGetElementPtr(glob.ContentType, glob, zero, zero)
}

// floorFunc returns the floor intrinsic, declaring it on first use.
func (g *generator) floorFunc() *ir.Func {
	if g.floor == nil {
		g.floor = g.m.NewFunc("llvm.floor.f64", types.Double, ir.NewParam("x", types.Double))
	}
	return g.floor
}
