package codegen

import (
	"github.com/llir/llvm/ir/types"

	"github.com/you-not-fish/kale/internal/ssa"
)

// llType maps an SSA value type to its LLVM IR type.
func llType(t ssa.Type) types.Type {
	switch t {
	case ssa.TypeFloat:
		return types.Double
	case ssa.TypeBool:
		return types.I1
	case ssa.TypeInt:
		return types.I64
	case ssa.TypeString:
		return types.I8Ptr
	case ssa.TypeVoid:
		return types.Void
	}
	panic("codegen: no LLVM type for " + t.String())
}
