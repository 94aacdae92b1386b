package codegen

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/you-not-fish/kale/internal/ssa"
)

// funcLowerer holds the per-function state of lowering.
type funcLowerer struct {
	g      *generator
	fn     *ir.Func
	vals   map[*ssa.Value]value.Value
	blocks map[*ssa.Block]*ir.Block
	phis   []*ssa.Value
}

// lowerFunc emits the body of a defined SSA function. Blocks are visited
// in reverse postorder, so every operand except a phi argument is lowered
// before its use; phi incomings are filled in at the end.
func (g *generator) lowerFunc(f *ssa.Func) error {
	l := &funcLowerer{
		g:      g,
		fn:     g.funcs[f.Name],
		vals:   make(map[*ssa.Value]value.Value),
		blocks: make(map[*ssa.Block]*ir.Block),
	}

	order := ssa.ReversePostOrder(f)
	for _, b := range order {
		l.blocks[b] = l.fn.NewBlock(blockName(b))
	}
	for _, b := range order {
		for _, v := range b.Values {
			if err := l.lowerValue(l.blocks[b], v); err != nil {
				return err
			}
		}
		if err := l.lowerTerminator(b); err != nil {
			return err
		}
	}

	for _, v := range l.phis {
		phi := l.vals[v].(*ir.InstPhi)
		phi.Incs = phi.Incs[:0]
		for i, arg := range v.Args {
			pred, ok := l.blocks[v.Block.Preds[i]]
			if !ok {
				continue
			}
			x, err := l.operand(arg)
			if err != nil {
				return err
			}
			phi.Incs = append(phi.Incs, ir.NewIncoming(x, pred))
		}
	}
	return nil
}

// blockName returns the LLVM label for an SSA block.
// Block 0 is "entry", others are "bN".
func blockName(b *ssa.Block) string {
	if b.ID == 0 {
		return "entry"
	}
	return fmt.Sprintf("b%d", b.ID)
}

func (l *funcLowerer) operand(v *ssa.Value) (value.Value, error) {
	x, ok := l.vals[v]
	if !ok {
		return nil, fmt.Errorf("%s used before it is defined", v)
	}
	return x, nil
}

// lowerValue emits the instruction for v into b.
func (l *funcLowerer) lowerValue(b *ir.Block, v *ssa.Value) error {
	args := make([]value.Value, len(v.Args))
	if v.Op != ssa.OpPhi {
		for i, a := range v.Args {
			x, err := l.operand(a)
			if err != nil {
				return err
			}
			args[i] = x
		}
	}

	var res value.Value
	switch v.Op {
	case ssa.OpArg:
		res = l.fn.Params[v.AuxInt]
	case ssa.OpConstFloat:
		res = constant.NewFloat(types.Double, v.AuxFloat)
	case ssa.OpConstInt:
		res = constant.NewInt(types.I64, v.AuxInt)
	case ssa.OpConstString:
		res = l.g.stringPtr(v.Name())

	case ssa.OpAddF:
		res = b.NewFAdd(args[0], args[1])
	case ssa.OpSubF:
		res = b.NewFSub(args[0], args[1])
	case ssa.OpMulF:
		res = b.NewFMul(args[0], args[1])
	case ssa.OpDivF:
		res = b.NewFDiv(args[0], args[1])

	case ssa.OpCmpULT:
		res = b.NewFCmp(enum.FPredULT, args[0], args[1])
	case ssa.OpCmpUGT:
		res = b.NewFCmp(enum.FPredUGT, args[0], args[1])
	case ssa.OpCmpONE:
		res = b.NewFCmp(enum.FPredONE, args[0], args[1])

	case ssa.OpBoolToFloat:
		res = b.NewUIToFP(args[0], types.Double)
	case ssa.OpFloor:
		res = b.NewCall(l.g.floorFunc(), args[0])
	case ssa.OpRemI:
		res = b.NewSRem(args[0], args[1])

	case ssa.OpAlloca:
		res = b.NewAlloca(llType(v.Elem()))
	case ssa.OpLoad:
		res = b.NewLoad(llType(v.Type), args[0])
	case ssa.OpStore:
		b.NewStore(args[1], args[0])
		return nil

	case ssa.OpCall:
		callee, ok := l.g.funcs[v.Name()]
		if !ok {
			return fmt.Errorf("call of unknown function %q", v.Name())
		}
		res = b.NewCall(callee, args...)

	case ssa.OpPhi:
		// The type is fixed by a placeholder incoming, replaced once every
		// block has been lowered.
		res = b.NewPhi(ir.NewIncoming(constant.NewUndef(llType(v.Type)), b))
		l.phis = append(l.phis, v)

	default:
		return fmt.Errorf("cannot lower %s", v.LongString())
	}
	l.vals[v] = res
	return nil
}

// lowerTerminator emits the block terminator instruction.
func (l *funcLowerer) lowerTerminator(b *ssa.Block) error {
	ib := l.blocks[b]
	switch b.Kind {
	case ssa.BlockPlain:
		ib.NewBr(l.blocks[b.Succs[0]])
	case ssa.BlockIf:
		cond, err := l.operand(b.Controls[0])
		if err != nil {
			return err
		}
		ib.NewCondBr(cond, l.blocks[b.Succs[0]], l.blocks[b.Succs[1]])
	case ssa.BlockReturn:
		ret, err := l.operand(b.Controls[0])
		if err != nil {
			return err
		}
		ib.NewRet(ret)
	default:
		return fmt.Errorf("block %s has kind %v", b, b.Kind)
	}
	return nil
}
