package jit

import (
	"context"
	"fmt"
	"math"

	"github.com/you-not-fish/kale/internal/ssa"
)

// cell holds the runtime value of an SSA value.
type cell struct {
	num  float64 // Float, Bool (0 or 1)
	i    int64   // Int
	str  string  // String
	slot int     // Ptr: index into frame.mem
}

type frame struct {
	regs []cell
	mem  []cell
}

// runner holds the state of one Run.
type runner struct {
	ctx   context.Context
	e     *Engine
	steps int64
}

func (r *runner) call(f *ssa.Func, args []cell, depth int) (cell, error) {
	if depth > r.e.opts.MaxDepth {
		return cell{}, ErrStackOverflow
	}
	fr := &frame{regs: make([]cell, f.NumValueIDs())}

	var pred *ssa.Block
	b := f.Entry
	for {
		if err := r.phis(fr, b, pred); err != nil {
			return cell{}, err
		}
		for _, v := range b.Values {
			if v.Op == ssa.OpPhi {
				continue
			}
			r.steps++
			if limit := r.e.opts.MaxSteps; limit > 0 && r.steps > limit {
				return cell{}, ErrStepLimit
			}
			if err := r.exec(fr, v, args, depth); err != nil {
				return cell{}, err
			}
		}

		pred = b
		switch b.Kind {
		case ssa.BlockPlain:
			b = b.Succs[0]
		case ssa.BlockIf:
			if fr.regs[b.Controls[0].ID].num != 0 {
				b = b.Succs[0]
			} else {
				b = b.Succs[1]
			}
		case ssa.BlockReturn:
			return fr.regs[b.Controls[0].ID], nil
		default:
			return cell{}, fmt.Errorf("jit: %s: bad block kind %v", f.Name, b.Kind)
		}
	}
}

// phis evaluates the phis of b for the edge from pred. All phis read
// their arguments before any of them is written.
func (r *runner) phis(fr *frame, b, pred *ssa.Block) error {
	if pred == nil {
		return nil
	}
	i := b.PredIndex(pred)
	var phis []*ssa.Value
	var vals []cell
	for _, v := range b.Values {
		if v.Op != ssa.OpPhi {
			continue
		}
		if i < 0 || i >= len(v.Args) || v.Args[i] == nil {
			return fmt.Errorf("jit: %s has no argument for %s", v, pred)
		}
		phis = append(phis, v)
		vals = append(vals, fr.regs[v.Args[i].ID])
	}
	for j, v := range phis {
		fr.regs[v.ID] = vals[j]
	}
	return nil
}

func (r *runner) exec(fr *frame, v *ssa.Value, args []cell, depth int) error {
	arg := func(i int) cell { return fr.regs[v.Args[i].ID] }
	out := &fr.regs[v.ID]

	switch v.Op {
	case ssa.OpArg:
		*out = args[v.AuxInt]
	case ssa.OpConstFloat:
		out.num = v.AuxFloat
	case ssa.OpConstInt:
		out.i = v.AuxInt
	case ssa.OpConstString:
		out.str = v.Name()

	case ssa.OpAddF:
		out.num = arg(0).num + arg(1).num
	case ssa.OpSubF:
		out.num = arg(0).num - arg(1).num
	case ssa.OpMulF:
		out.num = arg(0).num * arg(1).num
	case ssa.OpDivF:
		out.num = arg(0).num / arg(1).num

	case ssa.OpCmpULT:
		out.num = boolNum(!(arg(0).num >= arg(1).num))
	case ssa.OpCmpUGT:
		out.num = boolNum(!(arg(0).num <= arg(1).num))
	case ssa.OpCmpONE:
		x, y := arg(0).num, arg(1).num
		out.num = boolNum(x < y || x > y)

	case ssa.OpBoolToFloat:
		out.num = arg(0).num
	case ssa.OpFloor:
		out.num = math.Floor(arg(0).num)
	case ssa.OpRemI:
		y := arg(1).i
		if y == 0 {
			return ErrDivideByZero
		}
		out.i = arg(0).i % y

	case ssa.OpAlloca:
		out.slot = len(fr.mem)
		fr.mem = append(fr.mem, cell{})
	case ssa.OpLoad:
		*out = fr.mem[arg(0).slot]
	case ssa.OpStore:
		fr.mem[arg(0).slot] = arg(1)

	case ssa.OpCall:
		res, err := r.callNamed(fr, v, depth)
		if err != nil {
			return err
		}
		*out = res

	default:
		return fmt.Errorf("jit: cannot execute %s", v.LongString())
	}
	return nil
}

func (r *runner) callNamed(fr *frame, v *ssa.Value, depth int) (cell, error) {
	name := v.Name()
	f := r.e.funcs[name]
	if f == nil {
		return cell{}, fmt.Errorf("%w: %s", ErrUnresolved, name)
	}

	if !f.IsDecl() {
		args := make([]cell, len(v.Args))
		for i, a := range v.Args {
			args[i] = fr.regs[a.ID]
		}
		return r.call(f, args, depth+1)
	}

	fn := r.e.externs[name]
	if fn == nil {
		return cell{}, fmt.Errorf("%w: %s", ErrUnresolved, name)
	}
	if err := r.ctx.Err(); err != nil {
		return cell{}, err
	}
	args := make([]Arg, len(v.Args))
	for i, a := range v.Args {
		c := fr.regs[a.ID]
		if f.Params[i].Type == ssa.TypeString {
			args[i].Str = c.str
		} else {
			args[i].Num = c.num
		}
	}
	res, err := fn(args)
	if err != nil {
		return cell{}, fmt.Errorf("%s: %w", name, err)
	}
	return cell{num: res}, nil
}

func boolNum(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
