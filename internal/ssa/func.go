package ssa

import (
	"fmt"

	"github.com/you-not-fish/kale/internal/syntax"
)

// Param is a typed function parameter.
type Param struct {
	Name string
	Type Type
}

// Func represents an SSA function.
// It contains a control flow graph of Blocks, each containing Values.
// A Func without blocks is a declaration: an extern, a host routine or a
// function referenced before its definition.
type Func struct {
	// Name is the function name.
	Name string

	// Params are the typed parameters. Every function returns a float.
	Params []Param

	// Blocks is the list of basic blocks. Blocks[0] is always the entry block.
	Blocks []*Block

	// Entry is the entry block (same as Blocks[0]); nil for declarations.
	Entry *Block

	// Pos is the position of the defining prototype.
	Pos syntax.Pos

	// Scope is the subprogram debug scope of a defined function.
	Scope *DebugScope

	// nextValueID is the next available value ID.
	nextValueID ID

	// nextBlockID is the next available block ID.
	nextBlockID ID
}

// NewFunc creates a new SSA function with the given name and parameters.
// An entry block is automatically created.
func NewFunc(name string, params ...Param) *Func {
	f := NewDecl(name, params...)
	f.Define()
	return f
}

// NewDecl creates a function declaration with no body.
func NewDecl(name string, params ...Param) *Func {
	return &Func{Name: name, Params: params}
}

// IsDecl reports whether f is a declaration without a body.
func (f *Func) IsDecl() bool { return len(f.Blocks) == 0 }

// Define gives a declaration a fresh entry block.
func (f *Func) Define() {
	f.Blocks = nil
	f.nextValueID = 0
	f.nextBlockID = 0
	f.Entry = f.NewBlock(BlockPlain)
}

// Undefine drops the body of f, turning it back into a declaration.
func (f *Func) Undefine() {
	f.Blocks = nil
	f.Entry = nil
	f.Scope = nil
}

// Signature returns the function type as "(double, string) double".
func (f *Func) Signature() string {
	s := "("
	for i, p := range f.Params {
		if i > 0 {
			s += ", "
		}
		s += p.Type.String()
	}
	return s + ") " + TypeFloat.String()
}

// NewBlock creates a new basic block with the given kind and appends it to the function.
func (f *Func) NewBlock(kind BlockKind) *Block {
	b := &Block{
		ID:   f.nextBlockID,
		Kind: kind,
		Func: f,
	}
	f.nextBlockID++
	f.Blocks = append(f.Blocks, b)
	return b
}

// NewValue creates a new Value in the given block.
func (f *Func) NewValue(b *Block, op Op, typ Type, args ...*Value) *Value {
	return f.NewValueAt(b, len(b.Values), op, typ, args...)
}

// NewValueLoc creates a new Value with a source location in the given block.
func (f *Func) NewValueLoc(b *Block, op Op, typ Type, loc Loc, args ...*Value) *Value {
	v := f.NewValue(b, op, typ, args...)
	v.Loc = loc
	return v
}

// NewValueAtFront creates a new Value at the start of the given block.
func (f *Func) NewValueAtFront(b *Block, op Op, typ Type, args ...*Value) *Value {
	return f.NewValueAt(b, 0, op, typ, args...)
}

// NewValueAt creates a new Value at index i of the given block.
func (f *Func) NewValueAt(b *Block, i int, op Op, typ Type, args ...*Value) *Value {
	if b.Func != f {
		panic(fmt.Sprintf("ssa.NewValue: block %s belongs to another function", b))
	}
	v := &Value{
		ID:    f.nextValueID,
		Op:    op,
		Type:  typ,
		Block: b,
	}
	f.nextValueID++
	for _, arg := range args {
		v.AddArg(arg)
	}
	b.Values = append(b.Values, nil)
	copy(b.Values[i+1:], b.Values[i:])
	b.Values[i] = v
	return v
}

// ReplaceUses redirects every use of old (as an argument or block
// control) to new.
func (f *Func) ReplaceUses(old, new *Value) {
	for _, b := range f.Blocks {
		for _, v := range b.Values {
			for i, arg := range v.Args {
				if arg == old {
					v.ReplaceArg(i, new)
				}
			}
		}
		for i, c := range b.Controls {
			if c == old {
				old.Uses--
				b.Controls[i] = new
				new.Uses++
			}
		}
	}
}

// RemoveBlock removes a block that has no predecessors, detaching it from
// its successors and dropping the uses its values hold.
func (f *Func) RemoveBlock(dead *Block) {
	for _, s := range dead.Succs {
		i := s.PredIndex(dead)
		if i < 0 {
			continue
		}
		s.Preds = append(s.Preds[:i], s.Preds[i+1:]...)
		for _, v := range s.Values {
			if v.Op == OpPhi && i < len(v.Args) {
				if a := v.Args[i]; a != nil {
					a.Uses--
				}
				v.Args = append(v.Args[:i], v.Args[i+1:]...)
			}
		}
	}
	for _, v := range dead.Values {
		for _, a := range v.Args {
			if a != nil {
				a.Uses--
			}
		}
	}
	for _, c := range dead.Controls {
		if c != nil {
			c.Uses--
		}
	}
	for i, b := range f.Blocks {
		if b == dead {
			f.Blocks = append(f.Blocks[:i], f.Blocks[i+1:]...)
			return
		}
	}
}

// NumBlocks returns the number of blocks in the function.
func (f *Func) NumBlocks() int { return len(f.Blocks) }

// NumValues returns the total number of values across all blocks.
func (f *Func) NumValues() int {
	n := 0
	for _, b := range f.Blocks {
		n += len(b.Values)
	}
	return n
}

// NumValueIDs returns an upper bound on the value IDs allocated in f.
func (f *Func) NumValueIDs() int { return int(f.nextValueID) }
