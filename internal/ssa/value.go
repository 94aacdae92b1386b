package ssa

import (
	"fmt"

	"github.com/you-not-fish/kale/internal/syntax"
)

// ID is a unique identifier for Values and Blocks within a Func.
type ID int32

// Type is the type of an SSA value. Every kale expression is a float or a
// string handle; the other types only appear inside lowered operators.
type Type uint8

const (
	TypeVoid Type = iota
	TypeFloat
	TypeBool
	TypeInt
	TypeString
	TypePtr
)

var typeNames = [...]string{
	TypeVoid:   "void",
	TypeFloat:  "double",
	TypeBool:   "bool",
	TypeInt:    "i64",
	TypeString: "string",
	TypePtr:    "ptr",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "unknown"
}

// TypeOf returns the IR type of a declared parameter type.
func TypeOf(t syntax.ParamType) (Type, bool) {
	switch t {
	case syntax.TypeDouble:
		return TypeFloat, true
	case syntax.TypeString:
		return TypeString, true
	}
	return TypeVoid, false
}

// Loc is the source location of a value and the debug scope it was
// generated in.
type Loc struct {
	Pos   syntax.Pos
	Scope *DebugScope
}

func (l Loc) String() string {
	if !l.Pos.IsValid() {
		return "-"
	}
	if l.Scope == nil {
		return fmt.Sprintf("%d:%d", l.Pos.Line(), l.Pos.Col())
	}
	return fmt.Sprintf("%d:%d %s", l.Pos.Line(), l.Pos.Col(), l.Scope)
}

// Value represents a single SSA computation.
// Each Value has exactly one definition and may be used by other Values.
type Value struct {
	// ID is a unique identifier within the containing Func.
	ID ID

	// Op is the operation this value computes.
	Op Op

	// Type is the result type of this value; TypeVoid for Store.
	Type Type

	// Args are the input values to this operation.
	Args []*Value

	// Block is the basic block that contains this value.
	Block *Block

	// AuxInt holds an auxiliary integer (argument index, constant,
	// element type of a slot).
	AuxInt int64

	// AuxFloat holds the value of OpConstFloat.
	AuxFloat float64

	// Aux holds a name or string constant.
	Aux interface{}

	// Uses tracks the number of references to this value.
	Uses int32

	// Loc is the source location the value was generated for.
	Loc Loc
}

// String returns a short string representation of the value (e.g., "v5").
func (v *Value) String() string {
	return fmt.Sprintf("v%d", v.ID)
}

// LongString returns a detailed string representation including op, type, and args.
func (v *Value) LongString() string {
	return formatValue(v)
}

// Name returns the string in Aux, or "".
func (v *Value) Name() string {
	s, _ := v.Aux.(string)
	return s
}

// Elem returns the element type of an Alloca slot.
func (v *Value) Elem() Type {
	if v.Op != OpAlloca {
		return TypeVoid
	}
	return Type(v.AuxInt)
}

// AddArg appends a value to the argument list and increments the arg's use count.
func (v *Value) AddArg(arg *Value) {
	v.Args = append(v.Args, arg)
	arg.Uses++
}

// SetArgs replaces the argument list, adjusting use counts.
func (v *Value) SetArgs(args []*Value) {
	for _, old := range v.Args {
		if old != nil {
			old.Uses--
		}
	}
	v.Args = args
	for _, arg := range args {
		if arg != nil {
			arg.Uses++
		}
	}
}

// ReplaceArg replaces the argument at index i, adjusting use counts.
func (v *Value) ReplaceArg(i int, new *Value) {
	if old := v.Args[i]; old != nil {
		old.Uses--
	}
	v.Args[i] = new
	new.Uses++
}

// IsPure returns true if this value's op has no side effects.
func (v *Value) IsPure() bool {
	return v.Op.IsPure()
}
