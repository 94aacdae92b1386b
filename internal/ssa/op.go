// Package ssa implements the intermediate representation for the kale
// compiler: functions made of basic blocks, each holding a list of values.
//
// Variables live in stack slots (Alloca, Load, Store); the only phis the
// builder emits are the joins of if/then/else.
package ssa

// Op represents an SSA operation code.
type Op int

const (
	OpInvalid Op = iota

	// Function parameters
	OpArg // AuxInt = index; Aux = name

	// Constants
	OpConstFloat  // AuxFloat = value
	OpConstInt    // AuxInt = value
	OpConstString // Aux = string value

	// Float arithmetic
	OpAddF // float + float
	OpSubF // float - float
	OpMulF // float * float
	OpDivF // float / float

	// Float comparison (LLVM fcmp predicates)
	OpCmpULT // unordered or less than
	OpCmpUGT // unordered or greater than
	OpCmpONE // ordered and not equal

	// Conversions and intrinsics
	OpBoolToFloat // bool -> 0.0 or 1.0
	OpFloor       // floor(float)

	// Integer arithmetic
	OpRemI // signed integer remainder

	// Memory
	OpAlloca // stack slot; Type = Ptr; AuxInt = element type; Aux = name
	OpLoad   // Args[0] = slot
	OpStore  // Args[0] = slot, Args[1] = value; no result

	// Calls
	OpCall // Aux = callee name; Args = arguments

	// SSA
	OpPhi // Args[i] flows in from Block.Preds[i]

	opEnd
)

// opInfo holds metadata about an Op.
type opInfo struct {
	name   string
	pure   bool // no side effects; removable when unused
	void   bool // produces no value
	nargs  int  // fixed argument count, -1 if variable
	result Type // fixed result type, TypeVoid if it depends on the value
}

var opInfoTable = [...]opInfo{
	OpInvalid: {name: "Invalid", nargs: -1},

	OpArg: {name: "Arg", pure: true},

	OpConstFloat:  {name: "ConstFloat", pure: true, result: TypeFloat},
	OpConstInt:    {name: "ConstInt", pure: true, result: TypeInt},
	OpConstString: {name: "ConstString", pure: true, result: TypeString},

	OpAddF: {name: "AddF", pure: true, nargs: 2, result: TypeFloat},
	OpSubF: {name: "SubF", pure: true, nargs: 2, result: TypeFloat},
	OpMulF: {name: "MulF", pure: true, nargs: 2, result: TypeFloat},
	OpDivF: {name: "DivF", pure: true, nargs: 2, result: TypeFloat},

	OpCmpULT: {name: "CmpULT", pure: true, nargs: 2, result: TypeBool},
	OpCmpUGT: {name: "CmpUGT", pure: true, nargs: 2, result: TypeBool},
	OpCmpONE: {name: "CmpONE", pure: true, nargs: 2, result: TypeBool},

	OpBoolToFloat: {name: "BoolToFloat", pure: true, nargs: 1, result: TypeFloat},
	OpFloor:       {name: "Floor", pure: true, nargs: 1, result: TypeFloat},

	OpRemI: {name: "RemI", pure: true, nargs: 2, result: TypeInt},

	OpAlloca: {name: "Alloca", pure: true, result: TypePtr},
	OpLoad:   {name: "Load", pure: true, nargs: 1},
	OpStore:  {name: "Store", void: true, nargs: 2},

	OpCall: {name: "Call", nargs: -1, result: TypeFloat},

	OpPhi: {name: "Phi", pure: true, nargs: -1},
}

// String returns the name of the op.
func (op Op) String() string {
	if op >= 0 && op < opEnd {
		return opInfoTable[op].name
	}
	return "Unknown"
}

// IsPure reports whether the op has no side effects.
func (op Op) IsPure() bool {
	return op > OpInvalid && op < opEnd && opInfoTable[op].pure
}

// IsVoid reports whether the op produces no value.
func (op Op) IsVoid() bool {
	return op > OpInvalid && op < opEnd && opInfoTable[op].void
}

// NumArgs returns the fixed argument count of op, or -1 if it varies.
func (op Op) NumArgs() int {
	if op > OpInvalid && op < opEnd {
		return opInfoTable[op].nargs
	}
	return -1
}

// ResultType returns the fixed result type of op, or TypeVoid when the
// result type depends on the value (Arg, Load, Phi) or there is none.
func (op Op) ResultType() Type {
	if op > OpInvalid && op < opEnd {
		return opInfoTable[op].result
	}
	return TypeVoid
}
