package syntax

// ----------------------------------------------------------------------------
// Interfaces
//
// There are two classes of nodes: expressions, and top-level items
// (function definitions and extern declarations). The set of expression
// nodes is closed; code that switches over Expr handles every case below.

// Node is the interface implemented by all AST nodes.
type Node interface {
	Pos() Pos // position of the node's defining token
	aNode()   // marker method to restrict implementations to this package
}

// Expr is the interface for all expression nodes.
type Expr interface {
	Node
	aExpr()
}

// Item is the interface for top-level items.
type Item interface {
	Node
	aItem()
}

// ----------------------------------------------------------------------------
// Base node types

// node is the base struct embedded in all AST nodes.
type node struct {
	pos Pos
}

func (n *node) Pos() Pos { return n.pos }
func (n *node) aNode()   {}

// expr is embedded in all expression nodes.
type expr struct{ node }

func (*expr) aExpr() {}

// item is embedded in all top-level items.
type item struct{ node }

func (*item) aItem() {}

// ----------------------------------------------------------------------------
// Prototypes and top-level items

// ParamType is the declared type of a parameter.
type ParamType uint8

const (
	TypeDouble ParamType = iota
	TypeString
)

func (t ParamType) String() string {
	switch t {
	case TypeDouble:
		return "double"
	case TypeString:
		return "string"
	}
	return "invalid"
}

// Param is one named, typed parameter.
type Param struct {
	Name string
	Type ParamType
}

// OpKind tells whether a prototype defines an operator.
type OpKind uint8

const (
	OpNone OpKind = iota
	OpUnary
	OpBinary
)

// Prototype is a function signature. Operator prototypes are named
// "unary" or "binary" followed by the operator character.
type Prototype struct {
	node
	Name       string
	Params     []Param
	Kind       OpKind
	Precedence int // binary operators only
}

// NewPrototype returns a plain function prototype.
func NewPrototype(name string, params ...Param) *Prototype {
	return &Prototype{Name: name, Params: params}
}

// IsOperator reports whether p defines a unary or binary operator.
func (p *Prototype) IsOperator() bool {
	return p.Kind != OpNone
}

// OperatorName returns the operator character of an operator prototype.
func (p *Prototype) OperatorName() byte {
	return p.Name[len(p.Name)-1]
}

// FuncDecl is a function definition: def Proto Body.
// Top-level expression runs are also FuncDecls, with TopLevel set and a
// generated name.
type FuncDecl struct {
	item
	Proto    *Prototype
	Body     Expr
	TopLevel bool

	// Edit is the pending operator precedence change made when the
	// prototype was parsed. The owner commits it once the body compiles,
	// or rolls it back.
	Edit *OpEdit
}

// ExternDecl is a declaration of a function defined elsewhere.
type ExternDecl struct {
	item
	Proto *Prototype
}

// ----------------------------------------------------------------------------
// Expressions

// NumberLit is a numeric literal.
type NumberLit struct {
	expr
	Value float64
}

// StringLit is a string literal. Strings are only passed to host routines.
type StringLit struct {
	expr
	Value string
}

// VarRef is a reference to a variable.
type VarRef struct {
	expr
	Name string
}

// Unary is a prefix operator application.
type Unary struct {
	expr
	Op byte
	X  Expr
}

// Binary is an infix operator application. Its position is the operator.
type Binary struct {
	expr
	Op   byte
	X, Y Expr
}

// Call is a call of a named function.
type Call struct {
	expr
	Callee string
	Args   []Expr
}

// IfExpr is if Cond then Then else Else.
type IfExpr struct {
	expr
	Cond, Then, Else Expr
}

// ForExpr is for Var = Start, End [, Step] in Body.
type ForExpr struct {
	expr
	Var   string
	Start Expr
	End   Expr
	Step  Expr // nil means 1.0
	Body  Expr
}

// VarBinding is one name = init pair of a var expression.
type VarBinding struct {
	node
	Name string
	Init Expr // nil means 0.0
}

// VarExpr is var a [= x], b [= y] in Body.
type VarExpr struct {
	expr
	Vars []*VarBinding
	Body Expr
}

// Compound is a brace-delimited sequence of expressions.
type Compound struct {
	expr
	List   []Expr
	Rbrace Pos // position of closing brace; invalid for top-level runs
}
