package syntax

import (
	"fmt"
	"strconv"
)

// SyntaxError represents a syntax error.
type SyntaxError struct {
	Pos Pos
	Msg string
}

func (e *SyntaxError) Error() string {
	return e.Pos.String() + ": " + e.Msg
}

// TopLevelPrefix starts the generated name of every top-level expression run.
const TopLevelPrefix = "__anon_expr."

// Parser performs syntax analysis on kale source code.
//
// It parses one top-level item at a time and never looks further ahead than
// the current token. Binary operator precedences come from an OpTable that
// operator definitions update as soon as their prototype is parsed.
type Parser struct {
	scanner *Scanner
	ops     *OpTable

	// Current token info (cached from scanner)
	tok Token
	lit string
	num float64
	pos Pos

	// Error handling
	errh   func(pos Pos, msg string)
	errcnt int
	first  error // first error encountered

	anon int // number of top-level expression runs seen
}

// NewParser creates a Parser reading tokens from s and primes it with the
// first token.
func NewParser(s *Scanner, ops *OpTable, errh func(pos Pos, msg string)) *Parser {
	p := &Parser{
		scanner: s,
		ops:     ops,
		errh:    errh,
	}
	p.next()
	return p
}

// ----------------------------------------------------------------------------
// Token navigation

// next advances to the next token.
func (p *Parser) next() {
	p.scanner.Next()
	p.tok = p.scanner.Token()
	p.lit = p.scanner.Literal()
	p.num = p.scanner.Number()
	p.pos = p.scanner.Pos()
}

// got reports whether the current token is tok.
// If so, it consumes the token and returns true.
func (p *Parser) got(tok Token) bool {
	if p.tok == tok {
		p.next()
		return true
	}
	return false
}

// want consumes the current token if it matches tok.
// Otherwise it reports msg and returns false.
func (p *Parser) want(tok Token, msg string) bool {
	if !p.got(tok) {
		p.syntaxError(msg)
		return false
	}
	return true
}

// Token returns the current token.
func (p *Parser) Token() Token {
	return p.tok
}

// Pos returns the position of the current token.
func (p *Parser) Pos() Pos {
	return p.pos
}

// AtEOF reports whether all input has been consumed.
func (p *Parser) AtEOF() bool {
	return p.tok == _EOF
}

// Skip discards the current token. The driver calls it after a failed item
// so that parsing resumes past the offending token.
func (p *Parser) Skip() {
	if p.tok != _EOF {
		p.next()
	}
}

// ----------------------------------------------------------------------------
// Error handling

// syntaxError reports a syntax error at the current position.
func (p *Parser) syntaxError(msg string) {
	p.syntaxErrorAt(p.pos, msg)
}

// syntaxErrorAt reports a syntax error at a specific position.
func (p *Parser) syntaxErrorAt(pos Pos, msg string) {
	if p.errcnt == 0 {
		p.first = &SyntaxError{Pos: pos, Msg: msg}
	}
	p.errcnt++

	if p.errh != nil {
		p.errh(pos, msg)
	}
}

// Errors returns the number of errors encountered during parsing.
func (p *Parser) Errors() int {
	return p.errcnt
}

// FirstError returns the first error encountered, or nil if none.
func (p *Parser) FirstError() error {
	return p.first
}

// ----------------------------------------------------------------------------
// Top-level items

// ParseItem parses one top-level item:
//
//	item := definition | externDecl | ';' | topLevelExprSeq
//
// It returns (nil, true) when the item was a bare ';' or input is exhausted
// and (nil, false) after a syntax error, which has already been reported.
func (p *Parser) ParseItem() (Item, bool) {
	switch p.tok {
	case _EOF:
		return nil, true
	case ';':
		p.next()
		return nil, true
	case _Def:
		if d := p.funcDecl(); d != nil {
			return d, true
		}
	case _Extern:
		if d := p.externDecl(); d != nil {
			return d, true
		}
	default:
		if d := p.topLevel(); d != nil {
			return d, true
		}
	}
	return nil, false
}

// funcDecl parses: def prototype body
func (p *Parser) funcDecl() *FuncDecl {
	d := &FuncDecl{}
	d.pos = p.pos
	p.next() // eat def

	proto, edit := p.prototype()
	if proto == nil {
		return nil
	}
	d.Proto = proto
	d.Edit = edit

	d.Body = p.body()
	if d.Body == nil {
		edit.Rollback()
		return nil
	}
	return d
}

// externDecl parses: extern prototype
func (p *Parser) externDecl() *ExternDecl {
	d := &ExternDecl{}
	d.pos = p.pos
	p.next() // eat extern

	proto, edit := p.prototype()
	if proto == nil {
		return nil
	}
	edit.Commit()
	d.Proto = proto
	return d
}

// topLevel parses a run of expressions separated by ';' and wraps it in a
// function taking no arguments.
func (p *Parser) topLevel() *FuncDecl {
	pos := p.pos
	body := &Compound{}
	body.pos = pos

	for {
		x := p.expr()
		if x == nil {
			return nil
		}
		body.List = append(body.List, x)
		if !p.got(';') || p.tok == _EOF {
			break
		}
		// Another item keyword ends the run.
		if p.tok == _Def || p.tok == _Extern || p.tok == ';' {
			break
		}
	}

	d := &FuncDecl{Body: body, TopLevel: true}
	d.pos = pos
	d.Proto = &Prototype{Name: TopLevelPrefix + strconv.Itoa(p.anon)}
	d.Proto.pos = pos
	p.anon++
	return d
}

// prototype parses:
//
//	prototype := identifier '(' typedArg* ')'
//	           | 'unary' OPCHAR '(' typedArg ')'
//	           | 'binary' OPCHAR [number] '(' typedArg typedArg ')'
//
// For binary operators the precedence is installed into the operator table
// before returning; the returned edit undoes it.
func (p *Parser) prototype() (*Prototype, *OpEdit) {
	proto := &Prototype{Precedence: DefaultBinaryPrecedence}
	proto.pos = p.pos

	switch p.tok {
	case _Name:
		proto.Name = p.lit
		p.next()

	case _Unary, _Binary:
		kind, what := OpUnary, "unary"
		if p.tok == _Binary {
			kind, what = OpBinary, "binary"
		}
		p.next()
		if !p.tok.IsChar() || p.tok >= 0x80 {
			p.syntaxError("expected " + what + " operator")
			return nil, nil
		}
		proto.Kind = kind
		proto.Name = what + string([]byte{byte(p.tok)})
		p.next()

		if kind == OpBinary && p.tok == _Number {
			if p.num < MinPrecedence || p.num > MaxPrecedence {
				p.syntaxError(fmt.Sprintf("invalid precedence: must be %d..%d", MinPrecedence, MaxPrecedence))
				return nil, nil
			}
			proto.Precedence = int(p.num)
			p.next()
		}

	default:
		p.syntaxError("expected function name in prototype")
		return nil, nil
	}

	if !p.want('(', "expected '(' in prototype") {
		return nil, nil
	}
	for p.tok != ')' {
		param, ok := p.typedArg()
		if !ok {
			return nil, nil
		}
		proto.Params = append(proto.Params, param)
		p.got(',')
	}
	p.next() // eat ')'

	switch proto.Kind {
	case OpUnary:
		if len(proto.Params) != 1 {
			p.syntaxErrorAt(proto.pos, "invalid number of operands for operator")
			return nil, nil
		}
		return proto, nil
	case OpBinary:
		if len(proto.Params) != 2 {
			p.syntaxErrorAt(proto.pos, "invalid number of operands for operator")
			return nil, nil
		}
		return proto, p.ops.Begin(proto.OperatorName(), proto.Precedence)
	}
	return proto, nil
}

// typedArg parses: ['double' | 'string'] identifier
// A bare identifier is a double.
func (p *Parser) typedArg() (Param, bool) {
	typ := TypeDouble
	switch p.tok {
	case _Double:
		p.next()
	case _StringT:
		typ = TypeString
		p.next()
	case _Name:
	case _EOF:
		p.syntaxError("expected ',' or ')' in argument list")
		return Param{}, false
	default:
		p.syntaxError("expected type specifier before argument name")
		return Param{}, false
	}

	if p.tok != _Name {
		p.syntaxError("expected argument name")
		return Param{}, false
	}
	param := Param{Name: p.lit, Type: typ}
	p.next()
	return param, true
}

// body parses a function or loop body:
//
//	body := '{' stmt* '}' | expression
func (p *Parser) body() Expr {
	if p.tok != '{' {
		return p.expr()
	}

	c := &Compound{}
	c.pos = p.pos
	p.next() // eat '{'

	for p.tok != '}' && p.tok != _EOF {
		x := p.expr()
		if x == nil {
			return nil
		}
		c.List = append(c.List, x)
		p.got(';')
	}

	c.Rbrace = p.pos
	if !p.want('}', "expected '}' after compound expression") {
		return nil
	}
	return c
}

// ----------------------------------------------------------------------------
// Expressions

// expr parses: unary binopRHS
func (p *Parser) expr() Expr {
	x := p.unaryExpr()
	if x == nil {
		return nil
	}
	return p.binaryExpr(0, x)
}

// binaryExpr implements precedence climbing. It absorbs operators binding
// at least as tightly as prec into x. When the operator after the right
// operand binds tighter than the current one, the right operand is extended
// first.
func (p *Parser) binaryExpr(prec int, x Expr) Expr {
	for {
		oprec := p.ops.Precedence(p.tok)
		if oprec < prec {
			return x
		}

		op := &Binary{Op: byte(p.tok), X: x}
		op.pos = p.pos
		p.next() // consume operator

		y := p.unaryExpr()
		if y == nil {
			return nil
		}

		if oprec < p.ops.Precedence(p.tok) {
			y = p.binaryExpr(oprec+1, y)
			if y == nil {
				return nil
			}
		}

		op.Y = y
		x = op
	}
}

// unaryExpr parses: OPCHAR unary | primary
// Any ASCII character other than '(' and ',' in prefix position is a unary
// operator; whether it exists is decided during code generation.
func (p *Parser) unaryExpr() Expr {
	if !p.tok.IsChar() || p.tok >= 0x80 || p.tok == '(' || p.tok == ',' {
		return p.primaryExpr()
	}

	u := &Unary{Op: byte(p.tok)}
	u.pos = p.pos
	p.next()
	u.X = p.unaryExpr()
	if u.X == nil {
		return nil
	}
	return u
}

// primaryExpr parses:
//
//	primary := number | string | identifier ['(' args ')'] | '(' expr ')'
//	         | ifExpr | forExpr | varExpr
func (p *Parser) primaryExpr() Expr {
	switch p.tok {
	case _Name:
		return p.nameOrCall()

	case _Number:
		x := &NumberLit{Value: p.num}
		x.pos = p.pos
		p.next()
		return x

	case _String:
		x := &StringLit{Value: p.lit}
		x.pos = p.pos
		p.next()
		return x

	case '(':
		p.next()
		x := p.expr()
		if x == nil {
			return nil
		}
		if !p.want(')', "expected ')'") {
			return nil
		}
		return x

	case _If:
		return p.ifExpr()

	case _For:
		return p.forExpr()

	case _Var:
		return p.varExpr()

	case _EOF:
		p.syntaxError("unexpected end of input")
		return nil

	default:
		p.syntaxError("unknown token when expecting an expression")
		return nil
	}
}

// nameOrCall parses: identifier ['(' [expr (',' expr)*] ')']
func (p *Parser) nameOrCall() Expr {
	pos, name := p.pos, p.lit
	p.next()

	if p.tok != '(' {
		x := &VarRef{Name: name}
		x.pos = pos
		return x
	}
	p.next() // eat '('

	call := &Call{Callee: name}
	call.pos = pos
	if p.tok != ')' {
		for {
			arg := p.expr()
			if arg == nil {
				return nil
			}
			call.Args = append(call.Args, arg)
			if p.tok == ')' {
				break
			}
			if !p.want(',', "expected ')' or ',' in argument list") {
				return nil
			}
		}
	}
	p.next() // eat ')'
	return call
}

// ifExpr parses: 'if' expr 'then' expr 'else' expr
func (p *Parser) ifExpr() Expr {
	x := &IfExpr{}
	x.pos = p.pos
	p.next() // eat if

	if x.Cond = p.expr(); x.Cond == nil {
		return nil
	}
	if !p.want(_Then, "expected then") {
		return nil
	}
	if x.Then = p.expr(); x.Then == nil {
		return nil
	}
	if !p.want(_Else, "expected else") {
		return nil
	}
	if x.Else = p.expr(); x.Else == nil {
		return nil
	}
	return x
}

// forExpr parses: 'for' identifier '=' expr ',' expr [',' expr] 'in' body
func (p *Parser) forExpr() Expr {
	x := &ForExpr{}
	x.pos = p.pos
	p.next() // eat for

	if p.tok != _Name {
		p.syntaxError("expected identifier after for")
		return nil
	}
	x.Var = p.lit
	p.next()

	if !p.want('=', "expected '=' after for") {
		return nil
	}
	if x.Start = p.expr(); x.Start == nil {
		return nil
	}
	if !p.want(',', "expected ',' after for start value") {
		return nil
	}
	if x.End = p.expr(); x.End == nil {
		return nil
	}
	if p.got(',') {
		if x.Step = p.expr(); x.Step == nil {
			return nil
		}
	}
	if !p.want(_In, "expected 'in' after for") {
		return nil
	}
	if x.Body = p.body(); x.Body == nil {
		return nil
	}
	return x
}

// varExpr parses: 'var' identifier ['=' expr] (',' identifier ['=' expr])* 'in' expr
func (p *Parser) varExpr() Expr {
	x := &VarExpr{}
	x.pos = p.pos
	p.next() // eat var

	if p.tok != _Name {
		p.syntaxError("expected identifier after var")
		return nil
	}

	for {
		b := &VarBinding{Name: p.lit}
		b.pos = p.pos
		p.next()

		if p.got('=') {
			if b.Init = p.expr(); b.Init == nil {
				return nil
			}
		}
		x.Vars = append(x.Vars, b)

		if !p.got(',') {
			break
		}
		if p.tok != _Name {
			p.syntaxError("expected identifier list after var")
			return nil
		}
	}

	if !p.want(_In, "expected 'in' keyword after 'var'") {
		return nil
	}
	if x.Body = p.expr(); x.Body == nil {
		return nil
	}
	return x
}
