package syntax

// Default precedences for binary operators. Higher binds tighter.
const (
	DefaultBinaryPrecedence = 30
	MinPrecedence           = 1
	MaxPrecedence           = 100
)

var builtinPrecedence = map[byte]int{
	'=': 2,
	'<': 10,
	'>': 10,
	'+': 20,
	'-': 20,
	'*': 40,
	'/': 40,
	'%': 40,
}

// OpTable maps a binary operator character to its precedence.
// User operator definitions change it while parsing.
type OpTable struct {
	prec map[byte]int
}

// NewOpTable returns a table seeded with the builtin operators.
func NewOpTable() *OpTable {
	t := &OpTable{}
	t.Reset()
	return t
}

// Reset restores the builtin operators and drops everything else.
func (t *OpTable) Reset() {
	t.prec = make(map[byte]int, len(builtinPrecedence))
	for op, p := range builtinPrecedence {
		t.prec[op] = p
	}
}

// Clone returns an independent copy of t.
func (t *OpTable) Clone() *OpTable {
	c := &OpTable{prec: make(map[byte]int, len(t.prec))}
	for op, p := range t.prec {
		c.prec[op] = p
	}
	return c
}

// Precedence returns the precedence of tok as a binary operator,
// or -1 if tok is not one.
func (t *OpTable) Precedence(tok Token) int {
	if !tok.IsChar() {
		return -1
	}
	if p, ok := t.prec[byte(tok)]; ok && p > 0 {
		return p
	}
	return -1
}

// Lookup returns the precedence registered for op.
func (t *OpTable) Lookup(op byte) (int, bool) {
	p, ok := t.prec[op]
	return p, ok
}

// Begin installs prec for op and returns the edit that can undo it.
// The new precedence is visible immediately.
func (t *OpTable) Begin(op byte, prec int) *OpEdit {
	old, had := t.prec[op]
	t.prec[op] = prec
	return &OpEdit{table: t, op: op, prec: prec, old: old, had: had}
}

// OpEdit is a pending precedence change. It is finished exactly once, by
// Commit or Rollback; later calls do nothing. A nil *OpEdit is valid.
type OpEdit struct {
	table *OpTable
	op    byte
	prec  int
	old   int
	had   bool
	done  bool
}

// Op returns the operator character being edited.
func (e *OpEdit) Op() byte {
	return e.op
}

// Pending reports whether the edit has been neither committed nor rolled back.
func (e *OpEdit) Pending() bool {
	return e != nil && !e.done
}

// Commit keeps the new precedence.
func (e *OpEdit) Commit() {
	if e == nil {
		return
	}
	e.done = true
}

// Rollback restores the precedence op had before the edit, or removes op
// if it had none. A later edit of the same operator is left alone.
func (e *OpEdit) Rollback() {
	if e == nil || e.done {
		return
	}
	e.done = true
	if cur, ok := e.table.prec[e.op]; !ok || cur != e.prec {
		return
	}
	if e.had {
		e.table.prec[e.op] = e.old
	} else {
		delete(e.table.prec, e.op)
	}
}
