package syntax

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/davecgh/go-spew/spew"
)

// Fprint writes a textual representation of the AST to w.
func Fprint(w io.Writer, node Node) {
	p := &printer{w: w}
	p.print(node)
}

// Dump writes the full structure of node to w, including unexported
// position fields.
func Dump(w io.Writer, node Node) {
	cfg := spew.ConfigState{
		Indent:                  "  ",
		DisablePointerAddresses: true,
		DisableCapacities:       true,
		SortKeys:                true,
	}
	cfg.Fdump(w, node)
}

type printer struct {
	w      io.Writer
	indent int
}

func (p *printer) printf(format string, args ...interface{}) {
	fmt.Fprintf(p.w, "%s%s", strings.Repeat("  ", p.indent), fmt.Sprintf(format, args...))
}

// field prints a labelled child one level deeper.
func (p *printer) field(label string, n Node) {
	p.printf("%s:\n", label)
	p.indent++
	p.print(n)
	p.indent--
}

func (p *printer) print(node Node) {
	if node == nil {
		return
	}

	switch n := node.(type) {
	case *FuncDecl:
		if n.TopLevel {
			p.printf("TopLevel %s\n", n.pos)
		} else {
			p.printf("FuncDecl %s\n", n.pos)
		}
		p.indent++
		p.print(n.Proto)
		p.field("Body", n.Body)
		p.indent--

	case *ExternDecl:
		p.printf("ExternDecl %s\n", n.pos)
		p.indent++
		p.print(n.Proto)
		p.indent--

	case *Prototype:
		p.printf("Prototype %s %s\n", n.Name, n.pos)
		p.indent++
		if n.Kind == OpBinary {
			p.printf("Precedence: %d\n", n.Precedence)
		}
		for _, a := range n.Params {
			p.printf("Param: %s %s\n", a.Type, a.Name)
		}
		p.indent--

	case *NumberLit:
		p.printf("NumberLit %s %s\n", strconv.FormatFloat(n.Value, 'g', -1, 64), n.pos)

	case *StringLit:
		p.printf("StringLit %q %s\n", n.Value, n.pos)

	case *VarRef:
		p.printf("VarRef %s %s\n", n.Name, n.pos)

	case *Unary:
		p.printf("Unary %c %s\n", n.Op, n.pos)
		p.indent++
		p.print(n.X)
		p.indent--

	case *Binary:
		p.printf("Binary %c %s\n", n.Op, n.pos)
		p.indent++
		p.print(n.X)
		p.print(n.Y)
		p.indent--

	case *Call:
		p.printf("Call %s %s\n", n.Callee, n.pos)
		p.indent++
		for _, a := range n.Args {
			p.print(a)
		}
		p.indent--

	case *IfExpr:
		p.printf("IfExpr %s\n", n.pos)
		p.indent++
		p.field("Cond", n.Cond)
		p.field("Then", n.Then)
		p.field("Else", n.Else)
		p.indent--

	case *ForExpr:
		p.printf("ForExpr %s %s\n", n.Var, n.pos)
		p.indent++
		p.field("Start", n.Start)
		p.field("End", n.End)
		if n.Step != nil {
			p.field("Step", n.Step)
		}
		p.field("Body", n.Body)
		p.indent--

	case *VarExpr:
		p.printf("VarExpr %s\n", n.pos)
		p.indent++
		for _, b := range n.Vars {
			p.print(b)
		}
		p.field("Body", n.Body)
		p.indent--

	case *VarBinding:
		p.printf("Var %s %s\n", n.Name, n.pos)
		if n.Init != nil {
			p.indent++
			p.print(n.Init)
			p.indent--
		}

	case *Compound:
		p.printf("Compound %s\n", n.pos)
		p.indent++
		for _, x := range n.List {
			p.print(x)
		}
		p.indent--

	default:
		p.printf("%T\n", n)
	}
}
