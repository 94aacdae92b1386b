package ssa

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Fprint writes the SSA representation of a function to w.
//
// Format:
//
//	func name(x double) double:
//	  b0: (entry)
//	    v0 = Arg <double> {x}                 ; 1:9 {subprogram name}
//	    v1 = Alloca <ptr> [double] {x}        ; 1:9 {subprogram name}
//	    Store v1 v0
//	    Return v3
//
// Declarations print as a single "declare" line.
func Fprint(w io.Writer, f *Func) {
	if f.IsDecl() {
		fmt.Fprintf(w, "declare %s%s\n", f.Name, formatParams(f))
		return
	}
	fmt.Fprintf(w, "func %s%s:\n", f.Name, formatParams(f))
	for _, b := range f.Blocks {
		fprintBlock(w, b, f)
	}
}

// FprintModule writes every function of m to w, declarations first.
func FprintModule(w io.Writer, m *Module) {
	fmt.Fprintf(w, "module %s\n", m.Name)
	for i, s := range m.Strings {
		fmt.Fprintf(w, "str%d = %q\n", i, s)
	}
	for _, f := range m.Funcs {
		if f.IsDecl() {
			Fprint(w, f)
		}
	}
	for _, f := range m.Funcs {
		if !f.IsDecl() {
			fmt.Fprintln(w)
			Fprint(w, f)
		}
	}
}

func formatParams(f *Func) string {
	var sb strings.Builder
	sb.WriteString("(")
	for i, p := range f.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s %s", p.Name, p.Type)
	}
	sb.WriteString(") ")
	sb.WriteString(TypeFloat.String())
	return sb.String()
}

// fprintBlock writes a single block to w.
func fprintBlock(w io.Writer, b *Block, f *Func) {
	label := ""
	if b == f.Entry {
		label = " (entry)"
	}

	predsStr := ""
	if len(b.Preds) > 0 {
		preds := make([]string, len(b.Preds))
		for i, p := range b.Preds {
			preds[i] = p.String()
		}
		predsStr = " <- " + strings.Join(preds, " ")
	}

	fmt.Fprintf(w, "  %s:%s%s\n", b, label, predsStr)

	for _, v := range b.Values {
		s := formatValue(v)
		if v.Loc.Pos.IsValid() {
			s = fmt.Sprintf("%-36s ; %s", s, v.Loc)
		}
		fmt.Fprintf(w, "    %s\n", s)
	}

	fmt.Fprintf(w, "    %s\n", formatTerminator(b))
}

// formatValue formats a value as a string.
func formatValue(v *Value) string {
	var sb strings.Builder

	if v.Op.IsVoid() {
		sb.WriteString(v.Op.String())
	} else {
		fmt.Fprintf(&sb, "v%d = %s <%s>", v.ID, v.Op, v.Type)
	}

	switch v.Op {
	case OpConstInt, OpArg:
		fmt.Fprintf(&sb, " [%d]", v.AuxInt)
	case OpConstFloat:
		fmt.Fprintf(&sb, " [%g]", v.AuxFloat)
	case OpAlloca:
		fmt.Fprintf(&sb, " [%s]", v.Elem())
	}

	if v.Aux != nil {
		if v.Op == OpConstString {
			fmt.Fprintf(&sb, " {%q}", v.Aux)
		} else {
			fmt.Fprintf(&sb, " {%v}", v.Aux)
		}
	}

	for _, arg := range v.Args {
		if arg == nil {
			sb.WriteString(" <nil>")
			continue
		}
		fmt.Fprintf(&sb, " v%d", arg.ID)
	}

	return sb.String()
}

// formatTerminator formats a block terminator.
func formatTerminator(b *Block) string {
	switch b.Kind {
	case BlockPlain:
		if len(b.Succs) > 0 {
			return fmt.Sprintf("Plain -> %s", b.Succs[0])
		}
		return "Plain"
	case BlockIf:
		if len(b.Controls) > 0 && b.Controls[0] != nil && len(b.Succs) >= 2 {
			return fmt.Sprintf("If v%d -> %s %s", b.Controls[0].ID, b.Succs[0], b.Succs[1])
		}
		return "If (malformed)"
	case BlockReturn:
		if len(b.Controls) > 0 && b.Controls[0] != nil {
			return fmt.Sprintf("Return v%d", b.Controls[0].ID)
		}
		return "Return"
	default:
		return "???"
	}
}

// Sprint returns the SSA representation of a function as a string.
func Sprint(f *Func) string {
	var sb strings.Builder
	Fprint(&sb, f)
	return sb.String()
}

// SprintModule returns the SSA representation of a module as a string.
func SprintModule(m *Module) string {
	var sb strings.Builder
	FprintModule(&sb, m)
	return sb.String()
}

// Print writes the SSA representation of a function to stdout.
func Print(f *Func) {
	Fprint(os.Stdout, f)
}
