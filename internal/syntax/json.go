package syntax

import (
	"encoding/json"
	"io"
)

// FprintJSON writes a JSON representation of the AST to w.
func FprintJSON(w io.Writer, node Node) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(toJSON(node))
}

func toJSON(node Node) interface{} {
	if node == nil {
		return nil
	}

	switch n := node.(type) {
	case *FuncDecl:
		typ := "FuncDecl"
		if n.TopLevel {
			typ = "TopLevel"
		}
		return map[string]interface{}{
			"type":  typ,
			"pos":   n.pos.String(),
			"proto": toJSON(n.Proto),
			"body":  toJSON(n.Body),
		}

	case *ExternDecl:
		return map[string]interface{}{
			"type":  "ExternDecl",
			"pos":   n.pos.String(),
			"proto": toJSON(n.Proto),
		}

	case *Prototype:
		m := map[string]interface{}{
			"type": "Prototype",
			"pos":  n.pos.String(),
			"name": n.Name,
			"params": mapSlice(n.Params, func(p Param) interface{} {
				return map[string]interface{}{"name": p.Name, "paramtype": p.Type.String()}
			}),
		}
		switch n.Kind {
		case OpUnary:
			m["operator"] = "unary"
		case OpBinary:
			m["operator"] = "binary"
			m["precedence"] = n.Precedence
		}
		return m

	case *NumberLit:
		return map[string]interface{}{
			"type":  "NumberLit",
			"pos":   n.pos.String(),
			"value": n.Value,
		}

	case *StringLit:
		return map[string]interface{}{
			"type":  "StringLit",
			"pos":   n.pos.String(),
			"value": n.Value,
		}

	case *VarRef:
		return map[string]interface{}{
			"type": "VarRef",
			"pos":  n.pos.String(),
			"name": n.Name,
		}

	case *Unary:
		return map[string]interface{}{
			"type": "Unary",
			"pos":  n.pos.String(),
			"op":   string(n.Op),
			"x":    toJSON(n.X),
		}

	case *Binary:
		return map[string]interface{}{
			"type": "Binary",
			"pos":  n.pos.String(),
			"op":   string(n.Op),
			"x":    toJSON(n.X),
			"y":    toJSON(n.Y),
		}

	case *Call:
		return map[string]interface{}{
			"type":   "Call",
			"pos":    n.pos.String(),
			"callee": n.Callee,
			"args":   mapSliceExpr(n.Args, toJSON),
		}

	case *IfExpr:
		return map[string]interface{}{
			"type": "IfExpr",
			"pos":  n.pos.String(),
			"cond": toJSON(n.Cond),
			"then": toJSON(n.Then),
			"else": toJSON(n.Else),
		}

	case *ForExpr:
		m := map[string]interface{}{
			"type":  "ForExpr",
			"pos":   n.pos.String(),
			"var":   n.Var,
			"start": toJSON(n.Start),
			"end":   toJSON(n.End),
			"body":  toJSON(n.Body),
		}
		if n.Step != nil {
			m["step"] = toJSON(n.Step)
		}
		return m

	case *VarBinding:
		m := map[string]interface{}{
			"type": "Var",
			"pos":  n.pos.String(),
			"name": n.Name,
		}
		if n.Init != nil {
			m["init"] = toJSON(n.Init)
		}
		return m

	case *VarExpr:
		return map[string]interface{}{
			"type": "VarExpr",
			"pos":  n.pos.String(),
			"vars": mapSlice(n.Vars, func(b *VarBinding) interface{} { return toJSON(b) }),
			"body": toJSON(n.Body),
		}

	case *Compound:
		return map[string]interface{}{
			"type": "Compound",
			"pos":  n.pos.String(),
			"list": mapSliceExpr(n.List, toJSON),
		}

	default:
		return map[string]interface{}{
			"type": "Unknown",
		}
	}
}

func mapSlice[T any](s []T, f func(T) interface{}) []interface{} {
	result := make([]interface{}, len(s))
	for i, v := range s {
		result[i] = f(v)
	}
	return result
}

func mapSliceExpr(s []Expr, f func(Node) interface{}) []interface{} {
	result := make([]interface{}, len(s))
	for i, v := range s {
		result[i] = f(v)
	}
	return result
}
