package syntax

// Visitor is called for each node during Walk.
// If it returns false, the children of the node are not visited.
type Visitor func(node Node) bool

// Walk traverses an AST in depth-first order.
// If visitor returns false, children are not visited.
func Walk(node Node, v Visitor) {
	if node == nil || !v(node) {
		return
	}

	switch n := node.(type) {
	case *FuncDecl:
		Walk(n.Proto, v)
		Walk(n.Body, v)

	case *ExternDecl:
		Walk(n.Proto, v)

	case *Unary:
		Walk(n.X, v)

	case *Binary:
		Walk(n.X, v)
		Walk(n.Y, v)

	case *Call:
		for _, a := range n.Args {
			Walk(a, v)
		}

	case *IfExpr:
		Walk(n.Cond, v)
		Walk(n.Then, v)
		Walk(n.Else, v)

	case *ForExpr:
		Walk(n.Start, v)
		Walk(n.End, v)
		if n.Step != nil {
			Walk(n.Step, v)
		}
		Walk(n.Body, v)

	case *VarExpr:
		for _, b := range n.Vars {
			Walk(b, v)
		}
		Walk(n.Body, v)

	case *VarBinding:
		if n.Init != nil {
			Walk(n.Init, v)
		}

	case *Compound:
		for _, x := range n.List {
			Walk(x, v)
		}

	case *Prototype, *NumberLit, *StringLit, *VarRef:
		// leaves
	}
}

// Inspect is like Walk but visits every node.
func Inspect(node Node, f func(Node)) {
	Walk(node, func(n Node) bool {
		f(n)
		return true
	})
}
