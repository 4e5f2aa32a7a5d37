package parser

// Inspect traverses the tree rooted at node in depth-first order, calling fn
// for each node. If fn returns false, the children of that node are skipped.
func Inspect(node Node, fn func(Node) bool) {
	if node == nil || !fn(node) {
		return
	}
	switch n := node.(type) {
	case *Program:
		for _, d := range n.Decls {
			Inspect(d, fn)
		}
	case *SpellDecl:
		for _, p := range n.Params {
			Inspect(p, fn)
		}
		for _, s := range n.Body {
			Inspect(s, fn)
		}
	case *ArchetypeDecl:
		for _, m := range n.Members {
			if m.Default != nil {
				Inspect(m.Default, fn)
			}
		}
	case *LetStmt:
		Inspect(n.Value, fn)
	case *AssignStmt:
		Inspect(n.Value, fn)
	case *ExprStmt:
		Inspect(n.Expr, fn)
	case *CallExpr:
		Inspect(n.Callee, fn)
		for _, a := range n.Args {
			Inspect(a, fn)
		}
	case *ListExpr:
		for _, e := range n.Elements {
			Inspect(e, fn)
		}
	case *MemberExpr:
		Inspect(n.Object, fn)
	}
}
