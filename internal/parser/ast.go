package parser

import (
	"fmt"
	"strconv"
	"strings"

	"arcanea/internal/lexer"
)

// Node is implemented by every AST variant. The Visitor interface lists one
// method per variant, so the set of node kinds is closed.
type Node interface {
	Pos() lexer.Position
	Accept(visitor Visitor) (interface{}, error)
}

// Expr is a node that produces a value.
type Expr interface {
	Node
	exprNode()
}

// Identifier expression: name
type Identifier struct {
	Name     string
	Position lexer.Position
}

func (i *Identifier) Pos() lexer.Position { return i.Position }
func (i *Identifier) exprNode()           {}
func (i *Identifier) Accept(visitor Visitor) (interface{}, error) {
	return visitor.VisitIdentifier(i)
}

// Literal expression: string, number, boolean or nil
type Literal struct {
	Value    interface{}
	Position lexer.Position
}

func (l *Literal) Pos() lexer.Position { return l.Position }
func (l *Literal) exprNode()           {}
func (l *Literal) Accept(visitor Visitor) (interface{}, error) {
	return visitor.VisitLiteral(l)
}

// Call expression: callee(args...)
type CallExpr struct {
	Callee   Expr
	Args     []Expr
	Position lexer.Position
}

func (c *CallExpr) Pos() lexer.Position { return c.Position }
func (c *CallExpr) exprNode()           {}
func (c *CallExpr) Accept(visitor Visitor) (interface{}, error) {
	return visitor.VisitCallExpr(c)
}

// List expression: [a, b, c]
type ListExpr struct {
	Elements []Expr
	Position lexer.Position
}

func (l *ListExpr) Pos() lexer.Position { return l.Position }
func (l *ListExpr) exprNode()           {}
func (l *ListExpr) Accept(visitor Visitor) (interface{}, error) {
	return visitor.VisitListExpr(l)
}

// Member access: object.name
type MemberExpr struct {
	Object   Expr
	Name     string
	Position lexer.Position
}

func (m *MemberExpr) Pos() lexer.Position { return m.Position }
func (m *MemberExpr) exprNode()           {}
func (m *MemberExpr) Accept(visitor Visitor) (interface{}, error) {
	return visitor.VisitMemberExpr(m)
}

type Visitor interface {
	VisitProgram(node *Program) (interface{}, error)
	VisitSpellDecl(node *SpellDecl) (interface{}, error)
	VisitArchetypeDecl(node *ArchetypeDecl) (interface{}, error)
	VisitLetStmt(node *LetStmt) (interface{}, error)
	VisitAssignStmt(node *AssignStmt) (interface{}, error)
	VisitExprStmt(node *ExprStmt) (interface{}, error)
	VisitCallExpr(node *CallExpr) (interface{}, error)
	VisitIdentifier(node *Identifier) (interface{}, error)
	VisitLiteral(node *Literal) (interface{}, error)
	VisitListExpr(node *ListExpr) (interface{}, error)
	VisitMemberExpr(node *MemberExpr) (interface{}, error)
}

// Describe renders an expression back to compact source text. Used in
// diagnostics such as "Not callable: <expr>".
func Describe(expr Expr) string {
	switch e := expr.(type) {
	case *Identifier:
		return e.Name
	case *Literal:
		switch v := e.Value.(type) {
		case string:
			return strconv.Quote(v)
		case float64:
			return strconv.FormatFloat(v, 'g', -1, 64)
		case nil:
			return "nil"
		default:
			return fmt.Sprint(v)
		}
	case *CallExpr:
		args := make([]string, len(e.Args))
		for i, a := range e.Args {
			args[i] = Describe(a)
		}
		return fmt.Sprintf("%s(%s)", Describe(e.Callee), strings.Join(args, ", "))
	case *ListExpr:
		elems := make([]string, len(e.Elements))
		for i, a := range e.Elements {
			elems[i] = Describe(a)
		}
		return "[" + strings.Join(elems, ", ") + "]"
	case *MemberExpr:
		return Describe(e.Object) + "." + e.Name
	case nil:
		return "<nil>"
	default:
		return fmt.Sprintf("%T", expr)
	}
}
