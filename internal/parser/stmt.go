// internal/parser/stmt.go
package parser

import "arcanea/internal/lexer"

// Stmt is a node that may appear in a spell body.
type Stmt interface {
	Node
	stmtNode()
}

// Decl is a top-level declaration.
type Decl interface {
	Stmt
	DeclName() string
}

// Program is the root of a parsed source file.
type Program struct {
	File  string
	Decls []Decl
}

func (p *Program) Pos() lexer.Position {
	if len(p.Decls) > 0 {
		return p.Decls[0].Pos()
	}
	return lexer.Position{File: p.File, Line: 1, Column: 1}
}

func (p *Program) Accept(visitor Visitor) (interface{}, error) {
	return visitor.VisitProgram(p)
}

// SpellDecl represents @spell name(params) { body }.
type SpellDecl struct {
	Name     string
	Params   []*Identifier
	Body     []Stmt
	Position lexer.Position
}

func (s *SpellDecl) Pos() lexer.Position { return s.Position }
func (s *SpellDecl) stmtNode()           {}
func (s *SpellDecl) DeclName() string    { return s.Name }
func (s *SpellDecl) Accept(visitor Visitor) (interface{}, error) {
	return visitor.VisitSpellDecl(s)
}

// ParamNames returns the declared parameter names in order.
func (s *SpellDecl) ParamNames() []string {
	names := make([]string, len(s.Params))
	for i, p := range s.Params {
		names[i] = p.Name
	}
	return names
}

// Member is one field of an archetype: name [: type] [= default].
type Member struct {
	Name     string
	Type     string
	Default  Expr
	Position lexer.Position
}

// ArchetypeDecl represents @archetype Name { members }.
type ArchetypeDecl struct {
	Name     string
	Members  []*Member
	Position lexer.Position
}

func (a *ArchetypeDecl) Pos() lexer.Position { return a.Position }
func (a *ArchetypeDecl) stmtNode()           {}
func (a *ArchetypeDecl) DeclName() string    { return a.Name }
func (a *ArchetypeDecl) Accept(visitor Visitor) (interface{}, error) {
	return visitor.VisitArchetypeDecl(a)
}

// LetStmt represents a binding in the current frame: let x = expr
type LetStmt struct {
	Name     string
	Value    Expr
	Position lexer.Position
}

func (l *LetStmt) Pos() lexer.Position { return l.Position }
func (l *LetStmt) stmtNode()           {}
func (l *LetStmt) Accept(visitor Visitor) (interface{}, error) {
	return visitor.VisitLetStmt(l)
}

// AssignStmt updates an existing binding: x = expr
type AssignStmt struct {
	Name     string
	Value    Expr
	Position lexer.Position
}

func (a *AssignStmt) Pos() lexer.Position { return a.Position }
func (a *AssignStmt) stmtNode()           {}
func (a *AssignStmt) Accept(visitor Visitor) (interface{}, error) {
	return visitor.VisitAssignStmt(a)
}

// ExprStmt wraps a raw expression as a statement.
type ExprStmt struct {
	Expr Expr
}

func (e *ExprStmt) Pos() lexer.Position { return e.Expr.Pos() }
func (e *ExprStmt) stmtNode()           {}
func (e *ExprStmt) Accept(visitor Visitor) (interface{}, error) {
	return visitor.VisitExprStmt(e)
}
