package formatter

import (
	"strconv"
	"strings"

	"arcanea/internal/parser"
)

type Formatter struct {
	indent    int
	indentStr string
	output    strings.Builder
	lineBreak string
}

func NewFormatter() *Formatter {
	return &Formatter{
		indent:    0,
		indentStr: "    ", // 4 spaces
		lineBreak: "\n",
	}
}

// Format renders program in canonical layout. Comments are not kept.
func (f *Formatter) Format(program *parser.Program) string {
	f.output.Reset()
	f.indent = 0

	for i, decl := range program.Decls {
		if i > 0 {
			f.output.WriteString(f.lineBreak)
		}
		f.formatStmt(decl)
	}

	return f.output.String()
}

// Source parses source and formats it.
func Source(source, file string) (string, error) {
	program, err := parser.ParseSource(source, file)
	if err != nil {
		return "", err
	}
	return NewFormatter().Format(program), nil
}

func (f *Formatter) needsBlankLine(curr, next parser.Stmt) bool {
	// Nested declarations are set apart from the statements around them
	_, currIsDecl := curr.(parser.Decl)
	_, nextIsDecl := next.(parser.Decl)
	return currIsDecl || nextIsDecl
}

func (f *Formatter) writeIndent() {
	for i := 0; i < f.indent; i++ {
		f.output.WriteString(f.indentStr)
	}
}

func (f *Formatter) formatBlock(stmts []parser.Stmt) {
	if len(stmts) == 0 {
		f.output.WriteString("{}")
		f.output.WriteString(f.lineBreak)
		return
	}
	f.output.WriteString("{")
	f.output.WriteString(f.lineBreak)

	f.indent++
	for i, stmt := range stmts {
		f.formatStmt(stmt)
		if i < len(stmts)-1 && f.needsBlankLine(stmt, stmts[i+1]) {
			f.output.WriteString(f.lineBreak)
		}
	}
	f.indent--

	f.writeIndent()
	f.output.WriteString("}")
	f.output.WriteString(f.lineBreak)
}

func (f *Formatter) formatStmt(stmt parser.Stmt) {
	if stmt == nil {
		return
	}

	switch s := stmt.(type) {
	case *parser.SpellDecl:
		f.writeIndent()
		f.output.WriteString("@spell ")
		f.output.WriteString(s.Name)
		f.output.WriteString("(")
		f.output.WriteString(strings.Join(s.ParamNames(), ", "))
		f.output.WriteString(") ")
		f.formatBlock(s.Body)

	case *parser.ArchetypeDecl:
		f.writeIndent()
		f.output.WriteString("@archetype ")
		f.output.WriteString(s.Name)
		if len(s.Members) == 0 {
			f.output.WriteString(" {}")
			f.output.WriteString(f.lineBreak)
			return
		}
		f.output.WriteString(" {")
		f.output.WriteString(f.lineBreak)

		f.indent++
		for _, m := range s.Members {
			f.writeIndent()
			f.output.WriteString(m.Name)
			if m.Type != "" {
				f.output.WriteString(": ")
				f.output.WriteString(m.Type)
			}
			if m.Default != nil {
				f.output.WriteString(" = ")
				f.formatExpr(m.Default)
			}
			f.output.WriteString(f.lineBreak)
		}
		f.indent--

		f.writeIndent()
		f.output.WriteString("}")
		f.output.WriteString(f.lineBreak)

	case *parser.LetStmt:
		f.writeIndent()
		f.output.WriteString("let ")
		f.output.WriteString(s.Name)
		f.output.WriteString(" = ")
		f.formatExpr(s.Value)
		f.output.WriteString(f.lineBreak)

	case *parser.AssignStmt:
		f.writeIndent()
		f.output.WriteString(s.Name)
		f.output.WriteString(" = ")
		f.formatExpr(s.Value)
		f.output.WriteString(f.lineBreak)

	case *parser.ExprStmt:
		f.writeIndent()
		f.formatExpr(s.Expr)
		f.output.WriteString(f.lineBreak)
	}
}

func (f *Formatter) formatExpr(expr parser.Expr) {
	if expr == nil {
		return
	}

	switch e := expr.(type) {
	case *parser.Identifier:
		f.output.WriteString(e.Name)

	case *parser.Literal:
		switch v := e.Value.(type) {
		case string:
			f.output.WriteString(quote(v))
		case float64:
			f.output.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
		case bool:
			f.output.WriteString(strconv.FormatBool(v))
		case nil:
			f.output.WriteString("nil")
		}

	case *parser.CallExpr:
		f.formatExpr(e.Callee)
		f.output.WriteString("(")
		f.formatList(e.Args)
		f.output.WriteString(")")

	case *parser.ListExpr:
		f.output.WriteString("[")
		f.formatList(e.Elements)
		f.output.WriteString("]")

	case *parser.MemberExpr:
		f.formatExpr(e.Object)
		f.output.WriteString(".")
		f.output.WriteString(e.Name)
	}
}

func (f *Formatter) formatList(exprs []parser.Expr) {
	for i, expr := range exprs {
		if i > 0 {
			f.output.WriteString(", ")
		}
		f.formatExpr(expr)
	}
}

// quote writes s as a string literal using only the escapes the lexer reads.
func quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
