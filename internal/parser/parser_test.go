package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arcanea/internal/errors"
	"arcanea/internal/lexer"
)

// Test helper to parse a string and check for errors
func parseString(input string) (*Program, error) {
	return ParseSource(input, "test.arc")
}

// Test helper to check if parsing succeeds
func assertParseSuccess(t *testing.T, input string, description string) *Program {
	t.Helper()
	program, err := parseString(input)
	if err != nil {
		t.Errorf("%s: parsing failed with error: %v", description, err)
		return nil
	}
	if program == nil {
		t.Errorf("%s: parsing returned nil program", description)
		return nil
	}
	return program
}

// Test helper to check if parsing fails
func assertParseError(t *testing.T, input string, description string) {
	t.Helper()
	if _, err := parseString(input); err == nil {
		t.Errorf("%s: expected parsing to fail but it succeeded", description)
	}
}

func runTable(t *testing.T, tests []struct {
	name       string
	input      string
	shouldPass bool
}) {
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if test.shouldPass {
				assertParseSuccess(t, test.input, test.name)
			} else {
				assertParseError(t, test.input, test.name)
			}
		})
	}
}

// ===== Spell Declaration Tests =====

func TestSpellDeclarations(t *testing.T) {
	runTable(t, []struct {
		name       string
		input      string
		shouldPass bool
	}{
		{"empty spell", `@spell a {}`, true},
		{"empty parameter list", `@spell a() {}`, true},
		{"greet", `@spell greet(name) { print(name) }`, true},
		{"several statements", `@spell a(x, y) { f(x); g(y) }`, true},
		{"let and assign", "@spell a { let x = 1 x = 2 print(x) }", true},
		{"nested spell", `@spell outer { @spell inner {} inner() }`, true},
		{"multiple declarations", "@spell a {}\n@spell b {}", true},
		{"empty program", ``, true},
		{"comment only", `// nothing here`, true},
		{"missing name", `@spell (x) {}`, false},
		{"missing body", `@spell a(x) print(x)`, false},
		{"unclosed body", `@spell a { print(x)`, false},
		{"unclosed parameters", `@spell a(x {}`, false},
		{"trailing comma in parameters", `@spell a(x,) {}`, false},
		{"duplicate parameters", `@spell a(x, x) {}`, false},
		{"statement at top level", `print("hi")`, false},
		{"illegal character", `@spell a { # }`, false},
		{"unknown directive", `@cast a {}`, false},
		{"unterminated string", `@spell a { print("oops }`, false},
	})
}

// ===== Archetype Declaration Tests =====

func TestArchetypeDeclarations(t *testing.T) {
	runTable(t, []struct {
		name       string
		input      string
		shouldPass bool
	}{
		{"empty archetype", `@archetype Hero {}`, true},
		{"plain members", `@archetype Hero { name, level }`, true},
		{"typed members with default", `@archetype Hero { name: string, level: number = 1 }`, true},
		{"newline separated", "@archetype Hero {\n  name: string\n  level: number = 1\n}", true},
		{"trailing comma", `@archetype Hero { name, }`, true},
		{"list default", `@archetype Bag { items = [] }`, true},
		{"missing body", `@archetype Hero`, false},
		{"missing name", `@archetype { }`, false},
		{"missing type", `@archetype Hero { level: = 1 }`, false},
		{"missing default", `@archetype Hero { level = }`, false},
		{"duplicate member", `@archetype Hero { name, name }`, false},
	})
}

// ===== Expression Tests =====

func TestExpressions(t *testing.T) {
	runTable(t, []struct {
		name       string
		input      string
		shouldPass bool
	}{
		{"literals", `@spell a { print(1, 2.5, "s", true, false, nil) }`, true},
		{"list literal", `@spell a { [1, "a", true, nil] }`, true},
		{"empty list", `@spell a { length([]) }`, true},
		{"nested calls", `@spell a(x, y) { f(g(x), [y]) }`, true},
		{"member access", `@spell a(hero) { print(hero.name) }`, true},
		{"chained call and member", `@spell a { make().name }`, true},
		{"curried call", `@spell a { f(1)(2) }`, true},
		{"parenthesized", `@spell a(x) { (x) }`, true},
		{"let without name", `@spell a { let = 1 }`, false},
		{"let without value", `@spell a { let x = }`, false},
		{"empty argument", `@spell a { f(,) }`, false},
		{"unclosed list", `@spell a { [1, 2 }`, false},
		{"member without name", `@spell a(x) { x. }`, false},
	})
}

// ===== AST Shape Tests =====

func TestSpellAST(t *testing.T) {
	program := assertParseSuccess(t, `@spell greet(name) { print(name) }`, "greet")
	require.NotNil(t, program)

	want := &Program{
		File: "test.arc",
		Decls: []Decl{
			&SpellDecl{
				Name:   "greet",
				Params: []*Identifier{{Name: "name"}},
				Body: []Stmt{
					&ExprStmt{Expr: &CallExpr{
						Callee: &Identifier{Name: "print"},
						Args:   []Expr{&Identifier{Name: "name"}},
					}},
				},
			},
		},
	}
	if diff := cmp.Diff(want, program, cmpopts.IgnoreTypes(lexer.Position{})); diff != "" {
		t.Errorf("AST mismatch (-want +got):\n%s", diff)
	}

	spell := program.Decls[0].(*SpellDecl)
	assert.Equal(t, lexer.Position{File: "test.arc", Line: 1, Column: 1}, spell.Pos())
	assert.Equal(t, []string{"name"}, spell.ParamNames())
	assert.Equal(t, "greet", spell.DeclName())
}

func TestArchetypeAST(t *testing.T) {
	program := assertParseSuccess(t, `@archetype Hero { name: string, level: number = 1, tags }`, "hero")
	require.NotNil(t, program)

	want := &ArchetypeDecl{
		Name: "Hero",
		Members: []*Member{
			{Name: "name", Type: "string"},
			{Name: "level", Type: "number", Default: &Literal{Value: 1.0}},
			{Name: "tags"},
		},
	}
	if diff := cmp.Diff(want, program.Decls[0], cmpopts.IgnoreTypes(lexer.Position{})); diff != "" {
		t.Errorf("AST mismatch (-want +got):\n%s", diff)
	}
}

func TestStatementKinds(t *testing.T) {
	program := assertParseSuccess(t, "@spell a { let x = 1; x = \"two\"; x }", "statements")
	require.NotNil(t, program)

	body := program.Decls[0].(*SpellDecl).Body
	require.Len(t, body, 3)
	assert.IsType(t, &LetStmt{}, body[0])
	assert.IsType(t, &AssignStmt{}, body[1])
	assert.IsType(t, &ExprStmt{}, body[2])
	assert.Equal(t, "two", body[1].(*AssignStmt).Value.(*Literal).Value)
}

// ===== Error Reporting Tests =====

func TestSyntaxErrorPosition(t *testing.T) {
	_, err := parseString("@spell greet(name)\n print(name)")
	require.Error(t, err)

	perr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.SyntaxError, perr.Type)
	assert.Equal(t, 2, perr.Location.Line)
	assert.Equal(t, 2, perr.Location.Column)
	assert.Equal(t, "test.arc", perr.Location.File)
	assert.Contains(t, perr.Message, "Expect '{' before spell body")
	assert.Equal(t, " print(name)", perr.Source)
}

func TestTopLevelErrorNamesOffendingToken(t *testing.T) {
	_, err := parseString("\n\ngreet()")
	perr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, 3, perr.Location.Line)
	assert.Contains(t, perr.Message, "got 'greet'")
}

func TestEndOfInputError(t *testing.T) {
	_, err := parseString(`@spell a { print(x)`)
	perr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.SyntaxError, perr.Type)
	assert.Contains(t, perr.Message, "got end of input")
}

func TestLexicalErrorSurfacesFromParser(t *testing.T) {
	_, err := parseString(`@spell a { # }`)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.LexicalError))
	assert.Contains(t, err.Error(), "Unexpected character '#'")
}

func TestDuplicateParameterRejected(t *testing.T) {
	_, err := parseString(`@spell a(x, y, x) {}`)
	perr, ok := errors.As(err)
	require.True(t, ok)
	assert.Contains(t, perr.Message, "Duplicate parameter 'x'")
	assert.Equal(t, 16, perr.Location.Column)
}

func TestParseStatements(t *testing.T) {
	tokens := lexer.Tokenize(`let x = 1; greet(x)`)
	stmts, err := NewParser(tokens).ParseStatements()
	require.NoError(t, err)
	require.Len(t, stmts, 2)
	assert.IsType(t, &LetStmt{}, stmts[0])

	_, err = NewParser(lexer.Tokenize(`greet(`)).ParseStatements()
	assert.Error(t, err)
}

func TestParserWithoutEOFToken(t *testing.T) {
	tokens := lexer.Tokenize(`@spell a {}`)
	program, err := NewParser(tokens[:len(tokens)-1]).Parse()
	require.NoError(t, err)
	assert.Len(t, program.Decls, 1)
}

// ===== Helpers =====

func TestDescribe(t *testing.T) {
	program := assertParseSuccess(t, `@spell a { f(g(x), "a", 1, [y], h.k, nil) }`, "describe")
	require.NotNil(t, program)
	expr := program.Decls[0].(*SpellDecl).Body[0].(*ExprStmt).Expr
	assert.Equal(t, `f(g(x), "a", 1, [y], h.k, nil)`, Describe(expr))
}

func TestInspect(t *testing.T) {
	program := assertParseSuccess(t, `@spell a(p) { let v = f(p, [q]) } @archetype B { m = d() }`, "inspect")
	require.NotNil(t, program)

	var names []string
	Inspect(program, func(n Node) bool {
		if id, ok := n.(*Identifier); ok {
			names = append(names, id.Name)
		}
		return true
	})
	assert.Equal(t, []string{"p", "f", "p", "q", "d"}, names)

	calls := 0
	Inspect(program, func(n Node) bool {
		if _, ok := n.(*SpellDecl); ok {
			return false
		}
		if _, ok := n.(*CallExpr); ok {
			calls++
		}
		return true
	})
	assert.Equal(t, 1, calls)
}
