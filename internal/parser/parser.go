// internal/parser/parser.go
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"arcanea/internal/errors"
	"arcanea/internal/lexer"
)

type Parser struct {
	tokens      []lexer.Token
	current     int
	file        string
	sourceLines []string // Source lines for error reporting
}

func NewParser(tokens []lexer.Token) *Parser {
	return &Parser{
		tokens:  ensureEOF(tokens),
		current: 0,
	}
}

func NewParserWithSource(tokens []lexer.Token, source string, file string) *Parser {
	return &Parser{
		tokens:      ensureEOF(tokens),
		current:     0,
		file:        file,
		sourceLines: strings.Split(source, "\n"),
	}
}

// ParseSource tokenizes and parses a whole source file.
func ParseSource(source, file string) (*Program, error) {
	tokens := lexer.NewScannerWithFile(source, file).ScanTokens()
	return NewParserWithSource(tokens, source, file).Parse()
}

func ensureEOF(tokens []lexer.Token) []lexer.Token {
	if len(tokens) == 0 || tokens[len(tokens)-1].Type != lexer.TokenEOF {
		var pos lexer.Position
		if len(tokens) > 0 {
			pos = tokens[len(tokens)-1].Pos
		}
		tokens = append(tokens, lexer.Token{Type: lexer.TokenEOF, Pos: pos})
	}
	return tokens
}

// Parse reads declarations until the input is exhausted. The first error
// aborts the parse.
func (p *Parser) Parse() (program *Program, err error) {
	defer p.recoverError(&err)

	program = &Program{File: p.file}
	for !p.isAtEnd() {
		program.Decls = append(program.Decls, p.declaration())
	}
	return program, nil
}

// ParseStatements reads a bare statement list, as typed at the REPL or
// passed to --cast.
func (p *Parser) ParseStatements() (stmts []Stmt, err error) {
	defer p.recoverError(&err)

	for !p.isAtEnd() {
		stmts = append(stmts, p.statement())
	}
	return stmts, nil
}

func (p *Parser) recoverError(err *error) {
	if r := recover(); r != nil {
		if pe, ok := r.(*errors.ArcaneaError); ok {
			*err = pe
			return
		}
		panic(r)
	}
}

func (p *Parser) declaration() Decl {
	if p.match(lexer.TokenSpell) {
		return p.spell()
	}
	if p.match(lexer.TokenArchetype) {
		return p.archetype()
	}
	panic(p.errorAt(p.peek(), "Expect declaration (@spell or @archetype)"))
}

func (p *Parser) spell() Decl {
	keyword := p.previous()
	nameTok := p.consume(lexer.TokenIdent, "Expect spell name")
	spell := &SpellDecl{Name: nameTok.Lexeme, Position: keyword.Pos}

	if p.match(lexer.TokenLParen) {
		seen := make(map[string]bool)
		if !p.check(lexer.TokenRParen) {
			for {
				paramTok := p.consume(lexer.TokenIdent, "Expect parameter name")
				if seen[paramTok.Lexeme] {
					panic(p.errorAt(paramTok, fmt.Sprintf("Duplicate parameter '%s' in spell '%s'", paramTok.Lexeme, spell.Name)))
				}
				seen[paramTok.Lexeme] = true
				spell.Params = append(spell.Params, &Identifier{Name: paramTok.Lexeme, Position: paramTok.Pos})
				if !p.match(lexer.TokenComma) {
					break
				}
			}
		}
		p.consume(lexer.TokenRParen, "Expect ')' after parameters")
	}

	p.consume(lexer.TokenLBrace, "Expect '{' before spell body")
	spell.Body = p.block()
	p.consume(lexer.TokenRBrace, "Expect '}' after spell body")
	return spell
}

func (p *Parser) archetype() Decl {
	keyword := p.previous()
	nameTok := p.consume(lexer.TokenIdent, "Expect archetype name")
	arch := &ArchetypeDecl{Name: nameTok.Lexeme, Position: keyword.Pos}

	p.consume(lexer.TokenLBrace, "Expect '{' before archetype body")
	seen := make(map[string]bool)
	for !p.check(lexer.TokenRBrace) && !p.isAtEnd() {
		memberTok := p.consume(lexer.TokenIdent, "Expect member name")
		if seen[memberTok.Lexeme] {
			panic(p.errorAt(memberTok, fmt.Sprintf("Duplicate member '%s' in archetype '%s'", memberTok.Lexeme, arch.Name)))
		}
		seen[memberTok.Lexeme] = true

		member := &Member{Name: memberTok.Lexeme, Position: memberTok.Pos}
		if p.match(lexer.TokenColon) {
			member.Type = p.consume(lexer.TokenIdent, "Expect type name after ':'").Lexeme
		}
		if p.match(lexer.TokenEqual) {
			member.Default = p.expression()
		}
		arch.Members = append(arch.Members, member)
		p.match(lexer.TokenComma)
	}
	p.consume(lexer.TokenRBrace, "Expect '}' after archetype body")
	return arch
}

func (p *Parser) block() []Stmt {
	var stmts []Stmt
	for !p.check(lexer.TokenRBrace) && !p.isAtEnd() {
		stmts = append(stmts, p.statement())
	}
	return stmts
}

func (p *Parser) statement() Stmt {
	var stmt Stmt
	switch {
	case p.match(lexer.TokenSpell):
		stmt = p.spell()
	case p.match(lexer.TokenArchetype):
		stmt = p.archetype()
	case p.match(lexer.TokenLet):
		keyword := p.previous()
		nameTok := p.consume(lexer.TokenIdent, "Expect variable name")
		p.consume(lexer.TokenEqual, "Expect '=' after variable name")
		stmt = &LetStmt{Name: nameTok.Lexeme, Value: p.expression(), Position: keyword.Pos}
	case p.check(lexer.TokenIdent) && p.checkNext(lexer.TokenEqual):
		nameTok := p.advance()
		p.advance()
		stmt = &AssignStmt{Name: nameTok.Lexeme, Value: p.expression(), Position: nameTok.Pos}
	default:
		stmt = &ExprStmt{Expr: p.expression()}
	}
	p.match(lexer.TokenSemicolon)
	return stmt
}

// --- Expressions ---

func (p *Parser) expression() Expr {
	return p.postfix()
}

func (p *Parser) postfix() Expr {
	expr := p.primary()
	for {
		if p.match(lexer.TokenLParen) {
			expr = p.finishCall(expr, p.previous())
		} else if p.match(lexer.TokenDot) {
			nameTok := p.consume(lexer.TokenIdent, "Expect member name after '.'")
			expr = &MemberExpr{Object: expr, Name: nameTok.Lexeme, Position: nameTok.Pos}
		} else {
			break
		}
	}
	return expr
}

func (p *Parser) finishCall(callee Expr, paren lexer.Token) Expr {
	args := p.arguments(lexer.TokenRParen)
	p.consume(lexer.TokenRParen, "Expect ')' after arguments")
	return &CallExpr{Callee: callee, Args: args, Position: paren.Pos}
}

func (p *Parser) arguments(closing lexer.TokenType) []Expr {
	args := []Expr{}
	if p.check(closing) {
		return args
	}
	for {
		args = append(args, p.expression())
		if !p.match(lexer.TokenComma) {
			break
		}
	}
	return args
}

func (p *Parser) primary() Expr {
	if p.isAtEnd() {
		panic(p.errorAt(p.peek(), "Expect expression"))
	}
	tok := p.advance()
	switch tok.Type {
	case lexer.TokenString:
		return &Literal{Value: tok.Lexeme, Position: tok.Pos}
	case lexer.TokenNumber:
		val, err := strconv.ParseFloat(tok.Lexeme, 64)
		if err != nil {
			panic(p.errorAt(tok, fmt.Sprintf("Invalid number '%s'", tok.Lexeme)))
		}
		return &Literal{Value: val, Position: tok.Pos}
	case lexer.TokenTrue:
		return &Literal{Value: true, Position: tok.Pos}
	case lexer.TokenFalse:
		return &Literal{Value: false, Position: tok.Pos}
	case lexer.TokenNil:
		return &Literal{Value: nil, Position: tok.Pos}
	case lexer.TokenIdent:
		return &Identifier{Name: tok.Lexeme, Position: tok.Pos}
	case lexer.TokenLBracket:
		elements := p.arguments(lexer.TokenRBracket)
		p.consume(lexer.TokenRBracket, "Expect ']' after list elements")
		return &ListExpr{Elements: elements, Position: tok.Pos}
	case lexer.TokenLParen:
		expr := p.expression()
		p.consume(lexer.TokenRParen, "Expect ')' after expression")
		return expr
	default:
		panic(p.errorAt(tok, fmt.Sprintf("Unexpected token in expression: '%s'", tok.Lexeme)))
	}
}

// --- Utility methods ---

func (p *Parser) match(t lexer.TokenType) bool {
	if p.check(t) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) consume(t lexer.TokenType, msg string) lexer.Token {
	if p.check(t) {
		return p.advance()
	}
	panic(p.errorAt(p.peek(), msg))
}

func (p *Parser) errorAt(tok lexer.Token, msg string) *errors.ArcaneaError {
	var err *errors.ArcaneaError
	switch tok.Type {
	case lexer.TokenIllegal:
		err = errors.NewLexicalError(
			fmt.Sprintf("Unexpected character '%s'", tok.Lexeme),
			p.file, tok.Pos.Line, tok.Pos.Column)
	case lexer.TokenEOF:
		err = errors.NewSyntaxError(
			fmt.Sprintf("%s (got end of input)", msg),
			p.file, tok.Pos.Line, tok.Pos.Column)
	default:
		err = errors.NewSyntaxError(
			fmt.Sprintf("%s (got '%s')", msg, tok.Lexeme),
			p.file, tok.Pos.Line, tok.Pos.Column)
	}

	if p.sourceLines != nil && tok.Pos.Line > 0 && tok.Pos.Line <= len(p.sourceLines) {
		err = err.WithSource(p.sourceLines[tok.Pos.Line-1])
	}
	return err
}

func (p *Parser) check(t lexer.TokenType) bool {
	if p.isAtEnd() {
		return t == lexer.TokenEOF
	}
	return p.peek().Type == t
}

func (p *Parser) checkNext(t lexer.TokenType) bool {
	if p.current+1 >= len(p.tokens) {
		return false
	}
	return p.tokens[p.current+1].Type == t
}

func (p *Parser) advance() lexer.Token {
	if !p.isAtEnd() {
		p.current++
	}
	return p.previous()
}

func (p *Parser) previous() lexer.Token {
	if p.current == 0 {
		return p.tokens[0]
	}
	return p.tokens[p.current-1]
}

func (p *Parser) peek() lexer.Token {
	return p.tokens[p.current]
}

func (p *Parser) isAtEnd() bool {
	return p.peek().Type == lexer.TokenEOF
}
