package lexer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type TokenType string

const (
	// Declaration keywords
	TokenSpell     TokenType = "SPELL"
	TokenArchetype TokenType = "ARCHETYPE"

	// Statement keywords
	TokenLet TokenType = "LET"

	// Literals & names
	TokenTrue   TokenType = "TRUE"
	TokenFalse  TokenType = "FALSE"
	TokenNil    TokenType = "NIL"
	TokenIdent  TokenType = "IDENT"
	TokenString TokenType = "STRING"
	TokenNumber TokenType = "NUMBER"

	// Symbols
	TokenLParen    TokenType = "("
	TokenRParen    TokenType = ")"
	TokenLBrace    TokenType = "{"
	TokenRBrace    TokenType = "}"
	TokenLBracket  TokenType = "["
	TokenRBracket  TokenType = "]"
	TokenComma     TokenType = ","
	TokenDot       TokenType = "."
	TokenColon     TokenType = ":"
	TokenEqual     TokenType = "="
	TokenSemicolon TokenType = ";"

	TokenIllegal TokenType = "ILLEGAL"
	TokenEOF     TokenType = "EOF"
)

var keywords = map[string]TokenType{
	"let":   TokenLet,
	"true":  TokenTrue,
	"false": TokenFalse,
	"nil":   TokenNil,
}

var directives = map[string]TokenType{
	"@spell":     TokenSpell,
	"@archetype": TokenArchetype,
}

// Position is a 1-based line/column location in a source file.
type Position struct {
	File   string
	Line   int
	Column int
}

func (p Position) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

type Token struct {
	Type   TokenType
	Lexeme string
	Pos    Position
}

func (t Token) String() string {
	return fmt.Sprintf("[%s] '%s' %s", t.Type, t.Lexeme, t.Pos)
}

type Scanner struct {
	source  string
	file    string
	tokens  []Token
	start   int
	current int
	line    int
	column  int

	startLine   int
	startColumn int
}

func NewScanner(source string) *Scanner {
	return NewScannerWithFile(source, "")
}

func NewScannerWithFile(source, file string) *Scanner {
	return &Scanner{
		source: source,
		file:   file,
		line:   1,
		column: 1,
	}
}

// Tokenize scans source in one call.
func Tokenize(source string) []Token {
	return NewScanner(source).ScanTokens()
}

// ScanTokens never fails. Unrecognized characters become TokenIllegal and an
// unterminated string is dropped, leaving the parser to report what is missing.
func (s *Scanner) ScanTokens() []Token {
	if s.current == 0 && strings.HasPrefix(s.source, "#!") {
		s.skipLine()
	}

	for !s.isAtEnd() {
		s.sanitize()
		if s.isAtEnd() {
			break
		}
		s.start = s.current
		s.startLine = s.line
		s.startColumn = s.column
		s.scanToken()
	}
	s.tokens = append(s.tokens, Token{
		Type: TokenEOF,
		Pos:  Position{File: s.file, Line: s.line, Column: s.column},
	})
	return s.tokens
}

func (s *Scanner) scanToken() {
	c := s.advance()
	switch c {
	case '(':
		s.addToken(TokenLParen)
	case ')':
		s.addToken(TokenRParen)
	case '{':
		s.addToken(TokenLBrace)
	case '}':
		s.addToken(TokenRBrace)
	case '[':
		s.addToken(TokenLBracket)
	case ']':
		s.addToken(TokenRBracket)
	case ',':
		s.addToken(TokenComma)
	case '.':
		s.addToken(TokenDot)
	case ':':
		s.addToken(TokenColon)
	case '=':
		s.addToken(TokenEqual)
	case ';':
		s.addToken(TokenSemicolon)
	case '/':
		if s.match('/') {
			s.skipLine()
		} else {
			s.addToken(TokenIllegal)
		}
	case '"':
		s.string()
	case '@':
		s.directive()
	default:
		switch {
		case isDigit(c):
			s.number()
		case isAlpha(c):
			s.identifier()
		default:
			s.addToken(TokenIllegal)
		}
	}
}

func (s *Scanner) match(expected rune) bool {
	if s.isAtEnd() || s.peek() != expected {
		return false
	}
	s.advance()
	return true
}

func (s *Scanner) identifier() {
	for isAlphaNumeric(s.peek()) {
		s.advance()
	}
	text := s.source[s.start:s.current]
	if t, ok := keywords[text]; ok {
		s.addToken(t)
		return
	}
	s.addToken(TokenIdent)
}

func (s *Scanner) directive() {
	for isAlphaNumeric(s.peek()) {
		s.advance()
	}
	if t, ok := directives[s.source[s.start:s.current]]; ok {
		s.addToken(t)
		return
	}
	s.addToken(TokenIllegal)
}

func (s *Scanner) number() {
	for isDigit(s.peek()) {
		s.advance()
	}
	if s.peek() == '.' && isDigit(s.peekNext()) {
		s.advance()
		for isDigit(s.peek()) {
			s.advance()
		}
	}
	s.addToken(TokenNumber)
}

func (s *Scanner) string() {
	var sb strings.Builder
	for s.peek() != '"' && !s.isAtEnd() {
		c := s.advance()
		if c == '\\' && !s.isAtEnd() {
			switch esc := s.advance(); esc {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case 'r':
				sb.WriteRune('\r')
			default:
				sb.WriteRune(esc)
			}
			continue
		}
		sb.WriteRune(c)
	}
	if s.isAtEnd() {
		return
	}
	s.advance()
	s.tokens = append(s.tokens, Token{Type: TokenString, Lexeme: sb.String(), Pos: s.startPos()})
}

func (s *Scanner) addToken(t TokenType) {
	text := s.source[s.start:s.current]
	s.tokens = append(s.tokens, Token{Type: t, Lexeme: text, Pos: s.startPos()})
}

func (s *Scanner) startPos() Position {
	return Position{File: s.file, Line: s.startLine, Column: s.startColumn}
}

func (s *Scanner) advance() rune {
	r, size := utf8.DecodeRuneInString(s.source[s.current:])
	s.current += size
	if r == '\n' {
		s.line++
		s.column = 1
	} else {
		s.column++
	}
	return r
}

func (s *Scanner) peek() rune {
	if s.isAtEnd() {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(s.source[s.current:])
	return r
}

func (s *Scanner) peekNext() rune {
	if s.isAtEnd() {
		return 0
	}
	_, size := utf8.DecodeRuneInString(s.source[s.current:])
	if s.current+size >= len(s.source) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(s.source[s.current+size:])
	return r
}

func (s *Scanner) isAtEnd() bool {
	return s.current >= len(s.source)
}

func (s *Scanner) sanitize() {
	for !s.isAtEnd() && unicode.IsSpace(s.peek()) {
		s.advance()
	}
}

func (s *Scanner) skipLine() {
	for !s.isAtEnd() && s.peek() != '\n' {
		s.advance()
	}
}

func isAlpha(c rune) bool {
	return unicode.IsLetter(c) || c == '_'
}

func isAlphaNumeric(c rune) bool {
	return isAlpha(c) || unicode.IsDigit(c)
}

func isDigit(c rune) bool {
	return '0' <= c && c <= '9'
}
