package queryir

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenType identifies a lexical token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenError
	TokenIdent
	TokenString
	TokenNumber
	TokenKeyword
	TokenDot
	TokenComma
	TokenStar
	TokenLParen
	TokenRParen
	TokenOp
)

func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "end of input"
	case TokenError:
		return "invalid token"
	case TokenIdent:
		return "identifier"
	case TokenString:
		return "string"
	case TokenNumber:
		return "number"
	case TokenKeyword:
		return "keyword"
	case TokenDot:
		return "'.'"
	case TokenComma:
		return "','"
	case TokenStar:
		return "'*'"
	case TokenLParen:
		return "'('"
	case TokenRParen:
		return "')'"
	case TokenOp:
		return "operator"
	default:
		return "token"
	}
}

// Token is one lexeme with its byte offset in the input.
// Keywords keep their original spelling so they can double as path segments.
type Token struct {
	Type  TokenType
	Value string
	Pos   int
}

var keywords = map[string]bool{
	"SELECT": true, "FROM": true, "AS": true, "WHERE": true,
	"JOIN": true, "INNER": true, "LEFT": true, "OUTER": true, "CROSS": true, "ON": true,
	"AND": true, "OR": true, "NOT": true,
	"TRUE": true, "FALSE": true, "NULL": true, "META": true,
}

// lexer tokenizes predicate and statement text.
type lexer struct {
	input string
	pos   int
}

// tokenize returns every token up to and including TokenEOF, or the first
// TokenError.
func tokenize(input string) []Token {
	l := &lexer{input: input}
	var tokens []Token
	for {
		tok := l.next()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			return tokens
		}
	}
}

func (l *lexer) peekRune(offset int) rune {
	if l.pos+offset >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.pos+offset:])
	return r
}

func (l *lexer) skipWhitespace() {
	for l.pos < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		l.pos += size
	}
}

func (l *lexer) next() Token {
	l.skipWhitespace()
	start := l.pos
	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: start}
	}

	ch := l.peekRune(0)
	switch {
	case ch == '.':
		l.pos++
		return Token{Type: TokenDot, Value: ".", Pos: start}
	case ch == ',':
		l.pos++
		return Token{Type: TokenComma, Value: ",", Pos: start}
	case ch == '*':
		l.pos++
		return Token{Type: TokenStar, Value: "*", Pos: start}
	case ch == '(':
		l.pos++
		return Token{Type: TokenLParen, Value: "(", Pos: start}
	case ch == ')':
		l.pos++
		return Token{Type: TokenRParen, Value: ")", Pos: start}
	case ch == '=':
		l.pos++
		if l.peekRune(0) == '=' {
			l.pos++
		}
		return Token{Type: TokenOp, Value: "=", Pos: start}
	case ch == '!':
		if l.peekRune(1) == '=' {
			l.pos += 2
			return Token{Type: TokenOp, Value: "!=", Pos: start}
		}
		l.pos++
		return Token{Type: TokenError, Value: "unexpected '!'", Pos: start}
	case ch == '<':
		l.pos++
		switch l.peekRune(0) {
		case '=':
			l.pos++
			return Token{Type: TokenOp, Value: "<=", Pos: start}
		case '>':
			l.pos++
			return Token{Type: TokenOp, Value: "!=", Pos: start}
		}
		return Token{Type: TokenOp, Value: "<", Pos: start}
	case ch == '>':
		l.pos++
		if l.peekRune(0) == '=' {
			l.pos++
			return Token{Type: TokenOp, Value: ">=", Pos: start}
		}
		return Token{Type: TokenOp, Value: ">", Pos: start}
	case ch == '\'' || ch == '"':
		return l.readString(ch)
	case ch == '`':
		return l.readQuotedIdent()
	case ch == '-' && isDigit(l.peekRune(1)), isDigit(ch):
		return l.readNumber()
	case ch == '_' || ch == '$' || unicode.IsLetter(ch):
		return l.readIdent()
	}

	return Token{Type: TokenError, Value: "unexpected character " + string(ch), Pos: start}
}

func (l *lexer) readString(quote rune) Token {
	start := l.pos
	l.pos++ // opening quote

	var b strings.Builder
	for l.pos < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		l.pos += size
		switch r {
		case quote:
			return Token{Type: TokenString, Value: b.String(), Pos: start}
		case '\\':
			if l.pos >= len(l.input) {
				break
			}
			esc, esize := utf8.DecodeRuneInString(l.input[l.pos:])
			l.pos += esize
			switch esc {
			case 'n':
				b.WriteRune('\n')
			case 't':
				b.WriteRune('\t')
			default:
				b.WriteRune(esc)
			}
		default:
			b.WriteRune(r)
		}
	}
	return Token{Type: TokenError, Value: "unterminated string", Pos: start}
}

func (l *lexer) readQuotedIdent() Token {
	start := l.pos
	end := strings.IndexByte(l.input[l.pos+1:], '`')
	if end < 0 {
		l.pos = len(l.input)
		return Token{Type: TokenError, Value: "unterminated quoted identifier", Pos: start}
	}
	value := l.input[l.pos+1 : l.pos+1+end]
	l.pos += end + 2
	return Token{Type: TokenIdent, Value: value, Pos: start}
}

// readNumber reads an optionally signed decimal with optional fraction and
// exponent. A '.' is only part of the number when a digit follows it, so
// path segments like tags.0.name lex as separate tokens.
func (l *lexer) readNumber() Token {
	start := l.pos
	if l.peekRune(0) == '-' {
		l.pos++
	}
	l.readDigits()
	if l.peekRune(0) == '.' && isDigit(l.peekRune(1)) {
		l.pos++
		l.readDigits()
	}
	if e := l.peekRune(0); e == 'e' || e == 'E' {
		off := 1
		if s := l.peekRune(1); s == '+' || s == '-' {
			off = 2
		}
		if isDigit(l.peekRune(off)) {
			l.pos += off
			l.readDigits()
		}
	}
	return Token{Type: TokenNumber, Value: l.input[start:l.pos], Pos: start}
}

func (l *lexer) readDigits() {
	for isDigit(l.peekRune(0)) {
		l.pos++
	}
}

func (l *lexer) readIdent() Token {
	start := l.pos
	for l.pos < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if r != '_' && r != '$' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		l.pos += size
	}
	value := l.input[start:l.pos]
	if keywords[strings.ToUpper(value)] {
		return Token{Type: TokenKeyword, Value: value, Pos: start}
	}
	return Token{Type: TokenIdent, Value: value, Pos: start}
}

// is reports whether the token is the given keyword.
func (t Token) is(keyword string) bool {
	return t.Type == TokenKeyword && strings.EqualFold(t.Value, keyword)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
