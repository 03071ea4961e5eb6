package queryir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/joindb/internal/ir"
)

// ParseError reports malformed predicate or statement text.
type ParseError struct {
	Pos     int // byte offset in the input
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d: %s", e.Pos, e.Message)
}

// parser is a recursive-descent parser over a token slice.
type parser struct {
	tokens []Token
	pos    int
}

// ParsePredicate parses a boolean expression such as
//
//	emp.department = dept.code AND NOT (emp.age < 30 OR emp.age > 60)
func ParsePredicate(input string) (Predicate, error) {
	p, err := newParser(input)
	if err != nil {
		return nil, err
	}
	pred, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return pred, nil
}

// ParseStatement parses a SELECT statement:
//
//	SELECT sel[, sel...] FROM coll [AS] alias
//	  ( [INNER] JOIN | LEFT [OUTER] JOIN | CROSS JOIN ) coll [AS] alias [ON pred] ...
//	  [WHERE pred]
//
// A selection is alias.path [AS key], alias.*, META(alias).id [AS key] or a
// literal. Collection * is the database-wide source and requires an alias.
func ParseStatement(input string) (*Query, error) {
	p, err := newParser(input)
	if err != nil {
		return nil, err
	}
	q, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return q, nil
}

// ParseSelection parses one selection as it appears in a SELECT list.
func ParseSelection(input string) (Selection, error) {
	p, err := newParser(input)
	if err != nil {
		return Selection{}, err
	}
	sel, err := p.parseSelection()
	if err != nil {
		return Selection{}, err
	}
	if err := p.expectEOF(); err != nil {
		return Selection{}, err
	}
	return sel, nil
}

func newParser(input string) (*parser, error) {
	tokens := tokenize(input)
	last := tokens[len(tokens)-1]
	if last.Type == TokenError {
		return nil, &ParseError{Pos: last.Pos, Message: last.Value}
	}
	return &parser{tokens: tokens}, nil
}

func (p *parser) current() Token {
	if p.pos >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos]
}

func (p *parser) peek() Token {
	if p.pos+1 >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+1]
}

func (p *parser) advance() Token {
	tok := p.current()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *parser) errorf(tok Token, format string, args ...any) error {
	return &ParseError{Pos: tok.Pos, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(tt TokenType) (Token, error) {
	tok := p.current()
	if tok.Type != tt {
		return tok, p.errorf(tok, "expected %v, got %s", tt, describe(tok))
	}
	return p.advance(), nil
}

func (p *parser) expectKeyword(kw string) error {
	tok := p.current()
	if !tok.is(kw) {
		return p.errorf(tok, "expected %s, got %s", kw, describe(tok))
	}
	p.advance()
	return nil
}

func (p *parser) expectEOF() error {
	if tok := p.current(); tok.Type != TokenEOF {
		return p.errorf(tok, "unexpected %s", describe(tok))
	}
	return nil
}

func describe(tok Token) string {
	if tok.Type == TokenEOF {
		return "end of input"
	}
	return strconv.Quote(tok.Value)
}

// Statements

func (p *parser) parseStatement() (*Query, error) {
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	q := &Query{}

	for {
		sel, err := p.parseSelection()
		if err != nil {
			return nil, err
		}
		q.Select = append(q.Select, sel)
		if p.current().Type != TokenComma {
			break
		}
		p.advance()
	}

	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	src, err := p.parseSource()
	if err != nil {
		return nil, err
	}
	q.Source = src

	for {
		join, ok, err := p.parseJoin()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		q.Joins = append(q.Joins, join)
	}

	if p.current().is("WHERE") {
		p.advance()
		where, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		q.Where = where
	}
	return q, nil
}

func (p *parser) parseSelection() (Selection, error) {
	tok := p.current()
	if tok.Type == TokenIdent && p.peek().Type == TokenDot {
		// alias.*
		if p.pos+2 < len(p.tokens) && p.tokens[p.pos+2].Type == TokenStar {
			p.pos += 3
			return SelectAll(tok.Value), nil
		}
	}

	expr, err := p.parseOperand()
	if err != nil {
		return Selection{}, err
	}
	sel := Select(expr)
	if p.current().is("AS") {
		p.advance()
		key, err := p.expectName()
		if err != nil {
			return Selection{}, err
		}
		sel = sel.As(key)
	}
	return sel, nil
}

func (p *parser) parseSource() (DataSource, error) {
	tok := p.current()
	var collection string
	switch tok.Type {
	case TokenStar:
		collection = "*"
	case TokenIdent:
		collection = tok.Value
	default:
		return DataSource{}, p.errorf(tok, "expected collection name, got %s", describe(tok))
	}
	p.advance()

	alias := collection
	if p.current().is("AS") {
		p.advance()
		name, err := p.expectName()
		if err != nil {
			return DataSource{}, err
		}
		alias = name
	} else if p.current().Type == TokenIdent {
		alias = p.advance().Value
	}
	if alias == "*" {
		return DataSource{}, p.errorf(tok, "the database-wide source * needs an alias")
	}
	return Source(collection, alias), nil
}

// parseJoin parses one join clause. ok is false when the next token does
// not start a join.
func (p *parser) parseJoin() (spec JoinSpec, ok bool, err error) {
	tok := p.current()
	switch {
	case tok.is("JOIN"):
		spec.Kind = JoinInner
		p.advance()
	case tok.is("INNER"):
		spec.Kind = JoinInner
		p.advance()
		if err := p.expectKeyword("JOIN"); err != nil {
			return spec, false, err
		}
	case tok.is("LEFT"):
		spec.Kind = JoinLeftOuter
		p.advance()
		if p.current().is("OUTER") {
			p.advance()
		}
		if err := p.expectKeyword("JOIN"); err != nil {
			return spec, false, err
		}
	case tok.is("CROSS"):
		spec.Kind = JoinCross
		p.advance()
		if err := p.expectKeyword("JOIN"); err != nil {
			return spec, false, err
		}
	default:
		return spec, false, nil
	}

	spec.Source, err = p.parseSource()
	if err != nil {
		return spec, false, err
	}
	if p.current().is("ON") {
		p.advance()
		spec.On, err = p.parseOr()
		if err != nil {
			return spec, false, err
		}
	}
	return spec, true, nil
}

// Predicates

func (p *parser) parseOr() (Predicate, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	operands := []Predicate{left}
	for p.current().is("OR") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		operands = append(operands, right)
	}
	if len(operands) == 1 {
		return left, nil
	}
	return Or(operands...), nil
}

func (p *parser) parseAnd() (Predicate, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	operands := []Predicate{left}
	for p.current().is("AND") {
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		operands = append(operands, right)
	}
	if len(operands) == 1 {
		return left, nil
	}
	return And(operands...), nil
}

func (p *parser) parseUnary() (Predicate, error) {
	tok := p.current()
	if tok.is("NOT") {
		p.advance()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not(inner), nil
	}
	if tok.Type == TokenLParen {
		p.advance()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		return inner, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Predicate, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	opTok, err := p.expect(TokenOp)
	if err != nil {
		return nil, err
	}
	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	var op CompareOp
	switch opTok.Value {
	case "=":
		op = OpEqual
	case "!=":
		op = OpNotEqual
	case "<":
		op = OpLess
	case "<=":
		op = OpLessOrEqual
	case ">":
		op = OpGreater
	case ">=":
		op = OpGreaterOrEqual
	default:
		return nil, p.errorf(opTok, "unknown operator %q", opTok.Value)
	}
	return Compare(op, left, right), nil
}

// Operands

func (p *parser) parseOperand() (Expression, error) {
	tok := p.current()
	switch {
	case tok.Type == TokenString:
		p.advance()
		return Literal{Value: ir.IRString(tok.Value)}, nil
	case tok.Type == TokenNumber:
		p.advance()
		v, err := parseNumber(tok.Value)
		if err != nil {
			return nil, p.errorf(tok, "%v", err)
		}
		return Literal{Value: v}, nil
	case tok.is("TRUE"):
		p.advance()
		return Literal{Value: ir.IRBool(true)}, nil
	case tok.is("FALSE"):
		p.advance()
		return Literal{Value: ir.IRBool(false)}, nil
	case tok.is("NULL"):
		p.advance()
		return Literal{Value: ir.IRNull{}}, nil
	case tok.is("META") && p.peek().Type == TokenLParen:
		return p.parseMetaID()
	case tok.Type == TokenIdent:
		return p.parseProperty()
	}
	return nil, p.errorf(tok, "expected operand, got %s", describe(tok))
}

// parseProperty parses alias.path. A single identifier is a path with no
// alias.
func (p *parser) parseProperty() (Expression, error) {
	first := p.advance()
	var segments []string
	for p.current().Type == TokenDot {
		p.advance()
		seg := p.current()
		switch seg.Type {
		case TokenIdent, TokenKeyword:
			segments = append(segments, seg.Value)
		case TokenNumber:
			if strings.ContainsAny(seg.Value, "-eE") {
				return nil, p.errorf(seg, "invalid path segment %q", seg.Value)
			}
			segments = append(segments, strings.Split(seg.Value, ".")...)
		default:
			return nil, p.errorf(seg, "expected path segment, got %s", describe(seg))
		}
		p.advance()
	}
	if len(segments) == 0 {
		return Property(first.Value), nil
	}
	return Property(strings.Join(segments, ".")).From(first.Value), nil
}

func (p *parser) parseMetaID() (Expression, error) {
	p.advance() // META
	p.advance() // (
	alias, err := p.expect(TokenIdent)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenRParen); err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenDot); err != nil {
		return nil, err
	}
	field := p.current()
	if field.Type != TokenIdent || !strings.EqualFold(field.Value, "id") {
		return nil, p.errorf(field, "META() supports only .id, got %s", describe(field))
	}
	p.advance()
	return MetaID().From(alias.Value), nil
}

func (p *parser) expectName() (string, error) {
	tok := p.current()
	if tok.Type != TokenIdent && tok.Type != TokenString {
		return "", p.errorf(tok, "expected name, got %s", describe(tok))
	}
	p.advance()
	return tok.Value, nil
}

func parseNumber(s string) (ir.IRValue, error) {
	if !strings.ContainsAny(s, ".eE") {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return ir.IRInt(n), nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", s)
	}
	return ir.IRFloat(f), nil
}
