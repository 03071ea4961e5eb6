package compiler

import (
	"fmt"

	"github.com/roach88/joindb/internal/docdb"
	"github.com/roach88/joindb/internal/queryir"
)

// Validation error codes (E120-E129)
const (
	// General validation errors (E100)
	ErrUnsupportedIRType = "E100" // unsupported IR type for validation

	ErrNoSelections       = "E120" // select is empty or has an empty entry
	ErrMissingAlias       = "E121" // source needs an explicit alias
	ErrDuplicateAlias     = "E122" // alias bound twice
	ErrUndefinedAlias     = "E123" // alias not bound in scope
	ErrUnqualifiedRef     = "E124" // unqualified property in a join query
	ErrDuplicateResultKey = "E125" // two selections share an output key
	ErrInvalidJoin        = "E126" // missing or unexpected ON predicate
)

// ValidationError represents a static query error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled query without a database.
// Returns all errors found (does not fail-fast).
//
// Collection existence and literal typing are left to the planner, which
// needs a catalog; everything else it rejects is reported here too.
func Validate(v any) []ValidationError {
	switch d := v.(type) {
	case *QueryDef:
		return validateQueryDef(d)
	case QueryDef:
		return validateQueryDef(&d)
	case *queryir.Query:
		return validateQuery(d, 0)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

func validateQueryDef(def *QueryDef) []ValidationError {
	line := 0
	if def.Pos.IsValid() {
		line = def.Pos.Line()
	}
	return validateQuery(def.Query, line)
}

// scopeChecker tracks bound aliases while walking a query.
type scopeChecker struct {
	line    int
	aliases map[string]int // alias → binding index
	joined  bool
	errs    []ValidationError
}

func (c *scopeChecker) add(field, code, format string, args ...any) {
	c.errs = append(c.errs, ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
		Line:    c.line,
	})
}

func validateQuery(q *queryir.Query, line int) []ValidationError {
	c := &scopeChecker{line: line, aliases: make(map[string]int)}
	if q == nil {
		c.add("query", ErrNoSelections, "query is nil")
		return c.errs
	}
	c.joined = len(q.Joins) > 0

	c.bind("from", q.Source, 0)
	for i, j := range q.Joins {
		field := fmt.Sprintf("join[%d]", i)
		c.bind(field, j.Source, i+1)
		switch {
		case j.Kind == queryir.JoinCross && j.On != nil:
			c.add(field+".on", ErrInvalidJoin, "cross join cannot have an on predicate")
		case j.Kind != queryir.JoinCross && j.On == nil:
			c.add(field+".on", ErrInvalidJoin, "%s join requires an on predicate", j.Kind)
		}
	}

	last := len(q.Joins)
	c.checkSelections(q.Select, last)
	for i, j := range q.Joins {
		if j.On != nil {
			c.checkPredicate(fmt.Sprintf("join[%d].on", i), j.On, i+1)
		}
	}
	if q.Where != nil {
		c.checkPredicate("where", q.Where, last)
	}
	return c.errs
}

func (c *scopeChecker) bind(field string, src queryir.DataSource, idx int) {
	alias := src.Bound()
	if alias == "" || alias == docdb.DatabaseSource {
		c.add(field, ErrMissingAlias, "source %q needs an alias", src.Collection)
		return
	}
	if _, dup := c.aliases[alias]; dup {
		c.add(field, ErrDuplicateAlias, "alias %q is bound more than once", alias)
		return
	}
	c.aliases[alias] = idx
}

func (c *scopeChecker) checkSelections(sels []queryir.Selection, scope int) {
	if len(sels) == 0 {
		c.add("select", ErrNoSelections, "at least one selection is required")
		return
	}
	seen := make(map[string]bool, len(sels))
	for i, sel := range sels {
		field := fmt.Sprintf("select[%d]", i)
		switch {
		case sel.All != "":
			c.checkAlias(field, sel.All, scope)
		case sel.Expr != nil:
			c.checkExpr(field, sel.Expr, scope)
		default:
			c.add(field, ErrNoSelections, "selection is empty")
			continue
		}
		key := sel.Key()
		if seen[key] {
			c.add(field, ErrDuplicateResultKey, "output key %q is produced more than once", key)
		}
		seen[key] = true
	}
}

func (c *scopeChecker) checkPredicate(field string, p queryir.Predicate, scope int) {
	switch pred := p.(type) {
	case *queryir.Comparison:
		c.checkExpr(field, pred.Left, scope)
		c.checkExpr(field, pred.Right, scope)
	case *queryir.Conjunction:
		for _, sub := range pred.Operands {
			c.checkPredicate(field, sub, scope)
		}
	case *queryir.Disjunction:
		for _, sub := range pred.Operands {
			c.checkPredicate(field, sub, scope)
		}
	case *queryir.Negation:
		c.checkPredicate(field, pred.Operand, scope)
	}
}

func (c *scopeChecker) checkExpr(field string, e queryir.Expression, scope int) {
	switch expr := e.(type) {
	case queryir.PropertyRef:
		c.checkAlias(field, expr.Alias, scope)
	case queryir.MetaIDRef:
		c.checkAlias(field, expr.Alias, scope)
	}
}

func (c *scopeChecker) checkAlias(field, alias string, scope int) {
	if alias == "" {
		if c.joined {
			c.add(field, ErrUnqualifiedRef, "unqualified property in a join query")
		}
		return
	}
	idx, ok := c.aliases[alias]
	switch {
	case !ok:
		c.add(field, ErrUndefinedAlias, "alias %q is not bound", alias)
	case idx > scope:
		c.add(field, ErrUndefinedAlias, "alias %q is not bound until join %d", alias, idx-1)
	}
}
