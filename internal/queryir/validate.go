package queryir

import (
	"fmt"

	"github.com/roach88/joindb/internal/ir"
)

// ValidationResult contains the portability analysis of a query.
//
// A portable query returns the same rows from the in-memory executor and
// from the SQL produced by querysql. Non-portable queries still execute
// correctly in memory; the SQL rendering may differ on missing or
// non-scalar values.
type ValidationResult struct {
	// IsPortable indicates the query uses only portable features.
	IsPortable bool

	// Warnings lists non-portable features used in the query.
	// Empty when IsPortable is true.
	Warnings []string
}

// Validate checks a query against the SQL-portable fragment:
//  1. No comparisons against null (SQL collapses missing and null)
//  2. No array or object literals (SQL compares JSON text)
//  3. No whole-document selections from the database-wide source
//
// Validate is a pure function with no side effects.
func Validate(query *Query) ValidationResult {
	v := &validator{
		warnings: []string{},
	}
	v.validateQuery(query)

	return ValidationResult{
		IsPortable: len(v.warnings) == 0,
		Warnings:   v.warnings,
	}
}

// validator accumulates warnings during traversal.
type validator struct {
	warnings []string
}

func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q *Query) {
	if q == nil {
		v.addWarning("nil query - portability cannot be verified")
		return
	}

	for _, sel := range q.Select {
		if sel.All != "" && sourceOf(q, sel.All) == "*" {
			v.addWarning("%s.* over the database-wide source - SQL rows carry no collection name", sel.All)
		}
	}

	for _, j := range q.Joins {
		v.validatePredicate(j.On)
	}
	v.validatePredicate(q.Where)
}

func (v *validator) validatePredicate(p Predicate) {
	if p == nil {
		return // nil predicates are valid (no filter)
	}

	switch pred := p.(type) {
	case *Comparison:
		v.validateOperand(pred.Left)
		v.validateOperand(pred.Right)
	case *Conjunction:
		for _, sub := range pred.Operands {
			v.validatePredicate(sub)
		}
	case *Disjunction:
		for _, sub := range pred.Operands {
			v.validatePredicate(sub)
		}
	case *Negation:
		v.validatePredicate(pred.Operand)
	default:
		v.addWarning("Unknown predicate type: %T - portability cannot be verified", p)
	}
}

func (v *validator) validateOperand(e Expression) {
	lit, ok := e.(Literal)
	if !ok {
		return
	}
	switch lit.Value.(type) {
	case ir.IRNull:
		v.addWarning("comparison with null - SQL cannot tell null from missing")
	case ir.IRArray, ir.IRObject:
		v.addWarning("comparison with %s literal - SQL compares JSON text", ir.KindOf(lit.Value))
	}
}

func sourceOf(q *Query, alias string) string {
	if q.Source.Bound() == alias {
		return q.Source.Collection
	}
	for _, j := range q.Joins {
		if j.Source.Bound() == alias {
			return j.Source.Collection
		}
	}
	return ""
}
