package eval

import (
	"github.com/roach88/joindb/internal/ir"
	"github.com/roach88/joindb/internal/queryir"
)

// Value evaluates an expression against a row.
//
// ok is false when the value is missing: the alias is unbound, a path
// segment is absent, or a segment walks into a non-container. Value never
// panics on document shape.
func Value(e queryir.Expression, row *RowContext) (v ir.IRValue, ok bool) {
	switch expr := e.(type) {
	case queryir.PropertyRef:
		doc, bound := row.Doc(expr.Alias)
		if !bound || doc.Body == nil {
			return nil, false
		}
		return ir.Lookup(doc.Body, expr.Segments())
	case queryir.MetaIDRef:
		doc, bound := row.Doc(expr.Alias)
		if !bound {
			return nil, false
		}
		return ir.IRString(doc.ID), true
	case queryir.Literal:
		if expr.Value == nil {
			return nil, false
		}
		return expr.Value, true
	default:
		return nil, false
	}
}

// Test evaluates a predicate against a row with three-valued logic.
// A nil predicate is Missing.
func Test(p queryir.Predicate, row *RowContext) Truth {
	switch pred := p.(type) {
	case *queryir.Comparison:
		return compare(pred, row)
	case *queryir.Conjunction:
		result := True
		for _, sub := range pred.Operands {
			result = result.And(Test(sub, row))
			if result == False {
				return False
			}
		}
		return result
	case *queryir.Disjunction:
		result := False
		for _, sub := range pred.Operands {
			result = result.Or(Test(sub, row))
			if result == True {
				return True
			}
		}
		return result
	case *queryir.Negation:
		return Test(pred.Operand, row).Not()
	default:
		return Missing
	}
}

func compare(c *queryir.Comparison, row *RowContext) Truth {
	left, lok := Value(c.Left, row)
	right, rok := Value(c.Right, row)
	if !lok || !rok {
		return Missing
	}

	switch c.Op {
	case queryir.OpEqual:
		return FromBool(ir.Equal(left, right))
	case queryir.OpNotEqual:
		return FromBool(!ir.Equal(left, right))
	}

	n, ok := ir.Compare(left, right)
	if !ok {
		return Missing
	}
	switch c.Op {
	case queryir.OpLess:
		return FromBool(n < 0)
	case queryir.OpLessOrEqual:
		return FromBool(n <= 0)
	case queryir.OpGreater:
		return FromBool(n > 0)
	case queryir.OpGreaterOrEqual:
		return FromBool(n >= 0)
	default:
		return Missing
	}
}
