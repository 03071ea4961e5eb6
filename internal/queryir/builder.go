package queryir

import (
	"github.com/roach88/joindb/internal/ir"
)

// Property starts a property expression. Bind it with From:
//
//	queryir.Property("head.firstname").From("dept")
func Property(path string) PropertyRef {
	return PropertyRef{Path: path}
}

// From binds the property to a query alias.
func (p PropertyRef) From(alias string) PropertyRef {
	p.Alias = alias
	return p
}

// MetaID starts a document-ID expression. Bind it with From.
func MetaID() MetaIDRef {
	return MetaIDRef{}
}

// From binds the ID expression to a query alias.
func (m MetaIDRef) From(alias string) MetaIDRef {
	m.Alias = alias
	return m
}

// Value wraps a constant. Go values are converted with ir.FromGo; a value
// that cannot be converted yields a Literal with a nil Value, which the
// planner rejects as malformed.
func Value(v any) Literal {
	val, err := ir.FromGo(v)
	if err != nil {
		return Literal{}
	}
	return Literal{Value: val}
}

// Compare builds a comparison node.
func Compare(op CompareOp, left, right Expression) Predicate {
	return &Comparison{Op: op, Left: left, Right: right}
}

func (p PropertyRef) EqualTo(other Expression) Predicate { return Compare(OpEqual, p, other) }
func (p PropertyRef) NotEqualTo(other Expression) Predicate {
	return Compare(OpNotEqual, p, other)
}
func (p PropertyRef) LessThan(other Expression) Predicate { return Compare(OpLess, p, other) }
func (p PropertyRef) LessThanOrEqualTo(other Expression) Predicate {
	return Compare(OpLessOrEqual, p, other)
}
func (p PropertyRef) GreaterThan(other Expression) Predicate { return Compare(OpGreater, p, other) }
func (p PropertyRef) GreaterThanOrEqualTo(other Expression) Predicate {
	return Compare(OpGreaterOrEqual, p, other)
}

func (m MetaIDRef) EqualTo(other Expression) Predicate    { return Compare(OpEqual, m, other) }
func (m MetaIDRef) NotEqualTo(other Expression) Predicate { return Compare(OpNotEqual, m, other) }

// And combines predicates into a conjunction. Nested conjunctions are
// flattened.
func And(preds ...Predicate) Predicate {
	return &Conjunction{Operands: flatten[*Conjunction](preds, func(c *Conjunction) []Predicate { return c.Operands })}
}

// Or combines predicates into a disjunction. Nested disjunctions are
// flattened.
func Or(preds ...Predicate) Predicate {
	return &Disjunction{Operands: flatten[*Disjunction](preds, func(d *Disjunction) []Predicate { return d.Operands })}
}

// Not negates a predicate.
func Not(p Predicate) Predicate {
	return &Negation{Operand: p}
}

func flatten[T Predicate](preds []Predicate, operands func(T) []Predicate) []Predicate {
	out := make([]Predicate, 0, len(preds))
	for _, p := range preds {
		if same, ok := p.(T); ok {
			out = append(out, operands(same)...)
			continue
		}
		out = append(out, p)
	}
	return out
}

// Select starts an output column from an expression.
func Select(e Expression) Selection {
	return Selection{Expr: e}
}

// SelectAll outputs the whole document bound to alias under the alias key.
func SelectAll(alias string) Selection {
	return Selection{All: alias}
}

// As sets the output key.
func (s Selection) As(key string) Selection {
	s.Name = key
	return s
}

// Source names a collection bound to alias.
func Source(collection, alias string) DataSource {
	return DataSource{Collection: collection, Alias: alias}
}

// NewQuery starts a query with the given output columns.
//
//	q := queryir.NewQuery(
//		queryir.Select(queryir.Property("name").From("dept")).As("deptname"),
//	).From("departments", "dept").
//		Join("employees", "emp", queryir.Property("department").From("emp").
//			EqualTo(queryir.Property("code").From("dept")))
func NewQuery(selections ...Selection) *Query {
	return &Query{Select: selections}
}

// From sets the left-most source.
func (q *Query) From(collection, alias string) *Query {
	q.Source = Source(collection, alias)
	return q
}

// Join appends an inner join.
func (q *Query) Join(collection, alias string, on Predicate) *Query {
	return q.addJoin(JoinInner, collection, alias, on)
}

// LeftJoin appends a left outer join.
func (q *Query) LeftJoin(collection, alias string, on Predicate) *Query {
	return q.addJoin(JoinLeftOuter, collection, alias, on)
}

// CrossJoin appends a cross join.
func (q *Query) CrossJoin(collection, alias string) *Query {
	return q.addJoin(JoinCross, collection, alias, nil)
}

// Filter sets the WHERE predicate applied after every join.
func (q *Query) Filter(p Predicate) *Query {
	q.Where = p
	return q
}

func (q *Query) addJoin(kind JoinKind, collection, alias string, on Predicate) *Query {
	q.Joins = append(q.Joins, JoinSpec{Kind: kind, Source: Source(collection, alias), On: on})
	return q
}
