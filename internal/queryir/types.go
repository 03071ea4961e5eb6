package queryir

import (
	"strings"

	"github.com/roach88/joindb/internal/ir"
)

// Expression is a value-producing node evaluated against a row.
//
// This is a sealed interface - only types in this package implement it.
// Expression types:
//   - PropertyRef: a property path of the document bound to an alias
//   - MetaIDRef: the ID of the document bound to an alias
//   - Literal: a constant value
type Expression interface {
	exprNode() // Marker method - seals interface to this package
	String() string
}

// Predicate is a boolean node evaluated with three-valued logic.
//
// This is a sealed interface - only types in this package implement it.
// Predicate types:
//   - Comparison: left <op> right
//   - Conjunction: all operands (AND)
//   - Disjunction: any operand (OR)
//   - Negation: NOT operand
//
// And and Or build a new tree; the receiver is never modified.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
	And(other Predicate) Predicate
	Or(other Predicate) Predicate
	String() string
}

// PropertyRef names a property of the document bound to Alias.
//
// Path is dot-separated; numeric segments index into arrays.
// An empty Alias refers to the query's FROM source when the query has no
// joins.
type PropertyRef struct {
	Alias string
	Path  string
}

func (PropertyRef) exprNode() {}

// Segments returns the path split on dots.
func (p PropertyRef) Segments() []string {
	return ir.SplitPath(p.Path)
}

func (p PropertyRef) String() string {
	if p.Alias == "" {
		return p.Path
	}
	return p.Alias + "." + p.Path
}

// MetaIDRef evaluates to the ID of the document bound to Alias.
type MetaIDRef struct {
	Alias string
}

func (MetaIDRef) exprNode() {}

func (m MetaIDRef) String() string {
	return "META(" + m.Alias + ").id"
}

// Literal is a constant. A nil Value is malformed.
type Literal struct {
	Value ir.IRValue
}

func (Literal) exprNode() {}

func (l Literal) String() string {
	if l.Value == nil {
		return "<nil>"
	}
	data, err := ir.MarshalIRValue(l.Value)
	if err != nil {
		return "<invalid>"
	}
	if s, ok := l.Value.(ir.IRString); ok {
		return quoteString(string(s))
	}
	return string(data)
}

// CompareOp is a comparison operator.
type CompareOp int

const (
	OpEqual CompareOp = iota
	OpNotEqual
	OpLess
	OpLessOrEqual
	OpGreater
	OpGreaterOrEqual
)

func (op CompareOp) String() string {
	switch op {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "!="
	case OpLess:
		return "<"
	case OpLessOrEqual:
		return "<="
	case OpGreater:
		return ">"
	case OpGreaterOrEqual:
		return ">="
	default:
		return "?"
	}
}

// Ordering reports whether op needs orderable operands.
func (op CompareOp) Ordering() bool {
	return op >= OpLess && op <= OpGreaterOrEqual
}

// Comparison compares two expressions.
//
// The result is Missing when either side is missing, or when an ordering
// operator meets values that have no common order.
type Comparison struct {
	Op    CompareOp
	Left  Expression
	Right Expression
}

func (*Comparison) predicateNode() {}

func (c *Comparison) And(other Predicate) Predicate { return And(c, other) }
func (c *Comparison) Or(other Predicate) Predicate  { return Or(c, other) }

func (c *Comparison) String() string {
	return exprString(c.Left) + " " + c.Op.String() + " " + exprString(c.Right)
}

// Conjunction is true when every operand is true.
// False dominates Missing.
type Conjunction struct {
	Operands []Predicate
}

func (*Conjunction) predicateNode() {}

func (c *Conjunction) And(other Predicate) Predicate { return And(c, other) }
func (c *Conjunction) Or(other Predicate) Predicate  { return Or(c, other) }

func (c *Conjunction) String() string {
	return joinPredicates(c.Operands, " AND ")
}

// Disjunction is true when any operand is true.
// True dominates Missing.
type Disjunction struct {
	Operands []Predicate
}

func (*Disjunction) predicateNode() {}

func (d *Disjunction) And(other Predicate) Predicate { return And(d, other) }
func (d *Disjunction) Or(other Predicate) Predicate  { return Or(d, other) }

func (d *Disjunction) String() string {
	return joinPredicates(d.Operands, " OR ")
}

// Negation inverts True and False. Missing stays Missing.
type Negation struct {
	Operand Predicate
}

func (*Negation) predicateNode() {}

func (n *Negation) And(other Predicate) Predicate { return And(n, other) }
func (n *Negation) Or(other Predicate) Predicate  { return Or(n, other) }

func (n *Negation) String() string {
	return "NOT " + predString(n.Operand, true)
}

// JoinKind selects how unmatched left rows are treated.
type JoinKind int

const (
	// JoinInner emits only left/right pairs whose ON predicate is True.
	JoinInner JoinKind = iota
	// JoinLeftOuter also emits each left row with no match, with the right
	// alias unbound.
	JoinLeftOuter
	// JoinCross emits every left/right pair and takes no ON predicate.
	JoinCross
)

func (k JoinKind) String() string {
	switch k {
	case JoinInner:
		return "INNER"
	case JoinLeftOuter:
		return "LEFT OUTER"
	case JoinCross:
		return "CROSS"
	default:
		return "UNKNOWN"
	}
}

// DataSource names a collection and the alias it is bound to for one query.
// Collection "*" is the database-wide source.
type DataSource struct {
	Collection string
	Alias      string
}

// Bound returns the alias the source binds: Alias, or the collection name
// when Alias is empty.
func (s DataSource) Bound() string {
	if s.Alias == "" {
		return s.Collection
	}
	return s.Alias
}

func (s DataSource) String() string {
	if s.Alias == "" || s.Alias == s.Collection {
		return s.Collection
	}
	return s.Collection + " AS " + s.Alias
}

// JoinSpec adds one source to the right of the current join chain.
type JoinSpec struct {
	Kind   JoinKind
	Source DataSource
	On     Predicate // nil only for JoinCross
}

// Selection is one output column.
//
// Exactly one of Expr and All is set. All selects the whole document bound
// to that alias.
type Selection struct {
	Expr Expression
	All  string
	Name string // explicit output key, "" for the default
}

// Key returns the output key: the explicit alias if set, otherwise the
// last path segment, "id" for META(x).id, or the alias for a whole-document
// selection.
func (s Selection) Key() string {
	if s.Name != "" {
		return s.Name
	}
	if s.All != "" {
		return s.All
	}
	switch e := s.Expr.(type) {
	case PropertyRef:
		segs := e.Segments()
		if len(segs) == 0 {
			return ""
		}
		return segs[len(segs)-1]
	case MetaIDRef:
		return "id"
	case Literal:
		return e.String()
	default:
		return ""
	}
}

func (s Selection) String() string {
	var b strings.Builder
	if s.All != "" {
		b.WriteString(s.All + ".*")
	} else {
		b.WriteString(exprString(s.Expr))
	}
	if s.Name != "" {
		b.WriteString(" AS " + s.Name)
	}
	return b.String()
}

// Query is a complete join query.
//
// Semantics:
//
//	SELECT <Select> FROM <Source> (<kind> JOIN <source> ON <pred>)* WHERE <Where>
//
// Joins chain left-deep: each JoinSpec joins the rows produced so far with
// one more source. Where filters complete rows after every join.
type Query struct {
	Select []Selection
	Source DataSource // left-most source (FROM)
	Joins  []JoinSpec
	Where  Predicate // nil = no filter
}

// Aliases returns every bound alias in binding order: FROM first, then
// joins.
func (q *Query) Aliases() []string {
	out := make([]string, 0, 1+len(q.Joins))
	out = append(out, q.Source.Bound())
	for _, j := range q.Joins {
		out = append(out, j.Source.Bound())
	}
	return out
}

// String renders the query in the statement syntax accepted by
// ParseStatement.
func (q *Query) String() string {
	var b strings.Builder
	b.WriteString("SELECT ")
	for i, sel := range q.Select {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(sel.String())
	}
	b.WriteString(" FROM " + q.Source.String())
	for _, j := range q.Joins {
		b.WriteString(" " + j.Kind.String() + " JOIN " + j.Source.String())
		if j.On != nil {
			b.WriteString(" ON " + j.On.String())
		}
	}
	if q.Where != nil {
		b.WriteString(" WHERE " + q.Where.String())
	}
	return b.String()
}

func exprString(e Expression) string {
	if e == nil {
		return "<nil>"
	}
	return e.String()
}

func predString(p Predicate, nested bool) string {
	if p == nil {
		return "<nil>"
	}
	switch p.(type) {
	case *Conjunction, *Disjunction:
		if nested {
			return "(" + p.String() + ")"
		}
	}
	return p.String()
}

func joinPredicates(ps []Predicate, sep string) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = predString(p, true)
	}
	return strings.Join(parts, sep)
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), "'", `\'`) + "'"
}
