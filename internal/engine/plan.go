package engine

import (
	"fmt"
	"strings"

	"github.com/roach88/joindb/internal/docdb"
	"github.com/roach88/joindb/internal/ir"
	"github.com/roach88/joindb/internal/queryir"
)

// Catalog binds collection names to aliases and snapshots the bound
// sources. *docdb.Database implements Catalog.
//
// SnapshotSources must return snapshots taken at one point in time, so
// that no row mixes states from before and after a write.
type Catalog interface {
	Bind(collection, alias string) (docdb.Binding, error)
	SnapshotSources(sources ...docdb.Source) []docdb.Snapshot
}

// Plan is a validated, resolved query ready to execute.
//
// A Plan holds sources, not snapshots. Each Execute snapshots every source
// again, so one Plan can be executed many times.
type Plan struct {
	query       *queryir.Query
	levels      []level
	projections []projection
	where       queryir.Predicate
}

// level is one source in the left-deep join chain. Level 0 is FROM.
type level struct {
	alias  string
	source docdb.Source
	kind   queryir.JoinKind
	on     queryir.Predicate
}

// projection computes one output column.
type projection struct {
	key  string
	expr queryir.Expression
	all  string // alias of a whole-document selection
}

// Query returns the query this plan was built from.
func (p *Plan) Query() *queryir.Query {
	return p.query
}

// Aliases returns the bound aliases in join order.
func (p *Plan) Aliases() []string {
	out := make([]string, len(p.levels))
	for i, l := range p.levels {
		out[i] = l.alias
	}
	return out
}

// Keys returns the output keys in selection order.
func (p *Plan) Keys() []string {
	out := make([]string, len(p.projections))
	for i, pr := range p.projections {
		out[i] = pr.key
	}
	return out
}

// String renders the plan as an indented operator tree.
func (p *Plan) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project [%s]\n", strings.Join(p.Keys(), ", "))
	indent := "  "
	if p.where != nil {
		fmt.Fprintf(&b, "%sFilter %s\n", indent, p.where)
		indent += "  "
	}
	p.writeLevel(&b, len(p.levels)-1, indent)
	return b.String()
}

func (p *Plan) writeLevel(b *strings.Builder, i int, indent string) {
	l := p.levels[i]
	if i == 0 {
		fmt.Fprintf(b, "%sScan %s AS %s\n", indent, l.source.Name(), l.alias)
		return
	}
	if l.on != nil {
		fmt.Fprintf(b, "%sNestedLoop %s ON %s\n", indent, l.kind, l.on)
	} else {
		fmt.Fprintf(b, "%sNestedLoop %s\n", indent, l.kind)
	}
	p.writeLevel(b, i-1, indent+"  ")
	fmt.Fprintf(b, "%s  Scan %s AS %s\n", indent, l.source.Name(), l.alias)
}

// planner validates a query against a catalog.
//
// Checks run in a fixed order so that the first error reported is stable:
// sources and aliases, join structure, selections, then predicates.
type planner struct {
	catalog Catalog
	aliases map[string]int // alias → level index
	levels  []level
}

func buildPlan(catalog Catalog, q *queryir.Query) (*Plan, error) {
	if q == nil {
		return nil, malformed("nil query")
	}
	pl := &planner{catalog: catalog, aliases: make(map[string]int)}

	if err := pl.addSource(q.Source, queryir.JoinInner, nil); err != nil {
		return nil, err
	}
	for i, j := range q.Joins {
		if err := checkJoinShape(i, j); err != nil {
			return nil, err
		}
		if err := pl.addSource(j.Source, j.Kind, j.On); err != nil {
			return nil, err
		}
	}

	projections, err := pl.planSelections(q.Select)
	if err != nil {
		return nil, err
	}

	for i := 1; i < len(pl.levels); i++ {
		if pl.levels[i].on == nil {
			continue
		}
		if err := pl.checkPredicate(pl.levels[i].on, i); err != nil {
			return nil, err
		}
	}
	if q.Where != nil {
		if err := pl.checkPredicate(q.Where, len(pl.levels)-1); err != nil {
			return nil, err
		}
	}

	return &Plan{
		query:       q,
		levels:      pl.levels,
		projections: projections,
		where:       q.Where,
	}, nil
}

func checkJoinShape(i int, j queryir.JoinSpec) error {
	switch j.Kind {
	case queryir.JoinInner, queryir.JoinLeftOuter:
		if j.On == nil {
			return malformed("join %d (%s) has no ON predicate", i, j.Kind)
		}
	case queryir.JoinCross:
		if j.On != nil {
			return malformed("join %d is a cross join but has an ON predicate", i)
		}
	default:
		return malformed("join %d has unknown kind %d", i, int(j.Kind))
	}
	return nil
}

func (pl *planner) addSource(ds queryir.DataSource, kind queryir.JoinKind, on queryir.Predicate) error {
	alias := ds.Alias
	if alias == "" {
		alias = ds.Collection
	}
	if alias == "" || alias == docdb.DatabaseSource {
		return malformed("source %q needs an alias", ds.Collection)
	}
	if _, dup := pl.aliases[alias]; dup {
		return &QueryError{
			Code:       ErrCodeDuplicateAlias,
			Message:    "alias bound more than once",
			Alias:      alias,
			Collection: ds.Collection,
		}
	}

	b, err := pl.catalog.Bind(ds.Collection, alias)
	if err != nil {
		if docdb.IsUnknownCollection(err) {
			return &QueryError{
				Code:       ErrCodeUnknownCollection,
				Message:    "no such collection",
				Alias:      alias,
				Collection: ds.Collection,
				Err:        err,
			}
		}
		return fmt.Errorf("resolve %q: %w", ds.Collection, err)
	}

	pl.aliases[alias] = len(pl.levels)
	pl.levels = append(pl.levels, level{alias: b.Alias, source: b.Source, kind: kind, on: on})
	return nil
}

func (pl *planner) planSelections(sels []queryir.Selection) ([]projection, error) {
	if len(sels) == 0 {
		return nil, malformed("empty selection list")
	}
	last := len(pl.levels) - 1
	seen := make(map[string]int, len(sels))
	out := make([]projection, 0, len(sels))

	for i, sel := range sels {
		pr := projection{key: sel.Key(), expr: sel.Expr}
		switch {
		case sel.Expr != nil && sel.All != "":
			return nil, malformed("selection %d sets both an expression and %s.*", i, sel.All)
		case sel.All != "":
			if _, ok := pl.aliases[sel.All]; !ok {
				return nil, unknownAlias(sel.All, "selection %d selects unknown alias", i)
			}
			pr.all = sel.All
		case sel.Expr != nil:
			if err := pl.checkExpr(sel.Expr, last); err != nil {
				return nil, err
			}
		default:
			return nil, malformed("selection %d is empty", i)
		}

		if pr.key == "" {
			return nil, malformed("selection %d has an empty output key", i)
		}
		if prev, dup := seen[pr.key]; dup {
			return nil, &QueryError{
				Code:    ErrCodeDuplicateResultKey,
				Message: fmt.Sprintf("selections %d and %d both produce key %q", prev, i, pr.key),
			}
		}
		seen[pr.key] = i
		out = append(out, pr)
	}
	return out, nil
}

// checkPredicate validates p where aliases of levels 0..scope are bound.
func (pl *planner) checkPredicate(p queryir.Predicate, scope int) error {
	switch pred := p.(type) {
	case nil:
		return malformed("nil predicate")
	case *queryir.Comparison:
		if pred == nil {
			return malformed("nil comparison")
		}
		if pred.Op < queryir.OpEqual || pred.Op > queryir.OpGreaterOrEqual {
			return malformed("unknown comparison operator %d", int(pred.Op))
		}
		if err := pl.checkExpr(pred.Left, scope); err != nil {
			return err
		}
		if err := pl.checkExpr(pred.Right, scope); err != nil {
			return err
		}
		if pred.Op.Ordering() {
			return checkOrderable(pred)
		}
		return nil
	case *queryir.Conjunction:
		if pred == nil {
			return malformed("nil AND")
		}
		return pl.checkOperands(pred.Operands, scope)
	case *queryir.Disjunction:
		if pred == nil {
			return malformed("nil OR")
		}
		return pl.checkOperands(pred.Operands, scope)
	case *queryir.Negation:
		if pred == nil {
			return malformed("nil NOT")
		}
		return pl.checkPredicate(pred.Operand, scope)
	default:
		return malformed("unsupported predicate %T", p)
	}
}

func (pl *planner) checkOperands(ps []queryir.Predicate, scope int) error {
	for _, sub := range ps {
		if err := pl.checkPredicate(sub, scope); err != nil {
			return err
		}
	}
	return nil
}

func (pl *planner) checkExpr(e queryir.Expression, scope int) error {
	switch expr := e.(type) {
	case nil:
		return malformed("nil expression")
	case queryir.PropertyRef:
		if len(expr.Segments()) == 0 {
			return malformed("empty property path on alias %q", expr.Alias)
		}
		return pl.checkAlias(expr.Alias, scope)
	case queryir.MetaIDRef:
		return pl.checkAlias(expr.Alias, scope)
	case queryir.Literal:
		if expr.Value == nil {
			return malformed("literal without a value")
		}
		return nil
	default:
		return malformed("unsupported expression %T", e)
	}
}

// checkAlias resolves alias within levels 0..scope. The empty alias means
// FROM and is only allowed in single-source queries.
func (pl *planner) checkAlias(alias string, scope int) error {
	if alias == "" {
		if len(pl.levels) > 1 {
			return unknownAlias(alias, "unqualified property in a join query")
		}
		return nil
	}
	idx, ok := pl.aliases[alias]
	if !ok {
		return unknownAlias(alias, "alias is not bound in this query")
	}
	if idx > scope {
		return unknownAlias(alias, "alias is not bound until join %d", idx-1)
	}
	return nil
}

// checkOrderable rejects ordering comparisons that can never be True
// because a literal side has no order, or two literals have different
// orderable kinds.
func checkOrderable(c *queryir.Comparison) error {
	lk, lLit := literalKind(c.Left)
	rk, rLit := literalKind(c.Right)

	for _, side := range []struct {
		kind ir.Kind
		lit  bool
	}{{lk, lLit}, {rk, rLit}} {
		if side.lit && !ir.Orderable(side.kind) {
			return &QueryError{
				Code:    ErrCodeTypeMismatch,
				Message: fmt.Sprintf("%s compares against a %s literal, which has no order", c.Op, side.kind),
			}
		}
	}
	if lLit && rLit && lk != rk {
		return &QueryError{
			Code:    ErrCodeTypeMismatch,
			Message: fmt.Sprintf("%s compares a %s literal with a %s literal", c.Op, lk, rk),
		}
	}
	return nil
}

func literalKind(e queryir.Expression) (ir.Kind, bool) {
	lit, ok := e.(queryir.Literal)
	if !ok {
		return ir.KindInvalid, false
	}
	return ir.KindOf(lit.Value), true
}
