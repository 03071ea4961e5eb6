package querysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/joindb/internal/docdb"
	"github.com/roach88/joindb/internal/ir"
	"github.com/roach88/joindb/internal/queryir"
)

// documentsTable is the store table every alias ranges over.
const documentsTable = "documents"

// SQLCompiler compiles a join query to parameterized SQL for SQLite.
//
// Each alias becomes its own reference to the documents table, restricted
// to one collection unless it names the database-wide source. Properties
// read the stored body with json_extract.
//
// CRITICAL: every query ends in ORDER BY seq, collection, id per level so
// rows come back in the nested-loop order of the in-memory engine.
// CRITICAL: literal values are always bound as parameters, never
// interpolated.
type SQLCompiler struct {
	// Table overrides the documents table name. Empty means "documents".
	Table string
}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{Table: documentsTable}
}

// compilation carries the state of one Compile call.
type compilation struct {
	table string
	root  string
}

// Compile converts a query to parameterized SQL.
// Returns (sql, params, error).
//
// SQL NULL stands in for both a missing path and a JSON null, so results
// differ from the engine for queries that queryir.Validate reports as not
// portable.
func (c *SQLCompiler) Compile(q *queryir.Query) (string, []any, error) {
	if q == nil {
		return "", nil, fmt.Errorf("cannot compile nil query")
	}
	if len(q.Select) == 0 {
		return "", nil, fmt.Errorf("query has no selections")
	}

	table := c.Table
	if table == "" {
		table = documentsTable
	}
	root := q.Source.Bound()
	cc := &compilation{table: table, root: root}

	selectClause, params, err := cc.compileSelections(q.Select)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s AS %s", selectClause, quoteIdent(table), quoteIdent(root))

	// Collection filters for the root and cross-joined aliases belong in
	// WHERE; outer-joined aliases need theirs in ON to keep padding intact.
	var where []string
	var whereParams []any
	if f, p, ok := collectionFilter(root, q.Source.Collection); ok {
		where = append(where, f)
		whereParams = append(whereParams, p...)
	}

	orderBy := []string{orderKey(root)}
	for i, j := range q.Joins {
		alias := j.Source.Bound()
		jc, err := cc.compileJoin(j, alias)
		if err != nil {
			return "", nil, fmt.Errorf("compile join %d: %w", i, err)
		}
		b.WriteString(jc.clause)
		params = append(params, jc.params...)
		if jc.where != "" {
			where = append(where, jc.where)
			whereParams = append(whereParams, jc.whereParams...)
		}
		orderBy = append(orderBy, orderKey(alias))
	}

	if q.Where != nil {
		sql, p, err := cc.compilePredicate(q.Where)
		if err != nil {
			return "", nil, fmt.Errorf("compile where: %w", err)
		}
		where = append(where, "("+sql+")")
		whereParams = append(whereParams, p...)
	}
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
		params = append(params, whereParams...)
	}

	// MANDATORY: stable ordering matching nested-loop emission.
	b.WriteString(" ORDER BY ")
	b.WriteString(strings.Join(orderBy, ", "))

	return b.String(), params, nil
}

// joinSQL is one compiled join: its FROM-clause fragment and any filter
// that must go to WHERE instead.
type joinSQL struct {
	clause      string
	params      []any
	where       string
	whereParams []any
}

func (cc *compilation) compileJoin(j queryir.JoinSpec, alias string) (joinSQL, error) {
	ref := fmt.Sprintf("%s AS %s", quoteIdent(cc.table), quoteIdent(alias))

	switch j.Kind {
	case queryir.JoinCross:
		if j.On != nil {
			return joinSQL{}, fmt.Errorf("cross join cannot have an ON predicate")
		}
		filter, p, _ := collectionFilter(alias, j.Source.Collection)
		return joinSQL{clause: " CROSS JOIN " + ref, where: filter, whereParams: p}, nil
	case queryir.JoinInner, queryir.JoinLeftOuter:
		if j.On == nil {
			return joinSQL{}, fmt.Errorf("%s join needs an ON predicate", j.Kind)
		}
		var on []string
		var params []any
		if f, p, ok := collectionFilter(alias, j.Source.Collection); ok {
			on = append(on, f)
			params = append(params, p...)
		}
		sql, p, err := cc.compilePredicate(j.On)
		if err != nil {
			return joinSQL{}, err
		}
		on = append(on, "("+sql+")")
		params = append(params, p...)
		keyword := " JOIN "
		if j.Kind == queryir.JoinLeftOuter {
			keyword = " LEFT JOIN "
		}
		return joinSQL{clause: keyword + ref + " ON " + strings.Join(on, " AND "), params: params}, nil
	default:
		return joinSQL{}, fmt.Errorf("unsupported join kind %d", int(j.Kind))
	}
}

// collectionFilter restricts alias to one collection. The database-wide
// source has no filter.
func collectionFilter(alias, collection string) (string, []any, bool) {
	if collection == docdb.DatabaseSource {
		return "", nil, false
	}
	return quoteIdent(alias) + ".collection = ?", []any{collection}, true
}

// compileSelections converts selections to a SELECT column list.
// Example: emp.firstname AS first → json_extract("emp".body, '$."firstname"') AS "first"
func (cc *compilation) compileSelections(sels []queryir.Selection) (string, []any, error) {
	parts := make([]string, 0, len(sels))
	var params []any
	for i, sel := range sels {
		var col string
		switch {
		case sel.All != "":
			col = quoteIdent(sel.All) + ".body"
		case sel.Expr != nil:
			sql, p, err := cc.compileExpr(sel.Expr)
			if err != nil {
				return "", nil, fmt.Errorf("selection %d: %w", i, err)
			}
			col = sql
			params = append(params, p...)
		default:
			return "", nil, fmt.Errorf("selection %d is empty", i)
		}
		parts = append(parts, col+" AS "+quoteIdent(sel.Key()))
	}
	return strings.Join(parts, ", "), params, nil
}

// compilePredicate compiles a predicate to a SQL condition.
// SQLite's NULL logic matches the engine's three-valued logic for AND, OR
// and NOT, so the structure carries over unchanged.
func (cc *compilation) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "", nil, fmt.Errorf("nil predicate")
	case *queryir.Comparison:
		return cc.compileComparison(pred)
	case *queryir.Conjunction:
		if len(pred.Operands) == 0 {
			return "1", nil, nil // vacuous truth
		}
		return cc.compileOperands(pred.Operands, " AND ")
	case *queryir.Disjunction:
		if len(pred.Operands) == 0 {
			return "0", nil, nil
		}
		return cc.compileOperands(pred.Operands, " OR ")
	case *queryir.Negation:
		sql, params, err := cc.compilePredicate(pred.Operand)
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + sql + ")", params, nil
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (cc *compilation) compileOperands(ps []queryir.Predicate, sep string) (string, []any, error) {
	parts := make([]string, 0, len(ps))
	var params []any
	for _, sub := range ps {
		sql, p, err := cc.compilePredicate(sub)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+sql+")")
		params = append(params, p...)
	}
	return strings.Join(parts, sep), params, nil
}

func (cc *compilation) compileComparison(c *queryir.Comparison) (string, []any, error) {
	if sql, ok := cc.compileNullTest(c); ok {
		return sql, nil, nil
	}
	op, err := sqlOperator(c.Op)
	if err != nil {
		return "", nil, err
	}
	left, lp, err := cc.compileExpr(c.Left)
	if err != nil {
		return "", nil, err
	}
	right, rp, err := cc.compileExpr(c.Right)
	if err != nil {
		return "", nil, err
	}
	return left + " " + op + " " + right, append(lp, rp...), nil
}

// compileNullTest handles property = null and property != null, which
// json_type can answer exactly. A missing path yields NULL, so neither
// form matches it.
func (cc *compilation) compileNullTest(c *queryir.Comparison) (string, bool) {
	if c.Op != queryir.OpEqual && c.Op != queryir.OpNotEqual {
		return "", false
	}
	prop, lit, ok := propertyAndLiteral(c.Left, c.Right)
	if !ok || len(prop.Segments()) == 0 || ir.KindOf(lit.Value) != ir.KindNull {
		return "", false
	}
	op := "="
	if c.Op == queryir.OpNotEqual {
		op = "<>"
	}
	return fmt.Sprintf("json_type(%s.body, %s) %s 'null'", quoteIdent(cc.alias(prop.Alias)), jsonPath(prop.Segments()), op), true
}

func propertyAndLiteral(a, b queryir.Expression) (queryir.PropertyRef, queryir.Literal, bool) {
	if p, ok := a.(queryir.PropertyRef); ok {
		if l, ok := b.(queryir.Literal); ok {
			return p, l, true
		}
	}
	if p, ok := b.(queryir.PropertyRef); ok {
		if l, ok := a.(queryir.Literal); ok {
			return p, l, true
		}
	}
	return queryir.PropertyRef{}, queryir.Literal{}, false
}

// compileExpr compiles an operand. Literal values are returned as
// parameters.
func (cc *compilation) compileExpr(e queryir.Expression) (string, []any, error) {
	switch expr := e.(type) {
	case nil:
		return "", nil, fmt.Errorf("nil expression")
	case queryir.PropertyRef:
		segs := expr.Segments()
		if len(segs) == 0 {
			return "", nil, fmt.Errorf("empty property path")
		}
		return fmt.Sprintf("json_extract(%s.body, %s)", quoteIdent(cc.alias(expr.Alias)), jsonPath(segs)), nil, nil
	case queryir.MetaIDRef:
		return quoteIdent(cc.alias(expr.Alias)) + ".id", nil, nil
	case queryir.Literal:
		param, err := irValueToParam(expr.Value)
		if err != nil {
			return "", nil, fmt.Errorf("convert value: %w", err)
		}
		return "?", []any{param}, nil
	default:
		return "", nil, fmt.Errorf("unsupported expression type: %T", e)
	}
}

// alias resolves the empty alias to the FROM alias.
func (cc *compilation) alias(a string) string {
	if a == "" {
		return cc.root
	}
	return a
}

func sqlOperator(op queryir.CompareOp) (string, error) {
	switch op {
	case queryir.OpEqual:
		return "=", nil
	case queryir.OpNotEqual:
		return "<>", nil
	case queryir.OpLess:
		return "<", nil
	case queryir.OpLessOrEqual:
		return "<=", nil
	case queryir.OpGreater:
		return ">", nil
	case queryir.OpGreaterOrEqual:
		return ">=", nil
	default:
		return "", fmt.Errorf("unsupported operator %d", int(op))
	}
}

// orderKey returns the ORDER BY terms for one alias.
// Uses COLLATE BINARY for deterministic text ordering.
func orderKey(alias string) string {
	a := quoteIdent(alias)
	return fmt.Sprintf("%s.seq ASC, %s.collection ASC COLLATE BINARY, %s.id ASC COLLATE BINARY", a, a, a)
}

// jsonPath renders a SQLite JSON path literal. Numeric segments index
// arrays; other segments are quoted object keys.
func jsonPath(segs []string) string {
	var b strings.Builder
	b.WriteString("$")
	for _, s := range segs {
		if _, err := strconv.ParseUint(s, 10, 31); err == nil {
			b.WriteString("[" + s + "]")
			continue
		}
		b.WriteString(`."`)
		b.WriteString(strings.ReplaceAll(s, `"`, `\"`))
		b.WriteString(`"`)
	}
	return "'" + strings.ReplaceAll(b.String(), "'", "''") + "'"
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// irValueToParam converts an ir.IRValue to a Go native type for a SQL
// parameter. Arrays and objects have no scalar SQL form.
func irValueToParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRFloat:
		return float64(val), nil
	case ir.IRBool:
		return bool(val), nil
	case ir.IRNull:
		return nil, nil
	case ir.IRArray:
		return nil, fmt.Errorf("IRArray cannot be used as SQL parameter directly")
	case ir.IRObject:
		return nil, fmt.Errorf("IRObject cannot be used as SQL parameter directly")
	default:
		return nil, fmt.Errorf("unsupported IRValue type for SQL parameter: %T", v)
	}
}
