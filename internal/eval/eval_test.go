package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/joindb/internal/docdb"
	"github.com/roach88/joindb/internal/ir"
	q "github.com/roach88/joindb/internal/queryir"
)

func testRow() *RowContext {
	row := NewRowContext("dept", "emp")
	row.Bind("dept", &docdb.Document{
		ID: "d1",
		Body: ir.IRObject{
			"type": ir.IRString("department"),
			"code": ir.IRString("1000"),
			"head": ir.IRObject{"firstname": ir.IRString("John")},
			"size": ir.IRInt(12),
			"note": ir.IRNull{},
		},
	})
	return row
}

func TestValue(t *testing.T) {
	row := testRow()

	tests := []struct {
		name   string
		expr   q.Expression
		want   ir.IRValue
		wantOK bool
	}{
		{"property", q.Property("code").From("dept"), ir.IRString("1000"), true},
		{"nested", q.Property("head.firstname").From("dept"), ir.IRString("John"), true},
		{"null is present", q.Property("note").From("dept"), ir.IRNull{}, true},
		{"absent", q.Property("nope").From("dept"), nil, false},
		{"through scalar", q.Property("code.x").From("dept"), nil, false},
		{"unbound alias", q.Property("code").From("emp"), nil, false},
		{"unknown alias", q.Property("code").From("other"), nil, false},
		{"empty alias is FROM", q.Property("code"), ir.IRString("1000"), true},
		{"meta id", q.MetaID().From("dept"), ir.IRString("d1"), true},
		{"meta id unbound", q.MetaID().From("emp"), nil, false},
		{"literal", q.Value(3), ir.IRInt(3), true},
		{"nil literal", q.Literal{}, nil, false},
		{"nil expression", nil, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Value(tt.expr, row)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTest_Comparisons(t *testing.T) {
	row := testRow()
	code := q.Property("code").From("dept")
	size := q.Property("size").From("dept")
	missing := q.Property("department").From("emp")

	tests := []struct {
		name string
		pred q.Predicate
		want Truth
	}{
		{"eq", code.EqualTo(q.Value("1000")), True},
		{"eq false", code.EqualTo(q.Value("9999")), False},
		{"eq string vs number", code.EqualTo(q.Value(1000)), False},
		{"neq", code.NotEqualTo(q.Value("9999")), True},
		{"int vs float", size.EqualTo(q.Value(12.0)), True},
		{"less", size.LessThan(q.Value(20)), True},
		{"less or equal", size.LessThanOrEqualTo(q.Value(12)), True},
		{"greater", size.GreaterThan(q.Value(12)), False},
		{"greater or equal", size.GreaterThanOrEqualTo(q.Value(12.5)), False},
		{"ordering across kinds", size.LessThan(q.Value("20")), Missing},
		{"ordering null", q.Property("note").From("dept").LessThan(q.Value(1)), Missing},
		{"missing left", missing.EqualTo(code), Missing},
		{"missing right", code.EqualTo(missing), Missing},
		{"missing neq", missing.NotEqualTo(code), Missing},
		{"null equals null", q.Property("note").From("dept").EqualTo(q.Value(nil)), True},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Test(tt.pred, row))
		})
	}
}

func TestTest_Combinators(t *testing.T) {
	row := testRow()
	tru := q.Property("code").From("dept").EqualTo(q.Value("1000"))
	fls := q.Property("code").From("dept").EqualTo(q.Value("9999"))
	mis := q.Property("x").From("emp").EqualTo(q.Value(1))

	assert.Equal(t, False, Test(q.And(mis, fls), row), "AND(missing, false) is false")
	assert.Equal(t, Missing, Test(q.And(mis, tru), row))
	assert.Equal(t, True, Test(q.And(tru, tru), row))
	assert.Equal(t, True, Test(q.Or(mis, tru), row))
	assert.Equal(t, Missing, Test(q.Or(mis, fls), row))
	assert.Equal(t, False, Test(q.Or(fls, fls), row))
	assert.Equal(t, Missing, Test(q.Not(mis), row))
	assert.Equal(t, True, Test(q.Not(fls), row))
	assert.Equal(t, True, Test(q.And(), row), "empty conjunction")
	assert.Equal(t, False, Test(q.Or(), row), "empty disjunction")
	assert.Equal(t, Missing, Test(nil, row))
}

func TestRowContext_Rebind(t *testing.T) {
	row := NewRowContext("a", "b")
	doc := &docdb.Document{ID: "x"}

	_, ok := row.Doc("b")
	assert.False(t, ok)

	row.Bind("b", doc)
	got, ok := row.Doc("b")
	assert.True(t, ok)
	assert.Same(t, doc, got)

	row.Unbind("b")
	_, ok = row.Doc("b")
	assert.False(t, ok)
	assert.Equal(t, []string{"a", "b"}, row.Aliases())

	row.Bind("a", doc)
	got, ok = row.Doc("")
	assert.True(t, ok, "empty alias reads the FROM source")
	assert.Same(t, doc, got)
	row.Bind("a", nil)
	_, ok = row.Doc("a")
	assert.False(t, ok)
}
