package queryir

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/joindb/internal/ir"
)

func TestParsePredicate(t *testing.T) {
	tests := []struct {
		input string
		want  Predicate
	}{
		{
			"emp.department = dept.code",
			Property("department").From("emp").EqualTo(Property("code").From("dept")),
		},
		{
			"emp.department == '1000'",
			Property("department").From("emp").EqualTo(Value("1000")),
		},
		{
			`dept.head.firstname != "John"`,
			Property("head.firstname").From("dept").NotEqualTo(Value("John")),
		},
		{
			"emp.age <> 30",
			Property("age").From("emp").NotEqualTo(Value(30)),
		},
		{
			"emp.salary >= -1.5e3",
			Property("salary").From("emp").GreaterThanOrEqualTo(Literal{Value: ir.IRFloat(-1500)}),
		},
		{
			"emp.tags.0 = 'a'",
			Property("tags.0").From("emp").EqualTo(Value("a")),
		},
		{
			"META(emp).id = 'e1'",
			MetaID().From("emp").EqualTo(Value("e1")),
		},
		{
			"type = 'employee'",
			Property("type").EqualTo(Value("employee")),
		},
		{
			"x.a = true AND x.b = false AND x.c = null",
			And(
				Property("a").From("x").EqualTo(Value(true)),
				Property("b").From("x").EqualTo(Value(false)),
				Property("c").From("x").EqualTo(Value(nil)),
			),
		},
		{
			"x.a = 1 OR x.b = 2 AND x.c = 3",
			Or(
				Property("a").From("x").EqualTo(Value(1)),
				And(
					Property("b").From("x").EqualTo(Value(2)),
					Property("c").From("x").EqualTo(Value(3)),
				),
			),
		},
		{
			"NOT (x.a = 1 or x.b = 2)",
			Not(Or(
				Property("a").From("x").EqualTo(Value(1)),
				Property("b").From("x").EqualTo(Value(2)),
			)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParsePredicate(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePredicate_KeywordPathSegment(t *testing.T) {
	got, err := ParsePredicate(`x.select = 'it\'s'`)
	require.NoError(t, err)
	assert.Equal(t, Property("select").From("x").EqualTo(Value("it's")), got)
}

func TestParsePredicate_Errors(t *testing.T) {
	tests := []struct {
		input string
		pos   int
	}{
		{"", 0},
		{"x.a", 3},
		{"x.a = ", 6},
		{"x.a = 'open", 6},
		{"x.a ! 1", 4},
		{"(x.a = 1", 8},
		{"x.a = 1 x.b = 2", 8},
		{"META(x).name = 1", 8},
		{"x. = 1", 3},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := ParsePredicate(tt.input)
			require.Error(t, err)
			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.pos, perr.Pos)
		})
	}
}

func TestParseStatement_PlaygroundQueries(t *testing.T) {
	q, err := ParseStatement(`
		SELECT dept.name AS deptname, emp.firstname, emp.lastname
		FROM * AS dept
		JOIN * AS emp ON emp.department = dept.code
		WHERE dept.type = 'department' AND emp.type = 'employee'`)
	require.NoError(t, err)

	assert.Equal(t, DataSource{Collection: "*", Alias: "dept"}, q.Source)
	require.Len(t, q.Select, 3)
	assert.Equal(t, "deptname", q.Select[0].Key())
	assert.Equal(t, "firstname", q.Select[1].Key())
	require.Len(t, q.Joins, 1)
	assert.Equal(t, JoinInner, q.Joins[0].Kind)
	assert.Equal(t,
		Property("department").From("emp").EqualTo(Property("code").From("dept")),
		q.Joins[0].On)
	assert.IsType(t, &Conjunction{}, q.Where)
}

func TestParseStatement_JoinKinds(t *testing.T) {
	q, err := ParseStatement(
		"select a.*, META(b).id as bid from as1 a inner join bs b on b.k = a.k " +
			"left outer join cs as c on c.k = b.k left join ds d on d.k = a.k cross join es e")
	require.NoError(t, err)

	kinds := make([]JoinKind, len(q.Joins))
	for i, j := range q.Joins {
		kinds[i] = j.Kind
	}
	assert.Equal(t, []JoinKind{JoinInner, JoinLeftOuter, JoinLeftOuter, JoinCross}, kinds)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, q.Aliases())
	assert.Equal(t, SelectAll("a"), q.Select[0])
	assert.Equal(t, "bid", q.Select[1].Key())
}

func TestParseStatement_DefaultAlias(t *testing.T) {
	q, err := ParseStatement("SELECT name FROM employees")
	require.NoError(t, err)
	assert.Equal(t, DataSource{Collection: "employees", Alias: "employees"}, q.Source)
	assert.Equal(t, Select(Property("name")), q.Select[0])
}

func TestParseStatement_RoundTrip(t *testing.T) {
	inputs := []string{
		"SELECT dept.name AS deptname, emp.* FROM departments AS dept LEFT OUTER JOIN employees AS emp ON emp.department = dept.code",
		"SELECT META(a).id FROM * AS a CROSS JOIN * AS b WHERE NOT (a.n < 2 OR b.n >= 3.5)",
		"SELECT x.v FROM xs AS x WHERE x.s = 'it\\'s' AND x.n != -4",
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			q, err := ParseStatement(input)
			require.NoError(t, err)
			again, err := ParseStatement(q.String())
			require.NoError(t, err)
			assert.Equal(t, q, again)
		})
	}
}

func TestParseStatement_Errors(t *testing.T) {
	inputs := []string{
		"FROM x",
		"SELECT x.a",
		"SELECT x.a FROM * WHERE x.a = 1",
		"SELECT x.a FROM xs x LEFT xs y ON y.a = x.a",
		"SELECT x.a FROM xs x WHERE",
		"SELECT x.a FROM xs x trailing junk",
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, err := ParseStatement(input)
			var perr *ParseError
			assert.True(t, errors.As(err, &perr), "want *ParseError, got %v", err)
		})
	}
}

func TestParseSelection(t *testing.T) {
	tests := []struct {
		input string
		want  Selection
	}{
		{"emp.firstname", Select(Property("firstname").From("emp"))},
		{"dept.head.name AS boss", Select(Property("head.name").From("dept")).As("boss")},
		{"dept.*", SelectAll("dept")},
		{"META(emp).id", Select(MetaID().From("emp"))},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSelection(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseSelection("emp.firstname, emp.lastname")
	var pe *ParseError
	assert.True(t, errors.As(err, &pe))
}
