package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/joindb/internal/ir"
)

func TestValidate_PortableQuery(t *testing.T) {
	q := NewQuery(Select(Property("name").From("dept"))).
		From("departments", "dept").
		Join("employees", "emp", Property("department").From("emp").EqualTo(Property("code").From("dept")))

	result := Validate(q)

	assert.True(t, result.IsPortable)
	assert.Empty(t, result.Warnings)
}

func TestValidate_NullComparison(t *testing.T) {
	q := NewQuery(Select(Property("name").From("x"))).
		From("xs", "x").
		Filter(Not(Property("name").From("x").EqualTo(Value(nil))))

	result := Validate(q)

	assert.False(t, result.IsPortable)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "null")
}

func TestValidate_ContainerLiteral(t *testing.T) {
	q := NewQuery(Select(Property("tags").From("x"))).
		From("xs", "x").
		Filter(Or(
			Property("tags").From("x").EqualTo(Literal{Value: ir.IRArray{ir.IRString("a")}}),
			Property("head").From("x").EqualTo(Literal{Value: ir.IRObject{}}),
		))

	result := Validate(q)

	require.Len(t, result.Warnings, 2)
	assert.Contains(t, result.Warnings[0], "array")
	assert.Contains(t, result.Warnings[1], "object")
}

func TestValidate_SelectAllDatabaseSource(t *testing.T) {
	q := NewQuery(SelectAll("d")).From("*", "d")

	result := Validate(q)

	assert.False(t, result.IsPortable)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "d.*")
}

func TestValidate_NilQuery(t *testing.T) {
	result := Validate(nil)
	assert.False(t, result.IsPortable)
}
