// Package queryir defines the query intermediate representation for joindb:
// data sources, expressions, three-valued predicates, join specs and
// projections.
//
// Queries are built three ways, all producing the same *Query:
//
//	[fluent builder] ─┐
//	[statement text] ─┼─> *Query ─> engine (in memory)
//	[CUE definition] ─┘          └─> querysql (SQLite SQL, explain)
//
// SEALED INTERFACES:
//
// Expression and Predicate are sealed with marker methods, so evaluators
// can switch exhaustively:
//
//	switch e := expr.(type) {
//	case queryir.PropertyRef:
//	case queryir.MetaIDRef:
//	case queryir.Literal:
//	}
//
// MISSING VS NULL:
//
// A property that does not exist evaluates to missing, never to null. A
// left outer join that finds no match leaves the right alias unbound, so
// every property read through it is missing. Comparisons with a missing
// side are Missing, and Missing filters a row out.
//
// BUILDER EXAMPLE:
//
//	on := queryir.Property("department").From("emp").
//		EqualTo(queryir.Property("code").From("dept"))
//	q := queryir.NewQuery(
//		queryir.Select(queryir.Property("name").From("dept")).As("deptname"),
//		queryir.Select(queryir.Property("lastname").From("emp")),
//	).From("departments", "dept").Join("employees", "emp", on)
//
// The same query as text:
//
//	SELECT dept.name AS deptname, emp.lastname
//	FROM departments AS dept
//	JOIN employees AS emp ON emp.department = dept.code
package queryir
