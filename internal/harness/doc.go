// Package harness provides conformance testing for join queries.
//
// A scenario loads a fixture into a fresh in-memory database, runs a list
// of cases, and compares each case's rows or plan error with what the
// scenario expects.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: left_outer
//	description: "Unmatched employees are padded, not dropped"
//	fixture: ../fixtures/company.yaml     # or an inline fixture mapping
//	queries: ../queries                   # optional CUE queries
//	cases:
//	  - name: padded
//	    statement: >
//	      SELECT emp.lastname, dept.name FROM employees emp
//	      LEFT JOIN departments dept ON emp.department = dept.code
//	    expect_rows:
//	      - {lastname: Smith, name: Engineering}
//	      - {lastname: Stray}
//	  - name: staff
//	    query: staff
//	    expect_count: 4
//	  - name: bad alias
//	    statement: SELECT ghost.x FROM employees emp
//	    expect_error: UNKNOWN_ALIAS
//
// Relative paths resolve against the scenario file's directory.
//
// # Expectations
//
//   - expect_rows: rows in emission order; a key missing from an expected
//     row must be missing from the actual row
//   - expect_count: number of rows
//   - expect_error: plan error code, or PARSE_ERROR
//   - expect_diagnostics: number of corrupt documents skipped
//
// # Deterministic Testing
//
// Fixture collections load in name order and documents without _id get
// IDs from testutil.CountingIDGenerator, so repeated runs produce
// byte-identical snapshots for golden comparison. Cases may run
// concurrently (WithParallelism); results keep scenario order.
package harness
