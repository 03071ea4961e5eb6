package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join(scenarioDir, name+".yaml"))
	require.NoError(t, err)
	return s
}

func parseScenario(t *testing.T, yaml string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(yaml), t.TempDir())
	require.NoError(t, err)
	return s
}

func TestRun_ScenarioFiles(t *testing.T) {
	for _, name := range []string{"joins", "errors", "playground"} {
		t.Run(name, func(t *testing.T) {
			result, err := Run(context.Background(), loadScenario(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Equal(t, name, result.Scenario)
		})
	}
}

func TestRun_ParallelMatchesSequential(t *testing.T) {
	s := loadScenario(t, "joins")

	seq, err := Run(context.Background(), s)
	require.NoError(t, err)
	par, err := Run(context.Background(), s, WithParallelism(4))
	require.NoError(t, err)

	require.Len(t, par.Cases, len(seq.Cases))
	for i := range seq.Cases {
		assert.Equal(t, seq.Cases[i].Name, par.Cases[i].Name)
		assert.Equal(t, seq.Cases[i].Rows, par.Cases[i].Rows)
	}
}

func TestRun_ReportsFailedExpectations(t *testing.T) {
	s := parseScenario(t, `
name: failing
description: every case fails
fixture:
  collections:
    c:
      documents:
        - {_id: a, n: 1}
        - {_id: b, n: 2}
cases:
  - name: wrong count
    statement: SELECT c.n FROM c
    expect_count: 3
  - name: wrong row
    statement: SELECT c.n FROM c
    expect_rows: [{n: 1}, {n: 3}]
  - name: expected error
    statement: SELECT c.n FROM c
    expect_error: UNKNOWN_ALIAS
  - name: unexpected error
    statement: SELECT x.n FROM c
    expect_count: 0
`)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Cases, 4)
	for _, c := range result.Cases {
		assert.False(t, c.Pass, c.Name)
		require.Len(t, c.Failures, 1, c.Name)
	}
	assert.Contains(t, result.Cases[0].Failures[0], "Assertion failed: expect_count")
	assert.Contains(t, result.Cases[1].Failures[0], `row 2 = {"n":3}`)
	assert.Contains(t, result.Cases[2].Failures[0], "query succeeded")
	assert.Contains(t, result.Cases[3].Failures[0], "Assertion failed: no_error")
	assert.Equal(t, "UNKNOWN_ALIAS", result.Cases[3].ErrorCode)
	assert.Len(t, result.Errors, 4)
}

func TestRun_MissingKeyMustBeMissing(t *testing.T) {
	s := parseScenario(t, `
name: missing
description: an absent key is not a null key
fixture:
  collections:
    c:
      documents:
        - {_id: a, n: null}
        - {_id: b}
cases:
  - name: null present
    statement: SELECT c.n FROM c WHERE META(c).id = 'a'
    expect_rows: [{n: null}]
  - name: key absent
    statement: SELECT c.n FROM c WHERE META(c).id = 'b'
    expect_rows: [{}]
`)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_UnknownQueryName(t *testing.T) {
	s := parseScenario(t, `
name: unknown
description: query names resolve against the CUE queries
fixture: `+mustAbs(t, companyFixture)+`
queries: `+mustAbs(t, "../../testdata/queries")+`
cases:
  - name: nope
    query: nope
    expect_error: ERROR
`)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Contains(t, result.Cases[0].Error, `unknown query "nope"`)
}

func TestRun_SetupErrors(t *testing.T) {
	s := parseScenario(t, `
name: bad fixture
description: fixture documents violate the schema
fixture:
  collections:
    c:
      schema: {type: object, required: [n]}
      documents:
        - {_id: a}
cases:
  - name: never runs
    statement: SELECT c.n FROM c
`)

	_, err := Run(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to apply fixture")
}

func TestRunAll(t *testing.T) {
	scenarios := []*Scenario{
		loadScenario(t, "joins"),
		loadScenario(t, "errors"),
		loadScenario(t, "playground"),
	}

	results, errs := RunAll(context.Background(), scenarios, 2)
	require.Len(t, results, 3)
	require.Len(t, errs, 3)
	for i, r := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, scenarios[i].Name, r.Scenario)
		assert.True(t, r.Pass, "%s: %v", r.Scenario, r.Errors)
	}
}

func TestErrorCode(t *testing.T) {
	s := loadScenario(t, "errors")
	result, err := Run(context.Background(), s)
	require.NoError(t, err)

	for i, c := range result.Cases {
		assert.Equal(t, s.Cases[i].ExpectError, c.ErrorCode, c.Name)
		assert.NotEmpty(t, c.Error, c.Name)
	}
}

func mustAbs(t *testing.T, p string) string {
	t.Helper()
	abs, err := filepath.Abs(p)
	require.NoError(t, err)
	return abs
}
