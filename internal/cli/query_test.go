package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/joindb/internal/store"
)

const leftOuterStatement = "SELECT emp.lastname, dept.name FROM employees emp LEFT OUTER JOIN departments dept ON emp.department = dept.code"

func decodeQuery(t *testing.T, out string) (CLIResponse, QueryOutputJSON) {
	t.Helper()
	var resp struct {
		CLIResponse
		Data QueryOutputJSON `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	return resp.CLIResponse, resp.Data
}

func TestQueryCommand_Text(t *testing.T) {
	dbPath := companyDB(t)

	out, _, err := execute(t, "query", "--db", dbPath, leftOuterStatement)
	require.NoError(t, err)

	assert.Contains(t, out, "lastname")
	assert.Contains(t, out, "Smith")
	assert.Contains(t, out, "Stray")
	assert.Contains(t, out, "(4 rows)")
}

func TestQueryCommand_StatementFromSeveralArgs(t *testing.T) {
	dbPath := companyDB(t)

	out, _, err := execute(t, "--format", "json", "query", "--db", dbPath,
		"SELECT", "emp.lastname", "FROM", "employees", "emp", "WHERE", "emp.firstname", "=", "'Ann'")
	require.NoError(t, err)

	_, data := decodeQuery(t, out)
	assert.Equal(t, []map[string]any{{"lastname": "Lee"}}, data.Rows)
}

func TestQueryCommand_JSONGolden(t *testing.T) {
	dbPath := companyDB(t)

	out, _, err := execute(t, "--format", "json", "query", "--db", dbPath, leftOuterStatement)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "query_left_outer_json", []byte(out))
}

func TestQueryCommand_NamedQueries(t *testing.T) {
	dbPath := companyDB(t)

	out, _, err := execute(t, "--format", "json", "query", "--db", dbPath,
		"--file", queriesDir, "--parallel", "2", "engineering", "staff", "john")
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   []QueryOutputJSON `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 3)

	assert.Equal(t, "engineering", resp.Data[0].Name)
	assert.Equal(t, []map[string]any{
		{"firstname": "John", "lastname": "Smith"},
		{"firstname": "Ann", "lastname": "Lee"},
	}, resp.Data[0].Rows)

	assert.Equal(t, "staff", resp.Data[1].Name)
	assert.Len(t, resp.Data[1].Rows, 4)

	assert.Equal(t, "john", resp.Data[2].Name)
	assert.Equal(t, []map[string]any{
		{"firstname": "John", "lastname": "Smith", "name": "Engineering"},
	}, resp.Data[2].Rows)
}

func TestQueryCommand_AllNamedQueries(t *testing.T) {
	dbPath := companyDB(t)

	out, _, err := execute(t, "query", "--db", dbPath, "--file", queriesDir)
	require.NoError(t, err)
	assert.Contains(t, out, "== staff ==")
	assert.Contains(t, out, "== engineering ==")
	assert.Contains(t, out, "== john ==")
}

func TestQueryCommand_UnknownName(t *testing.T) {
	dbPath := companyDB(t)

	out, _, err := execute(t, "--format", "json", "query", "--db", dbPath, "--file", queriesDir, "nobody")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	resp, _ := decodeQuery(t, out)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeUnknownName, resp.Error.Code)
}

func TestQueryCommand_Errors(t *testing.T) {
	dbPath := companyDB(t)

	tests := []struct {
		name      string
		stmt      string
		code      string
		queryCode string
	}{
		{"parse", "SELECT FROM", ErrCodeParse, ""},
		{"unknown alias", "SELECT ghost.x FROM employees emp", ErrCodeQuery, "UNKNOWN_ALIAS"},
		{"unknown collection", "SELECT s.x FROM staff s", ErrCodeQuery, "UNKNOWN_COLLECTION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, "--format", "json", "query", "--db", dbPath, tt.stmt)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))

			resp, _ := decodeQuery(t, out)
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			if tt.queryCode != "" {
				details, ok := resp.Error.Details.(map[string]any)
				require.True(t, ok)
				assert.Equal(t, tt.queryCode, details["query_error"])
			}
		})
	}
}

func TestQueryCommand_NoStatement(t *testing.T) {
	dbPath := companyDB(t)

	_, _, err := execute(t, "query", "--db", dbPath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestQueryCommand_CorruptDocumentsAreDiagnostics(t *testing.T) {
	dbPath := companyDB(t)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	_, err = st.DB().ExecContext(context.Background(),
		`UPDATE documents SET body = '{"broken":' WHERE collection = 'employees' AND id = 'e2'`)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, _, err := execute(t, "--format", "json", "query", "--db", dbPath, "SELECT emp.lastname FROM employees emp")
	require.NoError(t, err)

	_, data := decodeQuery(t, out)
	assert.Len(t, data.Rows, 3)
	require.Len(t, data.Diagnostics, 1)
	assert.Equal(t, "employees", data.Diagnostics[0].Collection)
	assert.Equal(t, "e2", data.Diagnostics[0].DocumentID)
	assert.Equal(t, "emp", data.Diagnostics[0].Alias)

	text, _, err := execute(t, "query", "--db", dbPath, "SELECT emp.lastname FROM employees emp")
	require.NoError(t, err)
	assert.Contains(t, text, "warning: skipped employees/e2 (alias emp)")
}

func TestResolveQueries(t *testing.T) {
	queries, err := resolveQueries("", []string{"SELECT e.x FROM employees e"})
	require.NoError(t, err)
	require.Len(t, queries, 1)
	assert.Empty(t, queries[0].name)

	queries, err = resolveQueries(filepath.Join(queriesDir, "company.cue"), []string{"john", "staff"})
	require.NoError(t, err)
	require.Len(t, queries, 2)
	assert.Equal(t, "john", queries[0].name)
	assert.Equal(t, "staff", queries[1].name)

	_, err = resolveQueries("missing-dir", nil)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeNotFound, le.Code)
}
