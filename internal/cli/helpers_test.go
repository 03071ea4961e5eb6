package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/joindb/internal/queryir"
)

const (
	companyFixture = "../../testdata/fixtures/company.yaml"
	queriesDir     = "../../testdata/queries"
	scenariosDir   = "../../testdata/scenarios"
)

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// companyDB loads the company fixture into a fresh SQLite file.
func companyDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "company.db")
	_, _, err := execute(t, "load", "--db", path, companyFixture)
	require.NoError(t, err)
	return path
}

func mustParse(t *testing.T, stmt string) *queryir.Query {
	t.Helper()
	q, err := queryir.ParseStatement(stmt)
	require.NoError(t, err)
	return q
}

// QueryOutputJSON decodes a QueryOutput with rows as plain objects.
type QueryOutputJSON struct {
	Name        string             `json:"name"`
	Keys        []string           `json:"keys"`
	Rows        []map[string]any   `json:"rows"`
	Diagnostics []DiagnosticOutput `json:"diagnostics"`
	Error       *CLIError          `json:"error"`
}
