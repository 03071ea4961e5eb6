package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/joindb/internal/compiler"
)

func writeCUE(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "queries.cue"), []byte(content), 0644))
	return dir
}

func TestValidateCommand_Valid(t *testing.T) {
	out, _, err := execute(t, "validate", queriesDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ All 3 queries valid")
}

func TestValidateCommand_ValidJSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "validate", queriesDir)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 3, resp.Data.Queries)
}

func TestValidateCommand_ScopeErrors(t *testing.T) {
	dir := writeCUE(t, `
package q

query: ghost: {
	select: ["ghost.name"]
	from: {collection: "employees", as: "emp"}
}

query: dup: {
	select: ["emp.name", "dept.name"]
	from: {collection: "employees", as: "emp"}
	join: [{collection: "departments", as: "dept", on: "emp.department = dept.code"}]
}
`)

	out, _, err := execute(t, "--format", "json", "validate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.Len(t, resp.Data.Errors, 2)

	byField := map[string]string{}
	for _, e := range resp.Data.Errors {
		byField[e.Field] = e.Code
		assert.Greater(t, e.Line, 0)
	}
	assert.Equal(t, compiler.ErrUndefinedAlias, byField["query.ghost.select[0]"])
	assert.Equal(t, compiler.ErrDuplicateResultKey, byField["query.dup.select[1]"])
}

func TestValidateCommand_CompileErrorsCollected(t *testing.T) {
	dir := writeCUE(t, `
package q

query: a: {select: ["e.x"], from: "e", where: "e.x <"}
query: b: {select: [], from: "e"}
query: c: {select: ["e.x"], from: "e", join: [{kind: "outer", collection: "d", as: "d"}]}
`)

	out, _, err := execute(t, "validate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, ErrCodeInvalidWhere)
	assert.Contains(t, out, ErrCodeInvalidSelect)
	assert.Contains(t, out, ErrCodeInvalidJoin)
}

func TestValidateCommand_MissingPath(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "validate", "/nonexistent/queries")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestValidateCommand_NoQueries(t *testing.T) {
	dir := writeCUE(t, "package q\n\nother: 1\n")

	out, _, err := execute(t, "validate", dir)
	require.Error(t, err)
	assert.Contains(t, out, ErrCodeNoFiles)
}

func TestValidateCommand_Verbose(t *testing.T) {
	_, stderr, err := execute(t, "-v", "validate", queriesDir)
	require.NoError(t, err)
	assert.Contains(t, stderr, "Validating query: staff")
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := map[string]string{
		"select":          ErrCodeInvalidSelect,
		"from.collection": ErrCodeInvalidFrom,
		"join.kind":       ErrCodeInvalidJoin,
		"join.on":         ErrCodeInvalidJoin,
		"where":           ErrCodeInvalidWhere,
		"description":     ErrCodeGeneric,
	}
	for field, want := range tests {
		assert.Equal(t, want, MapFieldToErrorCode(field), field)
	}
}
