package compiler

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/joindb/internal/queryir"
)

func TestLoadQueries_Directory(t *testing.T) {
	result, errs := LoadQueries("../../testdata/queries")
	require.Empty(t, errs)
	require.NotNil(t, result)

	assert.Equal(t, 1, result.FileCount)
	names := make([]string, len(result.Queries))
	for i, def := range result.Queries {
		names[i] = def.Name
	}
	assert.Equal(t, []string{"staff", "engineering", "john"}, names)

	staff, ok := result.Lookup("staff")
	require.True(t, ok)
	assert.Equal(t, queryir.JoinLeftOuter, staff.Query.Joins[0].Kind)

	_, ok = result.Lookup("missing")
	assert.False(t, ok)
}

func TestLoadQueries_SingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "one.cue")
	require.NoError(t, os.WriteFile(path, []byte(`
package one

query: ids: {
	select: ["META(d).id"]
	from: {collection: "departments", as: "d"}
}
`), 0o644))

	result, errs := LoadQueries(path)
	require.Empty(t, errs)
	require.Len(t, result.Queries, 1)
	assert.Equal(t, "ids", result.Queries[0].Name)
}

func TestLoadQueries_CollectsCompileErrors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "q.cue"), []byte(`
package q

query: good: {select: ["e.x"], from: "e"}
query: bad: {select: ["e.x"], from: "e", where: "e.x <"}
`), 0o644))

	result, errs := LoadQueries(dir)
	require.NotNil(t, result)
	require.Len(t, result.Queries, 1)
	require.Len(t, errs, 1)

	var ce *CompileError
	require.True(t, errors.As(errs[0], &ce))
	assert.Equal(t, "where", ce.Field)
}

func TestLoadQueries_Errors(t *testing.T) {
	t.Run("missing path", func(t *testing.T) {
		_, errs := LoadQueries(filepath.Join(t.TempDir(), "nope"))
		require.Len(t, errs, 1)
		var le *LoadError
		assert.True(t, errors.As(errs[0], &le))
	})

	t.Run("no cue files", func(t *testing.T) {
		_, errs := LoadQueries(t.TempDir())
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0].Error(), "no CUE files")
	})

	t.Run("no queries", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "x.cue"), []byte("package x\nother: 1\n"), 0o644))
		_, errs := LoadQueries(dir)
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0].Error(), "no queries found")
	})

	t.Run("invalid cue", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "x.cue"), []byte("package x\nquery: {\n"), 0o644))
		_, errs := LoadQueries(dir)
		require.Len(t, errs, 1)
		var le *LoadError
		assert.True(t, errors.As(errs[0], &le))
	})
}
