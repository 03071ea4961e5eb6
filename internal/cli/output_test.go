package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/joindb/internal/docdb"
	"github.com/roach88/joindb/internal/engine"
	"github.com/roach88/joindb/internal/ir"
)

// queryRows runs stmt over a small in-memory collection of people.
func queryRows(t *testing.T, stmt string) ([]string, []engine.Row) {
	t.Helper()
	ctx := context.Background()
	db := docdb.New(docdb.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	c, err := db.CreateCollection(ctx, "people", "")
	require.NoError(t, err)

	docs := []ir.IRObject{
		{"name": ir.IRString("Ann"), "age": ir.IRInt(41), "nick": ir.IRNull{}},
		{"name": ir.IRString("Bob"), "tags": ir.IRArray{ir.IRString("x")}},
	}
	for i, d := range docs {
		_, err := c.Put(ctx, fmt.Sprintf("p%d", i+1), d)
		require.NoError(t, err)
	}

	eng := engine.New(db)
	plan, err := eng.Plan(mustParse(t, stmt))
	require.NoError(t, err)
	rows, err := eng.Execute(ctx, plan)
	require.NoError(t, err)
	collected, err := engine.Collect(rows)
	require.NoError(t, err)
	return plan.Keys(), collected
}

func TestWriteRowsTable(t *testing.T) {
	keys, rows := queryRows(t, "SELECT p.name, p.age, p.nick, p.tags FROM people p")

	buf := &bytes.Buffer{}
	WriteRowsTable(buf, keys, rows)
	out := buf.String()

	assert.Contains(t, out, "name")
	assert.Contains(t, out, "Ann")
	assert.Contains(t, out, "41")
	assert.Contains(t, out, "null", "a JSON null is printed")
	assert.Contains(t, out, `["x"]`)
	assert.True(t, strings.HasSuffix(out, "(2 rows)\n"))
}

func TestFormatCell(t *testing.T) {
	_, rows := queryRows(t, "SELECT p.name, p.nick, p.tags FROM people p")
	require.Len(t, rows, 2)

	assert.Equal(t, "Ann", formatCell(rows[0], "name"), "strings print unquoted")
	assert.Equal(t, "null", formatCell(rows[0], "nick"))
	assert.Equal(t, missingCell, formatCell(rows[0], "tags"), "missing prints empty")
	assert.Equal(t, `["x"]`, formatCell(rows[1], "tags"))
}

func TestWriteRowsTable_Empty(t *testing.T) {
	buf := &bytes.Buffer{}
	WriteRowsTable(buf, []string{"name"}, nil)
	assert.Contains(t, buf.String(), "(0 rows)")
}

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Success(LoadSummary{Database: "x.db", Collections: []string{"a"}, Documents: 3})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, float64(3), resp.Data.(map[string]any)["documents"])
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error(ErrCodeQuery, "UNKNOWN_ALIAS: alias is not bound", map[string]string{"query_error": "UNKNOWN_ALIAS"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeQuery, resp.Error.Code)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_Text(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}

	require.NoError(t, formatter.Error(ErrCodeNotFound, "path not found", map[string]string{"path": "q.cue"}))
	assert.Contains(t, buf.String(), "Error [E005]: path not found")
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			errOut := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:    "json",
				Writer:    out,
				ErrWriter: errOut,
				Verbose:   tt.verbose,
			}

			formatter.VerboseLog("Validating query: %s", "staff")

			assert.Empty(t, out.String(), "verbose output never corrupts stdout")
			if tt.wantLog {
				assert.Contains(t, errOut.String(), "Validating query: staff")
			} else {
				assert.Empty(t, errOut.String())
			}
		})
	}
}

func TestOutputFormatter_ErrWriterFallback(t *testing.T) {
	out := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: out, Verbose: true}
	assert.Same(t, out, formatter.GetErrWriter())

	formatter.VerboseLog("Found %d CUE file(s)", 1)
	assert.Equal(t, "Found 1 CUE file(s)\n", out.String())

	errOut := &bytes.Buffer{}
	formatter.ErrWriter = errOut
	assert.Same(t, errOut, formatter.GetErrWriter())
}

func TestExitCodes(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "x")))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))

	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitCommandError, "open", errors.New("disk")))
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
	assert.Equal(t, "outer: open: disk", wrapped.Error())
}
