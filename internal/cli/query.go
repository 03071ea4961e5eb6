package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/joindb/internal/engine"
	"github.com/roach88/joindb/internal/queryir"
	"github.com/roach88/joindb/internal/workpool"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Database string
	File     string // CUE file or directory of named queries
	Parallel int    // named queries run concurrently
}

// QueryOutput is the result of one query.
type QueryOutput struct {
	Name        string             `json:"name,omitempty"`
	Keys        []string           `json:"keys"`
	Rows        []engine.Row       `json:"rows"`
	Diagnostics []DiagnosticOutput `json:"diagnostics,omitempty"`
	Error       *CLIError          `json:"error,omitempty"`
}

// DiagnosticOutput describes a document skipped during a query.
type DiagnosticOutput struct {
	Alias      string `json:"alias"`
	Collection string `json:"collection"`
	DocumentID string `json:"document_id"`
	Error      string `json:"error"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query [statement | name...]",
		Short: "Run join queries against a database",
		Long: `Run a SELECT statement, or named queries from CUE files, against a
SQLite database.

Without --file the arguments form one statement. With --file the
arguments name queries to run; no arguments runs every query in the file.
Named queries read the same database and may run concurrently with
--parallel. Output keeps the order the queries were named in.

Exit codes:
  0 - All queries succeeded
  1 - A query was rejected or failed
  2 - Command error (invalid paths, database not found, etc.)

Examples:
  joindb query --db ./company.db "SELECT emp.lastname, dept.name FROM employees emp JOIN departments dept ON emp.department = dept.code"
  joindb query --db ./company.db --file ./queries staff engineering
  joindb query --db ./company.db --file ./queries --parallel 4 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "CUE file or directory with named queries")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", 1, "number of named queries to run concurrently")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

// namedQuery is one query to run, with its name when it came from CUE.
type namedQuery struct {
	name  string
	query *queryir.Query
}

func runQuery(ctx context.Context, opts *QueryOptions, args []string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)
	logger := opts.newLogger(cmd.ErrOrStderr())

	queries, err := resolveQueries(opts.File, args)
	if err != nil {
		return reportQueryError(formatter, err)
	}

	db, st, err := openDatabase(ctx, opts.Database, logger)
	if err != nil {
		return reportLoadError(formatter, err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	eng := engine.New(db, engine.WithLogger(logger))
	outputs := runQueries(ctx, eng, queries, opts.Parallel, logger)

	failed := 0
	for _, out := range outputs {
		if out.Error != nil {
			failed++
		}
	}

	if formatter.Format == "json" {
		if err := writeQueryJSON(formatter, outputs, opts.File != ""); err != nil {
			return err
		}
	} else {
		writeQueryText(formatter.Writer, outputs)
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d query(s) failed", failed))
	}
	return nil
}

// resolveQueries turns the command arguments into queries: one parsed
// statement, or the named CUE queries.
func resolveQueries(file string, args []string) ([]namedQuery, error) {
	if file == "" {
		if len(args) == 0 {
			return nil, &LoadError{Code: ErrCodeGeneric, Message: "a statement or --file is required"}
		}
		q, err := queryir.ParseStatement(strings.Join(args, " "))
		if err != nil {
			return nil, err
		}
		return []namedQuery{{query: q}}, nil
	}

	loaded, errs := LoadQueries(file, LoadModeFailFast)
	if len(errs) > 0 {
		return nil, errs[0]
	}

	if len(args) == 0 {
		queries := make([]namedQuery, len(loaded.Queries))
		for i, def := range loaded.Queries {
			queries[i] = namedQuery{name: def.Name, query: def.Query}
		}
		return queries, nil
	}

	queries := make([]namedQuery, 0, len(args))
	for _, name := range args {
		def, ok := loaded.Lookup(name)
		if !ok {
			return nil, &LoadError{Code: ErrCodeUnknownName, Message: fmt.Sprintf("no query named %q in %s", name, file)}
		}
		queries = append(queries, namedQuery{name: name, query: def.Query})
	}
	return queries, nil
}

// runQueries executes queries on up to parallel workers. Outputs are
// indexed like queries.
func runQueries(ctx context.Context, eng *engine.Engine, queries []namedQuery, parallel int, logger *slog.Logger) []QueryOutput {
	outputs := make([]QueryOutput, len(queries))
	errs := workpool.Run(ctx, parallel, len(queries), func(ctx context.Context, i int) error {
		outputs[i] = executeQuery(ctx, eng, queries[i])
		return nil
	}, workpool.WithLogger(logger))

	for i, err := range errs {
		if err != nil {
			outputs[i] = QueryOutput{
				Name:  queries[i].name,
				Keys:  []string{},
				Rows:  []engine.Row{},
				Error: &CLIError{Code: ErrCodeQuery, Message: err.Error()},
			}
		}
	}
	return outputs
}

// executeQuery plans and drains one query.
func executeQuery(ctx context.Context, eng *engine.Engine, nq namedQuery) QueryOutput {
	out := QueryOutput{Name: nq.name, Keys: []string{}, Rows: []engine.Row{}}

	plan, err := eng.Plan(nq.query)
	if err != nil {
		out.Error = queryCLIError(err)
		return out
	}
	out.Keys = plan.Keys()

	rows, err := eng.Execute(ctx, plan)
	if err != nil {
		out.Error = queryCLIError(err)
		return out
	}
	collected, err := engine.Collect(rows)
	out.Diagnostics = diagnosticOutputs(rows.Diagnostics())
	if err != nil {
		out.Error = queryCLIError(err)
		return out
	}
	out.Rows = collected
	return out
}

// queryCLIError converts a parse or plan error to a CLIError. Plan errors
// carry their code in the details.
func queryCLIError(err error) *CLIError {
	var pe *queryir.ParseError
	if errors.As(err, &pe) {
		return &CLIError{Code: ErrCodeParse, Message: err.Error()}
	}
	if code, ok := engine.CodeOf(err); ok {
		return &CLIError{
			Code:    ErrCodeQuery,
			Message: err.Error(),
			Details: map[string]string{"query_error": string(code)},
		}
	}
	return &CLIError{Code: ErrCodeQuery, Message: err.Error()}
}

func diagnosticOutputs(diags []engine.Diagnostic) []DiagnosticOutput {
	if len(diags) == 0 {
		return nil
	}
	out := make([]DiagnosticOutput, len(diags))
	for i, d := range diags {
		out[i] = DiagnosticOutput{
			Alias:      d.Alias,
			Collection: d.Collection,
			DocumentID: d.DocumentID,
			Error:      d.Err.Error(),
		}
	}
	return out
}

// reportQueryError prints an error raised before any query ran.
func reportQueryError(formatter *OutputFormatter, err error) error {
	var le *LoadError
	if errors.As(err, &le) {
		_ = formatter.Error(le.Code, le.Message, nil)
		return NewExitError(ExitCommandError, le.Error())
	}
	ce := queryCLIError(err)
	_ = formatter.Error(ce.Code, ce.Message, ce.Details)
	return NewExitError(ExitFailure, ce.Message)
}

func writeQueryJSON(formatter *OutputFormatter, outputs []QueryOutput, named bool) error {
	var data any = outputs
	if !named && len(outputs) == 1 {
		data = outputs[0]
	}

	response := CLIResponse{Status: "ok", Data: data}
	for _, out := range outputs {
		if out.Error != nil {
			response.Status = "error"
			response.Error = out.Error
			break
		}
	}
	return encodeJSON(formatter.Writer, response)
}

func writeQueryText(w io.Writer, outputs []QueryOutput) {
	for i, out := range outputs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if out.Name != "" {
			fmt.Fprintf(w, "== %s ==\n", out.Name)
		}
		if out.Error != nil {
			fmt.Fprintf(w, "Error [%s]: %s\n", out.Error.Code, out.Error.Message)
			continue
		}
		WriteRowsTable(w, out.Keys, out.Rows)
		for _, d := range out.Diagnostics {
			fmt.Fprintf(w, "warning: skipped %s/%s (alias %s): %s\n", d.Collection, d.DocumentID, d.Alias, d.Error)
		}
	}
}
