package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/roach88/joindb/internal/engine"
	"github.com/roach88/joindb/internal/queryir"
	"github.com/roach88/joindb/internal/querysql"
	"github.com/roach88/joindb/internal/store"
)

// ExplainOptions holds flags for the explain command.
type ExplainOptions struct {
	*RootOptions
	Database string
	File     string
	Run      bool
}

// ExplainOutput describes how a query executes.
type ExplainOutput struct {
	Plan     string   `json:"plan,omitempty"`
	SQL      string   `json:"sql"`
	Params   []any    `json:"params"`
	Portable bool     `json:"portable"`
	Warnings []string `json:"warnings,omitempty"`
	SQLRows  [][]any  `json:"sql_rows,omitempty"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExplainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explain <statement | name>",
		Short: "Show the plan and SQL for a query",
		Long: `Show how a query executes.

Prints the equivalent parameterized SQLite SQL over the documents table
and warns about features whose SQL rendering differs from the engine
(comparisons against null, whole-document selections from *).

With --db the engine's operator tree is printed as well, and --run
executes the SQL against the stored documents.

Examples:
  joindb explain "SELECT emp.lastname FROM employees emp JOIN departments dept ON emp.department = dept.code"
  joindb explain --file ./queries staff
  joindb explain --db ./company.db --run "SELECT emp.lastname FROM employees emp"`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(cmd.Context(), opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "CUE file or directory with named queries")
	cmd.Flags().BoolVar(&opts.Run, "run", false, "execute the SQL against --db")

	return cmd
}

func runExplain(ctx context.Context, opts *ExplainOptions, args []string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)
	logger := opts.newLogger(cmd.ErrOrStderr())

	if opts.File != "" && len(args) != 1 {
		return reportQueryError(formatter, &LoadError{Code: ErrCodeGeneric, Message: "--file takes exactly one query name"})
	}
	if opts.Run && opts.Database == "" {
		return reportQueryError(formatter, &LoadError{Code: ErrCodeGeneric, Message: "--run requires --db"})
	}

	queries, err := resolveQueries(opts.File, args)
	if err != nil {
		return reportQueryError(formatter, err)
	}
	q := queries[0].query

	sqlText, params, err := querysql.NewSQLCompiler().Compile(q)
	if err != nil {
		return reportQueryError(formatter, err)
	}
	validation := queryir.Validate(q)
	out := ExplainOutput{
		SQL:      sqlText,
		Params:   params,
		Portable: validation.IsPortable,
		Warnings: validation.Warnings,
	}
	if out.Params == nil {
		out.Params = []any{}
	}

	if opts.Database != "" {
		db, st, err := openDatabase(ctx, opts.Database, logger)
		if err != nil {
			return reportLoadError(formatter, err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()

		plan, err := engine.New(db, engine.WithLogger(logger)).Plan(q)
		if err != nil {
			return reportQueryError(formatter, err)
		}
		out.Plan = plan.String()

		if opts.Run {
			out.SQLRows, err = runSQL(ctx, st, sqlText, params)
			if err != nil {
				_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
				return WrapExitError(ExitFailure, "failed to run SQL", err)
			}
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(out)
	}
	writeExplainText(cmd, out, opts.Run)
	return nil
}

// runSQL executes compiled SQL and returns every row. JSON text and
// blobs come back as strings.
func runSQL(ctx context.Context, st *store.Store, query string, params []any) ([][]any, error) {
	rows, err := st.Query(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := [][]any{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		out = append(out, vals)
	}
	return out, rows.Err()
}

func writeExplainText(cmd *cobra.Command, out ExplainOutput, ran bool) {
	w := cmd.OutOrStdout()

	if out.Plan != "" {
		fmt.Fprintln(w, "Plan:")
		for _, line := range strings.Split(strings.TrimRight(out.Plan, "\n"), "\n") {
			fmt.Fprintf(w, "  %s\n", line)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "SQL:")
	fmt.Fprintf(w, "  %s\n", out.SQL)
	if len(out.Params) > 0 {
		fmt.Fprintf(w, "Params: %s\n", formatParams(out.Params))
	}

	if !out.Portable {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Warnings:")
		for _, warning := range out.Warnings {
			fmt.Fprintf(w, "  - %s\n", warning)
		}
	}

	if ran {
		fmt.Fprintln(w)
		table := tablewriter.NewWriter(w)
		table.SetAutoWrapText(false)
		for _, row := range out.SQLRows {
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i] = sqlCell(v)
			}
			table.Append(cells)
		}
		table.Render()
		fmt.Fprintf(w, "(%d row%s)\n", len(out.SQLRows), plural(len(out.SQLRows)))
	}
}

func formatParams(params []any) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = fmt.Sprintf("%#v", p)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func sqlCell(v any) string {
	if v == nil {
		return "NULL"
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
