package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/roach88/joindb/internal/docdb"
	"github.com/roach88/joindb/internal/engine"
	"github.com/roach88/joindb/internal/queryir"
	"github.com/roach88/joindb/internal/querysql"
)

// REPLOptions holds flags for the repl command.
type REPLOptions struct {
	*RootOptions
	Database string
}

// lineReader is the part of liner.State the REPL uses.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

const replHelp = `Enter a SELECT statement, or one of:
  .collections      list collections and their sizes
  .explain <stmt>   show the plan and SQL for a statement
  .help             show this help
  .quit             leave the shell`

// NewREPLCommand creates the repl command.
func NewREPLCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &REPLOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactive query shell",
		Long: `Start an interactive shell over a database.

Each line is a SELECT statement; results print as a table. Lines starting
with a dot are shell commands (.help lists them). Ctrl-D exits.

Example:
  joindb repl --db ./company.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			logger := opts.newLogger(cmd.ErrOrStderr())

			db, st, err := openDatabase(ctx, opts.Database, logger)
			if err != nil {
				return reportLoadError(opts.formatter(cmd), err)
			}
			defer func() {
				if closeErr := st.Close(); closeErr != nil {
					logger.Error("error closing database", "error", closeErr)
				}
			}()

			lin := liner.NewLiner()
			defer lin.Close()
			lin.SetCtrlCAborts(true)
			lin.SetMultiLineMode(true)

			return runREPL(ctx, lin, cmd.OutOrStdout(), db, logger)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

// runREPL reads lines from in until EOF, Ctrl-C or .quit.
func runREPL(ctx context.Context, in lineReader, w io.Writer, db *docdb.Database, logger *slog.Logger) error {
	eng := engine.New(db, engine.WithLogger(logger))
	fmt.Fprintln(w, "joindb shell. Type .help for commands.")

	for {
		line, err := in.Prompt("joindb> ")
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				fmt.Fprintln(w)
				return nil
			}
			return fmt.Errorf("reading prompt: %w", err)
		}

		line = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line), ";"))
		if line == "" {
			continue
		}
		in.AppendHistory(line)

		if strings.HasPrefix(line, ".") {
			if quit := replCommand(w, db, line); quit {
				return nil
			}
			continue
		}

		out := executeStatement(ctx, eng, line)
		if out.Error != nil {
			fmt.Fprintf(w, "Error [%s]: %s\n", out.Error.Code, out.Error.Message)
			continue
		}
		writeQueryText(w, []QueryOutput{out})
	}
}

// replCommand runs a dot command. It reports whether the shell should exit.
func replCommand(w io.Writer, db *docdb.Database, line string) bool {
	name, rest, _ := strings.Cut(line, " ")
	switch name {
	case ".quit", ".exit":
		return true
	case ".help":
		fmt.Fprintln(w, replHelp)
	case ".collections":
		for _, c := range db.Collections() {
			coll, err := db.Collection(c)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "%s (%d)\n", c, coll.Len())
		}
	case ".explain":
		explainStatement(w, db, strings.TrimSpace(rest))
	default:
		fmt.Fprintf(w, "unknown command %s (try .help)\n", name)
	}
	return false
}

func executeStatement(ctx context.Context, eng *engine.Engine, stmt string) QueryOutput {
	q, err := queryir.ParseStatement(stmt)
	if err != nil {
		return QueryOutput{Error: queryCLIError(err)}
	}
	return executeQuery(ctx, eng, namedQuery{query: q})
}

func explainStatement(w io.Writer, db *docdb.Database, stmt string) {
	q, err := queryir.ParseStatement(stmt)
	if err != nil {
		fmt.Fprintf(w, "Error [%s]: %s\n", ErrCodeParse, err)
		return
	}
	plan, err := engine.New(db).Plan(q)
	if err != nil {
		ce := queryCLIError(err)
		fmt.Fprintf(w, "Error [%s]: %s\n", ce.Code, ce.Message)
		return
	}
	fmt.Fprint(w, plan.String())

	sqlText, params, err := querysql.NewSQLCompiler().Compile(q)
	if err != nil {
		fmt.Fprintf(w, "Error [%s]: %s\n", ErrCodeQuery, err)
		return
	}
	fmt.Fprintf(w, "SQL: %s\n", sqlText)
	if len(params) > 0 {
		fmt.Fprintf(w, "Params: %s\n", formatParams(params))
	}
}
