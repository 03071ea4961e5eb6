package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/joindb/internal/harness"
)

// LoadOptions holds flags for the load command.
type LoadOptions struct {
	*RootOptions
	Database string
}

// LoadSummary reports what a load wrote.
type LoadSummary struct {
	Database    string   `json:"database"`
	Collections []string `json:"collections"`
	Documents   int      `json:"documents"`
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "load <fixture>",
		Short: "Load a fixture file into a database",
		Long: `Load collections and documents from a YAML or JSON fixture into a
SQLite database, creating the database if it doesn't exist.

Collections that already exist are reused. Documents with an _id replace
any stored document with the same ID; documents without one get a
generated UUIDv7.

Example:
  joindb load --db ./company.db testdata/fixtures/company.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runLoad(ctx context.Context, opts *LoadOptions, fixturePath string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)
	logger := opts.newLogger(cmd.ErrOrStderr())

	fixture, err := harness.LoadFixture(fixturePath)
	if err != nil {
		_ = formatter.Error(ErrCodeLoadFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load fixture", err)
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

	written, err := fixture.Apply(ctx, db)
	if err != nil {
		_ = formatter.Error(ErrCodeWriteFailed, err.Error(), map[string]int{"written": written})
		return WrapExitError(ExitFailure, "failed to apply fixture", err)
	}
	logger.Info("fixture loaded", "path", fixturePath, "documents", written)

	summary := LoadSummary{
		Database:    opts.Database,
		Collections: fixture.Names(),
		Documents:   written,
	}
	if formatter.Format == "json" {
		return formatter.Success(summary)
	}
	fmt.Fprintf(formatter.Writer, "✓ Loaded %d document(s) into %d collection(s)\n", written, len(summary.Collections))
	for _, name := range summary.Collections {
		formatter.VerboseLog("  %s", name)
	}
	return nil
}

// reportLoadError prints a LoadError and converts it to a command error.
func reportLoadError(formatter *OutputFormatter, err error) error {
	code := ErrCodeGeneric
	msg := err.Error()
	if le, ok := err.(*LoadError); ok {
		code, msg = le.Code, le.Message
	}
	_ = formatter.Error(code, msg, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, msg))
}
