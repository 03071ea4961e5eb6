package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/joindb/internal/compiler"
	"github.com/roach88/joindb/internal/docdb"
	"github.com/roach88/joindb/internal/engine"
	"github.com/roach88/joindb/internal/queryir"
	"github.com/roach88/joindb/internal/testutil"
	"github.com/roach88/joindb/internal/workpool"
)

// Option configures a harness run.
type Option func(*Harness)

// WithParallelism runs up to n cases concurrently. Cases only read the
// fixture, so results do not depend on n.
func WithParallelism(n int) Option {
	return func(h *Harness) {
		h.parallel = n
	}
}

// WithLogger sets the logger for the database and engine. Runs are silent
// by default.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// Harness is the test execution engine.
// It runs scenarios against a fresh in-memory database with deterministic
// document IDs.
type Harness struct {
	db       *docdb.Database
	engine   *engine.Engine
	queries  *compiler.LoadResult
	parallel int
	logger   *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database with counting ID generator
// 2. Load the fixture
// 3. Compile the scenario's CUE queries, if any
// 4. Run every case and check its expectations
// 5. Return result with pass/fail, rows, and errors
//
// The returned error covers setup failures only; failed expectations are
// reported in the result.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		parallel: 1,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	for _, opt := range opts {
		opt(h)
	}

	h.db = docdb.New(
		docdb.WithIDGenerator(testutil.NewCountingIDGenerator("doc")),
		docdb.WithLogger(h.logger),
	)
	h.engine = engine.New(h.db, engine.WithLogger(h.logger))

	fixture, err := scenario.loadFixture()
	if err != nil {
		return nil, err
	}
	if _, err := fixture.Apply(ctx, h.db); err != nil {
		return nil, fmt.Errorf("failed to apply fixture: %w", err)
	}

	if scenario.Queries != "" {
		loaded, errs := compiler.LoadQueries(scenario.resolve(scenario.Queries))
		if len(errs) > 0 {
			return nil, fmt.Errorf("failed to load queries: %w", errors.Join(errs...))
		}
		h.queries = loaded
	}

	cases := make([]CaseResult, len(scenario.Cases))
	runErrs := workpool.Run(ctx, h.parallel, len(scenario.Cases), func(ctx context.Context, i int) error {
		cases[i] = h.runCase(ctx, scenario.Cases[i])
		return nil
	}, workpool.WithLogger(h.logger))

	result := NewResult(scenario.Name)
	for i, c := range cases {
		if runErrs[i] != nil {
			c = CaseResult{Name: scenario.Cases[i].Name, Error: runErrs[i].Error()}
			c.Failures = []string{runErrs[i].Error()}
		}
		result.AddCase(c)
	}
	return result, nil
}

func (s *Scenario) loadFixture() (*Fixture, error) {
	if s.Fixture.Inline != nil {
		return s.Fixture.Inline, nil
	}
	f, err := LoadFixture(s.resolve(s.Fixture.Path))
	if err != nil {
		return nil, fmt.Errorf("failed to load fixture: %w", err)
	}
	return f, nil
}

// runCase plans and executes one case, then checks its expectations.
func (h *Harness) runCase(ctx context.Context, c Case) CaseResult {
	res := CaseResult{Name: c.Name, Rows: []engine.Row{}}

	query, err := h.caseQuery(c)
	if err == nil {
		res.Rows, res.Diagnostics, err = h.execute(ctx, query)
	}
	if err != nil {
		res.Error = err.Error()
		res.ErrorCode = errorCode(err)
	}

	for _, e := range checkCase(c, res) {
		res.Failures = append(res.Failures, e.Error())
	}
	res.Pass = len(res.Failures) == 0
	return res
}

func (h *Harness) caseQuery(c Case) (*queryir.Query, error) {
	if c.Statement != "" {
		return queryir.ParseStatement(c.Statement)
	}
	def, ok := h.queries.Lookup(c.Query)
	if !ok {
		return nil, fmt.Errorf("unknown query %q", c.Query)
	}
	return def.Query, nil
}

func (h *Harness) execute(ctx context.Context, q *queryir.Query) ([]engine.Row, []engine.Diagnostic, error) {
	rows, err := h.engine.Query(ctx, q)
	if err != nil {
		return nil, nil, err
	}
	collected, err := engine.Collect(rows)
	if err != nil {
		return nil, nil, err
	}
	return collected, rows.Diagnostics(), nil
}

// errorCode maps an error to the code scenarios expect.
func errorCode(err error) string {
	if code, ok := engine.CodeOf(err); ok {
		return string(code)
	}
	var pe *queryir.ParseError
	if errors.As(err, &pe) {
		return ErrCodeParse
	}
	return "ERROR"
}

// RunAll runs scenarios with up to parallel scenarios at a time. Results
// and errors are indexed like scenarios.
func RunAll(ctx context.Context, scenarios []*Scenario, parallel int, opts ...Option) ([]*Result, []error) {
	results := make([]*Result, len(scenarios))
	errs := workpool.Run(ctx, parallel, len(scenarios), func(ctx context.Context, i int) error {
		r, err := Run(ctx, scenarios[i], opts...)
		results[i] = r
		return err
	})
	return results, errs
}
