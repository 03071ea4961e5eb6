package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/joindb/internal/docdb"
	"github.com/roach88/joindb/internal/queryir"
)

// Engine plans and executes join queries against a Catalog.
//
// Thread-safety: Engine holds no per-query state and is safe for
// concurrent use. Each Rows it returns belongs to a single goroutine.
type Engine struct {
	catalog Catalog
	logger  *slog.Logger
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine over catalog.
func New(catalog Catalog, opts ...Option) *Engine {
	e := &Engine{
		catalog: catalog,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Plan validates q and resolves its sources. All structural errors are
// reported here as *QueryError; no collection is scanned.
func (e *Engine) Plan(q *queryir.Query) (*Plan, error) {
	p, err := buildPlan(e.catalog, q)
	if err != nil {
		e.logger.Debug("query rejected", "error", err)
		return nil, err
	}
	return p, nil
}

// Execute snapshots every source of p at one point in time and returns a
// lazy Rows over them. Later writes to the sources are not visible to the
// returned Rows.
func (e *Engine) Execute(ctx context.Context, p *Plan) (*Rows, error) {
	if p == nil {
		return nil, fmt.Errorf("execute: nil plan")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sources := make([]docdb.Source, len(p.levels))
	for i, l := range p.levels {
		sources[i] = l.source
	}
	snaps := e.catalog.SnapshotSources(sources...)
	sizes := make([]int, len(snaps))
	for i, s := range snaps {
		sizes[i] = len(s)
	}

	e.logger.Debug("query executing",
		"aliases", p.Aliases(),
		"sizes", sizes,
		"joins", len(p.levels)-1,
	)
	return newRows(ctx, p, snaps, e.logger), nil
}

// Query plans and executes q.
func (e *Engine) Query(ctx context.Context, q *queryir.Query) (*Rows, error) {
	p, err := e.Plan(q)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, p)
}

// QueryString parses a SELECT statement and executes it.
func (e *Engine) QueryString(ctx context.Context, stmt string) (*Rows, error) {
	q, err := queryir.ParseStatement(stmt)
	if err != nil {
		return nil, err
	}
	return e.Query(ctx, q)
}

// Collect drains rows into a slice and closes it.
func Collect(rows *Rows) ([]Row, error) {
	defer rows.Close()
	out := []Row{}
	for rows.Next() {
		out = append(out, rows.Row())
	}
	return out, rows.Err()
}
