package engine

import (
	"context"
	"iter"
	"log/slog"

	"github.com/roach88/joindb/internal/docdb"
	"github.com/roach88/joindb/internal/eval"
	"github.com/roach88/joindb/internal/ir"
	"github.com/roach88/joindb/internal/queryir"
)

// State is the execution state of a Rows iterator.
type State int

const (
	// StateInit: created, nothing read yet.
	StateInit State = iota
	// StateScanningLeft: advancing the FROM source.
	StateScanningLeft
	// StateProbingRight: advancing a joined source for the current left row.
	StateProbingRight
	// StateEmitting: a row is available from Row.
	StateEmitting
	// StateDone: exhausted, failed or closed. Terminal.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateScanningLeft:
		return "ScanningLeft"
	case StateProbingRight:
		return "ProbingRight"
	case StateEmitting:
		return "Emitting"
	case StateDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// Diagnostic records a document skipped during execution.
type Diagnostic struct {
	Alias      string
	Collection string
	DocumentID string
	Err        error
}

type diagKey struct {
	alias string
	id    string
}

// Rows is a lazy, single-pass iterator over query results.
//
// Rows reads from snapshots taken when the query was executed; writes made
// afterwards are never visible. It is not safe for concurrent use.
//
//	rows, err := eng.Query(ctx, q)
//	if err != nil { ... }
//	defer rows.Close()
//	for rows.Next() {
//		row := rows.Row()
//	}
//	if err := rows.Err(); err != nil { ... }
type Rows struct {
	ctx    context.Context
	plan   *Plan
	logger *slog.Logger

	snaps   []docdb.Snapshot
	row     *eval.RowContext
	pos     []int  // next candidate per level
	matched []bool // level produced a match for the current outer binding
	padded  []bool // left outer level already emitted its unmatched row
	cur     int

	state    State
	current  Row
	emitted  int
	err      error
	diags    []Diagnostic
	reported map[diagKey]struct{}
}

func newRows(ctx context.Context, p *Plan, snaps []docdb.Snapshot, logger *slog.Logger) *Rows {
	n := len(p.levels)
	return &Rows{
		ctx:      ctx,
		plan:     p,
		logger:   logger,
		snaps:    snaps,
		row:      eval.NewRowContext(p.Aliases()...),
		pos:      make([]int, n),
		matched:  make([]bool, n),
		padded:   make([]bool, n),
		state:    StateInit,
		reported: make(map[diagKey]struct{}),
	}
}

// State returns the current execution state.
func (r *Rows) State() State {
	return r.state
}

// Next advances to the next row. It returns false when the results are
// exhausted, the context is cancelled, or Rows was closed; check Err.
func (r *Rows) Next() bool {
	if r.state == StateDone {
		return false
	}
	if err := r.ctx.Err(); err != nil {
		r.err = err
		r.finish()
		return false
	}
	if r.state == StateInit {
		r.state = StateScanningLeft
	}

	if !r.advance() {
		r.finish()
		return false
	}
	r.current = r.project()
	r.emitted++
	r.state = StateEmitting
	return true
}

// Row returns the current row. Valid only after Next returned true.
func (r *Rows) Row() Row {
	return r.current
}

// Err returns the error that stopped iteration, if any.
func (r *Rows) Err() error {
	return r.err
}

// Diagnostics returns the documents skipped so far, one entry per
// (alias, document).
func (r *Rows) Diagnostics() []Diagnostic {
	return r.diags
}

// Close ends iteration early. It is safe to call more than once.
func (r *Rows) Close() error {
	if r.state != StateDone {
		r.finish()
	}
	return nil
}

// All returns an iterator over the remaining rows. A failure is yielded
// once as the final pair. Breaking out of the loop closes Rows.
func (r *Rows) All() iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		defer r.Close()
		for r.Next() {
			if !yield(r.Row(), nil) {
				return
			}
		}
		if r.err != nil {
			yield(Row{}, r.err)
		}
	}
}

// advance moves the join cursor to the next complete row that passes
// WHERE. Levels deeper than the one being advanced are always unbound.
func (r *Rows) advance() bool {
	last := len(r.plan.levels) - 1
	i := r.cur
	for i >= 0 {
		if i == 0 {
			r.state = StateScanningLeft
		} else {
			r.state = StateProbingRight
		}

		if !r.step(i) {
			i--
			continue
		}
		if i < last {
			i++
			r.reset(i)
			continue
		}
		if r.plan.where != nil && eval.Test(r.plan.where, r.row) != eval.True {
			continue
		}
		r.cur = i
		return true
	}
	r.cur = 0
	return false
}

// step binds the next candidate at level i, given levels below i are bound.
// For a left outer level with no match it yields one row with the level
// unbound before reporting exhaustion.
func (r *Rows) step(i int) bool {
	lv := r.plan.levels[i]
	snap := r.snaps[i]

	for r.pos[i] < len(snap) {
		e := &snap[r.pos[i]]
		r.pos[i]++
		if e.Corrupt() {
			r.report(lv, e)
			continue
		}
		r.row.Bind(lv.alias, &e.Document)
		if i == 0 || lv.kind == queryir.JoinCross {
			return true
		}
		if eval.Test(lv.on, r.row) == eval.True {
			r.matched[i] = true
			return true
		}
	}

	r.row.Unbind(lv.alias)
	if i > 0 && lv.kind == queryir.JoinLeftOuter && !r.matched[i] && !r.padded[i] {
		r.padded[i] = true
		return true
	}
	return false
}

func (r *Rows) reset(i int) {
	r.pos[i] = 0
	r.matched[i] = false
	r.padded[i] = false
	r.row.Unbind(r.plan.levels[i].alias)
}

func (r *Rows) project() Row {
	out := Row{
		keys:   make([]string, 0, len(r.plan.projections)),
		values: make([]ir.IRValue, 0, len(r.plan.projections)),
	}
	for _, pr := range r.plan.projections {
		var (
			v  ir.IRValue
			ok bool
		)
		if pr.all != "" {
			var doc *docdb.Document
			doc, ok = r.row.Doc(pr.all)
			if ok {
				v = doc.Body.Clone()
			}
		} else {
			v, ok = eval.Value(pr.expr, r.row)
			if ok {
				v = ir.Clone(v)
			}
		}
		if !ok {
			continue
		}
		out.keys = append(out.keys, pr.key)
		out.values = append(out.values, v)
	}
	return out
}

func (r *Rows) report(lv level, e *docdb.Entry) {
	key := diagKey{alias: lv.alias, id: e.ID}
	if _, seen := r.reported[key]; seen {
		return
	}
	r.reported[key] = struct{}{}
	r.diags = append(r.diags, Diagnostic{
		Alias:      lv.alias,
		Collection: e.Collection,
		DocumentID: e.ID,
		Err:        e.Err,
	})
	r.logger.Warn("skipping corrupt document",
		"alias", lv.alias,
		"collection", e.Collection,
		"id", e.ID,
		"error", e.Err,
	)
}

func (r *Rows) finish() {
	for _, lv := range r.plan.levels {
		r.row.Unbind(lv.alias)
	}
	r.current = Row{}
	r.state = StateDone
	r.logger.Debug("query finished",
		"rows", r.emitted,
		"skipped", len(r.diags),
		"error", r.err,
	)
}
