package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/joindb/internal/docdb"
	"github.com/roach88/joindb/internal/ir"
	"github.com/roach88/joindb/internal/queryir"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testDoc struct {
	id   string
	body ir.IRObject
}

func employee(first, last, dept string) ir.IRObject {
	return ir.IRObject{
		"type":       ir.IRString("employee"),
		"firstname":  ir.IRString(first),
		"lastname":   ir.IRString(last),
		"department": ir.IRString(dept),
	}
}

func department(code, name string) ir.IRObject {
	return ir.IRObject{
		"type": ir.IRString("department"),
		"code": ir.IRString(code),
		"name": ir.IRString(name),
	}
}

// newCompanyDB builds employees and departments collections. Bob Stray's
// department 9999 does not exist.
func newCompanyDB(t *testing.T) *docdb.Database {
	t.Helper()
	db := docdb.New(docdb.WithLogger(quietLogger()))
	fill(t, db, "departments",
		testDoc{"d1000", department("1000", "Engineering")},
		testDoc{"d2000", department("2000", "Sales")},
	)
	fill(t, db, "employees",
		testDoc{"e1", employee("John", "Smith", "1000")},
		testDoc{"e2", employee("Jane", "Doe", "2000")},
		testDoc{"e3", employee("Bob", "Stray", "9999")},
		testDoc{"e4", employee("Ann", "Lee", "1000")},
	)
	return db
}

func fill(t *testing.T, db *docdb.Database, collection string, docs ...testDoc) *docdb.Collection {
	t.Helper()
	ctx := context.Background()
	c, err := db.Collection(collection)
	if err != nil {
		c, err = db.CreateCollection(ctx, collection, "")
		require.NoError(t, err)
	}
	for _, d := range docs {
		_, err := c.Put(ctx, d.id, d.body)
		require.NoError(t, err)
	}
	return c
}

func newTestEngine(catalog Catalog) *Engine {
	return New(catalog, WithLogger(quietLogger()))
}

// queryObjects runs q and returns each row as an unordered object.
func queryObjects(t *testing.T, eng *Engine, q *queryir.Query) []ir.IRObject {
	t.Helper()
	rows, err := eng.Query(context.Background(), q)
	require.NoError(t, err)
	collected, err := Collect(rows)
	require.NoError(t, err)

	out := make([]ir.IRObject, len(collected))
	for i, r := range collected {
		out[i] = r.Object()
	}
	return out
}

func str(s string) ir.IRString { return ir.IRString(s) }

// spyCatalog counts snapshots taken through it.
type spyCatalog struct {
	inner     Catalog
	snapshots int
}

func (c *spyCatalog) Bind(collection, alias string) (docdb.Binding, error) {
	b, err := c.inner.Bind(collection, alias)
	if err != nil {
		return docdb.Binding{}, err
	}
	b.Source = &spySource{Source: b.Source, catalog: c}
	return b, nil
}

func (c *spyCatalog) SnapshotSources(sources ...docdb.Source) []docdb.Snapshot {
	return c.inner.SnapshotSources(sources...)
}

type spySource struct {
	docdb.Source
	catalog *spyCatalog
}

func (s *spySource) Snapshot() docdb.Snapshot {
	s.catalog.snapshots++
	return s.Source.Snapshot()
}

// staticSource serves a fixed snapshot, corrupt entries included.
type staticSource struct {
	name    string
	entries docdb.Snapshot
}

func (s staticSource) Name() string             { return s.name }
func (s staticSource) Snapshot() docdb.Snapshot { return s.entries }

type staticCatalog map[string]docdb.Source

func (c staticCatalog) Bind(collection, alias string) (docdb.Binding, error) {
	src, ok := c[collection]
	if !ok {
		return docdb.Binding{}, &docdb.CollectionError{Collection: collection, Err: docdb.ErrUnknownCollection}
	}
	return docdb.Binding{Alias: alias, Source: src}, nil
}

func (c staticCatalog) SnapshotSources(sources ...docdb.Source) []docdb.Snapshot {
	out := make([]docdb.Snapshot, len(sources))
	for i, src := range sources {
		out[i] = src.Snapshot()
	}
	return out
}

// writingSource puts a document into the database the first time it is
// snapshotted, after taking its own snapshot. It gives the write a moment
// to land before returning, so an unsynchronized snapshot of a later
// source would observe it.
type writingSource struct {
	docdb.Source
	once  *sync.Once
	write func()
	done  chan struct{}
}

func (s writingSource) Snapshot() docdb.Snapshot {
	snap := s.Source.Snapshot()
	s.once.Do(func() {
		go func() {
			defer close(s.done)
			s.write()
		}()
		select {
		case <-s.done:
		case <-time.After(50 * time.Millisecond):
		}
	})
	return snap
}

// writingCatalog wraps one collection of a database in a writingSource.
type writingCatalog struct {
	*docdb.Database
	collection string
	source     writingSource
}

func (c *writingCatalog) Bind(collection, alias string) (docdb.Binding, error) {
	b, err := c.Database.Bind(collection, alias)
	if err != nil || collection != c.collection {
		return b, err
	}
	c.source.Source = b.Source
	b.Source = c.source
	return b, nil
}
