package docdb

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/joindb/internal/store"
)

const (
	// DefaultCollection always exists and cannot be dropped.
	DefaultCollection = "_default"

	// DatabaseSource names the read-only source that spans every collection.
	DatabaseSource = "*"
)

// Database owns a set of named collections.
//
// Thread-safety: Database is safe for concurrent use. The collection map is
// guarded separately from each collection's contents.
//
// commit orders writes against multi-source snapshots. Put and Delete hold
// it shared, SnapshotSources holds it exclusively. It is always acquired
// before a collection's own lock.
type Database struct {
	ids    IDGenerator
	clock  *Clock
	logger *slog.Logger
	store  *store.Store // nil when purely in-memory

	commit sync.RWMutex

	mu          sync.RWMutex
	collections map[string]*Collection
}

// Option configures a Database.
type Option func(*Database)

// WithIDGenerator sets the generator used for documents stored without an ID.
//
// Default: UUIDv7Generator
func WithIDGenerator(g IDGenerator) Option {
	return func(db *Database) {
		db.ids = g
	}
}

// WithClock sets the logical clock that stamps insertion order.
func WithClock(c *Clock) Option {
	return func(db *Database) {
		db.clock = c
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(db *Database) {
		db.logger = l
	}
}

// New creates an in-memory database holding only the default collection.
// Use Open to back it with SQLite.
func New(opts ...Option) *Database {
	db := &Database{
		ids:         UUIDv7Generator{},
		clock:       NewClock(),
		logger:      slog.Default(),
		collections: make(map[string]*Collection),
	}
	for _, opt := range opts {
		opt(db)
	}

	// An empty schema always compiles.
	def, _ := newCollection(db, DefaultCollection, "")
	db.collections[DefaultCollection] = def
	return db
}

// CreateCollection adds a collection, optionally constrained by a JSON
// Schema. Fails with ErrCollectionExists if the name is taken.
func (db *Database) CreateCollection(ctx context.Context, name, schema string) (*Collection, error) {
	if name == "" || name == DatabaseSource {
		return nil, &CollectionError{Collection: name, Err: fmt.Errorf("%w: reserved or empty name", ErrInvalidDocument)}
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.collections[name]; ok {
		return nil, &CollectionError{Collection: name, Err: ErrCollectionExists}
	}
	c, err := newCollection(db, name, schema)
	if err != nil {
		return nil, &CollectionError{Collection: name, Err: err}
	}
	if db.store != nil {
		if err := db.store.WriteCollection(ctx, store.CollectionRecord{Name: name, Schema: schema}); err != nil {
			return nil, &CollectionError{Collection: name, Err: err}
		}
	}
	db.collections[name] = c

	db.logger.Debug("collection created", "collection", name, "schema", schema != "")
	return c, nil
}

// Collection returns the named collection.
// Fails with ErrUnknownCollection if it does not exist.
func (db *Database) Collection(name string) (*Collection, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	c, ok := db.collections[name]
	if !ok {
		return nil, &CollectionError{Collection: name, Err: ErrUnknownCollection}
	}
	return c, nil
}

// Collections returns all collection names in sorted order.
func (db *Database) Collections() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()

	names := make([]string, 0, len(db.collections))
	for name := range db.collections {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Source resolves a name to something a query can scan: a collection, or
// the database-wide view for DatabaseSource.
func (db *Database) Source(name string) (Source, error) {
	if name == DatabaseSource {
		return databaseView{db: db}, nil
	}
	return db.Collection(name)
}

// Bind assigns alias to the named source. No data is copied; the source is
// snapshotted when a query executes.
func (db *Database) Bind(collection, alias string) (Binding, error) {
	if alias == "" {
		return Binding{}, fmt.Errorf("bind %q: empty alias", collection)
	}
	src, err := db.Source(collection)
	if err != nil {
		return Binding{}, err
	}
	return Binding{Alias: alias, Source: src}, nil
}

// SnapshotSources snapshots every source at one point in time: no Put or
// Delete on db runs while they are taken. Sources with the same name are
// snapshotted once and share the result, so a self-join sees one state.
func (db *Database) SnapshotSources(sources ...Source) []Snapshot {
	db.commit.Lock()
	defer db.commit.Unlock()

	out := make([]Snapshot, len(sources))
	taken := make(map[string]Snapshot, len(sources))
	for i, src := range sources {
		snap, ok := taken[src.Name()]
		if !ok {
			snap = src.Snapshot()
			taken[src.Name()] = snap
		}
		out[i] = snap
	}
	return out
}

// Store returns the attached SQLite store, or nil.
func (db *Database) Store() *store.Store {
	return db.store
}

func (db *Database) persistDocument(ctx context.Context, doc Document) error {
	if db.store == nil {
		return nil
	}
	rec, err := toRecord(doc)
	if err != nil {
		return &CollectionError{Collection: doc.Collection, Err: err}
	}
	if err := db.store.WriteDocument(ctx, rec); err != nil {
		return &CollectionError{Collection: doc.Collection, Err: err}
	}
	return nil
}

func (db *Database) unpersistDocument(ctx context.Context, collection, id string) error {
	if db.store == nil {
		return nil
	}
	if _, err := db.store.DeleteDocument(ctx, collection, id); err != nil {
		return &CollectionError{Collection: collection, Err: err}
	}
	return nil
}

// databaseView merges every collection into one source ordered by Seq.
type databaseView struct {
	db *Database
}

func (v databaseView) Name() string {
	return DatabaseSource
}

func (v databaseView) Snapshot() Snapshot {
	v.db.mu.RLock()
	colls := make([]*Collection, 0, len(v.db.collections))
	for _, c := range v.db.collections {
		colls = append(colls, c)
	}
	v.db.mu.RUnlock()

	var merged Snapshot
	for _, c := range colls {
		merged = append(merged, c.Snapshot()...)
	}
	slices.SortFunc(merged, func(a, b Entry) int {
		return cmp.Or(cmp.Compare(a.Seq, b.Seq), cmp.Compare(a.Collection, b.Collection), cmp.Compare(a.ID, b.ID))
	})
	return merged
}
