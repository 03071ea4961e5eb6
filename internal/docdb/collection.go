package docdb

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/roach88/joindb/internal/ir"
	"github.com/roach88/joindb/internal/store"
)

// Collection is a named set of documents keyed by ID.
//
// Thread-safety: all methods are safe for concurrent use. Readers obtain a
// Snapshot and never hold the lock while iterating.
//
// Copy-on-write: appends reuse the backing array past the length any
// snapshot can see; replacements and deletes copy the slice first.
type Collection struct {
	db     *Database
	name   string
	schema string
	valid  *gojsonschema.Schema

	mu      sync.RWMutex
	entries []Entry
	index   map[string]int
}

func newCollection(db *Database, name, schema string) (*Collection, error) {
	c := &Collection{
		db:     db,
		name:   name,
		schema: schema,
		index:  make(map[string]int),
	}
	if strings.TrimSpace(schema) != "" {
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
		if err != nil {
			return nil, fmt.Errorf("compile schema for %q: %w", name, err)
		}
		c.valid = compiled
	}
	return c, nil
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// Schema returns the JSON Schema source, or "" when unconstrained.
func (c *Collection) Schema() string {
	return c.schema
}

// Len returns the number of documents, corrupt entries included.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Snapshot returns the current contents in insertion order.
func (c *Collection) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot(c.entries[:len(c.entries):len(c.entries)])
}

// Get returns the entry stored under id.
func (c *Collection) Get(id string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[id]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// Put stores body under id and returns the id used.
//
// An empty id is replaced by a generated one. Storing an existing id
// replaces that document but keeps its position in iteration order.
// The body is deep-copied, so the caller may reuse it.
func (c *Collection) Put(ctx context.Context, id string, body ir.IRObject) (string, error) {
	if body == nil {
		return "", &CollectionError{Collection: c.name, Err: fmt.Errorf("%w: nil body", ErrInvalidDocument)}
	}
	body = body.Clone()

	rev, err := ir.DocumentDigest(body)
	if err != nil {
		return "", &CollectionError{Collection: c.name, Err: fmt.Errorf("%w: %v", ErrInvalidDocument, err)}
	}
	if err := c.validate(body); err != nil {
		return "", &CollectionError{Collection: c.name, Err: err}
	}
	if id == "" {
		id = c.db.ids.Generate()
	}

	c.db.commit.RLock()
	defer c.db.commit.RUnlock()
	c.mu.Lock()
	defer c.mu.Unlock()

	i, exists := c.index[id]
	seq := int64(0)
	if exists {
		seq = c.entries[i].Seq
	} else {
		seq = c.db.clock.Next()
	}

	doc := Document{ID: id, Collection: c.name, Seq: seq, Rev: rev, Body: body}
	if err := c.db.persistDocument(ctx, doc); err != nil {
		return "", err
	}

	if exists {
		c.entries = slices.Clone(c.entries)
		c.entries[i] = Entry{Document: doc}
	} else {
		c.index[id] = len(c.entries)
		c.entries = append(c.entries, Entry{Document: doc})
	}

	c.db.logger.Debug("document stored",
		"collection", c.name,
		"id", id,
		"seq", seq,
		"replaced", exists,
	)
	return id, nil
}

// Delete removes the document stored under id.
// Returns false if no such document exists.
func (c *Collection) Delete(ctx context.Context, id string) (bool, error) {
	c.db.commit.RLock()
	defer c.db.commit.RUnlock()
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[id]
	if !ok {
		return false, nil
	}
	if err := c.db.unpersistDocument(ctx, c.name, id); err != nil {
		return false, err
	}

	c.entries = slices.Delete(slices.Clone(c.entries), i, i+1)
	c.reindex()

	c.db.logger.Debug("document deleted", "collection", c.name, "id", id)
	return true, nil
}

// load inserts an entry read from persistent storage, keeping its seq.
// Entries must arrive in seq order.
func (c *Collection) load(e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index[e.ID] = len(c.entries)
	c.entries = append(c.entries, e)
}

func (c *Collection) reindex() {
	clear(c.index)
	for i, e := range c.entries {
		c.index[e.ID] = i
	}
}

func (c *Collection) validate(body ir.IRObject) error {
	if c.valid == nil {
		return nil
	}
	result, err := c.valid.Validate(gojsonschema.NewGoLoader(ir.ToGo(body)))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrSchemaViolation, strings.Join(msgs, "; "))
}

// toRecord converts a document into its stored form.
func toRecord(doc Document) (store.DocumentRecord, error) {
	body, err := store.EncodeBody(doc.Body)
	if err != nil {
		return store.DocumentRecord{}, err
	}
	return store.DocumentRecord{
		Collection: doc.Collection,
		ID:         doc.ID,
		Seq:        doc.Seq,
		Rev:        doc.Rev,
		Body:       body,
	}, nil
}
