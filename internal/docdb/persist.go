package docdb

import (
	"context"
	"fmt"

	"github.com/roach88/joindb/internal/ir"
	"github.com/roach88/joindb/internal/store"
)

// Open loads every collection from st and returns a database that writes
// through to it.
//
// A document whose body cannot be decoded, or whose digest does not match
// the stored rev, is loaded as a corrupt Entry instead of failing the load.
func Open(ctx context.Context, st *store.Store, opts ...Option) (*Database, error) {
	db := New(opts...)

	if err := st.WriteCollection(ctx, store.CollectionRecord{Name: DefaultCollection}); err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	records, err := st.ReadCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	corrupt := 0
	for _, rec := range records {
		c, ok := db.collections[rec.Name]
		if !ok {
			c, err = newCollection(db, rec.Name, rec.Schema)
			if err != nil {
				return nil, fmt.Errorf("open: %w", err)
			}
			db.collections[rec.Name] = c
		}

		docs, err := st.ScanDocuments(ctx, rec.Name)
		if err != nil {
			return nil, fmt.Errorf("open %q: %w", rec.Name, err)
		}
		for _, d := range docs {
			e := decodeEntry(d)
			if e.Corrupt() {
				corrupt++
				db.logger.Warn("corrupt document loaded",
					"collection", d.Collection,
					"id", d.ID,
					"error", e.Err,
				)
			}
			db.clock.Observe(d.Seq)
			c.load(e)
		}
	}

	db.store = st
	db.logger.Debug("database opened",
		"collections", len(db.collections),
		"seq", db.clock.Current(),
		"corrupt", corrupt,
	)
	return db, nil
}

func decodeEntry(rec store.DocumentRecord) Entry {
	e := Entry{Document: Document{
		ID:         rec.ID,
		Collection: rec.Collection,
		Seq:        rec.Seq,
		Rev:        rec.Rev,
	}}

	body, err := store.DecodeBody(rec.Body)
	if err != nil {
		e.Err = fmt.Errorf("%w: %v", ErrCorruptDocument, err)
		return e
	}
	digest, err := ir.DocumentDigest(body)
	if err != nil {
		e.Err = fmt.Errorf("%w: %v", ErrCorruptDocument, err)
		return e
	}
	if digest != rec.Rev {
		e.Err = fmt.Errorf("%w: digest mismatch", ErrCorruptDocument)
		return e
	}
	e.Body = body
	return e
}
