package store

import (
	"context"
	"fmt"
)

// CollectionRecord is a persisted collection definition.
type CollectionRecord struct {
	Name   string
	Schema string // JSON Schema source, empty when unconstrained
}

// DocumentRecord is a persisted document row.
// Body is canonical JSON text; Rev is the digest of that body.
type DocumentRecord struct {
	Collection string
	ID         string
	Seq        int64
	Rev        string
	Body       string
}

// WriteCollection creates or updates a collection definition.
func (s *Store) WriteCollection(ctx context.Context, rec CollectionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO collections (name, schema)
		VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET schema = excluded.schema
	`, rec.Name, rec.Schema)
	if err != nil {
		return fmt.Errorf("write collection %q: %w", rec.Name, err)
	}
	return nil
}

// WriteDocument inserts or replaces a document.
// Replacing keeps the caller-supplied seq, so callers decide whether a
// replacement moves in iteration order.
//
// Note: The collection must exist (foreign key constraint).
func (s *Store) WriteDocument(ctx context.Context, rec DocumentRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, seq, rev, body)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			seq = excluded.seq,
			rev = excluded.rev,
			body = excluded.body
	`, rec.Collection, rec.ID, rec.Seq, rec.Rev, rec.Body)
	if err != nil {
		return fmt.Errorf("write document %s/%s: %w", rec.Collection, rec.ID, err)
	}
	return nil
}

// DeleteDocument removes a document. Returns false if it did not exist.
func (s *Store) DeleteDocument(ctx context.Context, collection, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM documents WHERE collection = ? AND id = ?
	`, collection, id)
	if err != nil {
		return false, fmt.Errorf("delete document %s/%s: %w", collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete document %s/%s: %w", collection, id, err)
	}
	return n > 0, nil
}
