package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ReadCollections returns all collection definitions ordered by name.
// Returns an empty slice (not nil) when there are none.
func (s *Store) ReadCollections(ctx context.Context) ([]CollectionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, schema
		FROM collections
		ORDER BY name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query collections: %w", err)
	}
	defer rows.Close()

	collections := []CollectionRecord{}
	for rows.Next() {
		var rec CollectionRecord
		if err := rows.Scan(&rec.Name, &rec.Schema); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		collections = append(collections, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collections: %w", err)
	}

	return collections, nil
}

// ReadDocument retrieves a single document.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadDocument(ctx context.Context, collection, id string) (DocumentRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT collection, id, seq, rev, body
		FROM documents
		WHERE collection = ? AND id = ?
	`, collection, id)

	var rec DocumentRecord
	if err := row.Scan(&rec.Collection, &rec.ID, &rec.Seq, &rec.Rev, &rec.Body); err != nil {
		return DocumentRecord{}, err
	}
	return rec, nil
}

// ScanDocuments returns every document of a collection in insertion order:
// ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Bodies are returned undecoded so that one corrupt row cannot fail the
// whole scan.
func (s *Store) ScanDocuments(ctx context.Context, collection string) ([]DocumentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT collection, id, seq, rev, body
		FROM documents
		WHERE collection = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, collection)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	docs := []DocumentRecord{}
	for rows.Next() {
		rec, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	return docs, nil
}

// MaxSeq returns the highest stored seq, or 0 for an empty store.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM documents`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("query max seq: %w", err)
	}
	return seq.Int64, nil
}

func scanDocument(rows *sql.Rows) (DocumentRecord, error) {
	var rec DocumentRecord
	if err := rows.Scan(&rec.Collection, &rec.ID, &rec.Seq, &rec.Rev, &rec.Body); err != nil {
		return DocumentRecord{}, fmt.Errorf("scan document: %w", err)
	}
	return rec, nil
}
