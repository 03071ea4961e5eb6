package store

import (
	"context"
	"path/filepath"
	"testing"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func writeTestCollection(t *testing.T, s *Store, name string) {
	t.Helper()
	if err := s.WriteCollection(context.Background(), CollectionRecord{Name: name}); err != nil {
		t.Fatalf("WriteCollection(%q) failed: %v", name, err)
	}
}

// writeTestDocument stores a body verbatim. Rev is left as a placeholder
// since the store never interprets it.
func writeTestDocument(t *testing.T, s *Store, collection, id string, seq int64, body string) {
	t.Helper()
	err := s.WriteDocument(context.Background(), DocumentRecord{
		Collection: collection,
		ID:         id,
		Seq:        seq,
		Rev:        "rev-" + id,
		Body:       body,
	})
	if err != nil {
		t.Fatalf("WriteDocument(%s/%s) failed: %v", collection, id, err)
	}
}
