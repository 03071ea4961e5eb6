package docdb

import "github.com/roach88/joindb/internal/ir"

// Document is a stored document as seen by readers.
//
// Body is owned by the store and must be treated as read-only. Writers never
// mutate a body in place; they replace the whole entry.
type Document struct {
	ID         string
	Collection string
	Seq        int64  // logical insertion order, database-wide
	Rev        string // content digest of Body
	Body       ir.IRObject
}

// Entry is one slot of a collection snapshot.
//
// A non-nil Err marks a corrupt entry: its ID and Seq are known but its body
// could not be trusted. Queries skip corrupt entries and report them.
type Entry struct {
	Document
	Err error
}

// Corrupt reports whether the entry failed to load.
func (e Entry) Corrupt() bool {
	return e.Err != nil
}

// Snapshot is an immutable view of a data source at one instant.
// Iteration order is ascending Seq.
type Snapshot []Entry

// Source is anything a query alias can be bound to.
//
// Snapshot must be cheap and must never observe later writes.
type Source interface {
	Name() string
	Snapshot() Snapshot
}

// Binding associates a query-scoped alias with a data source.
type Binding struct {
	Alias  string
	Source Source
}
