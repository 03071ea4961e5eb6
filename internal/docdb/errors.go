package docdb

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownCollection is returned when a collection name does not exist.
	ErrUnknownCollection = errors.New("unknown collection")

	// ErrCollectionExists is returned when creating a collection twice.
	ErrCollectionExists = errors.New("collection already exists")

	// ErrSchemaViolation is returned when a document fails the collection schema.
	ErrSchemaViolation = errors.New("document violates collection schema")

	// ErrInvalidDocument is returned for documents that cannot be stored,
	// such as a nil body or numbers without a JSON representation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrCorruptDocument marks a persisted document that could not be decoded
	// or whose digest does not match its body.
	ErrCorruptDocument = errors.New("corrupt document")
)

// CollectionError annotates a collection-level failure with the collection
// name. Use errors.Is against the sentinel errors above.
type CollectionError struct {
	Collection string
	Err        error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("collection %q: %v", e.Collection, e.Err)
}

func (e *CollectionError) Unwrap() error {
	return e.Err
}

// IsUnknownCollection reports whether err is or wraps ErrUnknownCollection.
func IsUnknownCollection(err error) bool {
	return errors.Is(err, ErrUnknownCollection)
}
