package engine

import (
	"errors"
	"fmt"
)

// QueryError represents a query rejected at plan time.
//
// Every QueryError is returned before any collection is scanned, so a
// malformed query never observes data.
type QueryError struct {
	// Code identifies the error category.
	Code QueryErrorCode

	// Message is a human-readable description.
	Message string

	// Alias identifies the offending alias, when there is one.
	Alias string

	// Collection identifies the offending collection, when there is one.
	Collection string

	// Err is the underlying cause, if any.
	Err error
}

// QueryErrorCode categorizes plan-time errors.
type QueryErrorCode string

const (
	// ErrCodeUnknownCollection indicates a source names no collection.
	ErrCodeUnknownCollection QueryErrorCode = "UNKNOWN_COLLECTION"

	// ErrCodeUnknownAlias indicates an expression references an alias that
	// is not bound in its scope.
	ErrCodeUnknownAlias QueryErrorCode = "UNKNOWN_ALIAS"

	// ErrCodeDuplicateAlias indicates two sources share an alias.
	ErrCodeDuplicateAlias QueryErrorCode = "DUPLICATE_ALIAS"

	// ErrCodeMalformedPredicate indicates a structurally invalid query:
	// nil nodes, a missing ON clause, or an empty selection list.
	ErrCodeMalformedPredicate QueryErrorCode = "MALFORMED_PREDICATE"

	// ErrCodeTypeMismatch indicates an ordering comparison against a literal
	// that has no order.
	ErrCodeTypeMismatch QueryErrorCode = "TYPE_MISMATCH"

	// ErrCodeDuplicateResultKey indicates two selections share an output key.
	ErrCodeDuplicateResultKey QueryErrorCode = "DUPLICATE_RESULT_KEY"
)

// Error implements the error interface.
func (e *QueryError) Error() string {
	switch {
	case e.Alias != "" && e.Collection != "":
		return fmt.Sprintf("%s: %s (alias=%s, collection=%s)", e.Code, e.Message, e.Alias, e.Collection)
	case e.Alias != "":
		return fmt.Sprintf("%s: %s (alias=%s)", e.Code, e.Message, e.Alias)
	case e.Collection != "":
		return fmt.Sprintf("%s: %s (collection=%s)", e.Code, e.Message, e.Collection)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// CodeOf returns the QueryErrorCode of err, if err is or wraps a QueryError.
func CodeOf(err error) (QueryErrorCode, bool) {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Code, true
	}
	return "", false
}

func hasCode(err error, code QueryErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// IsUnknownCollection returns true if the error is an unknown collection error.
// Uses errors.As to handle wrapped errors.
func IsUnknownCollection(err error) bool {
	return hasCode(err, ErrCodeUnknownCollection)
}

// IsUnknownAlias returns true if the error is an unknown alias error.
func IsUnknownAlias(err error) bool {
	return hasCode(err, ErrCodeUnknownAlias)
}

// IsDuplicateAlias returns true if the error is a duplicate alias error.
func IsDuplicateAlias(err error) bool {
	return hasCode(err, ErrCodeDuplicateAlias)
}

// IsMalformedPredicate returns true if the error is a malformed query error.
func IsMalformedPredicate(err error) bool {
	return hasCode(err, ErrCodeMalformedPredicate)
}

// IsTypeMismatch returns true if the error is a type mismatch error.
func IsTypeMismatch(err error) bool {
	return hasCode(err, ErrCodeTypeMismatch)
}

// IsDuplicateResultKey returns true if the error is a duplicate result key error.
func IsDuplicateResultKey(err error) bool {
	return hasCode(err, ErrCodeDuplicateResultKey)
}

func malformed(format string, args ...any) *QueryError {
	return &QueryError{Code: ErrCodeMalformedPredicate, Message: fmt.Sprintf(format, args...)}
}

func unknownAlias(alias, format string, args ...any) *QueryError {
	return &QueryError{Code: ErrCodeUnknownAlias, Message: fmt.Sprintf(format, args...), Alias: alias}
}
