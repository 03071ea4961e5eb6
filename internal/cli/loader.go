package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cuelang.org/go/cue/token"

	"github.com/roach88/joindb/internal/compiler"
	"github.com/roach88/joindb/internal/docdb"
	"github.com/roach88/joindb/internal/store"
)

// LoadMode controls how errors are handled during query loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadError represents an error that occurred while loading queries or
// opening a database, tagged with a CLI error code.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadQueries loads and compiles CUE query definitions from path.
// If mode is LoadModeFailFast, only the first error is returned.
// A nil result means nothing could be loaded.
func LoadQueries(path string, mode LoadMode) (*compiler.LoadResult, []error) {
	result, errs := compiler.LoadQueries(path)

	converted := make([]error, 0, len(errs))
	for _, err := range errs {
		converted = append(converted, convertLoadError(err))
		if mode == LoadModeFailFast {
			break
		}
	}
	return result, converted
}

// convertLoadError converts a compiler error to a LoadError with position info.
func convertLoadError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}

	var loadErr *compiler.LoadError
	if errors.As(err, &loadErr) {
		code := ErrCodeLoadFailed
		switch loadErr.Message {
		case "path not found":
			code = ErrCodeNotFound
		case "error scanning directory":
			code = ErrCodeScanError
		case "no CUE files found", "no queries found":
			code = ErrCodeNoFiles
		case "building CUE value":
			code = ErrCodeBuildFailed
		}
		return &LoadError{Code: code, Message: loadErr.Error()}
	}

	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// openDatabase opens the SQLite file at path and loads every collection.
// The caller closes the returned store.
func openDatabase(ctx context.Context, path string, logger *slog.Logger) (*docdb.Database, *store.Store, error) {
	if path == "" {
		return nil, nil, &LoadError{Code: ErrCodeNotFound, Message: "--db is required"}
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, nil, &LoadError{Code: ErrCodeDatabase, Message: err.Error()}
	}
	db, err := docdb.Open(ctx, st, docdb.WithLogger(logger))
	if err != nil {
		st.Close()
		return nil, nil, &LoadError{Code: ErrCodeDatabase, Message: err.Error()}
	}
	return db, st, nil
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files or queries found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // Document write error
	ErrCodeDatabase    = "E008" // Database open error
	ErrCodeParse       = "E009" // Statement does not parse
	ErrCodeQuery       = "E010" // Query rejected by the planner or failed
	ErrCodeUnknownName = "E011" // No query with that name

	// Query definition errors
	ErrCodeInvalidSelect = "E130" // Invalid select list
	ErrCodeInvalidFrom   = "E131" // Invalid from source
	ErrCodeInvalidJoin   = "E132" // Invalid join clause
	ErrCodeInvalidWhere  = "E133" // Invalid where predicate
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "select":
		return ErrCodeInvalidSelect
	case "from", "from.collection":
		return ErrCodeInvalidFrom
	case "join", "join.collection", "join.kind", "join.on":
		return ErrCodeInvalidJoin
	case "where":
		return ErrCodeInvalidWhere
	default:
		return ErrCodeGeneric
	}
}
