package ir

// Version constants for the on-disk format and engine.
const (
	// FormatVersion is the persisted document format version.
	FormatVersion = "1"

	// EngineVersion is the joindb engine version.
	EngineVersion = "0.1.0"
)
