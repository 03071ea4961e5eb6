// Package ir provides the document value model for joindb.
//
// Documents are schemaless JSON-like mappings. Every value is one of the
// sealed IRValue types: IRNull, IRBool, IRInt, IRFloat, IRString, IRArray
// and IRObject. A property that does not exist is not a value at all; APIs
// that resolve paths report that through a boolean rather than IRNull.
//
// This package imports nothing internal. All other internal packages build
// on it, so it stays the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Null and missing are distinct (IRNull vs. ok == false)
//   - Canonical JSON (RFC 8785 ordering, NFC strings) is the only input to digests
//   - Numbers compare numerically across IRInt and IRFloat
package ir
