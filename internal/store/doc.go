// Package store provides SQLite-backed persistence for joindb collections.
//
// The store is a plain record store: it knows collections (name + optional
// JSON schema) and documents (collection, id, seq, rev, body). Query
// evaluation never happens here; the document database loads records into
// memory and the engine queries those snapshots.
//
// # Critical Patterns
//
// Deterministic reads
//   - Document scans are ordered by seq ASC, id ASC COLLATE BINARY
//   - seq is the logical insertion clock, never a timestamp
//
// Canonical bodies
//   - body holds canonical JSON (ir.MarshalCanonical)
//   - rev is ir.DocumentDigest(body); a mismatch on load marks the row corrupt
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
