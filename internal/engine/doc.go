// Package engine implements the joindb join planner and executor.
//
// ARCHITECTURE:
//
// Plan, then execute:
// Engine.Plan validates a query against the catalog and fails fast with a
// *QueryError. Engine.Execute snapshots every bound source and returns a
// lazy *Rows. Nothing is scanned until Rows.Next is called.
//
// Nested-loop join:
// Sources form a left-deep chain. For each left row, the right source is
// scanned in iteration order and the ON predicate decides a match:
// - INNER emits matching pairs only
// - LEFT OUTER also emits the left row once, right alias unbound, when
//   nothing matched
// - CROSS emits every pair and takes no ON predicate
// WHERE filters complete rows after every join.
//
// Output order is the left source's order, then the right source's order
// for each left row. No indexes are used.
//
// Rows state machine:
//
//	Init → ScanningLeft ⇄ ProbingRight → Emitting → ... → Done
//
// CRITICAL PATTERNS:
//
// Missing is not null:
// An unbound alias makes every property read through it missing. Missing
// comparisons are Missing, Missing filters out, and missing selections are
// omitted from the row rather than set to null.
//
// Snapshot reads:
// Each Execute takes copy-on-write snapshots of all its sources at one
// point in time through Catalog.SnapshotSources, so a Rows never mixes
// document states from before and after a concurrent write.
//
// Degrade per row:
// A corrupt document is skipped and reported once per (alias, document) on
// Rows.Diagnostics. The query continues.
package engine
