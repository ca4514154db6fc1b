// Package store provides SQLite-backed durable storage for the rewrite
// journal.
//
// Every application of the enforce pass to a function is recorded as:
//   - Runs: one row per function, with the printed IR and content hashes
//     before and after the pass
//   - Rewrites: one row per applied rewrite, keyed by (run_id, seq)
//
// # Ordering
//
// All ordering uses seq INTEGER (logical clock), NEVER timestamps. Queries
// include ORDER BY seq ASC so traces read back identically every time.
// GetLastSeq lets a new session continue numbering after the journal.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Content hashes come from ir.FunctionHash (RFC 8785 canonical JSON and
// SHA-256 with domain separation).
package store
