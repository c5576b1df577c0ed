// Package store persists compilation reports in SQLite.
//
// A report is one run of the compiler over a program description:
//   - Runs: the program fingerprint, entry point, argument types, options and
//     the result (outcome and assembled text, or the error code)
//   - Specializations: every function specialization the engine discovered,
//     in discovery order
//   - Blocks: the explored blocks of each specialization with their joined
//     parameter types and fixpoint visit counts
//
// # Ordering
//
// Runs get a logical seq on insert; every query orders by seq and then by
// id COLLATE BINARY, so listings do not depend on wall time or insertion
// races. Run identifiers are UUIDv7.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON: deleting a run deletes its specializations and blocks
//
// Argument lists and options are stored as canonical JSON (package canon),
// and program and outcome fingerprints are domain-separated SHA-256 hashes.
package store
