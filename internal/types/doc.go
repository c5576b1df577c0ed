// Package types is the abstract value domain of the specializer.
//
// A RegisterType is one point of the lattice:
//
//	exact value  ⊑  general kind  ⊑  Any
//	int 5           number
//	bool true       boolean
//	string "a"      bytes
//
// plus trivial items (runtime handle, null, undefined, empty), function
// pointers and records. A record type names an Allocation; the structure of
// the record lives in the TypeBag as an append-only history of Shapes, the
// last entry being the current shape. Shapes are immutable and stored once
// in an Arena shared by every bag of one engine; forking a bag copies only
// the register map and the per-allocation history pointers.
//
// Joins: when two control-flow paths meet, their types are joined under a
// JoinPolicy. JoinFailFast rejects any disagreement on a register with a
// JoinConflictError, and records disagreeing or one-sided record keys as
// conflicts that fail when read. JoinWiden walks up the lattice instead.
//
// Simple values (runtime handle, exact int, exact bool, exact string) are
// cheap to rebuild and never need to be passed between blocks or functions.
//
// Single-writer: an Arena and the bags built on it belong to one engine.
package types
