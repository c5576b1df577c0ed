// Package id provides phase-scoped integer identifiers.
//
// Every identifier is a small integer tagged with two zero-sized type
// parameters: the Kind of thing it names (register, block, function, ...)
// and the Context (compiler phase) that minted it. Identifiers from
// different contexts are distinct Go types, so looking up an IR register in
// a table keyed by assembler registers does not compile:
//
//	var m map[id.Register[id.Asm]]string
//	r := id.New[id.RegisterKind, id.IR](3)
//	_ = m[r] // compile error: cannot use r (Register[IR]) as Register[Asm]
//
// Crossing a phase boundary is always explicit, either through a
// retag.Map (fresh numbering) or through MapContext when both phases are
// known to share numbering by construction.
//
// INVARIANTS:
//   - Numeric equality across contexts carries no meaning.
//   - Identifiers are minted monotonically by a Counter and never reused.
package id
