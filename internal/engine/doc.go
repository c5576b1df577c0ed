// Package engine implements the symbolic execution engine.
//
// The engine explores a program's call graph under abstract argument types
// and memoizes one Invocation per (function, entry block, argument type
// signature). Each Invocation records, per explored block, the joined
// entry types, the type of every register, the specialization each call
// was bound to and which branch arms were taken. The assembler consumes
// these results through AllFnInvocations.
//
// ARCHITECTURE:
//
// Specializations:
// A call computes the signature of its argument types and looks it up in
// the memo table. A Complete entry is reused. An entry on the call stack
// is recursion: the caller receives the entry's provisional outcome,
// initially Never. When the entry completes with a different outcome than
// the one handed out, its body is explored again with the refined
// assumption and the memo entries that consumed the old one are dropped.
//
// Blocks:
// Within one specialization every block has one entry state, the join of
// all edges reaching it. Blocks run from a worklist until no entry state
// changes. A conditional on an exact boolean follows one arm only.
//
// Guards:
//   - More than MaxDepth nested specializations of one function fail with
//     DIVERGENT_SPECIALIZATION.
//   - Every executed instruction costs one step; running out fails with
//     BUDGET_EXCEEDED.
//
// The engine is single-threaded. Determinism comes from visiting blocks
// and joining returns in identifier order, never in map order.
package engine
