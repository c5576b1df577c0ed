// Package assembler turns the specializations discovered by the engine into
// a monomorphized program.
//
// Every specialization becomes one function with a fresh identifier. The
// function identifier table is filled before any body is emitted, so calls
// resolve to sibling specializations regardless of assembly order. Bodies
// are assembled breadth-first from the entry block along the edges the
// engine actually explored:
//
//   - values of simple type (runtime handle, exact integer, exact boolean,
//     exact string) are never passed; block and function parameters of
//     simple type are dropped and the value is rematerialized right before
//     its first use in a block
//   - arguments of external calls are always materialized, immediately
//     before the call
//   - a conditional jump on a known boolean becomes an unconditional jump
//   - a call that never returns is followed by an unreachable terminator
//
// Every assembled block passes isa.CheckBlock: each register it reads is a
// parameter, an earlier definition or a materialization.
package assembler
