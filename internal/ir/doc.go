// Package ir is the input instruction graph consumed by the specializer.
//
// A Program holds interned string constants, globals, external function
// declarations and functions. A function has one entry block; every block
// holds straight-line instructions and exactly one terminator. Blocks are
// pure: an instruction may only read the block's parameters and registers
// defined earlier in the same block. Values cross block boundaries only
// through jump arguments.
//
// All identifiers in this package carry the id.IR context.
//
// Key constraints:
//   - every instruction and terminator implements isa.Instruction[id.IR]
//   - numbers are int64; there are no floats
//   - iteration helpers (SortedFunctions, SortedBlocks, ...) return
//     identifiers in ascending order so every consumer is deterministic
package ir
