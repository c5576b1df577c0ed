// Package backend lowers an assembled program into the reduced form handed
// to native code generation.
//
// At this boundary dynamic typing is gone. Every value has a machine type
// (a word, a fixed-width integer, an opaque struct or a pointer) and the
// instruction set is cut down to four operations: load a constant's
// address, load a constant's length, call and return.
//
// Lowering rules:
//   - every function takes the runtime handle as an implicit first
//     parameter; get_runtime reads it
//   - a string value is a pointer to its bytes plus a word-sized length
//   - calls to assembled functions forward the runtime handle; external
//     calls pass exactly the arguments their declaration names
//
// Anything else (records, branching, arithmetic) is reported as a
// *NotImplementedError rather than dropped.
package backend
