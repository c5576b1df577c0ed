// Package frontend loads program descriptions into ir.Program.
//
// A description lists external functions, globals and functions. Each
// function names its parameters and sorts and holds a list of blocks; the
// first block is the entry block and takes the function parameters.
// Registers are named and local to their block. Values cross blocks only
// as jump arguments.
//
// Descriptions are written in CUE (checked against the #Program schema in
// schema.cue before decoding) or in YAML with the same field names:
//
//	functions: [{
//		name: "lt10"
//		params: [{name: "x", sort: "number"}]
//		blocks: [{
//			name: "entry"
//			body: [
//				{op: "int", dst: "ten", value: 10},
//				{op: "lt", dst: "r", args: ["x", "ten"]},
//			]
//			end: return: value: "r"
//		}]
//	}]
package frontend
