// Package harness runs compilation scenarios and checks their results.
//
// A scenario loads one program description, explores it from one or more
// entry calls, assembles the result and records the run in a fresh
// in-memory report store. Assertions then inspect the discovered
// specializations, the assembled text and the stored report.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: lt10_specializes
//	description: "Each distinct argument type gets its own lt10"
//	program: ../programs/lt10.cue
//	policy: fail
//	calls:
//	  - entry: main
//	    args: []
//	    expect:
//	      outcome: value bool true
//	assertions:
//	  - type: specialization_count
//	    function: lt10
//	    count: 2
//	  - type: stored
//	    table: specializations
//	    where: { seq: 1 }
//	    expect: { signature: "(int 3)" }
//	golden: true
//
// The program path is relative to the scenario file. Without calls, the
// program's own entry and args are used.
//
// # Assertion Types
//
//   - specialization: a specialization of function exists, optionally
//     with the given signature and outcome
//   - specialization_order: functions were first specialized in this order
//   - specialization_count: function has exactly count specializations
//   - assembled_contains: the assembled program text contains text
//   - stored: exactly one row of a report table matches where and carries
//     the expected column values
//
// # Golden Snapshots
//
// Scenarios with golden: true compare the canonical JSON of their trace
// against testdata/golden/<name>.golden. Regenerate with
//
//	go test ./internal/harness -update
package harness
