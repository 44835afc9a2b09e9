// Package harness provides conformance testing for mirdump.
//
// The harness compiles CUE bodies, runs the calling analysis over them,
// persists the run to a throwaway store and checks the results against
// YAML scenarios and golden snapshots.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	specs:
//	  - ../specs/demo.cue
//	facts: ../facts/demo        # optional nll-facts root
//	strict: false               # abort on unsupported types
//	expect_error: ""            # analysis error code, e.g. UNSUPPORTED_TYPE
//	assertions:
//	  - type: state_equals
//	    fn: demo
//	    at: bb0[1]
//	    state: initialized
//	    places: [x.f.h, x.k]
//	  - type: expand
//	    fn: demo
//	    minuend: x
//	    subtrahend: x.f.g
//	    places: [x.f.h, x.k]
//
// Paths in specs and facts are relative to the scenario file.
//
// # Assertion Types
//
// Analysis results:
//
//   - state_equals: the state set at a point is exactly the given places
//   - state_covers: every given place is covered by a member of the set
//   - state_excludes: no given place overlaps the set
//   - skipped: every given place was skipped as unsupported
//   - stored: the persisted row for a point holds exactly the given places
//
// Place algebra:
//
//   - expand: Expand(minuend, subtrahend) yields exactly the given places
//   - collapse: collapsing set with guide yields exactly the given places
//   - prefix: IsPrefix(place, prefix) equals holds
//
// Places are written with declared names (x.f.*.@Some.0) and compared as
// sorted lists.
//
// # Deterministic Testing
//
// Every scenario runs with a fixed run id and the analysis' logical
// clock, against a fresh in-memory SQLite store, so snapshots are
// byte-identical across runs.
package harness
