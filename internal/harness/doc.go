// Package harness runs governance conformance scenarios.
//
// A scenario seeds a repository context, drives it through a flow of
// updates, undo/redo and mode switches, and checks both the outcome of each
// step and the final graph.
//
// # Scenario Format
//
//	name: scenario_name
//	description: "What this scenario validates"
//	rules: endpoints.cue          # optional, relative to this file
//	policy:
//	  mode: Strict
//	  lifecycle_coverage: AsIs
//	setup:
//	  - op: add_element
//	    id: ent-1
//	    type: Enterprise
//	    attributes: { name: Acme, ownerId: ent-1 }
//	flow:
//	  - invoke: update
//	    ops:
//	      - op: add_relationship
//	        id: own-1
//	        type: OWNS
//	        from: ent-1
//	        to: cap-1
//	    expect:
//	      outcome: rejected
//	      error_contains: ["G202"]
//	      findings: [{ code: G202, subject: cap-1 }]
//	assertions:
//	  - type: debt
//	    debt: { mandatory: 0 }
//
// Ops are add_element, add_relationship, remove_relationship, tombstone and
// set_attribute. Steps invoke update, undo, redo or set_mode.
//
// # Assertion Types
//
//   - finding_present / finding_absent: a code on a subject id
//   - debt: named debt counts of the final graph
//   - element_state: live, tombstoned or absent
//   - relationship_state: present or absent
//   - history_depth: undo and redo stack sizes
//
// # Deterministic Testing
//
// Every scenario gets a fresh context with a deterministic clock, so traces
// are stable for golden comparison (see RunWithGolden).
package harness
