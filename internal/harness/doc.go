// Package harness provides scenario testing for the topic map engine.
//
// A scenario builds one or more topic maps step by step, merges them and
// checks the events delivered on the main map together with its final
// state. Scenarios double as executable examples of merge semantics.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	steps:
//	  - op: topic
//	    ref: a
//	    sids: ["http://x.org/a"]
//	  - op: occurrence
//	    topic: a
//	    type: homepage
//	    value: "http://a.example/"
//	    datatype: "http://www.w3.org/2001/XMLSchema#anyURI"
//	  - op: topic
//	    map: other
//	    ref: a
//	    sids: ["http://x.org/a"]
//	  - op: merge_map
//	    source: other
//	assertions:
//	  - type: topic_count
//	    count: 2
//	  - type: resolves
//	    kind: sid
//	    iri: "http://x.org/a"
//	    ref: a
//
// Steps run against the map named by "map" (default "main"). Refs are
// scoped to their map; a topic ref follows merges to the surviving topic.
// A step with expect_error must fail with that code; any other failure
// stops the scenario.
//
// # Assertion Types
//
//   - topic_count, association_count: attached constructs of the main map
//   - event_count: how often an event kind was delivered
//   - event_order: event kinds occur in this order, not necessarily adjacent
//   - resolves: an identity resolves to a ref, or to nothing without ref
//   - removed: a ref was removed or merged away
//   - names: the name values of a topic, in any order
//   - journal_count: events recorded by the journal
//
// # Deterministic Testing
//
// Every run uses fresh maps, testutil.SequentialIDs for generated item
// identifiers and an in-memory journal with a fixed session id, so the
// same scenario always yields the same trace and snapshot. Snapshots are
// canonical JSON and compared against testdata/golden with goldie.
package harness
