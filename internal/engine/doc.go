// Package engine merges topics and topic maps.
//
// A topic merge moves everything source has onto target in a fixed order:
//
//  1. item identifiers
//  2. the reified construct
//  3. subject identifiers and subject locators
//  4. usages as type or theme, found through the derived indices
//  5. occurrences and names, folding duplicates by signature
//  6. played roles, folding associations that became duplicates
//  7. source is aliased to target in the map's redirect table
//
// Collisions met on the way (an identity already held by a third topic,
// two reifiers for folded duplicates) merge further topics. A per-call
// pair guard stops mutually corresponding topics from recursing, and the
// number of cascaded merges is bounded by the number of topics.
//
// A topic map merge builds a correspondence from source topics to target
// topics by identity, then copies topics, characteristics and associations
// with the same duplicate folding. The source map is never modified.
//
// The engine is single-threaded and synchronous. A failed merge leaves the
// map consistent (indices match the reachable graph) but may have
// performed some of the steps.
package engine
