// Package tm implements the Topic Maps Data Model construct graph.
//
// A TopicMap owns topics and associations; topics own occurrences and
// names; names own variants; associations own roles. Every construct lives
// in the map's arena under an ID that is never reused. References to topics
// (type, theme, player, reifier) are stored as ids and resolved at read
// time through a redirect table that merges extend, so a handle to a
// merged-away topic id still reaches the survivor via TopicMap.Resolve.
//
// Three subsystems keep the graph consistent:
//
//   - the identity index enforces uniqueness of item identifiers, subject
//     identifiers and subject locators across attached constructs
//   - the Bus delivers change events for attached constructs only, and
//     synthesizes child events when a subtree is added or removed
//   - Signature gives every characteristic and association a structural
//     key for duplicate detection
//
// Lifecycle:
//
//	created (Builder) -> detached -> attached (Add*) -> detached (Detach*)
//	                                              \-> destroyed (Remove)
//
// Constructs are not safe for concurrent mutation.
package tm
