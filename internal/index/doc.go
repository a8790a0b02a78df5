// Package index maintains derived views over a topic map.
//
// Three materialized views are kept current purely from bus events:
//
//	TypeInstanceIndex  type -> typed constructs, and topic -> stated types
//	ScopedIndex        theme -> scoped constructs (nil theme = unconstrained)
//	LiteralIndex       literal -> occurrences, names, variants
//
// Detached subtrees are invisible to the indices; re-attaching a subtree
// repopulates them because the bus synthesizes events for every child.
// All query results are ordered by construct id.
package index
