// Package store provides a SQLite-backed journal of topic map events.
//
// A Journal subscribes to a topic map's bus and appends one row per
// delivered event. Rows are grouped into sessions (one per Attach) and
// ordered by the bus sequence number:
//
//   - sessions: id, map_id (base locator), label
//   - events: session, seq, kind, source id and kind, old/new payload
//
// # Critical Patterns
//
// Logical time:
//   - All ordering uses seq INTEGER from the bus clock, NEVER timestamps
//   - UNIQUE(session, seq) makes re-delivery idempotent
//
// Deterministic payloads:
//   - Payloads are RFC 8785 canonical JSON via internal/ir
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// The journal is an audit trail. Topic maps are never reloaded from it.
package store
