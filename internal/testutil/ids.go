// Package testutil provides deterministic generators for tests and
// scenario runs.
package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates item identifiers "<prefix><n>" with n counting
// from 1.
//
// Unlike tm.FixedGenerator it never runs out, and it can be reset so the
// same scenario run twice produces identical identifiers.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs creates a generator. An empty prefix defaults to
// "urn:mappa:test:".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "urn:mappa:test:"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next identifier.
//
// Implements tm.IDGenerator.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s%d", g.prefix, g.n)
}

// Reset restarts the sequence at 1.
func (g *SequentialIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
