package engine

import "github.com/heuer/mappa/internal/tm"

// pairGuard tracks the (source, target) pairs merged during one top-level
// merge call so that mutually corresponding topics cannot recurse forever.
//
// Cascades happen when moving an identity or a reifier onto the survivor
// collides with a third topic, which is then merged as well. Every such
// cascade consumes one step of a budget; the budget is bounded by the
// number of topics, since each merge removes one topic from the map.
//
// Not safe for concurrent use. The engine runs one merge at a time.
type pairGuard struct {
	visited map[[2]tm.ID]bool
	steps   int
	limit   int
}

func newPairGuard(limit int) *pairGuard {
	return &pairGuard{visited: make(map[[2]tm.ID]bool), limit: limit}
}

// wouldRepeat reports whether source was already merged into target in
// this call.
func (g *pairGuard) wouldRepeat(source, target tm.ID) bool {
	return g.visited[[2]tm.ID{source, target}]
}

// record marks the pair as merged and consumes a step. It returns false
// once the budget is exhausted.
func (g *pairGuard) record(source, target tm.ID) bool {
	g.visited[[2]tm.ID{source, target}] = true
	g.steps++
	return g.limit <= 0 || g.steps <= g.limit
}

// size returns the number of recorded pairs.
func (g *pairGuard) size() int {
	return len(g.visited)
}
