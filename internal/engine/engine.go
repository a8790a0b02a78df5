package engine

import (
	"log/slog"

	"github.com/heuer/mappa/internal/index"
	"github.com/heuer/mappa/internal/metrics"
	"github.com/heuer/mappa/internal/tm"
)

// Engine merges topics and topic maps into one target map.
//
// The engine owns the derived indices of its map and uses them to retarget
// type and theme usages during a topic merge. It holds no other state
// between calls.
//
// Thread-safety model:
//   - at most one mutating call (merge or any construct mutator) in flight
//     per map at a time
//   - reads are safe concurrently only while no mutation is in flight
type Engine struct {
	m          *tm.TopicMap
	idx        *index.Manager
	logger     *slog.Logger
	metrics    *metrics.Metrics
	sub        tm.Subscription
	maxCascade int
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithMetrics feeds merge and event counters into m.
func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithMaxCascade bounds the number of topic merges a single top-level
// merge may trigger.
//
// Default: 0, which uses the number of topics of the map at the time of
// the call. Each merge removes a topic, so that bound is never reached by
// a terminating cascade.
func WithMaxCascade(n int) EngineOption {
	return func(e *Engine) {
		e.maxCascade = n
	}
}

// New creates an Engine for m and builds its derived indices.
func New(m *tm.TopicMap, opts ...EngineOption) *Engine {
	e := &Engine{
		m:      m,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.idx = index.New(m)
	e.sub = e.metrics.Observe(m)
	return e
}

// Map returns the target topic map.
func (e *Engine) Map() *tm.TopicMap { return e.m }

// Index returns the derived indices of the map.
func (e *Engine) Index() *index.Manager { return e.idx }

// Close unsubscribes the indices and metrics from the map.
func (e *Engine) Close() {
	e.idx.Close()
	if e.sub != 0 {
		e.m.Bus().Unsubscribe(e.sub)
	}
}

func (e *Engine) newGuard() *pairGuard {
	limit := e.maxCascade
	if limit <= 0 {
		limit = len(e.m.Topics()) + 1
	}
	return newPairGuard(limit)
}
