// Package metrics exposes Prometheus collectors for topic map activity.
//
// Collectors are registered on a caller supplied prometheus.Registerer so
// that embedding applications decide where they are scraped. All methods
// are safe on a nil *Metrics, which is how metrics are disabled.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/heuer/mappa/internal/tm"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "mappa"

// Merge scopes used as the "scope" label of the merges counter.
const (
	ScopeTopic    = "topic"
	ScopeTopicMap = "topicmap"
)

// Metrics holds the collectors of one engine.
type Metrics struct {
	Events             *prometheus.CounterVec
	Merges             *prometheus.CounterVec
	IdentityViolations prometheus.Counter
	Topics             prometheus.Gauge
}

// New creates the collectors and registers them on reg.
// An empty namespace falls back to DefaultNamespace.
func New(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	m := &Metrics{
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Total number of delivered topic map events by kind",
		}, []string{"kind"}),
		Merges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merges_total",
			Help:      "Total number of completed merges by scope",
		}, []string{"scope"}),
		IdentityViolations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identity_violations_total",
			Help:      "Total number of rejected identity claims",
		}),
		Topics: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "topics",
			Help:      "Number of topics attached to observed topic maps",
		}),
	}
	for _, c := range []prometheus.Collector{m.Events, m.Merges, m.IdentityViolations, m.Topics} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

// Observe subscribes to every event of tmap. The topics gauge starts at the
// number of topics already attached.
func (m *Metrics) Observe(tmap *tm.TopicMap) tm.Subscription {
	if m == nil {
		return 0
	}
	m.Topics.Add(float64(len(tmap.Topics())))
	return tmap.Bus().SubscribeAll(m.record)
}

func (m *Metrics) record(e tm.Event) {
	m.Events.WithLabelValues(e.Kind.String()).Inc()
	switch e.Kind {
	case tm.EventAddTopic:
		m.Topics.Inc()
	case tm.EventRemoveTopic:
		m.Topics.Dec()
	}
}

// IncMerge records a completed merge.
func (m *Metrics) IncMerge(scope string) {
	if m != nil {
		m.Merges.WithLabelValues(scope).Inc()
	}
}

// IncIdentityViolation records a rejected identity claim.
func (m *Metrics) IncIdentityViolation() {
	if m != nil {
		m.IdentityViolations.Inc()
	}
}
