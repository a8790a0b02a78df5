package index

import (
	"slices"

	"github.com/heuer/mappa/internal/tm"
)

// Manager owns the derived indices of one topic map and keeps them
// current from the map's event bus.
//
// Indices are populated once when the manager is created and from then on
// only by events. Queries never walk the graph.
type Manager struct {
	m   *tm.TopicMap
	sub tm.Subscription

	TypeInstance *TypeInstanceIndex
	Scoped       *ScopedIndex
	Literal      *LiteralIndex
}

// New creates the indices for m, populates them from the attached
// constructs and subscribes to the bus.
func New(m *tm.TopicMap) *Manager {
	x := &Manager{
		m:            m,
		TypeInstance: newTypeInstanceIndex(m),
		Scoped:       newScopedIndex(m),
		Literal:      newLiteralIndex(m),
	}
	m.Walk(func(c tm.Construct) {
		if k, ok := addEventOf[c.Kind()]; ok {
			x.handle(tm.Event{Kind: k, Source: c})
		}
	})
	x.sub = m.Bus().SubscribeAll(x.handle)
	return x
}

var addEventOf = map[tm.Kind]tm.EventKind{
	tm.KindAssociation: tm.EventAddAssociation,
	tm.KindRole:        tm.EventAddRole,
	tm.KindOccurrence:  tm.EventAddOccurrence,
	tm.KindName:        tm.EventAddName,
	tm.KindVariant:     tm.EventAddVariant,
}

// Close unsubscribes the indices. They keep their last state.
func (x *Manager) Close() {
	x.m.Bus().Unsubscribe(x.sub)
}

// TypedBy returns every attached construct that uses t as its type, in id
// order.
func (x *Manager) TypedBy(t *tm.Topic) []tm.Construct {
	return x.constructs(x.TypeInstance.typedBy(t))
}

// ScopedBy returns every attached construct whose own scope contains t, in
// id order.
func (x *Manager) ScopedBy(t *tm.Topic) []tm.Construct {
	return x.constructs(x.Scoped.scopedBy(t))
}

func (x *Manager) constructs(ids []tm.ID) []tm.Construct {
	slices.Sort(ids)
	ids = slices.Compact(ids)
	return collect[tm.Construct](x.m, ids)
}

func (x *Manager) handle(e tm.Event) {
	x.TypeInstance.handle(e)
	x.Scoped.handle(e)
	x.Literal.handle(e)
}
