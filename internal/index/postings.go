package index

import (
	"cmp"
	"slices"

	"github.com/heuer/mappa/internal/tm"
)

// postings maps a key to the set of construct ids filed under it.
type postings[K comparable] map[K]map[tm.ID]struct{}

func (p postings[K]) add(key K, id tm.ID) {
	set, ok := p[key]
	if !ok {
		set = make(map[tm.ID]struct{})
		p[key] = set
	}
	set[id] = struct{}{}
}

func (p postings[K]) remove(key K, id tm.ID) {
	set, ok := p[key]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(p, key)
	}
}

func (p postings[K]) ids(key K) []tm.ID {
	set := p[key]
	out := make([]tm.ID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// collect resolves ids to live constructs of type C, dropping anything
// that no longer resolves and any duplicate produced by merge redirects.
func collect[C tm.Construct](m *tm.TopicMap, ids []tm.ID) []C {
	out := make([]C, 0, len(ids))
	seen := make(map[tm.ID]bool, len(ids))
	for _, id := range ids {
		c, ok := m.ConstructByID(id).(C)
		if !ok || seen[c.ID()] {
			continue
		}
		seen[c.ID()] = true
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b C) int { return cmp.Compare(a.ID(), b.ID()) })
	return out
}

// topicKeys returns the topics used as keys, in id order.
func topicKeys(m *tm.TopicMap, p postings[tm.ID]) []*tm.Topic {
	ids := make([]tm.ID, 0, len(p))
	for id := range p {
		if id != tm.NoID {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return collect[*tm.Topic](m, ids)
}

func keyOf(t *tm.Topic) tm.ID {
	if t == nil {
		return tm.NoID
	}
	return t.ID()
}
