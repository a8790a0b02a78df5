package index

import "github.com/heuer/mappa/internal/tm"

// ScopedIndex files scoped constructs under each theme of their own scope.
// Constructs in the unconstrained scope are filed under a nil theme.
// Variants are filed by their own themes, not the inherited name scope.
type ScopedIndex struct {
	m      *tm.TopicMap
	byKind map[tm.Kind]postings[tm.ID]
}

func newScopedIndex(m *tm.TopicMap) *ScopedIndex {
	return &ScopedIndex{
		m: m,
		byKind: map[tm.Kind]postings[tm.ID]{
			tm.KindAssociation: {},
			tm.KindOccurrence:  {},
			tm.KindName:        {},
			tm.KindVariant:     {},
		},
	}
}

// Associations returns the attached associations scoped by theme.
// A nil theme selects the unconstrained scope.
func (x *ScopedIndex) Associations(theme *tm.Topic) []*tm.Association {
	return collect[*tm.Association](x.m, x.byKind[tm.KindAssociation].ids(keyOf(theme)))
}

// Occurrences returns the attached occurrences scoped by theme.
func (x *ScopedIndex) Occurrences(theme *tm.Topic) []*tm.Occurrence {
	return collect[*tm.Occurrence](x.m, x.byKind[tm.KindOccurrence].ids(keyOf(theme)))
}

// Names returns the attached names scoped by theme.
func (x *ScopedIndex) Names(theme *tm.Topic) []*tm.Name {
	return collect[*tm.Name](x.m, x.byKind[tm.KindName].ids(keyOf(theme)))
}

// Variants returns the attached variants whose own scope contains theme.
func (x *ScopedIndex) Variants(theme *tm.Topic) []*tm.Variant {
	return collect[*tm.Variant](x.m, x.byKind[tm.KindVariant].ids(keyOf(theme)))
}

// AssociationThemes returns every topic used as an association theme.
func (x *ScopedIndex) AssociationThemes() []*tm.Topic {
	return topicKeys(x.m, x.byKind[tm.KindAssociation])
}

// OccurrenceThemes returns every topic used as an occurrence theme.
func (x *ScopedIndex) OccurrenceThemes() []*tm.Topic {
	return topicKeys(x.m, x.byKind[tm.KindOccurrence])
}

// NameThemes returns every topic used as a name theme.
func (x *ScopedIndex) NameThemes() []*tm.Topic {
	return topicKeys(x.m, x.byKind[tm.KindName])
}

// VariantThemes returns every topic used as a variant theme.
func (x *ScopedIndex) VariantThemes() []*tm.Topic {
	return topicKeys(x.m, x.byKind[tm.KindVariant])
}

// scopedBy returns the ids of every construct with t in its own scope.
func (x *ScopedIndex) scopedBy(t *tm.Topic) []tm.ID {
	var ids []tm.ID
	for _, k := range []tm.Kind{tm.KindAssociation, tm.KindOccurrence, tm.KindName, tm.KindVariant} {
		ids = append(ids, x.byKind[k].ids(keyOf(t))...)
	}
	return ids
}

func (x *ScopedIndex) handle(e tm.Event) {
	switch e.Kind {
	case tm.EventAddAssociation, tm.EventAddOccurrence, tm.EventAddName, tm.EventAddVariant:
		x.file(e.Source, ownScope(e.Source))
	case tm.EventRemoveAssociation, tm.EventRemoveOccurrence, tm.EventRemoveName, tm.EventRemoveVariant:
		x.unfile(e.Source, ownScope(e.Source))
	case tm.EventSetScope:
		old, _ := e.Old.([]*tm.Topic)
		next, _ := e.New.([]*tm.Topic)
		x.unfile(e.Source, old)
		x.file(e.Source, next)
	}
}

func (x *ScopedIndex) file(c tm.Construct, themes []*tm.Topic) {
	p := x.byKind[c.Kind()]
	if len(themes) == 0 {
		p.add(tm.NoID, c.ID())
		return
	}
	for _, t := range themes {
		p.add(t.ID(), c.ID())
	}
}

func (x *ScopedIndex) unfile(c tm.Construct, themes []*tm.Topic) {
	p := x.byKind[c.Kind()]
	if len(themes) == 0 {
		p.remove(tm.NoID, c.ID())
		return
	}
	for _, t := range themes {
		p.remove(t.ID(), c.ID())
	}
}

func ownScope(c tm.Construct) []*tm.Topic {
	switch v := c.(type) {
	case *tm.Variant:
		return v.OwnScope()
	case tm.Scoped:
		return v.Scope()
	}
	return nil
}
