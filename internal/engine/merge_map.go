package engine

import (
	"slices"

	"github.com/heuer/mappa/internal/metrics"
	"github.com/heuer/mappa/internal/tm"
)

// MergeTopicMap copies source into the engine's map. Source is not
// modified.
//
// Source topics correspond to target topics sharing a subject identifier,
// a subject locator, or an item identifier matching a subject or item
// identifier. Topics without a counterpart are created. Characteristics
// and associations are copied with the same signature based deduplication
// MergeTopics uses, so merging the same source twice adds nothing.
//
// A duplicate association keeps the existing one and receives the copied
// association's reifier and item identifiers, and those of its roles.
func (e *Engine) MergeTopicMap(source *tm.TopicMap) error {
	if source == nil {
		return &tm.ModelConstraintViolation{Code: tm.CodeNilArgument, Message: "merge requires a source topic map"}
	}
	if source == e.m {
		return nil
	}
	mm := &mapMerger{
		merger: &merger{e: e, m: e.m, guard: e.newGuard()},
		source: source,
		corr:   make(map[tm.ID]tm.ID),
	}
	e.logger.Debug("merging topic map", "source", source.BaseLocator(), "target", e.m.BaseLocator())

	topics := source.Topics()
	for _, st := range topics {
		if err := mm.correspond(st); err != nil {
			return err
		}
	}
	for _, st := range topics {
		if err := mm.copyTopic(st); err != nil {
			return err
		}
	}
	for _, sa := range source.Associations() {
		if err := mm.copyAssociation(sa); err != nil {
			return err
		}
	}
	mm.copyItemIdentifiers(source, e.m)
	if err := mm.reify(e.m, mm.counterpart(source.Reifier())); err != nil {
		return err
	}
	e.metrics.IncMerge(metrics.ScopeTopicMap)
	e.logger.Debug("topic map merged", "source", source.BaseLocator(), "topics", len(mm.corr))
	return nil
}

// mapMerger carries the source to target topic correspondence.
type mapMerger struct {
	*merger
	source *tm.TopicMap
	corr   map[tm.ID]tm.ID
}

// correspond finds or creates the target topic for st. When st matches
// several target topics they are merged into the one with the lowest id.
func (mm *mapMerger) correspond(st *tm.Topic) error {
	candidates := mm.candidates(st)
	if len(candidates) == 0 {
		t := mm.m.Builder().Topic()
		if err := mm.m.AddTopic(t); err != nil {
			return err
		}
		mm.corr[st.ID()] = t.ID()
		return nil
	}
	keep := candidates[0]
	for _, other := range candidates[1:] {
		mm.e.logger.Debug("source topic matches several topics", "topic", st.ID(), "source", other.ID(), "target", keep.ID())
		if err := mm.topics(other.ID(), keep.ID()); err != nil {
			return err
		}
	}
	mm.corr[st.ID()] = keep.ID()
	return nil
}

func (mm *mapMerger) candidates(st *tm.Topic) []*tm.Topic {
	var out []*tm.Topic
	add := func(t *tm.Topic) {
		if t != nil && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	for _, iri := range st.SubjectIdentifiers() {
		add(mm.m.TopicBySubjectIdentifier(iri))
		t, _ := mm.m.ConstructByItemIdentifier(iri).(*tm.Topic)
		add(t)
	}
	for _, iri := range st.SubjectLocators() {
		add(mm.m.TopicBySubjectLocator(iri))
	}
	for _, iri := range st.ItemIdentifiers() {
		t, _ := mm.m.ConstructByItemIdentifier(iri).(*tm.Topic)
		add(t)
		add(mm.m.TopicBySubjectIdentifier(iri))
	}
	slices.SortFunc(out, byID)
	return out
}

// counterpart returns the target topic for a source topic, creating an
// empty one for topics the correspondence pass did not see.
func (mm *mapMerger) counterpart(st *tm.Topic) *tm.Topic {
	if st == nil {
		return nil
	}
	if id, ok := mm.corr[st.ID()]; ok {
		if t := mm.m.TopicByID(id); t != nil {
			return t
		}
	}
	t := mm.m.Builder().Topic()
	if err := mm.m.AddTopic(t); err != nil {
		return nil
	}
	mm.corr[st.ID()] = t.ID()
	return t
}

func (mm *mapMerger) counterparts(scope []*tm.Topic) []*tm.Topic {
	out := make([]*tm.Topic, 0, len(scope))
	for _, st := range scope {
		out = append(out, mm.counterpart(st))
	}
	return out
}

func (mm *mapMerger) copyTopic(st *tm.Topic) error {
	for _, id := range identitiesOf(st) {
		err := mm.claim(mm.counterpart(st).ID(), id.kind, id.iri)
		if tm.IsIdentityViolation(err) {
			mm.e.logger.Warn("identity held by a non-topic construct, skipped",
				"kind", id.kind.String(),
				"iri", id.iri)
			continue
		}
		if err != nil {
			return err
		}
	}
	for _, so := range st.Occurrences() {
		if err := mm.copyOccurrence(so, mm.counterpart(st)); err != nil {
			return err
		}
	}
	for _, sn := range st.Names() {
		if err := mm.copyName(sn, mm.counterpart(st)); err != nil {
			return err
		}
	}
	return nil
}

func (mm *mapMerger) copyOccurrence(so *tm.Occurrence, t *tm.Topic) error {
	o, err := mm.m.Builder().Occurrence(mm.counterpart(so.Type()), so.Value(), so.Datatype(), mm.counterparts(so.Scope())...)
	if err != nil {
		return err
	}
	kept, err := mm.placeOccurrence(t, o)
	if err != nil {
		return err
	}
	mm.copyItemIdentifiers(so, kept)
	return mm.reify(kept, mm.counterpart(so.Reifier()))
}

func (mm *mapMerger) copyName(sn *tm.Name, t *tm.Topic) error {
	n, err := mm.m.Builder().Name(mm.counterpart(sn.Type()), sn.Value(), mm.counterparts(sn.Scope())...)
	if err != nil {
		return err
	}
	kept, err := mm.placeName(t, n)
	if err != nil {
		return err
	}
	mm.copyItemIdentifiers(sn, kept)
	if err := mm.reify(kept, mm.counterpart(sn.Reifier())); err != nil {
		return err
	}
	for _, sv := range sn.Variants() {
		v, err := mm.m.Builder().Variant(sv.Value(), sv.Datatype(), mm.counterparts(sv.OwnScope())...)
		if err != nil {
			return err
		}
		keptV, err := mm.placeVariant(kept, v)
		if tm.IsViolation(err, tm.CodeInvalidVariantScope) {
			mm.e.logger.Warn("variant adds no theme to its name scope, skipped", "variant", sv.ID())
			if err := v.Remove(); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
		mm.copyItemIdentifiers(sv, keptV)
		if err := mm.reify(keptV, mm.counterpart(sv.Reifier())); err != nil {
			return err
		}
	}
	return nil
}

func (mm *mapMerger) copyAssociation(sa *tm.Association) error {
	a, err := mm.m.Builder().Association(mm.counterpart(sa.Type()), mm.counterparts(sa.Scope())...)
	if err != nil {
		return err
	}
	sroles := sa.Roles()
	roles := make([]*tm.Role, len(sroles))
	for i, sr := range sroles {
		if roles[i], err = a.CreateRole(mm.counterpart(sr.Type()), mm.counterpart(sr.Player())); err != nil {
			return err
		}
	}
	dup, err := mm.duplicateAssociation(a)
	if err != nil {
		return err
	}
	if dup != nil {
		used := make(map[tm.ID]bool)
		for i := range roles {
			if roles[i], err = pairRole(roles[i], dup, used); err != nil {
				return err
			}
		}
		if err := a.Remove(); err != nil {
			return err
		}
		a = dup
	} else if err := mm.m.AddAssociation(a); err != nil {
		return err
	}
	mm.copyItemIdentifiers(sa, a)
	if err := mm.reify(a, mm.counterpart(sa.Reifier())); err != nil {
		return err
	}
	for i, sr := range sroles {
		if roles[i] == nil {
			continue
		}
		mm.copyItemIdentifiers(sr, roles[i])
		if err := mm.reify(roles[i], mm.counterpart(sr.Reifier())); err != nil {
			return err
		}
	}
	return nil
}

// copyItemIdentifiers adds the item identifiers of from to to, skipping
// those already held by another construct.
func (mm *mapMerger) copyItemIdentifiers(from, to tm.Construct) {
	for _, iri := range from.ItemIdentifiers() {
		if err := to.AddItemIdentifier(iri); err != nil {
			mm.e.metrics.IncIdentityViolation()
			mm.e.logger.Warn("item identifier not copied",
				"iri", iri,
				"construct", tm.Describe(to),
				"error", err)
		}
	}
}

// reify makes r the reifier of c. If c is already reified the two
// reifiers are merged.
func (mm *mapMerger) reify(c tm.Reifiable, r *tm.Topic) error {
	if r == nil {
		return nil
	}
	cur := c.Reifier()
	if cur == r {
		return nil
	}
	if other := r.Reified(); other != nil && other.ID() != c.ID() {
		mm.e.logger.Warn("reifier already reifies another construct, skipped",
			"reifier", r.ID(),
			"construct", tm.Describe(c))
		return nil
	}
	if cur != nil {
		return mm.topics(r.ID(), cur.ID())
	}
	return c.SetReifier(r)
}
