package engine

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/heuer/mappa/internal/metrics"
	"github.com/heuer/mappa/internal/tm"
)

// MergeTopics merges source into target. Afterwards target carries the
// union of both topics' identities and characteristics, every usage of
// source (as type, theme, player or reifier) refers to target, and source
// is gone. Stale source handles resolve to target through the map's
// redirect table.
//
// Merging a source that was already merged into target is a no-op.
// Identity or reifier collisions met on the way are resolved by merging
// the colliding topics as well.
func (e *Engine) MergeTopics(source, target *tm.Topic) error {
	if source == nil || target == nil {
		return &tm.ModelConstraintViolation{Code: tm.CodeNilArgument, Message: "merge requires a source and a target topic"}
	}
	for _, t := range []*tm.Topic{source, target} {
		if t.TopicMap() != e.m {
			return &tm.ModelConstraintViolation{Code: tm.CodeForeignMap, Message: "topic belongs to another topic map", Construct: t}
		}
	}
	mg := &merger{e: e, m: e.m, guard: e.newGuard()}
	if err := mg.topics(source.ID(), target.ID()); err != nil {
		return err
	}
	e.logger.Debug("merge complete", "target", e.m.Resolve(target.ID()), "pairs", mg.guard.size())
	e.metrics.IncMerge(metrics.ScopeTopic)
	return nil
}

// merger carries the state of one top-level merge call.
type merger struct {
	e     *Engine
	m     *tm.TopicMap
	guard *pairGuard
}

func (mg *merger) topics(sourceID, targetID tm.ID) error {
	s, t := mg.m.TopicByID(sourceID), mg.m.TopicByID(targetID)
	switch {
	case t == nil:
		return &tm.ModelConstraintViolation{Code: tm.CodeRemovedConstruct, Message: fmt.Sprintf("merge target topic#%d was removed", targetID)}
	case s == t:
		return nil
	case s == nil:
		return &tm.ModelConstraintViolation{Code: tm.CodeRemovedConstruct, Message: fmt.Sprintf("merge source topic#%d was removed", sourceID)}
	}
	if sr, tr := s.Reified(), t.Reified(); sr != nil && tr != nil && sr != tr {
		return &tm.ModelConstraintViolation{
			Code:      tm.CodeReifierConflict,
			Message:   fmt.Sprintf("%s and %s reify different constructs", tm.Describe(s), tm.Describe(t)),
			Construct: s,
		}
	}
	if mg.guard.wouldRepeat(s.ID(), t.ID()) {
		return nil
	}
	if !mg.guard.record(s.ID(), t.ID()) {
		return newCascadeLimitError(s.ID(), t.ID(), mg.guard.limit)
	}
	sourceID, targetID = s.ID(), t.ID()
	mg.e.logger.Debug("merging topics", "source", sourceID, "target", targetID)

	steps := []func(s, t *tm.Topic) error{
		mg.moveIdentities,
		mg.moveReified,
		mg.retargetUsages,
		mg.moveCharacteristics,
		mg.movePlayedRoles,
	}
	for _, step := range steps {
		s, t = mg.m.TopicByID(sourceID), mg.m.TopicByID(targetID)
		if s == t {
			return nil
		}
		if err := step(s, t); err != nil {
			return fmt.Errorf("merge %s into %s: %w", tm.Describe(s), tm.Describe(t), err)
		}
	}
	s, t = mg.m.TopicByID(sourceID), mg.m.TopicByID(targetID)
	if s == t {
		return nil
	}
	if err := mg.m.Alias(s, t); err != nil {
		return err
	}
	mg.e.logger.Debug("topics merged", "source", sourceID, "target", targetID)
	return nil
}

func (mg *merger) moveReified(s, t *tm.Topic) error {
	r, ok := s.Reified().(tm.Reifiable)
	if !ok {
		return nil
	}
	if err := r.SetReifier(nil); err != nil {
		return err
	}
	return r.SetReifier(t)
}

// identity is one identifier held by a topic.
type identity struct {
	kind tm.IdentityKind
	iri  string
}

func identitiesOf(t *tm.Topic) []identity {
	var out []identity
	for _, iri := range t.ItemIdentifiers() {
		out = append(out, identity{tm.ItemIdentifier, iri})
	}
	for _, iri := range t.SubjectIdentifiers() {
		out = append(out, identity{tm.SubjectIdentifier, iri})
	}
	for _, iri := range t.SubjectLocators() {
		out = append(out, identity{tm.SubjectLocator, iri})
	}
	return out
}

// moveIdentities hands every identifier of s to t. s gives up all of them
// before t claims the first, since s may hold one IRI both as item
// identifier and as subject identifier.
func (mg *merger) moveIdentities(s, t *tm.Topic) error {
	ids := identitiesOf(s)
	for _, id := range ids {
		if err := removeIdentity(s, id); err != nil {
			return err
		}
	}
	for _, id := range ids {
		if err := mg.claim(t.ID(), id.kind, id.iri); err != nil {
			return err
		}
	}
	return nil
}

// claim adds iri to the topic with id. A collision with another topic
// merges that topic into the claimant before retrying once.
func (mg *merger) claim(id tm.ID, kind tm.IdentityKind, iri string) error {
	err := addIdentity(mg.m.TopicByID(id), kind, iri)
	iv, ok := tm.AsIdentityViolation(err)
	if !ok {
		return err
	}
	mg.e.metrics.IncIdentityViolation()
	other, ok := iv.Existing.(*tm.Topic)
	if !ok {
		return err
	}
	mg.e.logger.Debug("identity collision, cascading merge",
		"kind", kind.String(),
		"iri", iri,
		"source", other.ID(),
		"target", id)
	if err := mg.topics(other.ID(), id); err != nil {
		return err
	}
	return addIdentity(mg.m.TopicByID(id), kind, iri)
}

func removeIdentity(t *tm.Topic, id identity) error {
	switch id.kind {
	case tm.SubjectIdentifier:
		return t.RemoveSubjectIdentifier(id.iri)
	case tm.SubjectLocator:
		return t.RemoveSubjectLocator(id.iri)
	default:
		return t.RemoveItemIdentifier(id.iri)
	}
}

func addIdentity(t *tm.Topic, kind tm.IdentityKind, iri string) error {
	switch kind {
	case tm.SubjectIdentifier:
		return t.AddSubjectIdentifier(iri)
	case tm.SubjectLocator:
		return t.AddSubjectLocator(iri)
	default:
		return t.AddItemIdentifier(iri)
	}
}

// retargetUsages replaces s by t wherever s is a type or a theme. A
// construct that becomes equal to a sibling is folded into it.
func (mg *merger) retargetUsages(s, t *tm.Topic) error {
	for _, c := range mg.e.idx.TypedBy(s) {
		if c.IsRemoved() {
			continue
		}
		if err := c.(tm.Typed).SetType(t); err != nil {
			return err
		}
		if err := mg.dedup(c); err != nil {
			return err
		}
	}
	for _, c := range mg.e.idx.ScopedBy(s) {
		if c.IsRemoved() {
			continue
		}
		if err := mg.replaceTheme(c.(tm.Scoped), s, t); err != nil {
			return err
		}
		if c.IsRemoved() {
			continue
		}
		if err := mg.dedup(c); err != nil {
			return err
		}
	}
	return nil
}

// dedup folds c into a sibling with the same signature, if there is one.
func (mg *merger) dedup(c tm.Construct) error {
	switch x := c.(type) {
	case *tm.Occurrence:
		p := x.Topic()
		if p == nil {
			return nil
		}
		dup, err := duplicateOf(x, p.Occurrences())
		if err != nil || dup == nil {
			return err
		}
		return mg.fold(x, dup)
	case *tm.Name:
		p := x.Topic()
		if p == nil {
			return nil
		}
		dup, err := duplicateOf(x, p.Names())
		if err != nil {
			return err
		}
		if dup != nil {
			return mg.foldName(x, dup)
		}
		for _, v := range x.Variants() {
			if v.IsRemoved() {
				continue
			}
			if err := mg.dedup(v); err != nil {
				return err
			}
		}
		return nil
	case *tm.Variant:
		n := x.Name()
		if n == nil {
			return nil
		}
		dup, err := duplicateOf(x, n.Variants())
		if err != nil || dup == nil {
			return err
		}
		return mg.fold(x, dup)
	case *tm.Role:
		if a := x.Association(); a != nil {
			return mg.dedup(a)
		}
		return nil
	case *tm.Association:
		if !x.IsAttached() {
			return nil
		}
		dup, err := mg.duplicateAssociation(x)
		if err != nil || dup == nil {
			return err
		}
		return mg.foldAssociation(x, dup)
	}
	return nil
}

// replaceTheme swaps a theme. Variants whose scope no longer adds a theme
// to their name's scope are removed.
func (mg *merger) replaceTheme(c tm.Scoped, s, t *tm.Topic) error {
	err := c.ReplaceTheme(s, t)
	if !tm.IsViolation(err, tm.CodeInvalidVariantScope) {
		return err
	}
	switch x := c.(type) {
	case *tm.Variant:
		mg.e.logger.Warn("dropping variant made redundant by merge", "variant", x.ID())
		return x.Remove()
	case *tm.Name:
		nameScope := replaced(x.Scope(), s, t)
		for _, v := range x.Variants() {
			if subset(replaced(v.OwnScope(), s, t), nameScope) {
				mg.e.logger.Warn("dropping variant made redundant by merge", "variant", v.ID())
				if err := v.Remove(); err != nil {
					return err
				}
			}
		}
		return c.ReplaceTheme(s, t)
	}
	return err
}

func (mg *merger) moveCharacteristics(s, t *tm.Topic) error {
	for _, o := range s.Occurrences() {
		if _, err := mg.placeOccurrence(t, o); err != nil {
			return err
		}
	}
	for _, n := range s.Names() {
		if _, err := mg.placeName(t, n); err != nil {
			return err
		}
	}
	return nil
}

// placeOccurrence moves o under t unless t already has an occurrence with
// the same signature, into which o is then folded. It returns the
// occurrence that survives.
func (mg *merger) placeOccurrence(t *tm.Topic, o *tm.Occurrence) (*tm.Occurrence, error) {
	dup, err := duplicateOf(o, t.Occurrences())
	if err != nil {
		return nil, err
	}
	if dup != nil {
		return dup, mg.fold(o, dup)
	}
	if p := o.Topic(); p != nil {
		if err := p.DetachOccurrence(o); err != nil {
			return nil, err
		}
	}
	return o, t.AddOccurrence(o)
}

// placeName is placeOccurrence for names. The variants of a folded name
// are placed under the surviving name.
func (mg *merger) placeName(t *tm.Topic, n *tm.Name) (*tm.Name, error) {
	dup, err := duplicateOf(n, t.Names())
	if err != nil {
		return nil, err
	}
	if dup == nil {
		if p := n.Topic(); p != nil {
			if err := p.DetachName(n); err != nil {
				return nil, err
			}
		}
		return n, t.AddName(n)
	}
	return dup, mg.foldName(n, dup)
}

// foldName places the variants of dup under keep, then folds dup.
func (mg *merger) foldName(dup, keep *tm.Name) error {
	for _, v := range dup.Variants() {
		if _, err := mg.placeVariant(keep, v); err != nil {
			return err
		}
	}
	return mg.fold(dup, keep)
}

// placeVariant moves v under n and folds it into an equal sibling. The
// variant is attached first because its signature covers the name scope.
func (mg *merger) placeVariant(n *tm.Name, v *tm.Variant) (*tm.Variant, error) {
	if p := v.Name(); p != n {
		if p != nil {
			if err := p.DetachVariant(v); err != nil {
				return nil, err
			}
		}
		if err := n.AddVariant(v); err != nil {
			return nil, err
		}
	}
	dup, err := duplicateOf(v, n.Variants())
	if err != nil {
		return nil, err
	}
	if dup != nil {
		return dup, mg.fold(v, dup)
	}
	return v, nil
}

func (mg *merger) movePlayedRoles(s, t *tm.Topic) error {
	var touched []*tm.Association
	for _, r := range s.RolesPlayed() {
		if err := r.SetPlayer(t); err != nil {
			return err
		}
		if a := r.Association(); a != nil && a.IsAttached() && !slices.Contains(touched, a) {
			touched = append(touched, a)
		}
	}
	slices.SortFunc(touched, byID)
	for _, a := range touched {
		if a.IsRemoved() {
			continue
		}
		dup, err := mg.duplicateAssociation(a)
		if err != nil {
			return err
		}
		if dup != nil {
			if err := mg.foldAssociation(a, dup); err != nil {
				return err
			}
		}
	}
	return nil
}

// duplicateAssociation returns the attached association other than a with
// the same signature and the lowest id, or nil.
func (mg *merger) duplicateAssociation(a *tm.Association) (*tm.Association, error) {
	sig, err := tm.Signature(a)
	if err != nil {
		return nil, err
	}
	var candidates []*tm.Association
	if roles := a.Roles(); len(roles) > 0 && roles[0].Player() != nil {
		for _, r := range roles[0].Player().RolesPlayed() {
			if x := r.Association(); x != nil && x.IsAttached() && !slices.Contains(candidates, x) {
				candidates = append(candidates, x)
			}
		}
	} else {
		candidates = mg.m.Associations()
	}
	slices.SortFunc(candidates, byID)
	for _, x := range candidates {
		if x == a {
			continue
		}
		xs, err := tm.Signature(x)
		if err != nil {
			return nil, err
		}
		if xs == sig {
			return x, nil
		}
	}
	return nil, nil
}

// foldAssociation folds dup into keep, pairing their roles by signature.
func (mg *merger) foldAssociation(dup, keep *tm.Association) error {
	mg.e.logger.Debug("folding duplicate association", "duplicate", dup.ID(), "into", keep.ID())
	if err := mg.moveReifier(dup, keep); err != nil {
		return err
	}
	if err := moveItemIdentifiers(dup, keep); err != nil {
		return err
	}
	used := make(map[tm.ID]bool)
	for _, r := range dup.Roles() {
		kr, err := pairRole(r, keep, used)
		if err != nil {
			return err
		}
		if kr == nil {
			continue
		}
		if err := mg.moveReifier(r, kr); err != nil {
			return err
		}
		if err := moveItemIdentifiers(r, kr); err != nil {
			return err
		}
	}
	return dup.Remove()
}

// pairRole returns the first unused role of a with the signature of r.
func pairRole(r *tm.Role, a *tm.Association, used map[tm.ID]bool) (*tm.Role, error) {
	sig, err := tm.Signature(r)
	if err != nil {
		return nil, err
	}
	for _, x := range a.Roles() {
		if used[x.ID()] {
			continue
		}
		xs, err := tm.Signature(x)
		if err != nil {
			return nil, err
		}
		if xs == sig {
			used[x.ID()] = true
			return x, nil
		}
	}
	return nil, nil
}

type removable interface {
	tm.Reifiable
	Remove() error
}

// fold hands the reifier and item identifiers of dup to keep and removes
// dup.
func (mg *merger) fold(dup, keep removable) error {
	mg.e.logger.Debug("folding duplicate", "kind", dup.Kind().String(), "duplicate", dup.ID(), "into", keep.ID())
	if err := mg.moveReifier(dup, keep); err != nil {
		return err
	}
	if err := moveItemIdentifiers(dup, keep); err != nil {
		return err
	}
	return dup.Remove()
}

// moveReifier hands the reifier of from to to. When both are reified the
// two reifiers are merged.
func (mg *merger) moveReifier(from, to tm.Reifiable) error {
	r := from.Reifier()
	if r == nil {
		return nil
	}
	if err := from.SetReifier(nil); err != nil {
		return err
	}
	cur := to.Reifier()
	if cur == nil {
		return to.SetReifier(r)
	}
	mg.e.logger.Debug("reifier collision, cascading merge", "source", r.ID(), "target", cur.ID())
	return mg.topics(r.ID(), cur.ID())
}

func moveItemIdentifiers(from, to tm.Construct) error {
	for _, iri := range from.ItemIdentifiers() {
		if err := from.RemoveItemIdentifier(iri); err != nil {
			return err
		}
		if err := to.AddItemIdentifier(iri); err != nil {
			return err
		}
	}
	return nil
}

// duplicateOf returns the first sibling other than c with the signature
// of c, or a nil C.
func duplicateOf[C tm.Construct](c C, siblings []C) (C, error) {
	var zero C
	sig, err := tm.Signature(c)
	if err != nil {
		return zero, err
	}
	for _, x := range siblings {
		if tm.Construct(x) == tm.Construct(c) {
			continue
		}
		xs, err := tm.Signature(x)
		if err != nil {
			return zero, err
		}
		if xs == sig {
			return x, nil
		}
	}
	return zero, nil
}

func byID[C tm.Construct](a, b C) int {
	return cmp.Compare(a.ID(), b.ID())
}

// replaced returns the ids of scope with s swapped for t.
func replaced(scope []*tm.Topic, s, t *tm.Topic) []tm.ID {
	out := make([]tm.ID, 0, len(scope))
	for _, x := range scope {
		if x == s {
			x = t
		}
		if !slices.Contains(out, x.ID()) {
			out = append(out, x.ID())
		}
	}
	return out
}

func subset(a, b []tm.ID) bool {
	for _, id := range a {
		if !slices.Contains(b, id) {
			return false
		}
	}
	return true
}
