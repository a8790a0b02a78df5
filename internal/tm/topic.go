package tm

import (
	"slices"

	"github.com/heuer/mappa/internal/ir"
)

// Topic is a subject proxy. It owns its occurrences and names; played
// roles and the reified construct are weak references held as ids.
type Topic struct {
	base

	sids        []string
	slos        []string
	occurrences []ID
	names       []ID
	played      map[ID]struct{}
	reified     ID

	// users counts type and theme references per referencing construct.
	users map[ID]int
}

// Kind returns KindTopic.
func (t *Topic) Kind() Kind { return KindTopic }

// SubjectIdentifiers returns the subject identifiers in insertion order.
func (t *Topic) SubjectIdentifiers() []string { return slices.Clone(t.sids) }

// SubjectLocators returns the subject locators in insertion order.
func (t *Topic) SubjectLocators() []string { return slices.Clone(t.slos) }

// AddSubjectIdentifier adds iri after resolving it against the base
// locator. Fails with an IdentityViolation when another topic holds iri as
// subject identifier, or another construct holds it as item identifier.
func (t *Topic) AddSubjectIdentifier(iri string) error {
	return t.addIRI(SubjectIdentifier, &t.sids, iri)
}

// RemoveSubjectIdentifier removes iri. Removing an absent IRI is a no-op.
func (t *Topic) RemoveSubjectIdentifier(iri string) error {
	return t.removeIRI(SubjectIdentifier, &t.sids, iri)
}

// AddSubjectLocator adds iri after resolving it against the base locator.
func (t *Topic) AddSubjectLocator(iri string) error {
	return t.addIRI(SubjectLocator, &t.slos, iri)
}

// RemoveSubjectLocator removes iri. Removing an absent IRI is a no-op.
func (t *Topic) RemoveSubjectLocator(iri string) error {
	return t.removeIRI(SubjectLocator, &t.slos, iri)
}

func (t *Topic) addIRI(kind IdentityKind, set *[]string, iri string) error {
	if err := t.checkLive(); err != nil {
		return err
	}
	norm, err := t.m.normalize(iri, t)
	if err != nil {
		return err
	}
	if slices.Contains(*set, norm) {
		return nil
	}
	return t.m.addIdentity(t, kind, norm, func() {
		*set = append(*set, norm)
	})
}

func (t *Topic) removeIRI(kind IdentityKind, set *[]string, iri string) error {
	if err := t.checkLive(); err != nil {
		return err
	}
	norm, err := t.m.normalize(iri, t)
	if err != nil {
		return err
	}
	if !slices.Contains(*set, norm) {
		return nil
	}
	t.m.removeIdentity(t, kind, norm, func() {
		*set = slices.DeleteFunc(*set, func(s string) bool { return s == norm })
	})
	return nil
}

// Occurrences returns the owned occurrences in insertion order.
func (t *Topic) Occurrences() []*Occurrence {
	out := make([]*Occurrence, 0, len(t.occurrences))
	for _, id := range t.occurrences {
		out = append(out, t.m.arena[id].(*Occurrence))
	}
	return out
}

// Names returns the owned names in insertion order.
func (t *Topic) Names() []*Name {
	out := make([]*Name, 0, len(t.names))
	for _, id := range t.names {
		out = append(out, t.m.arena[id].(*Name))
	}
	return out
}

// RolesPlayed returns every live role played by t, attached or not,
// ordered by id.
func (t *Topic) RolesPlayed() []*Role {
	out := make([]*Role, 0, len(t.played))
	for _, id := range sortedIDs(t.played) {
		out = append(out, t.m.arena[id].(*Role))
	}
	return out
}

// Reified returns the construct t reifies, or nil.
func (t *Topic) Reified() Construct {
	if t.reified == NoID {
		return nil
	}
	return t.m.arena[t.reified]
}

// AddOccurrence attaches o to t.
func (t *Topic) AddOccurrence(o *Occurrence) error {
	if o == nil {
		return violation(CodeNilArgument, t, "occurrence must not be nil")
	}
	return t.m.attach(t, o)
}

// DetachOccurrence detaches o from t, keeping o intact.
func (t *Topic) DetachOccurrence(o *Occurrence) error {
	if o == nil {
		return violation(CodeNilArgument, t, "occurrence must not be nil")
	}
	return t.m.detach(t, o)
}

// AddName attaches n and its variants to t.
func (t *Topic) AddName(n *Name) error {
	if n == nil {
		return violation(CodeNilArgument, t, "name must not be nil")
	}
	return t.m.attach(t, n)
}

// DetachName detaches n from t, keeping n and its variants intact.
func (t *Topic) DetachName(n *Name) error {
	if n == nil {
		return violation(CodeNilArgument, t, "name must not be nil")
	}
	return t.m.detach(t, n)
}

// CreateOccurrence creates and attaches an occurrence. An empty datatype
// means xsd:string.
func (t *Topic) CreateOccurrence(typ *Topic, value, datatype string, scope ...*Topic) (*Occurrence, error) {
	o, err := t.m.Builder().Occurrence(typ, value, datatype, scope...)
	if err != nil {
		return nil, err
	}
	if err := t.AddOccurrence(o); err != nil {
		t.m.destroySubtree(o)
		return nil, err
	}
	return o, nil
}

// CreateName creates and attaches a name. A nil type means the default
// topic-name type.
func (t *Topic) CreateName(typ *Topic, value string, scope ...*Topic) (*Name, error) {
	n, err := t.m.Builder().Name(typ, value, scope...)
	if err != nil {
		return nil, err
	}
	if err := t.AddName(n); err != nil {
		t.m.destroySubtree(n)
		return nil, err
	}
	return n, nil
}

// Types returns the topics t is an instance of, taken from attached
// type-instance associations, ordered by id.
func (t *Topic) Types() []*Topic {
	ti, typeRole, instRole := t.typeInstanceTopics()
	if ti == nil || typeRole == nil || instRole == nil {
		return nil
	}
	var out []*Topic
	for _, r := range t.RolesPlayed() {
		a := r.Association()
		if a == nil || !a.IsAttached() || r.Type() != instRole || a.Type() != ti {
			continue
		}
		for _, other := range a.Roles() {
			if other.Type() == typeRole && !slices.Contains(out, other.Player()) {
				out = append(out, other.Player())
			}
		}
	}
	slices.SortFunc(out, byID[*Topic])
	return out
}

// AddType makes t an instance of typ through a type-instance association.
// Adding a type t already has is a no-op.
func (t *Topic) AddType(typ *Topic) error {
	if err := t.checkLive(); err != nil {
		return err
	}
	if err := t.m.checkTopicArg(typ, t, "type"); err != nil {
		return err
	}
	if slices.Contains(t.Types(), typ) {
		return nil
	}
	ti, err := t.m.CreateTopicBySubjectIdentifier(ir.PSITypeInstance)
	if err != nil {
		return err
	}
	typeRole, err := t.m.CreateTopicBySubjectIdentifier(ir.PSIType)
	if err != nil {
		return err
	}
	instRole, err := t.m.CreateTopicBySubjectIdentifier(ir.PSIInstance)
	if err != nil {
		return err
	}
	b := t.m.Builder()
	a, err := b.Association(ti)
	if err != nil {
		return err
	}
	for _, pair := range [][2]*Topic{{typeRole, typ}, {instRole, t}} {
		r, err := b.Role(pair[0], pair[1])
		if err == nil {
			err = a.AddRole(r)
		}
		if err != nil {
			t.m.destroySubtree(a)
			return err
		}
	}
	if err := t.m.AddAssociation(a); err != nil {
		t.m.destroySubtree(a)
		return err
	}
	return nil
}

// RemoveType removes every attached type-instance association stating
// that t is an instance of typ.
func (t *Topic) RemoveType(typ *Topic) error {
	if err := t.checkLive(); err != nil {
		return err
	}
	if err := t.m.checkTopicArg(typ, t, "type"); err != nil {
		return err
	}
	ti, typeRole, instRole := t.typeInstanceTopics()
	if ti == nil {
		return nil
	}
	for _, r := range t.RolesPlayed() {
		a := r.Association()
		if a == nil || !a.IsAttached() || a.Type() != ti || r.Type() != instRole {
			continue
		}
		for _, other := range a.Roles() {
			if other.Type() == typeRole && other.Player() == typ {
				if err := a.Remove(); err != nil {
					return err
				}
				break
			}
		}
	}
	return nil
}

func (t *Topic) typeInstanceTopics() (ti, typeRole, instRole *Topic) {
	return t.m.TopicBySubjectIdentifier(ir.PSITypeInstance),
		t.m.TopicBySubjectIdentifier(ir.PSIType),
		t.m.TopicBySubjectIdentifier(ir.PSIInstance)
}

// Remove destroys t with its occurrences and names. A topic still used as
// type, theme, player or reifier outside its own subtree cannot be removed.
func (t *Topic) Remove() error {
	return t.m.destroy(t)
}
