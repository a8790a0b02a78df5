package tm

// IdentityKind is one of the three TMDM identity mechanisms.
type IdentityKind int

const (
	ItemIdentifier IdentityKind = iota
	SubjectIdentifier
	SubjectLocator
	numIdentityKinds
)

func (k IdentityKind) String() string {
	switch k {
	case ItemIdentifier:
		return "item-identifier"
	case SubjectIdentifier:
		return "subject-identifier"
	case SubjectLocator:
		return "subject-locator"
	default:
		return "unknown"
	}
}

// identityIndex maps normalized IRIs to construct ids, one table per
// identity kind. The id -> construct mapping is the topic map's arena.
//
// The index is a pure constraint oracle: it rejects a claim that would
// break uniqueness and reports the current holder. It never merges.
type identityIndex struct {
	m      *TopicMap
	tables [numIdentityKinds]map[string]ID
}

func newIdentityIndex(m *TopicMap) *identityIndex {
	x := &identityIndex{m: m}
	for k := range x.tables {
		x.tables[k] = make(map[string]ID)
	}
	return x
}

// claim is one identity held by one construct.
type claim struct {
	c    Construct
	kind IdentityKind
	iri  string
}

// overlay holds claims accepted during a subtree pre-check but not yet
// written to the tables.
type overlay [numIdentityKinds]map[string]ID

func (x *identityIndex) owner(kind IdentityKind, iri string, pending *overlay) ID {
	if id, ok := x.tables[kind][iri]; ok {
		return id
	}
	if pending != nil && pending[kind] != nil {
		if id, ok := pending[kind][iri]; ok {
			return id
		}
	}
	return NoID
}

// lookup returns the construct holding iri under kind, or nil.
func (x *identityIndex) lookup(kind IdentityKind, iri string) Construct {
	id := x.owner(kind, iri, nil)
	if id == NoID {
		return nil
	}
	return x.m.arena[id]
}

// check reports whether c may hold iri under kind.
//
// Rules:
//   - an item identifier maps to at most one construct
//   - a subject identifier maps to at most one topic
//   - a subject locator maps to at most one topic
//   - an IRI used as a subject identifier of one topic may only be an item
//     identifier of that same topic, and vice versa
func (x *identityIndex) check(c Construct, kind IdentityKind, iri string, pending *overlay) error {
	var cross IdentityKind = -1
	switch kind {
	case ItemIdentifier:
		cross = SubjectIdentifier
	case SubjectIdentifier:
		cross = ItemIdentifier
	}
	if id := x.owner(kind, iri, pending); id != NoID && id != c.ID() {
		return x.collision(c, kind, iri, id)
	}
	if cross >= 0 {
		if id := x.owner(cross, iri, pending); id != NoID && id != c.ID() {
			return x.collision(c, kind, iri, id)
		}
	}
	return nil
}

func (x *identityIndex) collision(c Construct, kind IdentityKind, iri string, existing ID) *IdentityViolation {
	return &IdentityViolation{
		Kind:      kind,
		IRI:       iri,
		Construct: c,
		Existing:  x.m.arena[existing],
	}
}

// register claims iri for c. On failure no table changes.
func (x *identityIndex) register(c Construct, kind IdentityKind, iri string) error {
	if err := x.check(c, kind, iri, nil); err != nil {
		return err
	}
	x.tables[kind][iri] = c.ID()
	return nil
}

// unregister drops iri if c holds it.
func (x *identityIndex) unregister(c Construct, kind IdentityKind, iri string) {
	if x.tables[kind][iri] == c.ID() {
		delete(x.tables[kind], iri)
	}
}

// registerSubtree claims every identity in the subtree rooted at root.
// All claims are checked first, including against each other, so either
// all are written or none is.
func (x *identityIndex) registerSubtree(root Construct) error {
	claims := subtreeClaims(root)
	var pending overlay
	for _, cl := range claims {
		if err := x.check(cl.c, cl.kind, cl.iri, &pending); err != nil {
			return err
		}
		if pending[cl.kind] == nil {
			pending[cl.kind] = make(map[string]ID)
		}
		pending[cl.kind][cl.iri] = cl.c.ID()
	}
	for _, cl := range claims {
		x.tables[cl.kind][cl.iri] = cl.c.ID()
	}
	return nil
}

// unregisterSubtree drops every identity in the subtree rooted at root.
func (x *identityIndex) unregisterSubtree(root Construct) {
	for _, cl := range subtreeClaims(root) {
		x.unregister(cl.c, cl.kind, cl.iri)
	}
}

func subtreeClaims(root Construct) []claim {
	var claims []claim
	walk(root, func(c Construct) {
		for _, iri := range c.core().iids {
			claims = append(claims, claim{c, ItemIdentifier, iri})
		}
		if t, ok := c.(*Topic); ok {
			for _, iri := range t.sids {
				claims = append(claims, claim{c, SubjectIdentifier, iri})
			}
			for _, iri := range t.slos {
				claims = append(claims, claim{c, SubjectLocator, iri})
			}
		}
	})
	return claims
}

// size returns the number of identities held per kind.
func (x *identityIndex) size(kind IdentityKind) int {
	return len(x.tables[kind])
}
