package tm

import (
	"slices"
)

// ID is a construct's internal identity within its topic map.
// Ids come from a monotonic clock and are never reused.
type ID uint64

// NoID is the zero ID; it never identifies a construct.
const NoID ID = 0

// Kind is the closed set of construct kinds.
type Kind int

const (
	KindTopicMap Kind = iota + 1
	KindTopic
	KindAssociation
	KindRole
	KindOccurrence
	KindName
	KindVariant
)

var kindNames = map[Kind]string{
	KindTopicMap:    "topicmap",
	KindTopic:       "topic",
	KindAssociation: "association",
	KindRole:        "role",
	KindOccurrence:  "occurrence",
	KindName:        "name",
	KindVariant:     "variant",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Construct is implemented by every node of the graph.
// The interface is sealed: only the types of this package implement it.
type Construct interface {
	ID() ID
	Kind() Kind
	TopicMap() *TopicMap

	// Parent returns the owning construct, or nil while detached.
	Parent() Construct

	// IsAttached reports whether the parent chain reaches the topic map.
	IsAttached() bool

	// IsRemoved reports whether the construct was destroyed.
	IsRemoved() bool

	ItemIdentifiers() []string
	AddItemIdentifier(iri string) error
	RemoveItemIdentifier(iri string) error

	core() *base
}

// Typed is a construct with exactly one type topic.
type Typed interface {
	Construct
	Type() *Topic
	SetType(t *Topic) error
}

// Scoped is a construct with a set of themes. An empty scope is the
// unconstrained scope.
type Scoped interface {
	Construct
	Scope() []*Topic
	AddTheme(t *Topic) error
	RemoveTheme(t *Topic) error
	ReplaceTheme(old, t *Topic) error
}

// Reifiable is a construct that may be reified by a topic.
type Reifiable interface {
	Construct
	Reifier() *Topic
	SetReifier(t *Topic) error
}

// Literal is the immutable (value, datatype) pair carried by occurrences
// and variants. Names carry a Literal with datatype xsd:string.
type Literal struct {
	Value    string
	Datatype string
}

// base is embedded by every construct: id, ownership and item identifiers.
type base struct {
	id      ID
	m       *TopicMap
	self    Construct
	parent  ID
	iids    []string
	removed bool
}

func (b *base) ID() ID              { return b.id }
func (b *base) TopicMap() *TopicMap { return b.m }
func (b *base) IsRemoved() bool     { return b.removed }
func (b *base) core() *base         { return b }

func (b *base) Parent() Construct {
	if b.parent == NoID {
		return nil
	}
	if c, ok := b.m.arena[b.parent]; ok {
		return c
	}
	return nil
}

func (b *base) IsAttached() bool {
	if b.removed {
		return false
	}
	if b.self.Kind() == KindTopicMap {
		return true
	}
	p := b.Parent()
	return p != nil && p.IsAttached()
}

func (b *base) ItemIdentifiers() []string {
	return slices.Clone(b.iids)
}

func (b *base) AddItemIdentifier(iri string) error {
	if err := b.checkLive(); err != nil {
		return err
	}
	norm, err := b.m.normalize(iri, b.self)
	if err != nil {
		return err
	}
	if slices.Contains(b.iids, norm) {
		return nil
	}
	return b.m.addIdentity(b.self, ItemIdentifier, norm, func() {
		b.iids = append(b.iids, norm)
	})
}

func (b *base) RemoveItemIdentifier(iri string) error {
	if err := b.checkLive(); err != nil {
		return err
	}
	norm, err := b.m.normalize(iri, b.self)
	if err != nil {
		return err
	}
	if !slices.Contains(b.iids, norm) {
		return nil
	}
	b.m.removeIdentity(b.self, ItemIdentifier, norm, func() {
		b.iids = slices.DeleteFunc(b.iids, func(s string) bool { return s == norm })
	})
	return nil
}

func (b *base) checkLive() error {
	if b.removed {
		return violation(CodeRemovedConstruct, b.self, "construct was removed")
	}
	return nil
}

// typed holds the type reference of associations, roles, occurrences and names.
type typed struct {
	b   *base
	typ ID
}

// Type returns the type topic, following merge redirects.
func (x *typed) Type() *Topic {
	return x.b.m.topic(x.typ)
}

// SetType changes the type. A nil type is rejected.
func (x *typed) SetType(t *Topic) error {
	if err := x.b.checkLive(); err != nil {
		return err
	}
	if err := x.b.m.checkTopicArg(t, x.b.self, "type"); err != nil {
		return err
	}
	old := x.Type()
	if old == t {
		return nil
	}
	x.b.m.bus.fire(EventSetType, x.b.self, old, t)
	x.b.m.unref(old, x.b.id)
	x.b.m.ref(t, x.b.id)
	x.typ = t.id
	return nil
}

// scoped holds the themes of associations, occurrences, names and variants.
type scoped struct {
	b        *base
	themes   []ID
	validate func(next []ID) error
}

// Scope returns the themes, following merge redirects. Empty means UCS.
func (x *scoped) Scope() []*Topic {
	return x.b.m.topicsOf(x.themeIDs())
}

// themeIDs returns the resolved, deduplicated theme ids in insertion order.
func (x *scoped) themeIDs() []ID {
	out := make([]ID, 0, len(x.themes))
	for _, id := range x.themes {
		r := x.b.m.Resolve(id)
		if !slices.Contains(out, r) {
			out = append(out, r)
		}
	}
	return out
}

func (x *scoped) AddTheme(t *Topic) error {
	if err := x.b.checkLive(); err != nil {
		return err
	}
	if err := x.b.m.checkTopicArg(t, x.b.self, "theme"); err != nil {
		return err
	}
	cur := x.themeIDs()
	if slices.Contains(cur, t.id) {
		return nil
	}
	return x.setScope(append(cur, t.id))
}

func (x *scoped) RemoveTheme(t *Topic) error {
	if err := x.b.checkLive(); err != nil {
		return err
	}
	if t == nil {
		return violation(CodeNilArgument, x.b.self, "theme must not be nil")
	}
	cur := x.themeIDs()
	if !slices.Contains(cur, t.id) {
		return nil
	}
	return x.setScope(slices.DeleteFunc(cur, func(id ID) bool { return id == t.id }))
}

// ReplaceTheme swaps old for t in a single scope change.
func (x *scoped) ReplaceTheme(old, t *Topic) error {
	if err := x.b.checkLive(); err != nil {
		return err
	}
	if old == nil {
		return violation(CodeNilArgument, x.b.self, "theme must not be nil")
	}
	if err := x.b.m.checkTopicArg(t, x.b.self, "theme"); err != nil {
		return err
	}
	cur := x.themeIDs()
	if !slices.Contains(cur, old.id) || old == t {
		return nil
	}
	next := make([]ID, 0, len(cur))
	for _, id := range cur {
		if id == old.id {
			id = t.id
		}
		if !slices.Contains(next, id) {
			next = append(next, id)
		}
	}
	return x.setScope(next)
}

func (x *scoped) setScope(next []ID) error {
	if x.validate != nil {
		if err := x.validate(next); err != nil {
			return err
		}
	}
	m := x.b.m
	m.bus.fire(EventSetScope, x.b.self, x.Scope(), m.topicsOf(next))
	x.unrefThemes()
	for _, id := range next {
		m.ref(m.topic(id), x.b.id)
	}
	x.themes = next
	return nil
}

func (x *scoped) unrefThemes() {
	for _, id := range x.themes {
		x.b.m.unref(x.b.m.topic(id), x.b.id)
	}
}

// reifiable holds the reifier reference.
type reifiable struct {
	b       *base
	reifier ID
}

// Reifier returns the reifying topic or nil.
func (x *reifiable) Reifier() *Topic {
	return x.b.m.topic(x.reifier)
}

// SetReifier makes t reify this construct. nil clears the reifier.
// A topic that already reifies another construct is rejected.
func (x *reifiable) SetReifier(t *Topic) error {
	if err := x.b.checkLive(); err != nil {
		return err
	}
	if t != nil {
		if err := x.b.m.checkTopicArg(t, x.b.self, "reifier"); err != nil {
			return err
		}
		if other := t.Reified(); other != nil && other.ID() != x.b.id {
			return violation(CodeReifierConflict, x.b.self,
				"%s already reifies %s", Describe(t), Describe(other))
		}
	}
	old := x.Reifier()
	if old == t {
		return nil
	}
	x.b.m.bus.fire(EventSetReifier, x.b.self, old, t)
	if old != nil {
		old.reified = NoID
	}
	x.reifier = NoID
	if t != nil {
		t.reified = x.b.id
		x.reifier = t.id
	}
	return nil
}

// reifiableCore is satisfied by every construct embedding reifiable.
type reifiableCore interface {
	Reifier() *Topic
	sever()
}

// sever drops the reification link without firing an event.
// Used when the reified construct is destroyed.
func (x *reifiable) sever() {
	if r := x.Reifier(); r != nil && r.reified == x.b.id {
		r.reified = NoID
	}
	x.reifier = NoID
}

// literal holds the value of occurrences and variants.
type literal struct {
	b   *base
	lit Literal
}

func (x *literal) Value() string    { return x.lit.Value }
func (x *literal) Datatype() string { return x.lit.Datatype }
func (x *literal) Literal() Literal { return x.lit }

// SetLiteral replaces value and datatype. An empty datatype means xsd:string.
func (x *literal) SetLiteral(value, datatype string) error {
	if err := x.b.checkLive(); err != nil {
		return err
	}
	dt, err := x.b.m.datatype(datatype, x.b.self)
	if err != nil {
		return err
	}
	next := Literal{Value: value, Datatype: dt}
	if next == x.lit {
		return nil
	}
	x.b.m.bus.fire(EventSetValue, x.b.self, x.lit, next)
	x.lit = next
	return nil
}

// SetValue replaces the value and keeps the datatype.
func (x *literal) SetValue(value string) error {
	return x.SetLiteral(value, x.lit.Datatype)
}
