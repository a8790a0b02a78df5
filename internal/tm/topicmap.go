package tm

import (
	"cmp"
	"slices"

	"github.com/heuer/mappa/internal/ir"
)

// TopicMap is the root container of the construct graph.
//
// It owns an arena of every live construct keyed by ID. Owning edges are
// child id lists; referencing edges (type, theme, player, reifier) are ids
// resolved through the arena at read time, following the redirect table
// left behind by merges.
//
// Thread-safety: a TopicMap is single-writer. At most one mutating call may
// be in flight; reads are safe only while no mutation is running.
type TopicMap struct {
	base
	reifiable

	baseLocator  string
	topics       []ID
	associations []ID

	arena    map[ID]Construct
	redirect map[ID]ID
	index    *identityIndex
	bus      *Bus
	ids      *Clock
	idgen    IDGenerator
}

// Option configures a TopicMap.
type Option func(*TopicMap)

// WithIDGenerator sets the generator used for item identifiers of topics
// created by CreateTopic.
func WithIDGenerator(g IDGenerator) Option {
	return func(m *TopicMap) {
		m.idgen = g
	}
}

// New creates an empty topic map. baseLocator must be an absolute IRI; it
// resolves relative identifiers passed to the map's mutators.
func New(baseLocator string, opts ...Option) (*TopicMap, error) {
	loc, err := ir.NormalizeIRI(baseLocator)
	if err != nil {
		return nil, &ModelConstraintViolation{
			Code:    CodeInvalidIRI,
			Message: "invalid base locator " + baseLocator,
			Err:     err,
		}
	}
	m := &TopicMap{
		baseLocator: loc,
		arena:       make(map[ID]Construct),
		redirect:    make(map[ID]ID),
		bus:         newBus(),
		ids:         NewClock(),
		idgen:       UUIDv7Generator{},
	}
	m.index = newIdentityIndex(m)
	m.base = base{m: m, self: m}
	m.reifiable = reifiable{b: &m.base}
	m.register(&m.base)
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Kind returns KindTopicMap.
func (m *TopicMap) Kind() Kind { return KindTopicMap }

// BaseLocator returns the normalized base locator.
func (m *TopicMap) BaseLocator() string { return m.baseLocator }

// Bus returns the map's event bus.
func (m *TopicMap) Bus() *Bus { return m.bus }

// Builder returns a builder for detached constructs of this map.
func (m *TopicMap) Builder() *Builder { return &Builder{m: m} }

// Topics returns the attached topics in insertion order.
func (m *TopicMap) Topics() []*Topic {
	return m.topicsOf(m.topics)
}

// Associations returns the attached associations in insertion order.
func (m *TopicMap) Associations() []*Association {
	out := make([]*Association, 0, len(m.associations))
	for _, id := range m.associations {
		out = append(out, m.arena[id].(*Association))
	}
	return out
}

// Resolve follows the redirect table from id to the surviving id.
func (m *TopicMap) Resolve(id ID) ID {
	for {
		next, ok := m.redirect[id]
		if !ok {
			return id
		}
		id = next
	}
}

// ConstructByID returns the live construct for id, following redirects.
func (m *TopicMap) ConstructByID(id ID) Construct {
	if c, ok := m.arena[m.Resolve(id)]; ok {
		return c
	}
	return nil
}

// TopicByID returns the live topic for id, following redirects.
func (m *TopicMap) TopicByID(id ID) *Topic {
	return m.topic(id)
}

// TopicBySubjectIdentifier returns the attached topic holding iri as a
// subject identifier, or nil.
func (m *TopicMap) TopicBySubjectIdentifier(iri string) *Topic {
	norm, err := ir.ResolveIRI(m.baseLocator, iri)
	if err != nil {
		return nil
	}
	t, _ := m.index.lookup(SubjectIdentifier, norm).(*Topic)
	return t
}

// TopicBySubjectLocator returns the attached topic holding iri as a
// subject locator, or nil.
func (m *TopicMap) TopicBySubjectLocator(iri string) *Topic {
	norm, err := ir.ResolveIRI(m.baseLocator, iri)
	if err != nil {
		return nil
	}
	t, _ := m.index.lookup(SubjectLocator, norm).(*Topic)
	return t
}

// ConstructByItemIdentifier returns the attached construct holding iri as
// an item identifier, or nil.
func (m *TopicMap) ConstructByItemIdentifier(iri string) Construct {
	norm, err := ir.ResolveIRI(m.baseLocator, iri)
	if err != nil {
		return nil
	}
	return m.index.lookup(ItemIdentifier, norm)
}

// IdentityCount returns how many identifiers of kind are registered.
func (m *TopicMap) IdentityCount(kind IdentityKind) int {
	return m.index.size(kind)
}

// CreateTopic creates and attaches a topic with a generated item identifier.
func (m *TopicMap) CreateTopic() (*Topic, error) {
	t := m.Builder().Topic()
	t.iids = append(t.iids, m.idgen.Generate())
	if err := m.AddTopic(t); err != nil {
		m.destroySubtree(t)
		return nil, err
	}
	return t, nil
}

// CreateTopicBySubjectIdentifier returns the topic holding iri as subject
// identifier. A topic holding iri as item identifier gains it as subject
// identifier. Otherwise a new topic is created.
func (m *TopicMap) CreateTopicBySubjectIdentifier(iri string) (*Topic, error) {
	norm, err := m.normalize(iri, m)
	if err != nil {
		return nil, err
	}
	if t, ok := m.index.lookup(SubjectIdentifier, norm).(*Topic); ok {
		return t, nil
	}
	if t, ok := m.index.lookup(ItemIdentifier, norm).(*Topic); ok {
		if err := t.AddSubjectIdentifier(norm); err != nil {
			return nil, err
		}
		return t, nil
	}
	t := m.Builder().Topic()
	t.sids = append(t.sids, norm)
	if err := m.AddTopic(t); err != nil {
		m.destroySubtree(t)
		return nil, err
	}
	return t, nil
}

// CreateTopicBySubjectLocator returns the topic holding iri as subject
// locator, creating it when absent.
func (m *TopicMap) CreateTopicBySubjectLocator(iri string) (*Topic, error) {
	norm, err := m.normalize(iri, m)
	if err != nil {
		return nil, err
	}
	if t, ok := m.index.lookup(SubjectLocator, norm).(*Topic); ok {
		return t, nil
	}
	t := m.Builder().Topic()
	t.slos = append(t.slos, norm)
	if err := m.AddTopic(t); err != nil {
		m.destroySubtree(t)
		return nil, err
	}
	return t, nil
}

// CreateTopicByItemIdentifier returns the topic holding iri as item
// identifier. A topic holding iri as subject identifier gains it as item
// identifier. If a construct other than a topic holds iri, an
// IdentityViolation is returned.
func (m *TopicMap) CreateTopicByItemIdentifier(iri string) (*Topic, error) {
	norm, err := m.normalize(iri, m)
	if err != nil {
		return nil, err
	}
	if c := m.index.lookup(ItemIdentifier, norm); c != nil {
		if t, ok := c.(*Topic); ok {
			return t, nil
		}
		return nil, &IdentityViolation{Kind: ItemIdentifier, IRI: norm, Construct: m, Existing: c}
	}
	if t, ok := m.index.lookup(SubjectIdentifier, norm).(*Topic); ok {
		if err := t.AddItemIdentifier(norm); err != nil {
			return nil, err
		}
		return t, nil
	}
	t := m.Builder().Topic()
	t.iids = append(t.iids, norm)
	if err := m.AddTopic(t); err != nil {
		m.destroySubtree(t)
		return nil, err
	}
	return t, nil
}

// CreateAssociation creates and attaches an association without roles.
func (m *TopicMap) CreateAssociation(typ *Topic, scope ...*Topic) (*Association, error) {
	a, err := m.Builder().Association(typ, scope...)
	if err != nil {
		return nil, err
	}
	if err := m.AddAssociation(a); err != nil {
		m.destroySubtree(a)
		return nil, err
	}
	return a, nil
}

// AddTopic attaches t to the map, registering every identity of t and its
// characteristics. Adding an already attached topic is a no-op.
func (m *TopicMap) AddTopic(t *Topic) error {
	if t == nil {
		return violation(CodeNilArgument, m, "topic must not be nil")
	}
	return m.attach(m, t)
}

// DetachTopic detaches t. The topic keeps its characteristics and may be
// attached again. A topic used outside its own subtree cannot be detached.
func (m *TopicMap) DetachTopic(t *Topic) error {
	if t == nil {
		return violation(CodeNilArgument, m, "topic must not be nil")
	}
	return m.detach(m, t)
}

// AddAssociation attaches a to the map.
func (m *TopicMap) AddAssociation(a *Association) error {
	if a == nil {
		return violation(CodeNilArgument, m, "association must not be nil")
	}
	return m.attach(m, a)
}

// DetachAssociation detaches a. Its roles stay with it.
func (m *TopicMap) DetachAssociation(a *Association) error {
	if a == nil {
		return violation(CodeNilArgument, m, "association must not be nil")
	}
	return m.detach(m, a)
}

// Alias retires source in favour of target: source is unlinked and dropped
// from the arena, and its id redirects to target from then on. Constructs
// still referencing source by id observe target.
//
// Alias is the final step of a topic merge. Source must already be empty:
// no identities, characteristics, played roles or reified construct.
func (m *TopicMap) Alias(source, target *Topic) error {
	if err := m.checkTopicArg(source, m, "source"); err != nil {
		return err
	}
	if err := m.checkTopicArg(target, m, "target"); err != nil {
		return err
	}
	if source == target {
		return nil
	}
	if len(source.iids)+len(source.sids)+len(source.slos) > 0 ||
		len(source.occurrences)+len(source.names)+len(source.played) > 0 ||
		source.reified != NoID {
		return violation(CodeTopicInUse, source, "cannot alias a topic that still has identities or characteristics")
	}
	if source.parent != NoID {
		m.bus.fire(EventRemoveTopic, source, nil, nil)
		source.parent = NoID
		m.unlink(source, m.id)
	}
	for user, n := range source.users {
		target.users[user] += n
	}
	source.users = nil
	delete(m.arena, source.id)
	source.removed = true
	m.redirect[source.id] = target.id
	return nil
}

func (m *TopicMap) register(b *base) {
	b.id = ID(m.ids.Next())
	m.arena[b.id] = b.self
}

func (m *TopicMap) topic(id ID) *Topic {
	if id == NoID {
		return nil
	}
	t, _ := m.arena[m.Resolve(id)].(*Topic)
	return t
}

func (m *TopicMap) topicsOf(ids []ID) []*Topic {
	out := make([]*Topic, 0, len(ids))
	for _, id := range ids {
		if t := m.topic(id); t != nil {
			out = append(out, t)
		}
	}
	return out
}

func (m *TopicMap) checkTopicArg(t *Topic, c Construct, what string) error {
	if t == nil {
		return violation(CodeNilArgument, c, "%s must not be nil", what)
	}
	if t.m != m {
		return violation(CodeForeignMap, c, "%s belongs to another topic map", what)
	}
	if t.removed {
		return violation(CodeRemovedConstruct, c, "%s was removed", what)
	}
	return nil
}

func (m *TopicMap) normalize(iri string, c Construct) (string, error) {
	norm, err := ir.ResolveIRI(m.baseLocator, iri)
	if err != nil {
		return "", &ModelConstraintViolation{
			Code:      CodeInvalidIRI,
			Message:   "cannot normalize " + iri,
			Construct: c,
			Err:       err,
		}
	}
	return norm, nil
}

func (m *TopicMap) datatype(dt string, c Construct) (string, error) {
	if dt == "" {
		return ir.XSDString, nil
	}
	return m.normalize(dt, c)
}

// ref records that user references t as a type or theme.
func (m *TopicMap) ref(t *Topic, user ID) {
	if t != nil {
		t.users[user]++
	}
}

func (m *TopicMap) unref(t *Topic, user ID) {
	if t == nil {
		return
	}
	if t.users[user] <= 1 {
		delete(t.users, user)
		return
	}
	t.users[user]--
}

// addIdentity claims iri for c and commits it. Detached constructs are not
// indexed; their identities are claimed when the subtree is attached.
func (m *TopicMap) addIdentity(c Construct, kind IdentityKind, iri string, commit func()) error {
	if c.IsAttached() {
		if err := m.index.register(c, kind, iri); err != nil {
			return err
		}
	}
	m.bus.fire(identityEvents[kind][0], c, nil, iri)
	commit()
	return nil
}

func (m *TopicMap) removeIdentity(c Construct, kind IdentityKind, iri string, commit func()) {
	m.bus.fire(identityEvents[kind][1], c, iri, nil)
	if c.IsAttached() {
		m.index.unregister(c, kind, iri)
	}
	commit()
}

// attach links child under parent. Identities of the subtree are claimed
// all or nothing when parent is attached.
func (m *TopicMap) attach(parent, child Construct) error {
	pb, cb := parent.core(), child.core()
	if err := pb.checkLive(); err != nil {
		return err
	}
	if err := cb.checkLive(); err != nil {
		return err
	}
	if cb.m != m {
		return violation(CodeForeignMap, parent, "%s belongs to another topic map", Describe(child))
	}
	if cb.parent == pb.id {
		return nil
	}
	if cb.parent != NoID {
		return violation(CodeAlreadyAttached, child, "already attached to %s", Describe(child.Parent()))
	}
	if v, ok := child.(*Variant); ok {
		if err := v.checkScope(v.themeIDs(), parent.(*Name).themeIDs()); err != nil {
			return err
		}
	}
	if parent.IsAttached() {
		if err := m.index.registerSubtree(child); err != nil {
			return err
		}
	}
	cb.parent = pb.id
	m.link(child)
	m.bus.fire(addEvents[child.Kind()], child, nil, nil)
	return nil
}

// detach unlinks child from parent, keeping the subtree intact.
func (m *TopicMap) detach(parent, child Construct) error {
	pb, cb := parent.core(), child.core()
	if err := pb.checkLive(); err != nil {
		return err
	}
	if err := cb.checkLive(); err != nil {
		return err
	}
	if cb.parent != pb.id {
		return nil
	}
	if t, ok := child.(*Topic); ok {
		if err := m.checkUnused(t); err != nil {
			return err
		}
	}
	if child.IsAttached() {
		m.bus.fire(removeEvents[child.Kind()], child, nil, nil)
		m.index.unregisterSubtree(child)
	}
	cb.parent = NoID
	m.unlink(child, pb.id)
	return nil
}

// destroy detaches c and removes its subtree from the arena. Every
// reified construct of an attached subtree fires a Set-reifier event to
// nil before the subtree's Remove event.
func (m *TopicMap) destroy(c Construct) error {
	b := c.core()
	if b.removed {
		return nil
	}
	if t, ok := c.(*Topic); ok {
		if err := m.checkUnused(t); err != nil {
			return err
		}
	}
	if c.IsAttached() {
		walk(c, func(x Construct) {
			if r, ok := x.(reifiableCore); ok && r.Reifier() != nil {
				m.bus.fire(EventSetReifier, x, r.Reifier(), (*Topic)(nil))
			}
		})
	}
	if p := c.Parent(); p != nil {
		if err := m.detach(p, c); err != nil {
			return err
		}
	}
	m.destroySubtree(c)
	return nil
}

// destroySubtree severs every reference held by the subtree and drops it
// from the arena. The subtree must already be detached.
func (m *TopicMap) destroySubtree(c Construct) {
	for _, child := range children(c) {
		m.destroySubtree(child)
	}
	switch x := c.(type) {
	case *Topic:
		if r, ok := m.arena[x.reified].(reifiableCore); ok && r.Reifier() == x {
			r.sever()
		}
		x.reified = NoID
	case *Association:
		m.unref(x.Type(), x.id)
		x.unrefThemes()
		x.sever()
	case *Role:
		m.unref(x.Type(), x.id)
		if p := x.Player(); p != nil {
			delete(p.played, x.id)
		}
		x.sever()
	case *Occurrence:
		m.unref(x.Type(), x.id)
		x.unrefThemes()
		x.sever()
	case *Name:
		m.unref(x.Type(), x.id)
		x.unrefThemes()
		x.sever()
	case *Variant:
		x.unrefThemes()
		x.sever()
	}
	b := c.core()
	b.parent = NoID
	b.removed = true
	delete(m.arena, b.id)
}

// checkUnused rejects detaching or removing t while something outside its
// own subtree references it.
func (m *TopicMap) checkUnused(t *Topic) error {
	for _, user := range sortedIDs(t.users) {
		if !m.within(user, t) {
			return violation(CodeTopicInUse, t, "referenced by %s", Describe(m.arena[user]))
		}
	}
	for _, role := range sortedIDs(t.played) {
		if !m.within(role, t) {
			return violation(CodeTopicInUse, t, "plays %s", Describe(m.arena[role]))
		}
	}
	if t.reified != NoID && !m.within(t.reified, t) {
		return violation(CodeTopicInUse, t, "reifies %s", Describe(m.arena[t.reified]))
	}
	return nil
}

// within reports whether the construct id lies in the subtree of root.
func (m *TopicMap) within(id ID, root Construct) bool {
	for c := m.arena[id]; c != nil; c = c.Parent() {
		if c.ID() == root.ID() {
			return true
		}
	}
	return false
}

func (m *TopicMap) link(child Construct) {
	switch x := child.(type) {
	case *Topic:
		m.topics = append(m.topics, x.id)
	case *Association:
		m.associations = append(m.associations, x.id)
	case *Role:
		a := m.arena[x.parent].(*Association)
		a.roles = append(a.roles, x.id)
	case *Occurrence:
		t := m.arena[x.parent].(*Topic)
		t.occurrences = append(t.occurrences, x.id)
	case *Name:
		t := m.arena[x.parent].(*Topic)
		t.names = append(t.names, x.id)
	case *Variant:
		n := m.arena[x.parent].(*Name)
		n.variants = append(n.variants, x.id)
	}
}

// unlink drops child from the child list of parent.
func (m *TopicMap) unlink(child Construct, parent ID) {
	id := child.ID()
	drop := func(ids []ID) []ID {
		return slices.DeleteFunc(ids, func(x ID) bool { return x == id })
	}
	switch child.(type) {
	case *Topic:
		m.topics = drop(m.topics)
	case *Association:
		m.associations = drop(m.associations)
	case *Role:
		a := m.arena[parent].(*Association)
		a.roles = drop(a.roles)
	case *Occurrence:
		t := m.arena[parent].(*Topic)
		t.occurrences = drop(t.occurrences)
	case *Name:
		t := m.arena[parent].(*Topic)
		t.names = drop(t.names)
	case *Variant:
		n := m.arena[parent].(*Name)
		n.variants = drop(n.variants)
	}
}

// children returns the constructs directly owned by c.
func children(c Construct) []Construct {
	var out []Construct
	switch x := c.(type) {
	case *TopicMap:
		for _, t := range x.Topics() {
			out = append(out, t)
		}
		for _, a := range x.Associations() {
			out = append(out, a)
		}
	case *Topic:
		for _, o := range x.Occurrences() {
			out = append(out, o)
		}
		for _, n := range x.Names() {
			out = append(out, n)
		}
	case *Association:
		for _, r := range x.Roles() {
			out = append(out, r)
		}
	case *Name:
		for _, v := range x.Variants() {
			out = append(out, v)
		}
	}
	return out
}

// walk visits c and its subtree depth-first, parents before children.
func walk(c Construct, fn func(Construct)) {
	fn(c)
	for _, child := range children(c) {
		walk(child, fn)
	}
}

// Walk visits every attached construct of the map depth-first, the map
// itself first.
func (m *TopicMap) Walk(fn func(Construct)) {
	walk(m, fn)
}

// byID orders constructs by ascending id.
func byID[C Construct](a, b C) int {
	return cmp.Compare(a.ID(), b.ID())
}

func sortedIDs[V any](set map[ID]V) []ID {
	ids := make([]ID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
