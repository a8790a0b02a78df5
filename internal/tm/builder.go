package tm

import (
	"slices"

	"github.com/heuer/mappa/internal/ir"
)

// Builder creates detached constructs bound to one topic map.
//
// A detached construct fires no events and claims no identities until it
// is added to an attached parent. Builders validate arguments up front, so
// a failed call registers nothing.
type Builder struct {
	m *TopicMap
}

// Topic creates a detached topic without identities.
func (b *Builder) Topic() *Topic {
	t := &Topic{
		played: make(map[ID]struct{}),
		users:  make(map[ID]int),
	}
	t.base = base{m: b.m, self: t}
	b.m.register(&t.base)
	return t
}

// Association creates a detached association without roles.
func (b *Builder) Association(typ *Topic, scope ...*Topic) (*Association, error) {
	if err := b.m.checkTopicArg(typ, nil, "association type"); err != nil {
		return nil, err
	}
	themes, err := b.themes(scope)
	if err != nil {
		return nil, err
	}
	a := &Association{}
	a.base = base{m: b.m, self: a}
	b.m.register(&a.base)
	a.typed = typed{b: &a.base}
	a.reifiable = reifiable{b: &a.base}
	a.scoped = scoped{b: &a.base}
	b.initTyped(&a.typed, typ)
	b.initScoped(&a.scoped, themes)
	return a, nil
}

// Role creates a detached role.
func (b *Builder) Role(typ, player *Topic) (*Role, error) {
	if err := b.m.checkTopicArg(typ, nil, "role type"); err != nil {
		return nil, err
	}
	if err := b.m.checkTopicArg(player, nil, "player"); err != nil {
		return nil, err
	}
	r := &Role{}
	r.base = base{m: b.m, self: r}
	b.m.register(&r.base)
	r.typed = typed{b: &r.base}
	r.reifiable = reifiable{b: &r.base}
	b.initTyped(&r.typed, typ)
	r.player = player.id
	player.played[r.id] = struct{}{}
	return r, nil
}

// Occurrence creates a detached occurrence. An empty datatype means
// xsd:string.
func (b *Builder) Occurrence(typ *Topic, value, datatype string, scope ...*Topic) (*Occurrence, error) {
	if err := b.m.checkTopicArg(typ, nil, "occurrence type"); err != nil {
		return nil, err
	}
	themes, err := b.themes(scope)
	if err != nil {
		return nil, err
	}
	dt, err := b.m.datatype(datatype, nil)
	if err != nil {
		return nil, err
	}
	o := &Occurrence{}
	o.base = base{m: b.m, self: o}
	b.m.register(&o.base)
	o.typed = typed{b: &o.base}
	o.reifiable = reifiable{b: &o.base}
	o.scoped = scoped{b: &o.base}
	o.literal = literal{b: &o.base, lit: Literal{Value: value, Datatype: dt}}
	b.initTyped(&o.typed, typ)
	b.initScoped(&o.scoped, themes)
	return o, nil
}

// Name creates a detached name. A nil type selects the default name type,
// the topic with subject identifier ir.PSITopicName, created on demand.
func (b *Builder) Name(typ *Topic, value string, scope ...*Topic) (*Name, error) {
	if typ == nil {
		var err error
		if typ, err = b.m.CreateTopicBySubjectIdentifier(ir.PSITopicName); err != nil {
			return nil, err
		}
	}
	if err := b.m.checkTopicArg(typ, nil, "name type"); err != nil {
		return nil, err
	}
	themes, err := b.themes(scope)
	if err != nil {
		return nil, err
	}
	n := &Name{value: value}
	n.base = base{m: b.m, self: n}
	b.m.register(&n.base)
	n.typed = typed{b: &n.base}
	n.reifiable = reifiable{b: &n.base}
	n.scoped = scoped{b: &n.base, validate: n.checkVariants}
	b.initTyped(&n.typed, typ)
	b.initScoped(&n.scoped, themes)
	return n, nil
}

// Variant creates a detached variant. The scope must not be empty; whether
// it adds a theme to the name scope is checked when the variant is added
// to a name.
func (b *Builder) Variant(value, datatype string, scope ...*Topic) (*Variant, error) {
	themes, err := b.themes(scope)
	if err != nil {
		return nil, err
	}
	if len(themes) == 0 {
		return nil, violation(CodeInvalidVariantScope, nil, "variant scope must not be empty")
	}
	dt, err := b.m.datatype(datatype, nil)
	if err != nil {
		return nil, err
	}
	v := &Variant{}
	v.base = base{m: b.m, self: v}
	b.m.register(&v.base)
	v.reifiable = reifiable{b: &v.base}
	v.literal = literal{b: &v.base, lit: Literal{Value: value, Datatype: dt}}
	v.scoped = scoped{b: &v.base, validate: func(next []ID) error {
		var nameScope []ID
		if n := v.Name(); n != nil {
			nameScope = n.themeIDs()
		}
		return v.checkScope(next, nameScope)
	}}
	b.initScoped(&v.scoped, themes)
	return v, nil
}

func (b *Builder) themes(scope []*Topic) ([]ID, error) {
	ids := make([]ID, 0, len(scope))
	for _, t := range scope {
		if err := b.m.checkTopicArg(t, nil, "theme"); err != nil {
			return nil, err
		}
		if !slices.Contains(ids, t.id) {
			ids = append(ids, t.id)
		}
	}
	return ids, nil
}

func (b *Builder) initTyped(x *typed, typ *Topic) {
	x.typ = typ.id
	b.m.ref(typ, x.b.id)
}

func (b *Builder) initScoped(x *scoped, themes []ID) {
	x.themes = themes
	for _, id := range themes {
		b.m.ref(b.m.topic(id), x.b.id)
	}
}
