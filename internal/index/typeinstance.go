package index

import (
	"github.com/heuer/mappa/internal/ir"
	"github.com/heuer/mappa/internal/tm"
)

// TypeInstanceIndex files typed constructs under their type, and topics
// under the types stated by type-instance associations.
type TypeInstanceIndex struct {
	m      *tm.TopicMap
	byKind map[tm.Kind]postings[tm.ID]

	// instance -> type, counted per stating association
	types     map[[2]tm.ID]int
	instances postings[tm.ID]
	typesOf   postings[tm.ID]
	stated    map[tm.ID][][2]tm.ID
	dropping  map[tm.ID]bool
}

func newTypeInstanceIndex(m *tm.TopicMap) *TypeInstanceIndex {
	return &TypeInstanceIndex{
		m: m,
		byKind: map[tm.Kind]postings[tm.ID]{
			tm.KindAssociation: {},
			tm.KindRole:        {},
			tm.KindOccurrence:  {},
			tm.KindName:        {},
		},
		types:     make(map[[2]tm.ID]int),
		instances: postings[tm.ID]{},
		typesOf:   postings[tm.ID]{},
		stated:    make(map[tm.ID][][2]tm.ID),
		dropping:  make(map[tm.ID]bool),
	}
}

// Associations returns the attached associations typed by typ.
func (x *TypeInstanceIndex) Associations(typ *tm.Topic) []*tm.Association {
	return collect[*tm.Association](x.m, x.byKind[tm.KindAssociation].ids(keyOf(typ)))
}

// Roles returns the attached roles typed by typ.
func (x *TypeInstanceIndex) Roles(typ *tm.Topic) []*tm.Role {
	return collect[*tm.Role](x.m, x.byKind[tm.KindRole].ids(keyOf(typ)))
}

// Occurrences returns the attached occurrences typed by typ.
func (x *TypeInstanceIndex) Occurrences(typ *tm.Topic) []*tm.Occurrence {
	return collect[*tm.Occurrence](x.m, x.byKind[tm.KindOccurrence].ids(keyOf(typ)))
}

// Names returns the attached names typed by typ.
func (x *TypeInstanceIndex) Names(typ *tm.Topic) []*tm.Name {
	return collect[*tm.Name](x.m, x.byKind[tm.KindName].ids(keyOf(typ)))
}

// AssociationTypes returns every topic used as an association type.
func (x *TypeInstanceIndex) AssociationTypes() []*tm.Topic {
	return topicKeys(x.m, x.byKind[tm.KindAssociation])
}

// RoleTypes returns every topic used as a role type.
func (x *TypeInstanceIndex) RoleTypes() []*tm.Topic {
	return topicKeys(x.m, x.byKind[tm.KindRole])
}

// OccurrenceTypes returns every topic used as an occurrence type.
func (x *TypeInstanceIndex) OccurrenceTypes() []*tm.Topic {
	return topicKeys(x.m, x.byKind[tm.KindOccurrence])
}

// NameTypes returns every topic used as a name type.
func (x *TypeInstanceIndex) NameTypes() []*tm.Topic {
	return topicKeys(x.m, x.byKind[tm.KindName])
}

// TopicTypes returns the types of instance stated by type-instance
// associations.
func (x *TypeInstanceIndex) TopicTypes(instance *tm.Topic) []*tm.Topic {
	return collect[*tm.Topic](x.m, x.typesOf.ids(keyOf(instance)))
}

// TopicInstances returns the instances of typ stated by type-instance
// associations.
func (x *TypeInstanceIndex) TopicInstances(typ *tm.Topic) []*tm.Topic {
	return collect[*tm.Topic](x.m, x.instances.ids(keyOf(typ)))
}

// typedBy returns the ids of every construct typed by t.
func (x *TypeInstanceIndex) typedBy(t *tm.Topic) []tm.ID {
	var ids []tm.ID
	for _, k := range []tm.Kind{tm.KindAssociation, tm.KindRole, tm.KindOccurrence, tm.KindName} {
		ids = append(ids, x.byKind[k].ids(keyOf(t))...)
	}
	return ids
}

func (x *TypeInstanceIndex) handle(e tm.Event) {
	switch e.Kind {
	case tm.EventAddAssociation, tm.EventAddRole, tm.EventAddOccurrence, tm.EventAddName:
		c := e.Source.(tm.Typed)
		x.byKind[c.Kind()].add(keyOf(c.Type()), c.ID())
		x.restate(c, pending{})
	case tm.EventRemoveAssociation, tm.EventRemoveRole, tm.EventRemoveOccurrence, tm.EventRemoveName:
		c := e.Source.(tm.Typed)
		x.byKind[c.Kind()].remove(keyOf(c.Type()), c.ID())
		x.restate(c, pending{gone: c.ID()})
	case tm.EventSetType:
		c := e.Source.(tm.Typed)
		old, _ := e.Old.(*tm.Topic)
		typ, _ := e.New.(*tm.Topic)
		x.byKind[c.Kind()].remove(keyOf(old), c.ID())
		x.byKind[c.Kind()].add(keyOf(typ), c.ID())
		x.restate(c, pending{typeOf: c.ID(), typ: typ})
	case tm.EventSetPlayer:
		player, _ := e.New.(*tm.Topic)
		x.restate(e.Source, pending{playerOf: e.Source.ID(), player: player})
	}
}

// pending describes a change announced by an event but not yet visible in
// the graph. Remove and Set events fire before the change is committed.
type pending struct {
	gone     tm.ID
	typeOf   tm.ID
	typ      *tm.Topic
	playerOf tm.ID
	player   *tm.Topic
}

func (p pending) typeOfConstruct(c tm.Typed) *tm.Topic {
	if p.typeOf == c.ID() {
		return p.typ
	}
	return c.Type()
}

// restate recomputes the type-instance statements of the association
// affected by a change to c.
func (x *TypeInstanceIndex) restate(c tm.Construct, p pending) {
	var a *tm.Association
	switch v := c.(type) {
	case *tm.Association:
		a = v
		switch {
		case p.gone == a.ID():
			x.dropping[a.ID()] = true
		case x.dropping[a.ID()]:
			delete(x.dropping, a.ID())
		}
	case *tm.Role:
		a = v.Association()
	default:
		return
	}
	if a == nil {
		return
	}
	var next [][2]tm.ID
	if !x.dropping[a.ID()] {
		next = x.statements(a, p)
	}
	for _, s := range x.stated[a.ID()] {
		x.unstate(s)
	}
	for _, s := range next {
		x.state(s)
	}
	if len(next) == 0 {
		delete(x.stated, a.ID())
	} else {
		x.stated[a.ID()] = next
	}
}

// statements returns the (instance, type) pairs a states.
func (x *TypeInstanceIndex) statements(a *tm.Association, p pending) [][2]tm.ID {
	ti := x.m.TopicBySubjectIdentifier(ir.PSITypeInstance)
	typeRole := x.m.TopicBySubjectIdentifier(ir.PSIType)
	instRole := x.m.TopicBySubjectIdentifier(ir.PSIInstance)
	if ti == nil || typeRole == nil || instRole == nil || p.typeOfConstruct(a) != ti {
		return nil
	}
	var types, insts []tm.ID
	for _, r := range a.Roles() {
		if r.ID() == p.gone {
			continue
		}
		player := r.Player()
		if p.playerOf == r.ID() {
			player = p.player
		}
		switch p.typeOfConstruct(r) {
		case typeRole:
			types = append(types, keyOf(player))
		case instRole:
			insts = append(insts, keyOf(player))
		}
	}
	var out [][2]tm.ID
	for _, i := range insts {
		for _, t := range types {
			out = append(out, [2]tm.ID{i, t})
		}
	}
	return out
}

func (x *TypeInstanceIndex) state(s [2]tm.ID) {
	x.types[s]++
	x.typesOf.add(s[0], s[1])
	x.instances.add(s[1], s[0])
}

func (x *TypeInstanceIndex) unstate(s [2]tm.ID) {
	x.types[s]--
	if x.types[s] > 0 {
		return
	}
	delete(x.types, s)
	x.typesOf.remove(s[0], s[1])
	x.instances.remove(s[1], s[0])
}
