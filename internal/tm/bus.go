package tm

import "slices"

// EventKind is the closed set of change notifications.
type EventKind int

const (
	EventAddTopic EventKind = iota
	EventRemoveTopic
	EventAddAssociation
	EventRemoveAssociation
	EventAddRole
	EventRemoveRole
	EventAddOccurrence
	EventRemoveOccurrence
	EventAddName
	EventRemoveName
	EventAddVariant
	EventRemoveVariant
	EventAddItemIdentifier
	EventRemoveItemIdentifier
	EventAddSubjectIdentifier
	EventRemoveSubjectIdentifier
	EventAddSubjectLocator
	EventRemoveSubjectLocator
	EventSetType
	EventSetScope
	EventSetValue
	EventSetReifier
	EventSetPlayer
	numEventKinds
)

var eventNames = [numEventKinds]string{
	EventAddTopic:                "add-topic",
	EventRemoveTopic:             "remove-topic",
	EventAddAssociation:          "add-association",
	EventRemoveAssociation:       "remove-association",
	EventAddRole:                 "add-role",
	EventRemoveRole:              "remove-role",
	EventAddOccurrence:           "add-occurrence",
	EventRemoveOccurrence:        "remove-occurrence",
	EventAddName:                 "add-name",
	EventRemoveName:              "remove-name",
	EventAddVariant:              "add-variant",
	EventRemoveVariant:           "remove-variant",
	EventAddItemIdentifier:       "add-item-identifier",
	EventRemoveItemIdentifier:    "remove-item-identifier",
	EventAddSubjectIdentifier:    "add-subject-identifier",
	EventRemoveSubjectIdentifier: "remove-subject-identifier",
	EventAddSubjectLocator:       "add-subject-locator",
	EventRemoveSubjectLocator:    "remove-subject-locator",
	EventSetType:                 "set-type",
	EventSetScope:                "set-scope",
	EventSetValue:                "set-value",
	EventSetReifier:              "set-reifier",
	EventSetPlayer:               "set-player",
}

func (k EventKind) String() string {
	if k >= 0 && k < numEventKinds {
		return eventNames[k]
	}
	return "unknown"
}

// EventKinds returns every event kind in declaration order.
func EventKinds() []EventKind {
	out := make([]EventKind, numEventKinds)
	for i := range out {
		out[i] = EventKind(i)
	}
	return out
}

var addEvents = map[Kind]EventKind{
	KindTopic:       EventAddTopic,
	KindAssociation: EventAddAssociation,
	KindRole:        EventAddRole,
	KindOccurrence:  EventAddOccurrence,
	KindName:        EventAddName,
	KindVariant:     EventAddVariant,
}

var removeEvents = map[Kind]EventKind{
	KindTopic:       EventRemoveTopic,
	KindAssociation: EventRemoveAssociation,
	KindRole:        EventRemoveRole,
	KindOccurrence:  EventRemoveOccurrence,
	KindName:        EventRemoveName,
	KindVariant:     EventRemoveVariant,
}

var identityEvents = [numIdentityKinds][2]EventKind{
	ItemIdentifier:    {EventAddItemIdentifier, EventRemoveItemIdentifier},
	SubjectIdentifier: {EventAddSubjectIdentifier, EventRemoveSubjectIdentifier},
	SubjectLocator:    {EventAddSubjectLocator, EventRemoveSubjectLocator},
}

// Event describes one state change.
//
// Payloads by kind:
//   - Add/Remove of a construct: Source is the child, Old and New are nil
//   - Add/Remove of an identity: New (add) or Old (remove) is the IRI string
//   - SetType, SetReifier, SetPlayer: Old and New are *Topic (possibly nil)
//
// Removing a reified construct fires SetReifier with New nil first.
//   - SetScope: Old and New are []*Topic
//   - SetValue: Old and New are Literal
type Event struct {
	Seq    int64
	Kind   EventKind
	Source Construct
	Old    any
	New    any
}

// Handler receives events synchronously on the mutating goroutine.
// Handlers must not mutate the topic map.
type Handler func(Event)

// Subscription identifies a registered handler.
type Subscription uint64

type subscriber struct {
	id Subscription
	fn Handler
}

// Bus dispatches events of one topic map.
//
// Events are delivered only while their source is attached; changes to a
// detached subtree are invisible. When a topic, association or name is
// added or removed, the bus follows the event with synthesized Add/Remove
// events for the children it already owns, depth-first, so subscribers see
// a subtree appear or vanish one construct at a time.
type Bus struct {
	seq      *Clock
	next     Subscription
	handlers [numEventKinds][]subscriber
}

func newBus() *Bus {
	return &Bus{seq: NewClock()}
}

// Subscribe registers h for one event kind.
func (b *Bus) Subscribe(kind EventKind, h Handler) Subscription {
	b.next++
	b.add(kind, subscriber{id: b.next, fn: h})
	return b.next
}

// SubscribeAll registers h for every event kind under one subscription.
func (b *Bus) SubscribeAll(h Handler) Subscription {
	b.next++
	for k := range numEventKinds {
		b.add(k, subscriber{id: b.next, fn: h})
	}
	return b.next
}

// Unsubscribe removes every registration of s.
func (b *Bus) Unsubscribe(s Subscription) {
	for k := range b.handlers {
		if slices.ContainsFunc(b.handlers[k], func(x subscriber) bool { return x.id == s }) {
			// Copy so a dispatch in progress keeps its slice.
			b.handlers[k] = slices.DeleteFunc(slices.Clone(b.handlers[k]),
				func(x subscriber) bool { return x.id == s })
		}
	}
}

// Seq returns the sequence number of the last delivered event.
func (b *Bus) Seq() int64 {
	return b.seq.Current()
}

func (b *Bus) add(kind EventKind, s subscriber) {
	next := make([]subscriber, len(b.handlers[kind]), len(b.handlers[kind])+1)
	copy(next, b.handlers[kind])
	b.handlers[kind] = append(next, s)
}

func (b *Bus) fire(kind EventKind, src Construct, oldV, newV any) {
	if !src.IsAttached() {
		return
	}
	ev := Event{Seq: b.seq.Next(), Kind: kind, Source: src, Old: oldV, New: newV}
	for _, s := range b.handlers[kind] {
		s.fn(ev)
	}
	b.multiply(kind, src)
}

// multiply synthesizes child events after a subtree was added or removed.
func (b *Bus) multiply(kind EventKind, src Construct) {
	var add bool
	switch kind {
	case EventAddTopic, EventAddAssociation, EventAddName:
		add = true
	case EventRemoveTopic, EventRemoveAssociation, EventRemoveName:
		add = false
	default:
		return
	}
	for _, child := range children(src) {
		if add {
			b.fire(addEvents[child.Kind()], child, nil, nil)
		} else {
			b.fire(removeEvents[child.Kind()], child, nil, nil)
		}
	}
}
