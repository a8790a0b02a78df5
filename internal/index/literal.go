package index

import (
	"github.com/heuer/mappa/internal/ir"
	"github.com/heuer/mappa/internal/tm"
)

// LiteralIndex files occurrences, names and variants under their value.
type LiteralIndex struct {
	m      *tm.TopicMap
	byKind map[tm.Kind]postings[tm.Literal]
}

func newLiteralIndex(m *tm.TopicMap) *LiteralIndex {
	return &LiteralIndex{
		m: m,
		byKind: map[tm.Kind]postings[tm.Literal]{
			tm.KindOccurrence: {},
			tm.KindName:       {},
			tm.KindVariant:    {},
		},
	}
}

// Occurrences returns the attached occurrences with the given literal.
// An empty datatype means xsd:string.
func (x *LiteralIndex) Occurrences(value, datatype string) []*tm.Occurrence {
	return collect[*tm.Occurrence](x.m, x.byKind[tm.KindOccurrence].ids(literalKey(value, datatype)))
}

// Names returns the attached names with the given value.
func (x *LiteralIndex) Names(value string) []*tm.Name {
	return collect[*tm.Name](x.m, x.byKind[tm.KindName].ids(literalKey(value, "")))
}

// Variants returns the attached variants with the given literal.
func (x *LiteralIndex) Variants(value, datatype string) []*tm.Variant {
	return collect[*tm.Variant](x.m, x.byKind[tm.KindVariant].ids(literalKey(value, datatype)))
}

type literalCarrier interface {
	tm.Construct
	Literal() tm.Literal
}

func (x *LiteralIndex) handle(e tm.Event) {
	switch e.Kind {
	case tm.EventAddOccurrence, tm.EventAddName, tm.EventAddVariant:
		c := e.Source.(literalCarrier)
		x.byKind[c.Kind()].add(c.Literal(), c.ID())
	case tm.EventRemoveOccurrence, tm.EventRemoveName, tm.EventRemoveVariant:
		c := e.Source.(literalCarrier)
		x.byKind[c.Kind()].remove(c.Literal(), c.ID())
	case tm.EventSetValue:
		c := e.Source
		x.byKind[c.Kind()].remove(e.Old.(tm.Literal), c.ID())
		x.byKind[c.Kind()].add(e.New.(tm.Literal), c.ID())
	}
}

// literalKey builds a lookup key. Datatypes are stored normalized; the
// well-known XSD IRIs are already in normal form.
func literalKey(value, datatype string) tm.Literal {
	if datatype == "" {
		datatype = ir.XSDString
	} else if norm, err := ir.NormalizeIRI(datatype); err == nil {
		datatype = norm
	}
	return tm.Literal{Value: value, Datatype: datatype}
}
