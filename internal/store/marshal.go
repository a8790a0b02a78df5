package store

import (
	"fmt"

	"github.com/heuer/mappa/internal/ir"
	"github.com/heuer/mappa/internal/tm"
)

// marshalPayload converts an event payload to canonical JSON TEXT.
// Uses RFC 8785 canonical JSON for deterministic serialization.
//
// Encodings:
//   - nil or a nil *tm.Topic: "" (stored as NULL)
//   - *tm.Topic: the topic id
//   - []*tm.Topic: sorted array of topic ids
//   - tm.Literal: {"datatype": ..., "value": ...}
//   - string (identifiers): the string
func marshalPayload(v any) (string, error) {
	var val ir.IRValue
	switch x := v.(type) {
	case nil:
		return "", nil
	case *tm.Topic:
		if x == nil {
			return "", nil
		}
		val = ir.IRInt(int64(x.ID()))
	case []*tm.Topic:
		ids := make([]uint64, len(x))
		for i, t := range x {
			ids[i] = uint64(t.ID())
		}
		val = ir.IntSet(ids)
	case tm.Literal:
		val = ir.NewIRObject(
			ir.O{Key: "value", Value: ir.IRString(x.Value)},
			ir.O{Key: "datatype", Value: ir.IRString(x.Datatype)},
		)
	case string:
		val = ir.IRString(x)
	default:
		return "", fmt.Errorf("marshal payload: unsupported type %T", v)
	}
	data, err := ir.MarshalCanonical(val)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

// recordOf converts a bus event into a journal record.
func recordOf(session, mapID string, e tm.Event) (EventRecord, error) {
	oldVal, err := marshalPayload(e.Old)
	if err != nil {
		return EventRecord{}, err
	}
	newVal, err := marshalPayload(e.New)
	if err != nil {
		return EventRecord{}, err
	}
	return EventRecord{
		Session:    session,
		Seq:        e.Seq,
		MapID:      mapID,
		Kind:       e.Kind.String(),
		SourceID:   uint64(e.Source.ID()),
		SourceKind: e.Source.Kind().String(),
		Old:        oldVal,
		New:        newVal,
	}, nil
}
