package tm

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/heuer/mappa/internal/ir"
)

// Signature returns the structural signature of c. Two constructs with
// the same signature are duplicates and merge into one.
//
//   - occurrence: type, value, datatype, scope
//   - name: type, value, scope
//   - variant: value, datatype, effective scope
//   - role: type, player
//   - association: type, scope, set of (role type, player)
//
// Topic ids are resolved through merge redirects and scopes are unordered
// sets. Item identifiers, reifiers and parents do not take part.
func Signature(c Construct) (string, error) {
	switch x := c.(type) {
	case *Occurrence:
		return ir.Signature(ir.DomainOccurrence, ir.NewIRObject(
			ir.O{Key: "type", Value: topicRef(x.Type())},
			ir.O{Key: "value", Value: ir.IRString(x.Value())},
			ir.O{Key: "datatype", Value: ir.IRString(x.Datatype())},
			ir.O{Key: "scope", Value: scopeSet(x.Scope())},
		))
	case *Name:
		return ir.Signature(ir.DomainName, ir.NewIRObject(
			ir.O{Key: "type", Value: topicRef(x.Type())},
			ir.O{Key: "value", Value: ir.IRString(x.Value())},
			ir.O{Key: "scope", Value: scopeSet(x.Scope())},
		))
	case *Variant:
		return ir.Signature(ir.DomainVariant, ir.NewIRObject(
			ir.O{Key: "value", Value: ir.IRString(x.Value())},
			ir.O{Key: "datatype", Value: ir.IRString(x.Datatype())},
			ir.O{Key: "scope", Value: scopeSet(x.Scope())},
		))
	case *Role:
		return ir.Signature(ir.DomainRole, ir.NewIRObject(
			ir.O{Key: "type", Value: topicRef(x.Type())},
			ir.O{Key: "player", Value: topicRef(x.Player())},
		))
	case *Association:
		return ir.Signature(ir.DomainAssociation, ir.NewIRObject(
			ir.O{Key: "type", Value: topicRef(x.Type())},
			ir.O{Key: "scope", Value: scopeSet(x.Scope())},
			ir.O{Key: "roles", Value: roleSet(x.Roles())},
		))
	case nil:
		return "", fmt.Errorf("signature of nil construct")
	default:
		return "", fmt.Errorf("no signature for %s", c.Kind())
	}
}

// MustSignature is like Signature but panics on error.
func MustSignature(c Construct) string {
	sig, err := Signature(c)
	if err != nil {
		panic(err)
	}
	return sig
}

func topicRef(t *Topic) ir.IRValue {
	if t == nil {
		return ir.IRInt(0)
	}
	return ir.IRInt(int64(t.id))
}

func scopeSet(themes []*Topic) ir.IRArray {
	ids := make([]uint64, len(themes))
	for i, t := range themes {
		ids[i] = uint64(t.id)
	}
	return ir.IntSet(ids)
}

func roleSet(roles []*Role) ir.IRArray {
	type pair struct{ typ, player int64 }
	pairs := make([]pair, 0, len(roles))
	for _, r := range roles {
		var p pair
		if t := r.Type(); t != nil {
			p.typ = int64(t.id)
		}
		if pl := r.Player(); pl != nil {
			p.player = int64(pl.id)
		}
		pairs = append(pairs, p)
	}
	slices.SortFunc(pairs, func(a, b pair) int {
		return cmp.Or(cmp.Compare(a.typ, b.typ), cmp.Compare(a.player, b.player))
	})
	pairs = slices.Compact(pairs)
	arr := make(ir.IRArray, len(pairs))
	for i, p := range pairs {
		arr[i] = ir.IRArray{ir.IRInt(p.typ), ir.IRInt(p.player)}
	}
	return arr
}
