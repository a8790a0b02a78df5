package tm

import (
	"slices"

	"github.com/heuer/mappa/internal/ir"
)

// Occurrence is a typed, scoped literal about its parent topic.
type Occurrence struct {
	base
	typed
	scoped
	reifiable
	literal
}

// Kind returns KindOccurrence.
func (o *Occurrence) Kind() Kind { return KindOccurrence }

// Topic returns the parent topic, or nil while detached.
func (o *Occurrence) Topic() *Topic {
	t, _ := o.Parent().(*Topic)
	return t
}

// Remove destroys o.
func (o *Occurrence) Remove() error {
	return o.m.destroy(o)
}

// Name is a typed, scoped string name of its parent topic. It owns its
// variants.
type Name struct {
	base
	typed
	scoped
	reifiable

	value    string
	variants []ID
}

// Kind returns KindName.
func (n *Name) Kind() Kind { return KindName }

// Topic returns the parent topic, or nil while detached.
func (n *Name) Topic() *Topic {
	t, _ := n.Parent().(*Topic)
	return t
}

// Value returns the name string.
func (n *Name) Value() string { return n.value }

// Datatype is always xsd:string for names.
func (n *Name) Datatype() string { return ir.XSDString }

// Literal returns the value as a Literal with datatype xsd:string.
func (n *Name) Literal() Literal {
	return Literal{Value: n.value, Datatype: ir.XSDString}
}

// SetValue replaces the name string.
func (n *Name) SetValue(value string) error {
	if err := n.checkLive(); err != nil {
		return err
	}
	if value == n.value {
		return nil
	}
	n.m.bus.fire(EventSetValue, n, n.Literal(), Literal{Value: value, Datatype: ir.XSDString})
	n.value = value
	return nil
}

// Variants returns the owned variants in insertion order.
func (n *Name) Variants() []*Variant {
	out := make([]*Variant, 0, len(n.variants))
	for _, id := range n.variants {
		out = append(out, n.m.arena[id].(*Variant))
	}
	return out
}

// AddVariant attaches v to n. The variant's own scope must contain a theme
// that n's scope does not.
func (n *Name) AddVariant(v *Variant) error {
	if v == nil {
		return violation(CodeNilArgument, n, "variant must not be nil")
	}
	return n.m.attach(n, v)
}

// DetachVariant detaches v from n, keeping v intact.
func (n *Name) DetachVariant(v *Variant) error {
	if v == nil {
		return violation(CodeNilArgument, n, "variant must not be nil")
	}
	return n.m.detach(n, v)
}

// CreateVariant creates and attaches a variant. scope must not be empty.
func (n *Name) CreateVariant(value, datatype string, scope ...*Topic) (*Variant, error) {
	v, err := n.m.Builder().Variant(value, datatype, scope...)
	if err != nil {
		return nil, err
	}
	if err := n.AddVariant(v); err != nil {
		n.m.destroySubtree(v)
		return nil, err
	}
	return v, nil
}

// checkVariants rejects a name scope under which a variant would no longer
// add a theme of its own.
func (n *Name) checkVariants(next []ID) error {
	for _, v := range n.Variants() {
		if err := v.checkScope(v.themeIDs(), next); err != nil {
			return err
		}
	}
	return nil
}

// Remove destroys n with its variants.
func (n *Name) Remove() error {
	return n.m.destroy(n)
}

// Variant is an alternative form of a name for a more specific scope.
type Variant struct {
	base
	scoped
	reifiable
	literal
}

// Kind returns KindVariant.
func (v *Variant) Kind() Kind { return KindVariant }

// Name returns the parent name, or nil while detached.
func (v *Variant) Name() *Name {
	n, _ := v.Parent().(*Name)
	return n
}

// Scope returns the effective scope: the variant's own themes followed by
// the parent name's themes not already present.
func (v *Variant) Scope() []*Topic {
	ids := v.themeIDs()
	if n := v.Name(); n != nil {
		for _, id := range n.themeIDs() {
			if !slices.Contains(ids, id) {
				ids = append(ids, id)
			}
		}
	}
	return v.m.topicsOf(ids)
}

// OwnScope returns only the themes set on the variant itself.
func (v *Variant) OwnScope() []*Topic {
	return v.scoped.Scope()
}

// checkScope rejects an own scope that is empty or adds nothing to the
// name scope.
func (v *Variant) checkScope(own, nameScope []ID) error {
	if len(own) == 0 {
		return violation(CodeInvalidVariantScope, v, "variant scope must not be empty")
	}
	for _, id := range own {
		if !slices.Contains(nameScope, id) {
			return nil
		}
	}
	return violation(CodeInvalidVariantScope, v, "variant scope adds no theme to the name scope")
}

// Remove destroys v.
func (v *Variant) Remove() error {
	return v.m.destroy(v)
}
