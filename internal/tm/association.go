package tm

import "slices"

// Association is a typed, scoped, reifiable relationship between topics.
// It owns its roles.
type Association struct {
	base
	typed
	scoped
	reifiable

	roles []ID
}

// Kind returns KindAssociation.
func (a *Association) Kind() Kind { return KindAssociation }

// Roles returns the owned roles in insertion order.
func (a *Association) Roles() []*Role {
	out := make([]*Role, 0, len(a.roles))
	for _, id := range a.roles {
		out = append(out, a.m.arena[id].(*Role))
	}
	return out
}

// RoleTypes returns the distinct role types in first-seen order.
func (a *Association) RoleTypes() []*Topic {
	var out []*Topic
	for _, r := range a.Roles() {
		if t := r.Type(); !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

// AddRole attaches r to a.
func (a *Association) AddRole(r *Role) error {
	if r == nil {
		return violation(CodeNilArgument, a, "role must not be nil")
	}
	return a.m.attach(a, r)
}

// DetachRole detaches r from a. The role keeps its player.
func (a *Association) DetachRole(r *Role) error {
	if r == nil {
		return violation(CodeNilArgument, a, "role must not be nil")
	}
	return a.m.detach(a, r)
}

// CreateRole creates and attaches a role.
func (a *Association) CreateRole(typ, player *Topic) (*Role, error) {
	r, err := a.m.Builder().Role(typ, player)
	if err != nil {
		return nil, err
	}
	if err := a.AddRole(r); err != nil {
		a.m.destroySubtree(r)
		return nil, err
	}
	return r, nil
}

// Remove destroys a with its roles.
func (a *Association) Remove() error {
	return a.m.destroy(a)
}

// Role binds a player topic to an association under a role type.
type Role struct {
	base
	typed
	reifiable

	player ID
}

// Kind returns KindRole.
func (r *Role) Kind() Kind { return KindRole }

// Association returns the parent association, or nil while detached.
func (r *Role) Association() *Association {
	a, _ := r.Parent().(*Association)
	return a
}

// Player returns the playing topic, following merge redirects.
func (r *Role) Player() *Topic {
	return r.m.topic(r.player)
}

// SetPlayer changes the player. A nil player is rejected.
func (r *Role) SetPlayer(t *Topic) error {
	if err := r.checkLive(); err != nil {
		return err
	}
	if err := r.m.checkTopicArg(t, r, "player"); err != nil {
		return err
	}
	old := r.Player()
	if old == t {
		return nil
	}
	r.m.bus.fire(EventSetPlayer, r, old, t)
	if old != nil {
		delete(old.played, r.id)
	}
	t.played[r.id] = struct{}{}
	r.player = t.id
	return nil
}

// Remove destroys r and drops it from its player's played roles.
func (r *Role) Remove() error {
	return r.m.destroy(r)
}
