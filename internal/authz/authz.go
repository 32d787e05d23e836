// Package authz decides whether an actor may perform an action on a
// farm-scoped resource. The predicate is pure: it looks only at the
// actor's role and the farm's membership sets, never at the store.
// Callers must resolve the farm first so that a missing farm surfaces
// as not-found rather than as a denial.
package authz

import "fmt"

// Action is the kind of access being requested.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Actor is the authenticated identity performing a request.
type Actor struct {
	ID   string
	Role string
}

// Membership carries a farm's owner and member sets.
type Membership struct {
	OwnerID  string
	Managers []string
	Workers  []string
}

// DeniedError indicates the actor lacks rights for the action.
type DeniedError struct {
	Action Action
}

func (e DeniedError) Error() string {
	return fmt.Sprintf("not authorized to %s this resource", e.Action)
}

// Allowed reports whether the actor may perform action on a resource
// scoped to the given farm.
//
// Tiers, most to least permissive requirement:
//   - admin role passes every check regardless of membership
//   - view: owner, manager, or worker
//   - create, update: owner or manager
//   - delete: owner only
func Allowed(actor Actor, farm Membership, action Action) bool {
	if actor.Role == "admin" {
		return true
	}
	switch action {
	case ActionView:
		return farm.OwnerID == actor.ID || contains(farm.Managers, actor.ID) || contains(farm.Workers, actor.ID)
	case ActionCreate, ActionUpdate:
		return farm.OwnerID == actor.ID || contains(farm.Managers, actor.ID)
	case ActionDelete:
		return farm.OwnerID == actor.ID
	}
	return false
}

// CanComplete reports whether the actor may move a task into or out of
// the completed state. Assignees may complete their own task without
// holding the general update tier.
func CanComplete(actor Actor, farm Membership, assignees []string) bool {
	if contains(assignees, actor.ID) {
		return true
	}
	return Allowed(actor, farm, ActionUpdate)
}

// Require is Allowed with a typed denial for the error path.
func Require(actor Actor, farm Membership, action Action) error {
	if !Allowed(actor, farm, action) {
		return DeniedError{Action: action}
	}
	return nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
