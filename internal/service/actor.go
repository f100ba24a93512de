package service

import "strings"

// RoleAdmin is the role allowed to drive competition lifecycle operations.
const RoleAdmin = "admin"

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   uint
	Role string
}

// IsAdmin reports whether the actor holds the administrator role.
func (a Actor) IsAdmin() bool {
	return strings.EqualFold(strings.TrimSpace(a.Role), RoleAdmin)
}

func requireAdmin(actor Actor) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	return nil
}
