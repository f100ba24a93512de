package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/inklaunch-api/internal/utils"
)

// Auth role constants used by WithAuth.
const (
	AuthRoleAny    = "any"
	AuthRoleAdmin  = "admin"
	AuthRoleAuthor = "author"
)

// admittedRoles lists the identity roles accepted for each guarded role.
// Administrators may act on the author surface.
var admittedRoles = map[string][]string{
	AuthRoleAuthor: {AuthRoleAuthor, AuthRoleAdmin},
	AuthRoleAdmin:  {AuthRoleAdmin},
}

// AuthOptions configures WithAuth. Any role other than AuthRoleAny implies
// RequireUser.
type AuthOptions struct {
	Role        string
	RequireUser bool
}

// WithAuth guards handler with an identity check and, unless the role is
// AuthRoleAny, a role check.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	role := strings.ToLower(strings.TrimSpace(opts.Role))
	if role == "" {
		role = AuthRoleAny
	}
	requireUser := opts.RequireUser || role != AuthRoleAny

	return func(c *fiber.Ctx) error {
		identity := IdentityFromLocals(c)
		if requireUser && !identity.Authenticated() {
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}
		if role != AuthRoleAny && !admits(role, identity.Role) {
			return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", fiber.Map{"required_role": role})
		}
		return handler(c)
	}
}

func admits(required, actual string) bool {
	accepted, ok := admittedRoles[required]
	if !ok {
		return actual == required
	}
	for _, candidate := range accepted {
		if candidate == actual {
			return true
		}
	}
	return false
}
