package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/inklaunch-api/internal/utils"
)

// RequireRole rejects callers whose role is not in roles. Callers without any
// identity are answered with 401 so clients can tell a missing token from a
// token lacking the role.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		if normalized := strings.ToLower(strings.TrimSpace(role)); normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}
	required := strings.Join(roles, " or ")

	return func(c *fiber.Ctx) error {
		identity := IdentityFromLocals(c)
		if !identity.Authenticated() && identity.Role == "" {
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}
		if _, ok := allowed[identity.Role]; !ok {
			return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", fiber.Map{"required_role": required})
		}
		return c.Next()
	}
}
