package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Locals keys populated by the auth middlewares and read by handlers.
const (
	LocalUserID        = "user_id"
	LocalUserRole      = "user_role"
	LocalCorrelationID = "correlation_id"
)

// Identity is the caller as established by JWTProtected.
type Identity struct {
	UserID uint
	Role   string
}

// Authenticated reports whether a user id was resolved.
func (i Identity) Authenticated() bool {
	return i.UserID > 0
}

// IdentityFromLocals reads the caller identity stored on the request.
func IdentityFromLocals(c *fiber.Ctx) Identity {
	identity := Identity{Role: normalizeRoleValue(c.Locals(LocalUserRole))}
	switch v := c.Locals(LocalUserID).(type) {
	case uint:
		identity.UserID = v
	case int:
		if v > 0 {
			identity.UserID = uint(v)
		}
	}
	return identity
}

func normalizeRoleValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case fmt.Stringer:
		return strings.ToLower(strings.TrimSpace(v.String()))
	default:
		return strings.ToLower(strings.TrimSpace(fmt.Sprintf("%v", v)))
	}
}
