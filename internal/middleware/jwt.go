package middleware

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/inklaunch-api/internal/utils"
)

var (
	errMissingAuthorization = errors.New("authorization header missing")
	errBearerScheme         = errors.New("invalid authorization header")
)

// JWTProtected verifies HMAC-signed bearer tokens and stores the caller's id and
// role in the request locals. Tokens issued by the author platform carry the id
// in "sub" and the role either as "role" or as a "roles" list.
func JWTProtected(secret string) fiber.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{
		jwt.SigningMethodHS256.Alg(),
		jwt.SigningMethodHS384.Alg(),
		jwt.SigningMethodHS512.Alg(),
	}))
	keyFunc := func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}

	return func(c *fiber.Ctx) error {
		raw, err := bearerToken(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return utils.Fail(c, fiber.StatusUnauthorized, err.Error(), nil)
		}

		claims := jwt.MapClaims{}
		token, err := parser.ParseWithClaims(raw, claims, keyFunc)
		if err != nil || !token.Valid {
			return utils.Fail(c, fiber.StatusUnauthorized, "invalid token", nil)
		}

		userID, ok := subjectFromClaims(claims)
		if !ok {
			return utils.Fail(c, fiber.StatusUnauthorized, "token carries no subject", nil)
		}
		c.Locals(LocalUserID, userID)
		if role := roleFromClaims(claims); role != "" {
			c.Locals(LocalUserRole, role)
		}

		return c.Next()
	}
}

func bearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errMissingAuthorization
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errBearerScheme
	}
	return strings.TrimSpace(token), nil
}

func subjectFromClaims(claims jwt.MapClaims) (uint, bool) {
	for _, key := range []string{"sub", "user_id", "id"} {
		value, ok := claims[key]
		if !ok {
			continue
		}
		if id, err := parseSubject(value); err == nil && id > 0 {
			return id, true
		}
	}
	return 0, false
}

func parseSubject(value interface{}) (uint, error) {
	switch v := value.(type) {
	case float64:
		if v < 0 || v != float64(uint64(v)) {
			return 0, fmt.Errorf("invalid subject %v", v)
		}
		return uint(v), nil
	case string:
		parsed, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, err
		}
		return uint(parsed), nil
	default:
		return 0, fmt.Errorf("unsupported subject type %T", value)
	}
}

// roleFromClaims prefers the admin role when a roles list grants it.
func roleFromClaims(claims jwt.MapClaims) string {
	if role, ok := claims["role"].(string); ok && strings.TrimSpace(role) != "" {
		return normalizeRoleValue(role)
	}

	list, _ := claims["roles"].([]interface{})
	first := ""
	for _, item := range list {
		role := normalizeRoleValue(item)
		if role == AuthRoleAdmin {
			return role
		}
		if first == "" {
			first = role
		}
	}
	return first
}
