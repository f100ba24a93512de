package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestJWTProtectedPopulatesLocals(t *testing.T) {
	app := fiber.New()
	app.Use(JWTProtected("secret"))
	app.Get("/", func(c *fiber.Ctx) error {
		require.Equal(t, uint(42), c.Locals("user_id"))
		require.Equal(t, "author", c.Locals("user_role"))
		return c.SendStatus(fiber.StatusNoContent)
	})

	token := signToken(t, "secret", jwt.MapClaims{
		"sub":   "42",
		"roles": []interface{}{" Author "},
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestJWTProtectedRejectsBadTokens(t *testing.T) {
	app := fiber.New()
	app.Use(JWTProtected("secret"))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	expired := signToken(t, "secret", jwt.MapClaims{"sub": 1, "exp": time.Now().Add(-time.Hour).Unix()})
	forged := signToken(t, "other", jwt.MapClaims{"sub": 1})

	for name, header := range map[string]string{
		"missing": "",
		"scheme":  "Basic abc",
		"expired": "Bearer " + expired,
		"forged":  "Bearer " + forged,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := app.Test(req, -1)
		require.NoError(t, err, name)
		require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, name)
	}
}

func TestRoleFromClaimsPrefersAdmin(t *testing.T) {
	require.Equal(t, "admin", roleFromClaims(jwt.MapClaims{"roles": []interface{}{"author", "Admin"}}))
	require.Equal(t, "author", roleFromClaims(jwt.MapClaims{"role": " AUTHOR ", "roles": []interface{}{"admin"}}))
	require.Equal(t, "", roleFromClaims(jwt.MapClaims{}))
}

func TestJWTProtectedRequiresSubject(t *testing.T) {
	app := fiber.New()
	app.Use(JWTProtected("secret"))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	token := signToken(t, "secret", jwt.MapClaims{"role": "admin"})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
