package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/inklaunch-api/internal/utils"
)

func TestRateLimitKeysByAuthorAndCompetition(t *testing.T) {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(LocalUserID, uint(42))
		return c.Next()
	})
	app.Post("/competitions/:id/submissions", RateLimit("submissions", 1, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})

	send := func(path string) *http.Response {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, path, nil), -1)
		require.NoError(t, err)
		return resp
	}

	require.Equal(t, fiber.StatusCreated, send("/competitions/1/submissions").StatusCode)
	require.Equal(t, fiber.StatusCreated, send("/competitions/2/submissions").StatusCode)

	limited := send("/competitions/1/submissions")
	require.Equal(t, fiber.StatusTooManyRequests, limited.StatusCode)
	require.Equal(t, "60", limited.Header.Get(fiber.HeaderRetryAfter))

	var body utils.APIResponse
	require.NoError(t, json.NewDecoder(limited.Body).Decode(&body))
	require.False(t, body.Success)
	require.Equal(t, "too many requests, retry later", body.Message)
}
