package middleware

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRegisterRecoversPanicsWithCorrelation(t *testing.T) {
	var logs bytes.Buffer
	logger := zerolog.New(&logs)

	app := fiber.New()
	Register(app, Config{Logger: &logger})
	app.Get("/api/v2/competitions/boom", func(c *fiber.Ctx) error {
		panic("evaluation pool exploded")
	})

	req := httptest.NewRequest("GET", "/api/v2/competitions/boom", nil)
	req.Header.Set(HeaderCorrelationID, "corr-panic")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	require.Contains(t, logs.String(), "recovered from panic")
	require.Contains(t, logs.String(), "corr-panic")
}

func TestRegisterWritesAccessLogAndExposesHeaders(t *testing.T) {
	var access bytes.Buffer
	app := fiber.New()
	Register(app, Config{AccessLog: true, Output: &access, AllowOrigins: "https://inklaunch.example"})
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	req := httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set("Origin", "https://inklaunch.example")
	req.Header.Set(HeaderCorrelationID, "corr-access")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "corr-access", resp.Header.Get(HeaderCorrelationID))
	require.Contains(t, resp.Header.Get("Access-Control-Expose-Headers"), "Retry-After")
	require.Contains(t, access.String(), "correlation=corr-access")
}
