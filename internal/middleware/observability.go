package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/inklaunch-api/internal/observability"
)

const (
	surfaceAdmin  = "admin"
	surfaceAuthor = "author"
	surfacePublic = "public"
)

// Observability records request metrics per API surface and logs each
// competition API call with its correlation id and latency bucket.
func Observability(logger zerolog.Logger) fiber.Handler {
	observability.RegisterMetrics()

	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		duration := time.Since(start)

		surface, ok := requestSurface(c.Path())
		if !ok {
			return err
		}

		route := routeTemplate(c)
		method := c.Method()
		status := c.Response().StatusCode()
		statusLabel := strconv.Itoa(status)

		observability.APIRequests().WithLabelValues(surface, method, route, statusLabel).Inc()
		observability.APILatency().WithLabelValues(surface, method, route).Observe(duration.Seconds())
		if status >= fiber.StatusBadRequest {
			observability.APIErrors().WithLabelValues(surface, method, route, statusLabel).Inc()
		}

		event := logger.With().
			Str("correlation_id", GetCorrelationID(c)).
			Str("surface", surface).
			Str("route", route).
			Str("method", method).
			Int("status", status).
			Float64("latency_ms", float64(duration)/float64(time.Millisecond)).
			Str("latency_bucket", latencyBucket(duration))
		if strings.Contains(route, "/competitions/:id") {
			event = event.Str("competition_id", c.Params("id"))
		}
		requestLogger := event.Logger()

		switch {
		case status >= fiber.StatusInternalServerError:
			requestLogger.Error().Msg("request failed")
		case status >= fiber.StatusBadRequest:
			requestLogger.Warn().Msg("request completed with client error")
		case surface == surfacePublic:
			requestLogger.Debug().Msg("request completed")
		default:
			requestLogger.Info().Msg("request completed")
		}

		return err
	}
}

func requestSurface(path string) (string, bool) {
	switch {
	case strings.HasPrefix(path, "/api/v2/admin"):
		return surfaceAdmin, true
	case strings.HasPrefix(path, "/api/v2/me"),
		strings.HasPrefix(path, "/api/v2/notifications"),
		strings.HasPrefix(path, "/api/v2/competitions/") && strings.HasSuffix(path, "/submissions"):
		return surfaceAuthor, true
	case strings.HasPrefix(path, "/api/v2/competitions"):
		return surfacePublic, true
	default:
		return "", false
	}
}

func routeTemplate(c *fiber.Ctx) string {
	if c.Route() != nil && c.Route().Path != "" {
		return c.Route().Path
	}
	return c.Path()
}

func latencyBucket(duration time.Duration) string {
	switch {
	case duration <= 50*time.Millisecond:
		return "<=50ms"
	case duration <= 250*time.Millisecond:
		return "<=250ms"
	case duration <= time.Second:
		return "<=1s"
	case duration <= 10*time.Second:
		return "<=10s"
	default:
		return ">10s"
	}
}
