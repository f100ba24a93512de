package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/noah-isme/inklaunch-api/internal/utils"
)

// RateLimit throttles a route per caller. Authenticated callers are keyed by
// user id and, on routes with an :id parameter, by that id as well, so an
// author entering two competitions draws from two buckets. Anonymous callers
// fall back to the client IP.
func RateLimit(scope string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Minute
	}

	return limiter.New(limiter.Config{
		Max:          max,
		Expiration:   window,
		KeyGenerator: rateLimitKey(scope),
		LimitReached: func(c *fiber.Ctx) error {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(window.Seconds())))
			return utils.Fail(c, fiber.StatusTooManyRequests, "too many requests, retry later", fiber.Map{
				"scope":          scope,
				"limit":          max,
				"window_seconds": int(window.Seconds()),
			})
		},
	})
}

func rateLimitKey(scope string) func(*fiber.Ctx) string {
	return func(c *fiber.Ctx) string {
		caller := c.IP()
		if identity := IdentityFromLocals(c); identity.Authenticated() {
			caller = "user:" + strconv.FormatUint(uint64(identity.UserID), 10)
		}
		key := scope + ":" + caller
		if target := c.Params("id"); target != "" {
			key += ":" + target
		}
		return key
	}
}
