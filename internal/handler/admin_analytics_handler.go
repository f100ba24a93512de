package handler

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/inklaunch-api/internal/service"
	"github.com/noah-isme/inklaunch-api/internal/utils"
)

// AdminAnalyticsHandler exposes competition totals for administrators.
type AdminAnalyticsHandler struct {
	service service.AdminAnalyticsService
	logger  zerolog.Logger
}

// NewAdminAnalyticsHandler constructs the handler.
func NewAdminAnalyticsHandler(service service.AdminAnalyticsService, logger zerolog.Logger) *AdminAnalyticsHandler {
	return &AdminAnalyticsHandler{
		service: service,
		logger:  logger.With().Str("component", "admin_analytics_handler").Logger(),
	}
}

// Register attaches analytics routes to the router group.
func (h *AdminAnalyticsHandler) Register(router fiber.Router) {
	router.Get("", h.get)
}

// get serves the cached summary; ?refresh=true recomputes it.
func (h *AdminAnalyticsHandler) get(c *fiber.Ctx) error {
	refresh := false
	if raw := strings.TrimSpace(c.Query("refresh")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return utils.Fail(c, fiber.StatusBadRequest, "invalid refresh flag", nil)
		}
		refresh = parsed
	}

	summary, err := h.service.GetSummary(withRequestContext(c), refresh)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}
	if summary.CacheHit {
		c.Set("X-Cache", "HIT")
	} else {
		c.Set("X-Cache", "MISS")
	}
	return utils.SendSuccess(c, "competition analytics", summary)
}
