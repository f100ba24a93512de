package handler

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/inklaunch-api/internal/dto"
	"github.com/noah-isme/inklaunch-api/internal/service"
	"github.com/noah-isme/inklaunch-api/internal/utils"
)

const (
	defaultActivityPageSize = 25
	maxActivityPageSize     = 200
)

// AdminActivityHandler exposes the competition audit trail.
type AdminActivityHandler struct {
	service service.ActivityService
	logger  zerolog.Logger
}

// NewAdminActivityHandler constructs the handler.
func NewAdminActivityHandler(service service.ActivityService, logger zerolog.Logger) *AdminActivityHandler {
	return &AdminActivityHandler{
		service: service,
		logger:  logger.With().Str("component", "admin_activity_handler").Logger(),
	}
}

// Register attaches the trail listing to the router group.
func (h *AdminActivityHandler) Register(router fiber.Router) {
	router.Get("", h.list)
}

// RegisterTimeline attaches the per-competition timeline to the admin
// competitions group.
func (h *AdminActivityHandler) RegisterTimeline(router fiber.Router) {
	router.Get("/:id/activities", h.timeline)
}

func (h *AdminActivityHandler) list(c *fiber.Ctx) error {
	req, err := activityRequestFromQuery(c)
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}
	if competitionID, err := parseQueryInt(c, "competition_id"); err != nil || competitionID < 0 {
		return utils.Fail(c, fiber.StatusBadRequest, "invalid competition_id", nil)
	} else if competitionID > 0 {
		req.CompetitionID = uint(competitionID)
	}
	return h.respond(c, req)
}

func (h *AdminActivityHandler) timeline(c *fiber.Ctx) error {
	competitionID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "invalid competition id", nil)
	}
	req, err := activityRequestFromQuery(c)
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}
	req.CompetitionID = competitionID
	return h.respond(c, req)
}

func (h *AdminActivityHandler) respond(c *fiber.Ctx, req dto.AdminActivityListRequest) error {
	response, err := h.service.List(withRequestContext(c), req)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}
	return utils.OK(c, response.Items, "activity logs", response.Pagination)
}

type queryError string

func (e queryError) Error() string { return string(e) }

func activityRequestFromQuery(c *fiber.Ctx) (dto.AdminActivityListRequest, error) {
	req := dto.AdminActivityListRequest{
		Page:       1,
		PageSize:   defaultActivityPageSize,
		Action:     c.Query("action"),
		EntityType: c.Query("entity_type"),
	}

	ints := []struct {
		key    string
		assign func(int)
	}{
		{"page", func(v int) { req.Page = v }},
		{"page_size", func(v int) { req.PageSize = min(v, maxActivityPageSize) }},
		{"actor_id", func(v int) { req.ActorID = uint(v) }},
		{"entity_id", func(v int) { req.EntityID = uint(v) }},
	}
	for _, field := range ints {
		value, err := parseQueryInt(c, field.key)
		if err != nil || value < 0 {
			return req, queryError("invalid " + field.key)
		}
		if value > 0 {
			field.assign(value)
		}
	}

	var err error
	if req.Since, err = parseQueryTime(c, "since"); err != nil {
		return req, err
	}
	if req.Until, err = parseQueryTime(c, "until"); err != nil {
		return req, err
	}
	return req, nil
}

func parseQueryTime(c *fiber.Ctx, key string) (*time.Time, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, queryError("invalid " + key + ", expected RFC3339")
	}
	parsed = parsed.UTC()
	return &parsed, nil
}
