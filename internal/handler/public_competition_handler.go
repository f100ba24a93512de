package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/inklaunch-api/internal/models"
	"github.com/noah-isme/inklaunch-api/internal/service"
	"github.com/noah-isme/inklaunch-api/internal/utils"
)

// PublicCompetitionHandler serves the unauthenticated competition listings.
type PublicCompetitionHandler struct {
	competitions service.CompetitionService
	winners      service.WinnerService
	logger       zerolog.Logger
}

// NewPublicCompetitionHandler constructs the public handler.
func NewPublicCompetitionHandler(competitions service.CompetitionService, winners service.WinnerService, logger zerolog.Logger) *PublicCompetitionHandler {
	return &PublicCompetitionHandler{
		competitions: competitions,
		winners:      winners,
		logger:       logger.With().Str("component", "public_competition_handler").Logger(),
	}
}

// Register attaches the public routes.
func (h *PublicCompetitionHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Get("/:id/winners", h.winnersFor)
}

func (h *PublicCompetitionHandler) list(c *fiber.Ctx) error {
	response, err := h.competitions.ListPublic(withRequestContext(c))
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "competitions", response)
}

func (h *PublicCompetitionHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid competition id")
	}

	competition, err := h.competitions.Get(withRequestContext(c), id)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}
	if competition.Status == models.CompetitionStatusDraft {
		return respondServiceError(c, h.logger, service.ErrCompetitionNotFound)
	}

	return utils.SendSuccess(c, "competition", competition)
}

func (h *PublicCompetitionHandler) winnersFor(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid competition id")
	}

	winners, err := h.winners.Winners(withRequestContext(c), id, true)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "winners", winners)
}
