package handler

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/inklaunch-api/internal/dto"
	"github.com/noah-isme/inklaunch-api/internal/service"
	"github.com/noah-isme/inklaunch-api/internal/utils"
)

// CompetitionHandler exposes the administrator competition lifecycle.
type CompetitionHandler struct {
	competitions service.CompetitionService
	submissions  service.SubmissionService
	evaluations  service.EvaluationService
	winners      service.WinnerService
	leaderboard  service.LeaderboardService
	logger       zerolog.Logger
}

// CompetitionHandlerDeps groups the services behind the admin competition routes.
type CompetitionHandlerDeps struct {
	Competitions service.CompetitionService
	Submissions  service.SubmissionService
	Evaluations  service.EvaluationService
	Winners      service.WinnerService
	Leaderboard  service.LeaderboardService
}

// NewCompetitionHandler constructs the admin competition handler.
func NewCompetitionHandler(deps CompetitionHandlerDeps, logger zerolog.Logger) *CompetitionHandler {
	return &CompetitionHandler{
		competitions: deps.Competitions,
		submissions:  deps.Submissions,
		evaluations:  deps.Evaluations,
		winners:      deps.Winners,
		leaderboard:  deps.Leaderboard,
		logger:       logger.With().Str("component", "competition_handler").Logger(),
	}
}

// Register attaches the admin competition routes to the router group.
func (h *CompetitionHandler) Register(router fiber.Router) {
	router.Post("", h.create)
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Put("/:id", h.update)
	router.Post("/:id/publish", h.publish)
	router.Post("/:id/close", h.close)
	router.Post("/:id/evaluate", h.evaluate)
	router.Post("/:id/archive", h.archive)
	router.Post("/:id/winners", h.selectWinners)
	router.Get("/:id/winners", h.listWinners)
	router.Get("/:id/leaderboard", h.leaderboardFor)
	router.Get("/:id/submissions", h.listSubmissions)
}

func (h *CompetitionHandler) create(c *fiber.Ctx) error {
	var payload dto.CompetitionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	competition, err := h.competitions.Create(withRequestContext(c), actorFromContext(c), payload)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.Created(c, "competition created", competition)
}

func (h *CompetitionHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page size")
	}

	response, err := h.competitions.List(withRequestContext(c), dto.CompetitionListRequest{
		Status:   strings.TrimSpace(c.Query("status")),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.OK(c, response.Items, "competitions", response.Pagination)
}

func (h *CompetitionHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid competition id")
	}

	competition, err := h.competitions.Get(withRequestContext(c), id)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "competition", competition)
}

func (h *CompetitionHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid competition id")
	}

	var payload dto.CompetitionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	competition, err := h.competitions.Update(withRequestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "competition updated", competition)
}

func (h *CompetitionHandler) publish(c *fiber.Ctx) error {
	return h.transition(c, "competition published", h.competitions.Publish)
}

func (h *CompetitionHandler) close(c *fiber.Ctx) error {
	return h.transition(c, "competition closed", h.competitions.Close)
}

func (h *CompetitionHandler) archive(c *fiber.Ctx) error {
	return h.transition(c, "competition archived", h.competitions.Archive)
}

type lifecycleAction func(ctx context.Context, actor service.Actor, id uint) (dto.CompetitionResponse, error)

func (h *CompetitionHandler) transition(c *fiber.Ctx, message string, action lifecycleAction) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid competition id")
	}

	competition, err := action(withRequestContext(c), actorFromContext(c), id)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, message, competition)
}

func (h *CompetitionHandler) evaluate(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid competition id")
	}

	report, err := h.evaluations.Run(withRequestContext(c), actorFromContext(c), id)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "evaluation run finished", report)
}

func (h *CompetitionHandler) selectWinners(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid competition id")
	}

	var payload dto.WinnerSelectionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.winners.SelectWinners(withRequestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "winners selected", result)
}

func (h *CompetitionHandler) listWinners(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid competition id")
	}

	winners, err := h.winners.Winners(withRequestContext(c), id, false)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "winners", winners)
}

func (h *CompetitionHandler) leaderboardFor(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid competition id")
	}

	board, err := h.leaderboard.Leaderboard(withRequestContext(c), id)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "leaderboard", board)
}

func (h *CompetitionHandler) listSubmissions(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid competition id")
	}
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page size")
	}

	response, err := h.submissions.ListByCompetition(withRequestContext(c), actorFromContext(c), id, dto.SubmissionListRequest{
		Status:   strings.TrimSpace(c.Query("status")),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.OK(c, response.Items, "submissions", response.Pagination)
}
