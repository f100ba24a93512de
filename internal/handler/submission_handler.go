package handler

import (
	"mime/multipart"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/inklaunch-api/internal/dto"
	"github.com/noah-isme/inklaunch-api/internal/service"
	"github.com/noah-isme/inklaunch-api/internal/utils"
)

// SubmissionHandler manages competition entry endpoints.
type SubmissionHandler struct {
	service service.SubmissionService
	logger  zerolog.Logger
}

// NewSubmissionHandler builds a submission handler instance.
func NewSubmissionHandler(service service.SubmissionService, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service: service,
		logger:  logger.With().Str("component", "submission_handler").Logger(),
	}
}

// RegisterEntry attaches the entry route to a competition group behind the
// given guards, typically authentication and a per-author rate limit.
func (h *SubmissionHandler) RegisterEntry(router fiber.Router, guards ...fiber.Handler) {
	handlers := make([]fiber.Handler, 0, len(guards)+1)
	for _, guard := range guards {
		if guard != nil {
			handlers = append(handlers, guard)
		}
	}
	handlers = append(handlers, h.submit)
	router.Post("/:id/submissions", handlers...)
}

// RegisterAuthor attaches the routes scoped to the authenticated author.
func (h *SubmissionHandler) RegisterAuthor(router fiber.Router) {
	router.Get("/submissions", h.listMine)
	router.Get("/wins", h.listWins)
	router.Get("/competition-stats", h.stats)
}

// RegisterAdmin attaches the submission review routes.
func (h *SubmissionHandler) RegisterAdmin(router fiber.Router) {
	router.Post("/:id/validate", h.validate)
	router.Post("/:id/disqualify", h.disqualify)
	router.Post("/:id/confirm-fee", h.confirmFee)
}

func (h *SubmissionHandler) submit(c *fiber.Ctx) error {
	competitionID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid competition id")
	}

	var payload dto.SubmissionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	var file *multipart.FileHeader
	if header, err := c.FormFile("manuscript"); err == nil {
		file = header
	}

	submission, err := h.service.Submit(withRequestContext(c), actorFromContext(c), competitionID, payload, file)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.Created(c, "submission received", submission)
}

func (h *SubmissionHandler) listMine(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	submissions, err := h.service.ListMine(withRequestContext(c), userID)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "submissions", submissions)
}

func (h *SubmissionHandler) listWins(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	wins, err := h.service.ListWins(withRequestContext(c), userID)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "wins", wins)
}

func (h *SubmissionHandler) stats(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	stats, err := h.service.AuthorStats(withRequestContext(c), userID)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "competition stats", stats)
}

func (h *SubmissionHandler) validate(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	submission, err := h.service.Validate(withRequestContext(c), actorFromContext(c), id)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "submission validated", submission)
}

func (h *SubmissionHandler) disqualify(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	var payload dto.DisqualifyRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	submission, err := h.service.Disqualify(withRequestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "submission disqualified", submission)
}

func (h *SubmissionHandler) confirmFee(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	var payload dto.ConfirmEntryFeeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	submission, err := h.service.ConfirmEntryFee(withRequestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "entry fee confirmed", submission)
}
