package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/inklaunch-api/internal/middleware"
	"github.com/noah-isme/inklaunch-api/internal/service"
	"github.com/noah-isme/inklaunch-api/internal/utils"
)

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	value := strings.TrimSpace(c.Params(name))
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid " + name)
	}
	return uint(parsed), nil
}

func userIDFromContext(c *fiber.Ctx) uint {
	return middleware.IdentityFromLocals(c).UserID
}

func actorFromContext(c *fiber.Ctx) service.Actor {
	identity := middleware.IdentityFromLocals(c)
	return service.Actor{ID: identity.UserID, Role: identity.Role}
}

func withRequestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str(middleware.LocalCorrelationID, correlation).Logger()
		}
	}
	return &logger
}

// respondServiceError maps service failures onto HTTP statuses.
func respondServiceError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	var (
		validationErr  *service.ValidationError
		conflictErr    *service.StateConflictError
		validationErrs validator.ValidationErrors
	)

	switch {
	case errors.As(err, &validationErr):
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", validationErr.Fields)
	case errors.As(err, &validationErrs):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrs.Error())
	case errors.Is(err, service.ErrUnsupportedManuscript),
		errors.Is(err, service.ErrManuscriptFileRequired),
		errors.Is(err, service.ErrManuscriptTooLarge),
		errors.Is(err, service.ErrValidation):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrBookNotOwned):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrAuthorRequired):
		return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrForbidden):
		return utils.SendError(c, fiber.StatusForbidden, "admin role required")
	case errors.Is(err, service.ErrCompetitionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "competition not found")
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrBookNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "book not found")
	case errors.Is(err, service.ErrNotificationNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "notification not found")
	case errors.As(err, &conflictErr):
		return utils.Fail(c, fiber.StatusConflict, conflictErr.Error(), fiber.Map{"from": conflictErr.From, "to": conflictErr.To})
	case errors.Is(err, service.ErrCompetitionNotAccepting),
		errors.Is(err, service.ErrWindowClosed),
		errors.Is(err, service.ErrQuotaExceeded),
		errors.Is(err, service.ErrSubmissionStateInvalid):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrCriticUnavailable):
		return utils.SendError(c, fiber.StatusServiceUnavailable, "evaluation service unavailable")
	default:
		requestLogger(logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
