package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/inklaunch-api/internal/dto"
	"github.com/noah-isme/inklaunch-api/internal/service"
	"github.com/noah-isme/inklaunch-api/internal/utils"
)

// NotificationHandler serves the author inbox and its SSE stream.
type NotificationHandler struct {
	service   service.NotificationService
	logger    zerolog.Logger
	keepAlive time.Duration
}

// NewNotificationHandler constructs a handler instance.
func NewNotificationHandler(service service.NotificationService, logger zerolog.Logger, keepAlive time.Duration) *NotificationHandler {
	if keepAlive <= 0 {
		keepAlive = 30 * time.Second
	}
	return &NotificationHandler{
		service:   service,
		logger:    logger.With().Str("component", "notification_handler").Logger(),
		keepAlive: keepAlive,
	}
}

// Register binds the inbox routes.
func (h *NotificationHandler) Register(router fiber.Router) {
	router.Get("", h.inbox)
	router.Get("/stream", h.stream)
	router.Post("/read-all", h.markAllRead)
	router.Patch("/:id/read", h.markRead)
}

func (h *NotificationHandler) inbox(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}
	offset, err := parseQueryInt(c, "offset")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid offset")
	}
	unreadOnly := false
	if raw := c.Query("unread"); raw != "" {
		if unreadOnly, err = strconv.ParseBool(raw); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid unread flag")
		}
	}

	inbox, err := h.service.Inbox(withRequestContext(c), userIDFromContext(c), dto.NotificationInboxRequest{
		UnreadOnly: unreadOnly,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.OK(c, inbox.Items, "notifications", fiber.Map{
		"unread": inbox.Unread,
		"limit":  inbox.Limit,
		"offset": inbox.Offset,
	})
}

func (h *NotificationHandler) stream(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	ctx, cancel := context.WithCancel(withRequestContext(c))
	entries, unsubscribe := h.service.Subscribe(userID)
	logger := requestLogger(h.logger, c).With().Uint("user_id", userID).Logger()

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			unsubscribe()
			cancel()
		}()

		ticker := time.NewTicker(h.keepAlive / 2)
		defer ticker.Stop()

		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				if err := writeNotificationEvent(w, entry); err != nil {
					logger.Debug().Err(err).Msg("notification stream closed")
					return
				}
			case <-ticker.C:
				if err := writeKeepAlive(w); err != nil {
					logger.Debug().Err(err).Msg("notification stream closed")
					return
				}
			case <-ctx.Done():
				return
			}
		}
	})

	return nil
}

func (h *NotificationHandler) markRead(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid notification id")
	}

	notification, err := h.service.MarkRead(withRequestContext(c), id, userIDFromContext(c))
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "notification marked as read", notification)
}

func (h *NotificationHandler) markAllRead(c *fiber.Ctx) error {
	marked, err := h.service.MarkAllRead(withRequestContext(c), userIDFromContext(c))
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "notifications marked as read", fiber.Map{"marked": marked})
}

// writeNotificationEvent emits one SSE frame named after the entry kind.
func writeNotificationEvent(w *bufio.Writer, notification dto.NotificationResponse) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", notification.ID, notification.Kind, payload); err != nil {
		return err
	}
	return w.Flush()
}

func writeKeepAlive(w *bufio.Writer) error {
	if _, err := fmt.Fprintf(w, ": keep-alive %s\n\n", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return w.Flush()
}
