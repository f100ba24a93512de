package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/inklaunch-api/internal/dto"
	"github.com/noah-isme/inklaunch-api/internal/middleware"
	"github.com/noah-isme/inklaunch-api/internal/service"
)

// EvaluationProgressHandler streams evaluation progress events over websockets.
type EvaluationProgressHandler struct {
	service   service.EvaluationService
	logger    zerolog.Logger
	keepAlive time.Duration
}

// NewEvaluationProgressHandler constructs the progress stream handler.
func NewEvaluationProgressHandler(service service.EvaluationService, logger zerolog.Logger, keepAlive time.Duration) *EvaluationProgressHandler {
	if keepAlive <= 0 {
		keepAlive = 30 * time.Second
	}
	return &EvaluationProgressHandler{
		service:   service,
		logger:    logger.With().Str("component", "evaluation_progress_handler").Logger(),
		keepAlive: keepAlive,
	}
}

// Register binds the websocket upgrade under an admin competition group.
func (h *EvaluationProgressHandler) Register(router fiber.Router) {
	router.Get("/:id/evaluation/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		id, err := parseUintParam(c, "id")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid competition id")
		}
		c.Locals("competition_id", id)
		c.Locals("request_ctx", withRequestContext(c))
		return c.Next()
	}, websocket.New(h.handleConnection))
}

func (h *EvaluationProgressHandler) handleConnection(conn *websocket.Conn) {
	competitionID, _ := conn.Locals("competition_id").(uint)
	ctx, _ := conn.Locals("request_ctx").(context.Context)
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := h.logger.With().
		Uint("competition_id", competitionID).
		Str("correlation_id", middleware.CorrelationIDFromContext(ctx)).
		Logger()

	events, cleanup := h.service.Subscribe(competitionID)
	defer cleanup()

	// The client only ever sends close frames; reading detects disconnects.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := writeProgressEvent(conn, event); err != nil {
				logger.Debug().Err(err).Msg("failed to write progress event")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				logger.Debug().Err(err).Msg("progress stream ping failed")
				return
			}
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func writeProgressEvent(conn *websocket.Conn, event dto.EvaluationProgressEvent) error {
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(event)
}
