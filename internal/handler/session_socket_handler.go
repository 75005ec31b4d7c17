package handler

import (
	"context"

	"vision-assistant-be/internal/pkg/logger"
	"vision-assistant-be/internal/pkg/metrics"
	"vision-assistant-be/internal/pkg/serverutils"
	internalWS "vision-assistant-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const socketModule = "SessionSocketHandler"

type SessionSocketHandler struct {
	hub        *internalWS.Hub
	dispatcher *internalWS.Dispatcher
	jwtSecret  string
	metrics    *metrics.Metrics
	logger     logger.ILogger

	// ctx outlives single requests; cancelled on shutdown.
	ctx context.Context
}

func NewSessionSocketHandler(ctx context.Context, hub *internalWS.Hub, dispatcher *internalWS.Dispatcher, jwtSecret string, m *metrics.Metrics, log logger.ILogger) *SessionSocketHandler {
	return &SessionSocketHandler{
		hub:        hub,
		dispatcher: dispatcher,
		jwtSecret:  jwtSecret,
		metrics:    m,
		logger:     log,
		ctx:        ctx,
	}
}

// Authenticate checks the handshake token before the upgrade. Browsers cannot set
// headers on a websocket request, so ?token= is tried first.
func (h *SessionSocketHandler) Authenticate(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	tokenStr := c.Query("token")
	if tokenStr == "" {
		tokenStr = serverutils.BearerToken(c.Get(fiber.HeaderAuthorization))
	}
	if tokenStr == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, "Missing token (Query 'token' or Header 'Authorization')"))
	}

	userID, err := serverutils.ParseToken(h.jwtSecret, tokenStr)
	if err != nil {
		h.logger.Warn(socketModule, "Invalid Token in WS Handshake", map[string]interface{}{"error": err.Error()})
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, "Invalid token"))
	}

	c.Locals(serverutils.UserIDLocal, userID)
	return c.Next()
}

func (h *SessionSocketHandler) Serve() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals(serverutils.UserIDLocal).(uuid.UUID)

		h.metrics.SocketOpened()
		defer h.metrics.SocketClosed()

		h.logger.Info(socketModule, "Starting WebSocket session", map[string]interface{}{"user_id": userID.String()})
		internalWS.ServeWs(h.ctx, h.hub, h.dispatcher, conn, userID, h.logger)
		h.logger.Info(socketModule, "WebSocket session ended", map[string]interface{}{"user_id": userID.String()})
	})
}

func (h *SessionSocketHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/ws", h.Authenticate, h.Serve())
}
