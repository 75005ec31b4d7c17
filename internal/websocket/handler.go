package websocket

import (
	"context"

	"vision-assistant-be/internal/pkg/logger"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeWs runs one connection for ownerID until the peer goes away.
func ServeWs(ctx context.Context, hub *Hub, dispatcher *Dispatcher, conn *websocket.Conn, ownerID uuid.UUID, log logger.ILogger) {
	client := NewClient(hub, conn, ownerID, dispatcher, log)
	client.Serve(ctx)
}
