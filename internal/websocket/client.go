package websocket

import (
	"context"
	"sync"
	"time"

	"vision-assistant-be/internal/pkg/logger"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	sendBuffer    = 256
	inboundBuffer = 32
)

// Client is one live connection. readPump queues frames, processLoop handles
// them one at a time in arrival order and writePump owns every write.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	ownerID    uuid.UUID
	dispatcher *Dispatcher
	session    *SessionContext
	logger     logger.ILogger

	// Buffered channel of outbound messages.
	send    chan []byte
	inbound chan []byte

	mu     sync.Mutex
	closed bool
}

func NewClient(hub *Hub, conn *websocket.Conn, ownerID uuid.UUID, dispatcher *Dispatcher, log logger.ILogger) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		ownerID:    ownerID,
		dispatcher: dispatcher,
		session:    NewSessionContext(),
		logger:     log,
		send:       make(chan []byte, sendBuffer),
		inbound:    make(chan []byte, inboundBuffer),
	}
}

func (c *Client) OwnerID() uuid.UUID {
	return c.ownerID
}

func (c *Client) Session() *SessionContext {
	return c.session
}

func (c *Client) Follow(threadID string) {
	c.hub.Follow(threadID, c)
}

// Deliver queues frame for writing. It reports false once the connection is
// closed or its buffer is full.
func (c *Client) Deliver(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Emit sends a typed frame. A response this connection can no longer take goes
// to the other followers of its thread.
func (c *Client) Emit(frameType string, content interface{}) {
	frame, err := encodeFrame(frameType, content)
	if err != nil {
		c.logger.Error("Client", "Failed to encode frame", map[string]interface{}{
			"type":  frameType,
			"error": err.Error(),
		})
		return
	}
	if c.Deliver(frame) {
		return
	}
	if frameType == FrameResponse && c.session.ThreadID != "" {
		n := c.hub.SendToThread(context.Background(), c.session.ThreadID, frame, c)
		c.logger.Info("Client", "Response rerouted to thread followers", map[string]interface{}{
			"thread_id": c.session.ThreadID,
			"followers": n,
		})
	}
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) markClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Serve blocks until the peer disconnects. A frame already being processed
// keeps running after that; queued ones are dropped.
func (c *Client) Serve(ctx context.Context) {
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump()
	}()
	go c.processLoop(ctx)

	c.readPump()

	c.hub.Unregister(c)
	c.markClosed()
	// The conn is recycled once the handler returns, so the writer must be gone first.
	<-writerDone
	c.logger.Info("Client", "Connection closed", map[string]interface{}{
		"owner_id": c.ownerID.String(),
	})
}

// processLoop is the only goroutine that touches the session context, so it
// reports the thread once the frame in flight has finished.
func (c *Client) processLoop(ctx context.Context) {
	for raw := range c.inbound {
		if c.isClosed() {
			continue
		}
		c.dispatcher.Dispatch(ctx, c, raw)
	}
	c.logger.Info("Client", "Session loop finished", map[string]interface{}{
		"owner_id":  c.ownerID.String(),
		"thread_id": c.session.ThreadID,
	})
}

// readPump pumps messages from the websocket connection to the process loop.
func (c *Client) readPump() {
	defer close(c.inbound)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("Client", "Unexpected close", map[string]interface{}{"error": err.Error()})
			}
			return
		}

		select {
		case c.inbound <- message:
		default:
			c.Emit(FrameError, "Too many pending messages")
		}
	}
}

// writePump pumps frames to the websocket connection, one frame per message.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
