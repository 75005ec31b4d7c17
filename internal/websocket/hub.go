package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"vision-assistant-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	hubModule           = "Hub"
	DefaultRedisChannel = "thread_events"
)

// Subscriber is anything that can receive frames for a thread.
type Subscriber interface {
	Deliver(frame []byte) bool
}

// Hub indexes live connections by the threads they follow. With Redis it also
// relays frames to the other instances.
type Hub struct {
	threads map[string]map[Subscriber]struct{}

	mu sync.RWMutex

	// Redis connection for cross-instance communication
	rdb        *redis.Client
	channel    string
	instanceID string

	logger logger.ILogger
}

type relayEnvelope struct {
	Origin   string          `json:"origin"`
	ThreadID string          `json:"thread_id"`
	Frame    json.RawMessage `json:"frame"`
}

// NewHub accepts a nil rdb for a single-instance deployment.
func NewHub(rdb *redis.Client, channel string, log logger.ILogger) *Hub {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &Hub{
		threads:    make(map[string]map[Subscriber]struct{}),
		rdb:        rdb,
		channel:    channel,
		instanceID: uuid.NewString(),
		logger:     log,
	}
}

// Follow subscribes s to frames sent to threadID.
func (h *Hub) Follow(threadID string, s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.threads[threadID]
	if !ok {
		subs = make(map[Subscriber]struct{})
		h.threads[threadID] = subs
	}
	subs[s] = struct{}{}
}

// Unregister drops s from every thread it follows.
func (h *Hub) Unregister(s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for threadID, subs := range h.threads {
		delete(subs, s)
		if len(subs) == 0 {
			delete(h.threads, threadID)
		}
	}
}

func (h *Hub) Followers(threadID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.threads[threadID])
}

// SendToThread delivers frame to every local follower except skip and
// publishes it for the other instances. It reports how many local followers took it.
func (h *Hub) SendToThread(ctx context.Context, threadID string, frame []byte, skip Subscriber) int {
	delivered := h.deliverLocal(threadID, frame, skip)

	if h.rdb != nil {
		payload, err := json.Marshal(relayEnvelope{Origin: h.instanceID, ThreadID: threadID, Frame: frame})
		if err == nil {
			err = h.rdb.Publish(ctx, h.channel, payload).Err()
		}
		if err != nil {
			h.logger.Warn(hubModule, "Failed to relay frame", map[string]interface{}{
				"thread_id": threadID,
				"error":     err.Error(),
			})
		}
	}
	return delivered
}

func (h *Hub) deliverLocal(threadID string, frame []byte, skip Subscriber) int {
	h.mu.RLock()
	subs := make([]Subscriber, 0, len(h.threads[threadID]))
	for s := range h.threads[threadID] {
		if s != skip {
			subs = append(subs, s)
		}
	}
	h.mu.RUnlock()

	delivered := 0
	for _, s := range subs {
		if s.Deliver(frame) {
			delivered++
		} else {
			h.logger.Warn(hubModule, "Follower did not take frame", map[string]interface{}{"thread_id": threadID})
		}
	}
	return delivered
}

// Run relays frames published by other instances until ctx is done. Without
// Redis it only waits for ctx.
func (h *Hub) Run(ctx context.Context) error {
	if h.rdb == nil {
		<-ctx.Done()
		return nil
	}

	pubsub := h.rdb.Subscribe(ctx, h.channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			h.handleRelay(msg.Payload)
		}
	}
}

func (h *Hub) handleRelay(payload string) {
	var env relayEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		h.logger.Warn(hubModule, "Redis msg parse error", map[string]interface{}{"error": err.Error()})
		return
	}
	// Local followers already got it.
	if env.Origin == h.instanceID {
		return
	}
	h.deliverLocal(env.ThreadID, env.Frame, nil)
}
