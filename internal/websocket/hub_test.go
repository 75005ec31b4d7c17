package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"vision-assistant-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSubscriber struct {
	mu     sync.Mutex
	frames [][]byte
	refuse bool
}

func (s *recordingSubscriber) Deliver(frame []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refuse {
		return false
	}
	s.frames = append(s.frames, frame)
	return true
}

func (s *recordingSubscriber) received() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func TestHub_SendToThreadSkipsSender(t *testing.T) {
	hub := NewHub(nil, "", logger.NewNopLogger())
	a, b, other := &recordingSubscriber{}, &recordingSubscriber{}, &recordingSubscriber{}
	hub.Follow("thread_1", a)
	hub.Follow("thread_1", b)
	hub.Follow("thread_2", other)

	n := hub.SendToThread(context.Background(), "thread_1", []byte(`{"type":"response"}`), a)

	assert.Equal(t, 1, n)
	assert.Equal(t, 0, a.received())
	assert.Equal(t, 1, b.received())
	assert.Equal(t, 0, other.received())
}

func TestHub_CountsOnlyAcceptedFrames(t *testing.T) {
	hub := NewHub(nil, "", logger.NewNopLogger())
	full := &recordingSubscriber{refuse: true}
	hub.Follow("thread_1", full)

	assert.Equal(t, 0, hub.SendToThread(context.Background(), "thread_1", []byte(`{}`), nil))
}

func TestHub_UnregisterDropsEmptyThreads(t *testing.T) {
	hub := NewHub(nil, "", logger.NewNopLogger())
	s := &recordingSubscriber{}
	hub.Follow("thread_1", s)
	hub.Follow("thread_2", s)
	hub.Follow("thread_1", s)
	require.Equal(t, 1, hub.Followers("thread_1"))

	hub.Unregister(s)

	assert.Equal(t, 0, hub.Followers("thread_1"))
	assert.Equal(t, 0, hub.Followers("thread_2"))
	assert.Empty(t, hub.threads)
}

func TestHub_HandleRelayIgnoresOwnInstance(t *testing.T) {
	hub := NewHub(nil, "", logger.NewNopLogger())
	s := &recordingSubscriber{}
	hub.Follow("thread_1", s)

	own, err := json.Marshal(relayEnvelope{Origin: hub.instanceID, ThreadID: "thread_1", Frame: json.RawMessage(`{"type":"response"}`)})
	require.NoError(t, err)
	hub.handleRelay(string(own))
	assert.Equal(t, 0, s.received())

	remote, err := json.Marshal(relayEnvelope{Origin: "other-instance", ThreadID: "thread_1", Frame: json.RawMessage(`{"type":"response"}`)})
	require.NoError(t, err)
	hub.handleRelay(string(remote))
	require.Equal(t, 1, s.received())
	assert.JSONEq(t, `{"type":"response"}`, string(s.frames[0]))

	hub.handleRelay("not json")
	assert.Equal(t, 1, s.received())
}

func TestHub_RunWithoutRedisStopsOnCancel(t *testing.T) {
	hub := NewHub(nil, "", logger.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, hub.Run(ctx))
}

func TestClient_EmitReroutesResponseAfterClose(t *testing.T) {
	hub := NewHub(nil, "", logger.NewNopLogger())
	follower := &recordingSubscriber{}
	hub.Follow("thread_1", follower)

	c := NewClient(hub, nil, uuid.New(), nil, logger.NewNopLogger())
	c.Session().BindThread("thread_1")
	hub.Follow("thread_1", c)

	c.Emit(FrameStatus, "in_progress")
	require.Len(t, c.send, 1)

	c.markClosed()
	assert.False(t, c.Deliver([]byte(`{}`)))

	c.Emit(FrameStatus, "completed")
	assert.Equal(t, 0, follower.received())

	c.Emit(FrameResponse, map[string]string{"content": "done"})
	require.Equal(t, 1, follower.received())
	assert.JSONEq(t, `{"type":"response","content":{"content":"done"}}`, string(follower.frames[0]))
}
