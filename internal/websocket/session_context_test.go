package websocket

import (
	"testing"

	"vision-assistant-be/internal/dto"

	"github.com/stretchr/testify/assert"
)

func TestSessionContext_BindThreadResetsOnSwitch(t *testing.T) {
	s := NewSessionContext()
	s.BindThread("thread_1")
	s.AddDetection(map[string]interface{}{"label": "cat"})
	s.SetHistory([]dto.MessageDTO{{MessageId: "m1"}})

	s.BindThread("thread_1")
	assert.Len(t, s.Detections, 1)
	assert.Len(t, s.ConversationHistory, 1)

	s.BindThread("thread_2")
	assert.Equal(t, "thread_2", s.ThreadID)
	assert.Empty(t, s.Detections)
	assert.Empty(t, s.ConversationHistory)
}

func TestSessionContext_KeepsLatestDetections(t *testing.T) {
	s := NewSessionContext()
	for i := 0; i < maxContextDetections+5; i++ {
		s.AddDetection(map[string]interface{}{"n": i})
	}
	assert.Len(t, s.Detections, maxContextDetections)
	assert.Equal(t, 5, s.Detections[0]["n"])
	assert.Equal(t, maxContextDetections+4, s.Detections[maxContextDetections-1]["n"])
}

func TestInboundFrame_ThreadIDFallsBackToSessionID(t *testing.T) {
	assert.Equal(t, "a", InboundFrame{ThreadId: "a", SessionId: "b"}.ThreadID())
	assert.Equal(t, "b", InboundFrame{SessionId: "b"}.ThreadID())
	assert.Equal(t, "", InboundFrame{}.ThreadID())
}
