package websocket

import (
	"vision-assistant-be/internal/dto"
)

const maxContextDetections = 100

// SessionContext is the per-connection view of recent activity. It is owned by a
// single Client, only touched from its process loop, and never authoritative:
// the stores are.
type SessionContext struct {
	ThreadID            string
	Detections          []map[string]interface{}
	ConversationHistory []dto.MessageDTO
}

func NewSessionContext() *SessionContext {
	return &SessionContext{}
}

// BindThread switches the context to threadID, dropping what belonged to another thread.
func (s *SessionContext) BindThread(threadID string) {
	if s.ThreadID == threadID {
		return
	}
	s.ThreadID = threadID
	s.Detections = nil
	s.ConversationHistory = nil
}

func (s *SessionContext) AddDetection(detection map[string]interface{}) {
	s.Detections = append(s.Detections, detection)
	if len(s.Detections) > maxContextDetections {
		s.Detections = s.Detections[len(s.Detections)-maxContextDetections:]
	}
}

func (s *SessionContext) SetHistory(history []dto.MessageDTO) {
	s.ConversationHistory = history
}
