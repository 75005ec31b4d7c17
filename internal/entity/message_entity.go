package entity

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

func IsValidRole(role string) bool {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Metadata keys written by the orchestrator and the intake flow.
const (
	MetaImageURL     = "imageUrl"
	MetaMessageType  = "messageType"
	MetaAnalysisType = "analysisType"
	MetaRunID        = "runId"
	MetaAssistantID  = "assistantId"
	MetaReplyTo      = "replyTo"
	MetaDetectionID  = "detectionId"
	MetaBoundingBox  = "boundingBox"
)

type Message struct {
	MessageId string
	ThreadId  string
	Role      string
	Content   string
	Metadata  map[string]interface{}
	CreatedAt time.Time
}

func (m *Message) MetaString(key string) string {
	if m == nil || m.Metadata == nil {
		return ""
	}
	if v, ok := m.Metadata[key].(string); ok {
		return v
	}
	return ""
}
