package websocket

import (
	"encoding/json"
)

// Outbound frame types.
const (
	FrameStatus          = "status"
	FrameResponse        = "response"
	FrameError           = "error"
	FrameSessionData     = "session_data"
	FrameAnalysisResults = "analysis_results"
	FrameDetectionSaved  = "detection_saved"
)

// Inbound frame types.
const (
	TypeQuestion        = "question"
	TypeLoadSession     = "load_session"
	TypeLoadAnalysis    = "load_analysis"
	TypeObjectDetection = "object_detection"
)

type OutboundFrame struct {
	Type    string      `json:"type"`
	Content interface{} `json:"content"`
}

type InboundFrame struct {
	Type          string                 `json:"type"`
	ThreadId      string                 `json:"threadId"`
	SessionId     string                 `json:"sessionId"`
	Message       string                 `json:"message"`
	MessageId     string                 `json:"messageId"`
	Metadata      map[string]interface{} `json:"metadata"`
	DetectionData map[string]interface{} `json:"detectionData"`
}

// ThreadID prefers threadId and falls back to the older sessionId field.
func (f InboundFrame) ThreadID() string {
	if f.ThreadId != "" {
		return f.ThreadId
	}
	return f.SessionId
}

func encodeFrame(frameType string, content interface{}) ([]byte, error) {
	return json.Marshal(OutboundFrame{Type: frameType, Content: content})
}
