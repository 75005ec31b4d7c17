package dto

import "time"

type ChatRequest struct {
	ThreadId  string                 `json:"threadId" validate:"required"`
	Message   string                 `json:"message" validate:"required"`
	MessageId string                 `json:"messageId"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// TurnResponse is the payload of a completed turn, over HTTP and as the socket "response" frame.
type TurnResponse struct {
	Content  string       `json:"content"`
	History  []MessageDTO `json:"history"`
	ThreadId string       `json:"threadId"`
}

type AnalysisMessage struct {
	Id        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type AnalyzeImageResponse struct {
	Success  bool              `json:"success"`
	Data     []AnalysisMessage `json:"data"`
	ThreadId string            `json:"threadId"`
	Url      string            `json:"url"`
}
