package dto

import (
	"time"

	"github.com/google/uuid"
)

type StartSessionResponse struct {
	Success   bool      `json:"success"`
	ThreadId  string    `json:"threadId"`
	CreatedAt time.Time `json:"created_at"`
}

// ThreadRequest accepts both spellings clients have used for the thread id.
type ThreadRequest struct {
	ThreadId  string `json:"threadId"`
	ThreadID2 string `json:"threadID"`
}

func (r ThreadRequest) ID() string {
	if r.ThreadId != "" {
		return r.ThreadId
	}
	return r.ThreadID2
}

type SessionSummary struct {
	ThreadId  string     `json:"threadId"`
	Title     string     `json:"title"`
	CreatedAt time.Time  `json:"created_at"`
	EndedAt   *time.Time `json:"ended_at"`
	IsActive  bool       `json:"isActive"`
}

type MessageDTO struct {
	MessageId string                 `json:"messageId"`
	Role      string                 `json:"role"`
	Content   string                 `json:"content"`
	CreatedAt time.Time              `json:"created_at"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

type SessionDetails struct {
	ThreadId       string     `json:"threadId"`
	CreatedAt      time.Time  `json:"created_at"`
	EndedAt        *time.Time `json:"ended_at"`
	IsActive       bool       `json:"isActive"`
	UserId         uuid.UUID  `json:"userId"`
	Title          string     `json:"title"`
	MessageCount   int64      `json:"messageCount"`
	DetectionCount int64      `json:"detectionCount"`
}

type MessagePreview struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	MessageId string    `json:"messageId"`
}

type SessionDetailsResponse struct {
	Session SessionDetails   `json:"session"`
	Preview []MessagePreview `json:"preview"`
}

type SessionMessagesResponse struct {
	ThreadId   string                   `json:"threadId"`
	Messages   []MessageDTO             `json:"messages"`
	Detections []map[string]interface{} `json:"detections"`
}

// TimelineEntry.Timestamp is unix milliseconds.
type TimelineEntry struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

type SessionTimeline struct {
	ThreadId   string                   `json:"threadId"`
	CreatedAt  time.Time                `json:"created_at"`
	EndedAt    *time.Time               `json:"ended_at"`
	IsActive   bool                     `json:"isActive"`
	Title      string                   `json:"title"`
	ImageUrl   *string                  `json:"imageUrl"`
	Timeline   []TimelineEntry          `json:"timeline"`
	Messages   []MessageDTO             `json:"messages"`
	Detections []map[string]interface{} `json:"detections"`
}

type SaveDetectionRequest struct {
	ThreadId      string                 `json:"threadId" validate:"required"`
	DetectionData map[string]interface{} `json:"detectionData" validate:"required"`
}

type SaveDetectionResponse struct {
	DetectionId string `json:"detectionId"`
	Timestamp   string `json:"timestamp"`
}

type AnalysisResult struct {
	MessageId string                 `json:"messageId"`
	Content   string                 `json:"content"`
	CreatedAt time.Time              `json:"created_at"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

type AnalysisResultsResponse struct {
	ThreadId string           `json:"threadId"`
	Results  []AnalysisResult `json:"results"`
	Message  string           `json:"message,omitempty"`
}
