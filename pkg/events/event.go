package events

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	SessionStarted = "SESSION_STARTED"
	SessionEnded   = "SESSION_ENDED"
	SessionDeleted = "SESSION_DELETED"
	TurnCompleted  = "TURN_COMPLETED"
	TurnFailed     = "TURN_FAILED"
	DetectionSaved = "DETECTION_SAVED"
	UserRegistered = "USER_REGISTERED"
)

// Event defines the contract for all system events.
type Event interface {
	EventType() string
	Payload() map[string]interface{}
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	OccurredAt time.Time              `json:"occurred_at"`
}

func New(eventType string, data map[string]interface{}) BaseEvent {
	return BaseEvent{Type: eventType, Data: data, OccurredAt: time.Now().UTC()}
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// String reads a string field from the payload.
func (e BaseEvent) String(key string) string {
	if v, ok := e.Data[key].(string); ok {
		return v
	}
	return ""
}

// Marshal encodes any Event with its type so consumers can rebuild it.
func Marshal(e Event) ([]byte, error) {
	return json.Marshal(BaseEvent{Type: e.EventType(), Data: e.Payload(), OccurredAt: e.Timestamp()})
}

func Unmarshal(data []byte) (BaseEvent, error) {
	var e BaseEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return BaseEvent{}, fmt.Errorf("decode event: %w", err)
	}
	if e.Type == "" {
		return BaseEvent{}, fmt.Errorf("decode event: missing type")
	}
	return e, nil
}
