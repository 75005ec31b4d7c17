// Package assistant talks to a hosted assistant that keeps conversation
// threads and answers through asynchronous runs.
package assistant

import (
	"context"
	"fmt"
	"time"
)

type RunStatus string

const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusInProgress     RunStatus = "in_progress"
	RunStatusRequiresAction RunStatus = "requires_action"
	RunStatusCancelling     RunStatus = "cancelling"
	RunStatusCancelled      RunStatus = "cancelled"
	RunStatusFailed         RunStatus = "failed"
	RunStatusCompleted      RunStatus = "completed"
	RunStatusIncomplete     RunStatus = "incomplete"
	RunStatusExpired        RunStatus = "expired"
)

// InFlight reports whether the run may still change. Every other status is
// final for our purposes, including ones the provider adds later.
func (s RunStatus) InFlight() bool {
	return s == RunStatusQueued || s == RunStatusInProgress
}

type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

type Thread struct {
	ID        string
	CreatedAt time.Time
}

type Run struct {
	ID          string
	ThreadID    string
	AssistantID string
	Status      RunStatus
	LastError   string
}

type Message struct {
	ID        string
	ThreadID  string
	Role      string
	RunID     string
	Text      string
	CreatedAt time.Time
}

type ListOptions struct {
	Order Order
	Limit int
}

// Client is the remote side of a conversation. Implementations never retry.
type Client interface {
	CreateThread(ctx context.Context) (*Thread, error)
	DeleteThread(ctx context.Context, threadID string) error
	AppendMessage(ctx context.Context, threadID, role, text string) (*Message, error)
	CreateRun(ctx context.Context, threadID, assistantID string) (*Run, error)
	GetRun(ctx context.Context, threadID, runID string) (*Run, error)
	ListMessages(ctx context.Context, threadID string, opts ListOptions) ([]Message, error)
}

// UpstreamError carries the provider's own failure description.
type UpstreamError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("assistant %s: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("assistant %s: %s", e.Op, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// FindRunReply picks the assistant message produced by runID. msgs is expected
// newest first, so the first match is the latest reply of that run.
func FindRunReply(msgs []Message, runID string) (Message, bool) {
	for _, m := range msgs {
		if m.Role == "assistant" && m.RunID == runID {
			return m, true
		}
	}
	return Message{}, false
}
