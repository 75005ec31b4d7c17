// Package assistanttest provides an in-memory assistant.Client with scripted runs.
package assistanttest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vision-assistant-be/pkg/assistant"
)

// Fake records every call. Each run walks through Statuses one GetRun at a time
// and, once it lands on completed, posts Reply as the assistant message.
type Fake struct {
	mu sync.Mutex

	Statuses []assistant.RunStatus
	Reply    string

	// Set any of these to make the matching call fail.
	CreateThreadErr  error
	DeleteThreadErr  error
	AppendMessageErr error
	CreateRunErr     error
	GetRunErr        error
	ListMessagesErr  error

	// OmitReply completes runs without posting an assistant message.
	OmitReply bool

	// RunGate, when set, blocks every GetRun until it is closed.
	RunGate chan struct{}

	seq      int
	threads  map[string][]assistant.Message
	runs     map[string]*fakeRun
	Deleted  []string
	Appended []string
	Calls    []string
}

type fakeRun struct {
	run   assistant.Run
	step  int
	spent bool
}

func New(reply string, statuses ...assistant.RunStatus) *Fake {
	if len(statuses) == 0 {
		statuses = []assistant.RunStatus{assistant.RunStatusInProgress, assistant.RunStatusCompleted}
	}
	return &Fake{
		Statuses: statuses,
		Reply:    reply,
		threads:  make(map[string][]assistant.Message),
		runs:     make(map[string]*fakeRun),
	}
}

func (f *Fake) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s_%d", prefix, f.seq)
}

func (f *Fake) record(call string) {
	f.Calls = append(f.Calls, call)
}

func (f *Fake) CreateThread(ctx context.Context) (*assistant.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create_thread")
	if f.CreateThreadErr != nil {
		return nil, f.CreateThreadErr
	}
	id := f.nextID("thread")
	f.threads[id] = nil
	return &assistant.Thread{ID: id, CreatedAt: time.Now().UTC()}, nil
}

func (f *Fake) DeleteThread(ctx context.Context, threadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("delete_thread")
	if f.DeleteThreadErr != nil {
		return f.DeleteThreadErr
	}
	f.Deleted = append(f.Deleted, threadID)
	delete(f.threads, threadID)
	return nil
}

func (f *Fake) AppendMessage(ctx context.Context, threadID, role, text string) (*assistant.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("append_message")
	if f.AppendMessageErr != nil {
		return nil, f.AppendMessageErr
	}
	msg := assistant.Message{
		ID:        f.nextID("msg"),
		ThreadID:  threadID,
		Role:      role,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	f.threads[threadID] = append(f.threads[threadID], msg)
	f.Appended = append(f.Appended, text)
	return &msg, nil
}

func (f *Fake) CreateRun(ctx context.Context, threadID, assistantID string) (*assistant.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create_run")
	if f.CreateRunErr != nil {
		return nil, f.CreateRunErr
	}
	r := &fakeRun{run: assistant.Run{
		ID:          f.nextID("run"),
		ThreadID:    threadID,
		AssistantID: assistantID,
		Status:      assistant.RunStatusQueued,
	}}
	f.runs[r.run.ID] = r
	out := r.run
	return &out, nil
}

func (f *Fake) GetRun(ctx context.Context, threadID, runID string) (*assistant.Run, error) {
	if gate := f.gate(); gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("get_run")
	if f.GetRunErr != nil {
		return nil, f.GetRunErr
	}
	r, ok := f.runs[runID]
	if !ok {
		return nil, &assistant.UpstreamError{Op: "get run", StatusCode: 404, Message: "No run found"}
	}

	if r.step < len(f.Statuses) {
		r.run.Status = f.Statuses[r.step]
		r.step++
	}
	if r.run.Status == assistant.RunStatusCompleted && !r.spent && !f.OmitReply {
		r.spent = true
		f.threads[threadID] = append(f.threads[threadID], assistant.Message{
			ID:        f.nextID("msg"),
			ThreadID:  threadID,
			Role:      "assistant",
			RunID:     runID,
			Text:      f.Reply,
			CreatedAt: time.Now().UTC(),
		})
	}
	out := r.run
	return &out, nil
}

func (f *Fake) ListMessages(ctx context.Context, threadID string, opts assistant.ListOptions) ([]assistant.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("list_messages")
	if f.ListMessagesErr != nil {
		return nil, f.ListMessagesErr
	}

	stored := f.threads[threadID]
	out := make([]assistant.Message, 0, len(stored))
	if opts.Order == assistant.OrderAsc {
		out = append(out, stored...)
	} else {
		for i := len(stored) - 1; i >= 0; i-- {
			out = append(out, stored[i])
		}
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// CallCount counts recorded calls with the given name.
func (f *Fake) CallCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *Fake) gate() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.RunGate
}
