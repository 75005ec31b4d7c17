package assistant

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
}

// OpenAIClient uses the OpenAI Assistants beta API.
type OpenAIClient struct {
	client openai.Client
}

func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		// Retrying a create-message would duplicate it on the remote thread.
		option.WithMaxRetries(0),
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSpace(cfg.BaseURL)))
	}
	return &OpenAIClient{client: openai.NewClient(opts...)}
}

func (c *OpenAIClient) CreateThread(ctx context.Context) (*Thread, error) {
	th, err := c.client.Beta.Threads.New(ctx, openai.BetaThreadNewParams{})
	if err != nil {
		return nil, wrapError("create thread", err)
	}
	return &Thread{ID: th.ID, CreatedAt: fromUnix(th.CreatedAt)}, nil
}

func (c *OpenAIClient) DeleteThread(ctx context.Context, threadID string) error {
	if _, err := c.client.Beta.Threads.Delete(ctx, threadID); err != nil {
		return wrapError("delete thread", err)
	}
	return nil
}

func (c *OpenAIClient) AppendMessage(ctx context.Context, threadID, role, text string) (*Message, error) {
	params := openai.BetaThreadMessageNewParams{
		Role: openai.BetaThreadMessageNewParamsRoleUser,
		Content: openai.BetaThreadMessageNewParamsContentUnion{
			OfString: openai.String(text),
		},
	}
	if role == "assistant" {
		params.Role = openai.BetaThreadMessageNewParamsRoleAssistant
	}

	msg, err := c.client.Beta.Threads.Messages.New(ctx, threadID, params)
	if err != nil {
		return nil, wrapError("append message", err)
	}
	out := toMessage(*msg)
	return &out, nil
}

func (c *OpenAIClient) CreateRun(ctx context.Context, threadID, assistantID string) (*Run, error) {
	run, err := c.client.Beta.Threads.Runs.New(ctx, threadID, openai.BetaThreadRunNewParams{
		AssistantID: assistantID,
	})
	if err != nil {
		return nil, wrapError("create run", err)
	}
	return toRun(*run), nil
}

func (c *OpenAIClient) GetRun(ctx context.Context, threadID, runID string) (*Run, error) {
	run, err := c.client.Beta.Threads.Runs.Get(ctx, threadID, runID)
	if err != nil {
		return nil, wrapError("get run", err)
	}
	return toRun(*run), nil
}

func (c *OpenAIClient) ListMessages(ctx context.Context, threadID string, opts ListOptions) ([]Message, error) {
	params := openai.BetaThreadMessageListParams{
		Order: openai.BetaThreadMessageListParamsOrderDesc,
	}
	if opts.Order == OrderAsc {
		params.Order = openai.BetaThreadMessageListParamsOrderAsc
	}
	if opts.Limit > 0 {
		params.Limit = openai.Int(int64(opts.Limit))
	}

	page, err := c.client.Beta.Threads.Messages.List(ctx, threadID, params)
	if err != nil {
		return nil, wrapError("list messages", err)
	}

	out := make([]Message, 0, len(page.Data))
	for _, m := range page.Data {
		out = append(out, toMessage(m))
	}
	return out, nil
}

func toRun(r openai.Run) *Run {
	return &Run{
		ID:          r.ID,
		ThreadID:    r.ThreadID,
		AssistantID: r.AssistantID,
		Status:      RunStatus(r.Status),
		LastError:   r.LastError.Message,
	}
}

func toMessage(m openai.Message) Message {
	var text strings.Builder
	for _, part := range m.Content {
		if part.Type == "text" {
			text.WriteString(part.Text.Value)
		}
	}
	return Message{
		ID:        m.ID,
		ThreadID:  m.ThreadID,
		Role:      string(m.Role),
		RunID:     m.RunID,
		Text:      text.String(),
		CreatedAt: fromUnix(m.CreatedAt),
	}
}

func fromUnix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func wrapError(op string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = apiErr.Error()
		}
		return &UpstreamError{Op: op, StatusCode: apiErr.StatusCode, Message: msg, Err: err}
	}
	return &UpstreamError{Op: op, Message: err.Error(), Err: err}
}
