package openai

import (
	"context"
	"fmt"
	"strings"

	"vision-assistant-be/pkg/llm"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type OpenAIProvider struct {
	client    oai.Client
	ModelName string
}

var _ llm.VisionProvider = &OpenAIProvider{}

func NewOpenAIProvider(apiKey, baseURL, modelName string) *OpenAIProvider {
	opts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(apiKey))}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSpace(baseURL)))
	}
	return &OpenAIProvider{
		client:    oai.NewClient(opts...),
		ModelName: modelName,
	}
}

func (p *OpenAIProvider) DescribeImage(ctx context.Context, image llm.Image, prompt string, opts ...llm.Option) (string, error) {
	if err := image.Validate(); err != nil {
		return "", err
	}
	options := llm.ApplyOptions(llm.Options{Model: p.ModelName}, opts...)

	url := image.URL
	if len(image.Data) > 0 {
		url = image.DataURL()
	}

	params := oai.ChatCompletionNewParams{
		Model: oai.ChatModel(options.Model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.UserMessage([]oai.ChatCompletionContentPartUnionParam{
				oai.TextContentPart(prompt),
				oai.ImageContentPart(oai.ChatCompletionContentPartImageImageURLParam{URL: url}),
			}),
		},
	}
	if options.MaxTokens > 0 {
		params.MaxTokens = oai.Int(int64(options.MaxTokens))
	}
	if options.Temperature > 0 {
		params.Temperature = oai.Float(options.Temperature)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai vision request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai vision returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
