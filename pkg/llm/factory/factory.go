package factory

import (
	"fmt"

	"vision-assistant-be/pkg/llm"
	"vision-assistant-be/pkg/llm/ollama"
	"vision-assistant-be/pkg/llm/openai"
)

type Config struct {
	Provider      string
	Model         string
	OpenAIKey     string
	OpenAIBaseURL string
	OllamaBaseURL string
	OllamaModel   string
}

func NewVisionProvider(cfg Config) (llm.VisionProvider, error) {
	switch cfg.Provider {
	case "openai", "":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("openai vision provider needs an API key")
		}
		model := cfg.Model
		if model == "" {
			model = "gpt-4o-mini"
		}
		return openai.NewOpenAIProvider(cfg.OpenAIKey, cfg.OpenAIBaseURL, model), nil
	case "ollama":
		baseURL := cfg.OllamaBaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return ollama.NewOllamaProvider(baseURL, cfg.OllamaModel), nil
	default:
		return nil, fmt.Errorf("unsupported vision provider: %s", cfg.Provider)
	}
}
