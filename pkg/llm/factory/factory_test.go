package factory

import (
	"testing"

	"vision-assistant-be/pkg/llm/ollama"
	"vision-assistant-be/pkg/llm/openai"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVisionProvider(t *testing.T) {
	p, err := NewVisionProvider(Config{Provider: "openai", OpenAIKey: "sk-test"})
	require.NoError(t, err)
	oa, ok := p.(*openai.OpenAIProvider)
	require.True(t, ok)
	assert.Equal(t, "gpt-4o-mini", oa.ModelName)

	p, err = NewVisionProvider(Config{Provider: "ollama", OllamaModel: "llava"})
	require.NoError(t, err)
	ol, ok := p.(*ollama.OllamaProvider)
	require.True(t, ok)
	assert.Equal(t, "http://localhost:11434", ol.BaseURL)

	_, err = NewVisionProvider(Config{Provider: "openai"})
	assert.Error(t, err)

	_, err = NewVisionProvider(Config{Provider: "gemini"})
	assert.Error(t, err)
}
