package llmfactory_test

import (
	"testing"

	"github.com/effective-security/mcpchat/config"
	"github.com/effective-security/mcpchat/llmfactory"
	"github.com/effective-security/mcpchat/llms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_FactoryOpenAI(t *testing.T) {
	m, err := llmfactory.New(&config.LLMConfig{
		Provider: "OPENAI",
		Model:    "gpt-4o",
		Token:    "sk-test",
	})
	require.NoError(t, err)
	assert.Equal(t, llms.ProviderOpenAI, m.GetProviderType())
	assert.Equal(t, "gpt-4o", m.GetName())
}

func Test_FactoryAnthropic(t *testing.T) {
	m, err := llmfactory.New(&config.LLMConfig{
		Provider: "anthropic",
		Model:    "claude-sonnet-4-0",
		Token:    "sk-test",
	})
	require.NoError(t, err)
	assert.Equal(t, llms.ProviderAnthropic, m.GetProviderType())
}

func Test_FactoryOpenRouter(t *testing.T) {
	m, err := llmfactory.New(&config.LLMConfig{
		Provider: "OPENROUTER",
		Model:    "meta-llama/llama-3-70b",
		Token:    "sk-test",
	})
	require.NoError(t, err)
	assert.Equal(t, llms.ProviderOpenRouter, m.GetProviderType())
}

func Test_FactoryUnsupported(t *testing.T) {
	_, err := llmfactory.New(&config.LLMConfig{
		Provider: "COHERE",
		Model:    "command-r",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported provider")
}
