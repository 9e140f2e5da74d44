package claude

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/BaSui01/agentflow/llm"
	"github.com/BaSui01/agentflow/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClaudeProvider_Name(t *testing.T) {
	provider := NewClaudeProvider(providers.ClaudeConfig{}, zap.NewNop())
	assert.Equal(t, "claude", provider.Name())
}

func TestClaudeProvider_SupportsVision(t *testing.T) {
	provider := NewClaudeProvider(providers.ClaudeConfig{}, zap.NewNop())
	assert.True(t, provider.SupportsVision("claude-3-5-sonnet-20241022"))
}

func TestClaudeProvider_DefaultModel(t *testing.T) {
	model := chooseClaudeModel(nil, "")
	assert.Equal(t, "claude-3-5-sonnet-20241022", model)
}

func TestClaudeProvider_DefaultModelHonorsConfig(t *testing.T) {
	model := chooseClaudeModel(nil, "claude-3-opus-20240229")
	assert.Equal(t, "claude-3-opus-20240229", model)
}

func TestClaudeProvider_DefaultModelHonorsRequest(t *testing.T) {
	model := chooseClaudeModel(&llm.ChatRequest{Model: "claude-3-haiku-20240307"}, "claude-3-opus-20240229")
	assert.Equal(t, "claude-3-haiku-20240307", model)
}

func TestConvertToClaudeMessages_SplitsSystemAndAttachesImage(t *testing.T) {
	msgs := []llm.Message{
		llm.NewSystemMessage("be terse"),
		llm.NewUserMessage("what is in this document?"),
	}
	img := &llm.ImageContent{Data: "YWJj", Mime: "image/png"}

	system, out := convertToClaudeMessages(msgs, img)

	require.Equal(t, "be terse", system)
	require.Len(t, out, 1)
	require.Len(t, out[0].Content, 2)
	assert.Equal(t, "image", out[0].Content[1].Type)
	assert.Equal(t, "image/png", out[0].Content[1].Source.MediaType)
}

func TestMapClaudeError_AuthNotRetryable(t *testing.T) {
	err := mapClaudeError(401, "invalid key", "claude")
	assert.Equal(t, llm.ErrLLMKeyInvalid, err.Code)
	assert.False(t, err.Retryable)
}

func TestMapClaudeError_OverloadedRetryable(t *testing.T) {
	err := mapClaudeError(529, "overloaded", "claude")
	assert.True(t, err.Retryable)
}

func TestClaudeProvider_Integration(t *testing.T) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		t.Skip("ANTHROPIC_API_KEY not set, skipping integration test")
	}

	provider := NewClaudeProvider(providers.ClaudeConfig{
		APIKey:  apiKey,
		Model:   "claude-3-5-sonnet-20241022",
		Timeout: 60 * time.Second,
	}, zap.NewNop())

	ctx := context.Background()
	resp, err := provider.Completion(ctx, &llm.ChatRequest{
		Messages: []llm.Message{llm.NewUserMessage("say hi in one word")},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Text)
}
