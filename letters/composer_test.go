package letters

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/agentflow/llm"
	"github.com/BaSui01/agentflow/types"
)

type scriptedProvider struct {
	responses []string
	call      int
}

func (p *scriptedProvider) Name() string               { return "gemini" }
func (p *scriptedProvider) SupportsVision(string) bool { return false }
func (p *scriptedProvider) ListModels(context.Context) ([]llm.Model, error) {
	return nil, nil
}
func (p *scriptedProvider) HealthCheck(context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true}, nil
}
func (p *scriptedProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	text := p.responses[p.call]
	if p.call < len(p.responses)-1 {
		p.call++
	}
	return &llm.ChatResponse{Text: text, Model: req.Model, Provider: "gemini"}, nil
}

func testComposer(t *testing.T, responses ...string) (*Composer, *MapCatalog) {
	t.Helper()
	provider := &scriptedProvider{responses: responses}
	cfg := llm.RouterConfig{
		SlotProviders: [3]string{"gemini", "openai", "claude"},
		SystemKeys:    map[string]string{"gemini": "system-key"},
		DefaultModels: map[string]string{"gemini": "gemini-2.0-flash"},
		SoftTimeout:   2 * time.Second,
		HardTimeout:   5 * time.Second,
	}
	router := llm.NewRouter(cfg, map[string]llm.ProviderFactory{
		"gemini": func(string, string) llm.Provider { return provider },
	}, nil)
	catalog := NewMapCatalog(sampleTemplates())
	return NewComposer(router, catalog), catalog
}

func TestComposer_ComposeFromTemplate_German(t *testing.T) {
	composer, _ := testComposer(t, "Sehr geehrte Frau Muster, polished.")
	letter, err := composer.ComposeFromTemplate(context.Background(), "landlord", "rent_reduction",
		map[string]string{"Name": "Frau Muster"}, "de", llm.UserKeys{})
	require.NoError(t, err)
	assert.Equal(t, "Mietminderung", letter.Subject)
	assert.Contains(t, letter.BodyDE, "polished")
	assert.Empty(t, letter.BodyTranslation)
}

func TestComposer_ComposeFromTemplate_WithTranslation(t *testing.T) {
	composer, _ := testComposer(t, "polished german", "translated english")
	letter, err := composer.ComposeFromTemplate(context.Background(), "landlord", "rent_reduction",
		map[string]string{"Name": "Frau Muster"}, "en", llm.UserKeys{})
	require.NoError(t, err)
	assert.Equal(t, "polished german", letter.BodyDE)
	assert.Equal(t, "translated english", letter.BodyTranslation)
}

func TestComposer_ComposeFromTemplate_MissingRequiredVariable(t *testing.T) {
	composer, _ := testComposer(t, "irrelevant")
	_, err := composer.ComposeFromTemplate(context.Background(), "landlord", "rent_reduction",
		map[string]string{}, "de", llm.UserKeys{})
	require.Error(t, err)
	llmErr, ok := err.(*types.Error)
	require.True(t, ok)
	assert.Equal(t, types.ErrTemplateVariableMissing, llmErr.Code)
}

func TestComposer_ComposeFromPrompt(t *testing.T) {
	composer, _ := testComposer(t, "Sehr geehrte Damen und Herren, ...")
	letter, err := composer.ComposeFromPrompt(context.Background(), "I need to cancel my gym membership", "de", llm.UserKeys{})
	require.NoError(t, err)
	assert.Contains(t, letter.BodyDE, "Sehr geehrte")
	assert.Empty(t, letter.BodyTranslation)
}
