// Package openai implements the OpenAILike provider family.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/agentflow/internal/tlsutil"
	"github.com/BaSui01/agentflow/llm"
	"github.com/BaSui01/agentflow/providers"
	"go.uber.org/zap"
)

// OpenAIProvider implements the OpenAILike family against the standard
// chat/completions schema. Auth is a bearer token; images attach as a
// base64 data-URL content part alongside the text part.
type OpenAIProvider struct {
	cfg    providers.OpenAIConfig
	client *http.Client
	logger *zap.Logger
}

func NewOpenAIProvider(cfg providers.OpenAIConfig, logger *zap.Logger) *OpenAIProvider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout, Transport: tlsutil.SecureTransport()},
		logger: logger,
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) SupportsVision(model string) bool { return true }

func (p *OpenAIProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	endpoint := fmt.Sprintf("%s/v1/models", strings.TrimRight(p.cfg.BaseURL, "/"))
	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	p.buildHeaders(httpReq, p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return &llm.HealthStatus{Healthy: false, Latency: latency}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := readOpenAIErrMsg(resp.Body)
		return &llm.HealthStatus{Healthy: false, Latency: latency}, fmt.Errorf("openai health check failed: status=%d msg=%s", resp.StatusCode, msg)
	}
	return &llm.HealthStatus{Healthy: true, Latency: latency}, nil
}

func (p *OpenAIProvider) ListModels(ctx context.Context) ([]llm.Model, error) {
	endpoint := fmt.Sprintf("%s/v1/models", strings.TrimRight(p.cfg.BaseURL, "/"))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	p.buildHeaders(httpReq, p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, mapOpenAIError(resp.StatusCode, readOpenAIErrMsg(resp.Body), p.Name())
	}

	var out struct {
		Data []struct {
			ID      string `json:"id"`
			OwnedBy string `json:"owned_by"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	models := make([]llm.Model, 0, len(out.Data))
	for _, m := range out.Data {
		models = append(models, llm.Model{ID: m.ID, OwnedBy: m.OwnedBy})
	}
	return models, nil
}

type openAIContentPart struct {
	Type     string          `json:"type"` // "text" or "image_url"
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIMessage struct {
	Role    string              `json:"role"`
	Content []openAIContentPart `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float32         `json:"temperature,omitempty"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openAIChoice struct {
	Index   int `json:"index"`
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason,omitempty"`
}

type openAIResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []openAIChoice `json:"choices"`
	Usage   openAIUsage    `json:"usage"`
}

type openAIErrorResp struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *OpenAIProvider) buildHeaders(req *http.Request, apiKey string) {
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.Organization != "" {
		req.Header.Set("OpenAI-Organization", p.cfg.Organization)
	}
}

func convertToOpenAIMessages(msgs []llm.Message, image *llm.ImageContent) []openAIMessage {
	out := make([]openAIMessage, 0, len(msgs))
	for _, m := range msgs {
		om := openAIMessage{Role: string(m.Role)}
		if m.Content != "" {
			om.Content = append(om.Content, openAIContentPart{Type: "text", Text: m.Content})
		}
		out = append(out, om)
	}

	if image != nil && len(out) > 0 {
		last := &out[len(out)-1]
		dataURL := fmt.Sprintf("data:%s;base64,%s", image.MimeType(), image.Data)
		last.Content = append(last.Content, openAIContentPart{
			Type:     "image_url",
			ImageURL: &openAIImageURL{URL: dataURL},
		})
	}

	return out
}

func (p *OpenAIProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	model := chooseOpenAIModel(req, p.cfg.Model)

	body := openAIRequest{
		Model:       model,
		Messages:    convertToOpenAIMessages(req.Messages, req.Image),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	payload, _ := json.Marshal(body)
	endpoint := fmt.Sprintf("%s/v1/chat/completions", strings.TrimRight(p.cfg.BaseURL, "/"))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	p.buildHeaders(httpReq, p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &llm.Error{
			Code:       llm.ErrUpstreamError,
			Message:    err.Error(),
			HTTPStatus: http.StatusBadGateway,
			Retryable:  true,
			Provider:   p.Name(),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := readOpenAIErrMsg(resp.Body)
		return nil, mapOpenAIError(resp.StatusCode, msg, p.Name())
	}

	var or openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&or); err != nil {
		return nil, &llm.Error{
			Code:       llm.ErrUpstreamError,
			Message:    err.Error(),
			HTTPStatus: http.StatusBadGateway,
			Retryable:  true,
			Provider:   p.Name(),
		}
	}

	return toOpenAIChatResponse(or, p.Name()), nil
}

func toOpenAIChatResponse(or openAIResponse, provider string) *llm.ChatResponse {
	var text string
	if len(or.Choices) > 0 {
		text = or.Choices[0].Message.Content
	}
	return &llm.ChatResponse{
		ID:        or.ID,
		Provider:  provider,
		Model:     or.Model,
		Text:      text,
		CreatedAt: time.Now(),
		Usage: llm.ChatUsage{
			PromptTokens:     or.Usage.PromptTokens,
			CompletionTokens: or.Usage.CompletionTokens,
			TotalTokens:      or.Usage.TotalTokens,
		},
	}
}

func readOpenAIErrMsg(body io.Reader) string {
	data, _ := io.ReadAll(body)
	var errResp openAIErrorResp
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		return fmt.Sprintf("%s (%s)", errResp.Error.Message, errResp.Error.Type)
	}
	return string(data)
}

func mapOpenAIError(status int, msg string, provider string) *llm.Error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &llm.Error{Code: llm.ErrLLMKeyInvalid, Message: msg, HTTPStatus: status, Provider: provider}
	case http.StatusTooManyRequests:
		return &llm.Error{Code: llm.ErrLLMRateLimited, Message: msg, HTTPStatus: status, Retryable: true, Provider: provider}
	case http.StatusBadRequest:
		return &llm.Error{Code: llm.ErrInvalidRequest, Message: msg, HTTPStatus: status, Provider: provider}
	default:
		return &llm.Error{Code: llm.ErrLLMUpstreamError, Message: msg, HTTPStatus: status, Retryable: status >= 500, Provider: provider}
	}
}

func chooseOpenAIModel(req *llm.ChatRequest, configModel string) string {
	return providers.ChooseModel(req, configModel, "gpt-4o")
}
