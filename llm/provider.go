// Package llm provides a unified LLM provider abstraction and routing layer.
package llm

import (
	"context"
	"time"

	"github.com/BaSui01/agentflow/types"
)

// Re-export shared types so callers only need to import llm.
type (
	Message      = types.Message
	Role         = types.Role
	Error        = types.Error
	ErrorCode    = types.ErrorCode
	ImageContent = types.ImageContent
)

const (
	RoleSystem    = types.RoleSystem
	RoleUser      = types.RoleUser
	RoleAssistant = types.RoleAssistant
)

const (
	ErrInvalidRequest      = types.ErrInvalidRequest
	ErrAuthentication      = types.ErrAuthentication
	ErrUnauthorized        = types.ErrUnauthorized
	ErrForbidden           = types.ErrForbidden
	ErrRateLimit           = types.ErrRateLimit
	ErrRateLimited         = types.ErrRateLimited
	ErrQuotaExceeded       = types.ErrQuotaExceeded
	ErrModelNotFound       = types.ErrModelNotFound
	ErrModelOverloaded     = types.ErrModelOverloaded
	ErrContextTooLong      = types.ErrContextTooLong
	ErrContentFiltered     = types.ErrContentFiltered
	ErrUpstreamError       = types.ErrUpstreamError
	ErrUpstreamTimeout     = types.ErrUpstreamTimeout
	ErrTimeout             = types.ErrTimeout
	ErrInternalError       = types.ErrInternalError
	ErrServiceUnavailable  = types.ErrServiceUnavailable
	ErrProviderUnavailable = types.ErrProviderUnavailable

	ErrNoLLMAvailable   = types.ErrNoLLMAvailable
	ErrLLMKeyInvalid    = types.ErrLLMKeyInvalid
	ErrLLMRateLimited   = types.ErrLLMRateLimited
	ErrLLMUpstreamError = types.ErrLLMUpstreamError
	ErrLLMTimeout       = types.ErrLLMTimeout
)

// Provider defines the unified LLM adapter interface implemented once per
// provider family (GeminiLike, OpenAILike, AnthropicLike).
type Provider interface {
	// Completion sends a synchronous chat request and returns the full response.
	Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// HealthCheck performs a lightweight reachability probe.
	HealthCheck(ctx context.Context) (*HealthStatus, error)

	// Name returns the provider family's identifier (e.g. "gemini").
	Name() string

	// SupportsVision reports whether the given model accepts an inline image part.
	SupportsVision(model string) bool

	// ListModels returns the models the provider currently exposes, if supported.
	ListModels(ctx context.Context) ([]Model, error)
}

// HealthStatus represents a provider health probe result.
type HealthStatus struct {
	Healthy   bool          `json:"healthy"`
	Latency   time.Duration `json:"latency"`
	ErrorRate float64       `json:"error_rate"`
}

// ChatRequest represents a single-turn or multi-turn completion request.
// Tool calling is intentionally not modeled: the Router only ever drives
// plain-text and vision completions for analysis and letter drafting.
type ChatRequest struct {
	TraceID     string        `json:"trace_id"`
	UserID      string        `json:"user_id,omitempty"`
	Model       string        `json:"model"`
	Messages    []Message     `json:"messages"`
	Image       *ImageContent `json:"image,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty"`
}

// ChatResponse represents a completed chat completion.
type ChatResponse struct {
	ID        string    `json:"id,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	Model     string    `json:"model"`
	Text      string    `json:"text"`
	Usage     ChatUsage `json:"usage"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatUsage represents token usage reported by the upstream provider.
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Model represents a model advertised by a provider.
type Model struct {
	ID      string `json:"id"`
	OwnedBy string `json:"owned_by,omitempty"`
}

// IsRetryable reports whether err, if a *Error, is marked retryable.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}
