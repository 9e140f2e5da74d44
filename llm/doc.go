// Copyright 2024 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a MIT license that can be
// found in the LICENSE file.

/*
Package llm provides a unified LLM provider abstraction and routing
layer over the three provider families docscan supports: GeminiLike,
OpenAILike, and AnthropicLike.

# Provider Interface

Every provider family implements the same Provider interface:

	type Provider interface {
	    Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	    HealthCheck(ctx context.Context) (*HealthStatus, error)
	    Name() string
	    SupportsVision(model string) bool
	    ListModels(ctx context.Context) ([]Model, error)
	}

Tool calling and streaming are intentionally not modeled: the Router
only ever drives plain-text and vision completions for document
analysis and letter drafting.

# Router

Router is the single call surface above the three families. Generate
resolves a (family, model, apiKey) triple through a deterministic
four-step chain — preferred provider+key, then the caller's three key
slots in configured family order, then system-wide fallback keys in
the same order, then NoLLMAvailable — then dispatches exactly one call
with one transparent retry on a retryable failure, never retrying a
401/403:

	router := llm.NewRouter(llm.RouterConfig{
	    SlotProviders: [3]string{"gemini", "openai", "claude"},
	    SystemKeys:    map[string]string{"gemini": systemGeminiKey},
	    DefaultModels: map[string]string{"gemini": "gemini-2.0-flash"},
	    SoftTimeout:   30 * time.Second,
	    HardTimeout:   60 * time.Second,
	}, factories, logger)

	result, err := router.Generate(ctx, &llm.GenerateRequest{
	    Messages: []llm.Message{llm.NewUserMessage("summarize this")},
	    UserKeys: llm.UserKeys{Slot1: userGeminiKey},
	})

Each resolved family is health-gated by its own circuit breaker
(llm/circuitbreaker): a family with an open breaker is skipped in
resolve's fallback chain the same way a missing key is, and Generate's
dispatch counts failures against that family's breaker so one
provider's outage never throttles the others. The one-retry dispatch
itself runs through llm/retry's backoff Retryer, configured with a
Retryable predicate (IsRetryable) rather than a static sentinel-error
list, since *types.Error instances are built dynamically per call.

# Provider Registry

ProviderRegistry holds one long-lived Provider instance per family —
distinct from the Router's per-request, key-scoped factories — for
callers that need a single canonical instance to probe or introspect,
such as a status endpoint running a live HealthCheck:

	registry := llm.NewProviderRegistry()
	registry.Register("gemini", geminiProvider)
	if p, ok := registry.Get("gemini"); ok {
	    status, _ := p.HealthCheck(ctx)
	}

# Error Handling

Errors are *types.Error (re-exported as llm.Error), a structured type
with a stable Code, an HTTP status, and a Retryable flag:

	const (
	    ErrNoLLMAvailable   ErrorCode = "NO_LLM_AVAILABLE"
	    ErrLLMKeyInvalid    ErrorCode = "LLM_KEY_INVALID"
	    ErrLLMRateLimited   ErrorCode = "LLM_RATE_LIMITED"
	    ErrLLMUpstreamError ErrorCode = "LLM_UPSTREAM_ERROR"
	    ErrLLMTimeout       ErrorCode = "LLM_TIMEOUT"
	)

IsRetryable reports whether an error is marked retryable; provider
adapters never set Retryable for a 401/403 key rejection.

See the subpackages for supporting infrastructure:
  - llm/retry: exponential backoff with jitter and a pluggable
    Retryable predicate.
  - llm/circuitbreaker: per-family failure counting and open/half-
    open/closed state gating.
*/
package llm
