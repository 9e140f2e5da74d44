package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentflow/llm/circuitbreaker"
	"github.com/BaSui01/agentflow/llm/retry"
)

// UserKeys holds a user's three opaque API key slots, read from the store on
// demand. Slots map to provider families via Router's configured ordering;
// they are never logged and never persisted by the router itself.
type UserKeys struct {
	Slot1 string
	Slot2 string
	Slot3 string
}

func (k UserKeys) bySlotIndex(i int) string {
	switch i {
	case 0:
		return k.Slot1
	case 1:
		return k.Slot2
	case 2:
		return k.Slot3
	default:
		return ""
	}
}

// GenerateRequest is the Router's call surface: a prompt plus the
// resolution hints needed to pick a (provider, model, key) triple.
type GenerateRequest struct {
	TraceID           string
	UserID            string
	Messages          []Message
	Image             *ImageContent
	UserKeys          UserKeys
	PreferredProvider string
	PreferredModel    string
	MaxTokens         int
	Temperature       float32
}

// GenerateResult is the Router's response: the generated text plus which
// provider/model actually served it.
type GenerateResult struct {
	Text         string
	ProviderUsed string
	ModelUsed    string
	Modern       bool
}

// ProviderFactory builds a Provider bound to a specific API key and default
// model for one family. The Router holds one per registered family.
type ProviderFactory func(apiKey, model string) Provider

// RouterConfig is the static, process-wide configuration the Router
// resolves against: the slot→family ordering, system-wide fallback keys,
// and default models, all loaded once at startup.
type RouterConfig struct {
	SlotProviders [3]string
	SystemKeys    map[string]string
	DefaultModels map[string]string
	SoftTimeout   time.Duration
	HardTimeout   time.Duration
}

const (
	retryBaseDelay = 500 * time.Millisecond
	retryCapDelay  = 4 * time.Second
)

// Router is the unified call surface over the GeminiLike, OpenAILike and
// AnthropicLike provider families. It resolves a (provider, model, key)
// triple per spec's four-step chain, dispatches through a per-family
// circuit breaker with one transparent retry on transport errors / 5xx,
// and never retries 401/403.
type Router struct {
	cfg       RouterConfig
	factories map[string]ProviderFactory
	modernSet map[string]bool // families with a modern-SDK factory wired
	logger    *zap.Logger
	retryer   retry.Retryer

	breakersMu sync.Mutex
	breakers   map[string]circuitbreaker.CircuitBreaker
}

// NewRouter builds a Router from the legacy (hand-rolled HTTP) factories.
// Families registered via WithModernFactory report modern=true when chosen.
func NewRouter(cfg RouterConfig, factories map[string]ProviderFactory, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SoftTimeout == 0 {
		cfg.SoftTimeout = 30 * time.Second
	}
	if cfg.HardTimeout == 0 {
		cfg.HardTimeout = 60 * time.Second
	}
	retryer := retry.NewBackoffRetryer(&retry.RetryPolicy{
		MaxRetries:   1,
		InitialDelay: retryBaseDelay,
		MaxDelay:     retryCapDelay,
		Multiplier:   2.0,
		Jitter:       true,
		Retryable:    IsRetryable,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			logger.Warn("retrying llm call",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
		},
	}, logger)
	return &Router{
		cfg:       cfg,
		factories: factories,
		modernSet: make(map[string]bool),
		logger:    logger,
		retryer:   retryer,
		breakers:  make(map[string]circuitbreaker.CircuitBreaker),
	}
}

// breakerFor returns the family's circuit breaker, creating it lazily on
// first use. Each family breaks independently: a revoked key or an outage
// on one provider family never throttles the others.
func (r *Router) breakerFor(family string) circuitbreaker.CircuitBreaker {
	r.breakersMu.Lock()
	defer r.breakersMu.Unlock()
	if cb, ok := r.breakers[family]; ok {
		return cb
	}
	cb := circuitbreaker.NewCircuitBreaker(&circuitbreaker.Config{
		Threshold:        5,
		Timeout:          r.cfg.HardTimeout,
		ResetTimeout:     60 * time.Second,
		HalfOpenMaxCalls: 3,
		OnStateChange: func(from, to circuitbreaker.State) {
			r.logger.Warn("llm provider breaker state change",
				zap.String("family", family),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}, r.logger)
	r.breakers[family] = cb
	return cb
}

// WithModernFactory overrides the legacy factory for one family with an
// SDK-backed implementation, reported as modern=true when resolved.
func (r *Router) WithModernFactory(family string, factory ProviderFactory) *Router {
	r.factories[family] = factory
	r.modernSet[family] = true
	return r
}

type resolution struct {
	family string
	apiKey string
}

// resolve implements the four-step chain: preferred provider+key, then user
// key slots 1→3 mapped to their family, then system-wide keys in the same
// family order, then NoLLMAvailable.
func (r *Router) resolve(req *GenerateRequest, needsVision bool) (*resolution, *Error) {
	tryFamily := func(family, apiKey string) bool {
		if apiKey == "" {
			return false
		}
		factory, ok := r.factories[family]
		if !ok {
			return false
		}
		if r.breakerFor(family).State() == circuitbreaker.StateOpen {
			return false
		}
		if needsVision {
			model := r.modelFor(family, req.PreferredModel)
			p := factory(apiKey, model)
			if !p.SupportsVision(model) {
				return false
			}
		}
		return true
	}

	if req.PreferredProvider != "" {
		var preferredKey string
		for i, family := range r.cfg.SlotProviders {
			if family == req.PreferredProvider {
				preferredKey = req.UserKeys.bySlotIndex(i)
				break
			}
		}
		if preferredKey == "" {
			preferredKey = r.cfg.SystemKeys[req.PreferredProvider]
		}
		if tryFamily(req.PreferredProvider, preferredKey) {
			return &resolution{family: req.PreferredProvider, apiKey: preferredKey}, nil
		}
	}

	for i, family := range r.cfg.SlotProviders {
		key := req.UserKeys.bySlotIndex(i)
		if tryFamily(family, key) {
			return &resolution{family: family, apiKey: key}, nil
		}
	}

	for _, family := range r.cfg.SlotProviders {
		key := r.cfg.SystemKeys[family]
		if tryFamily(family, key) {
			return &resolution{family: family, apiKey: key}, nil
		}
	}

	return nil, &Error{
		Code:       ErrNoLLMAvailable,
		Message:    "no provider family has a usable key for this request",
		HTTPStatus: 502,
	}
}

func (r *Router) modelFor(family, preferred string) string {
	if preferred != "" {
		return preferred
	}
	return r.cfg.DefaultModels[family]
}

// Generate resolves a provider and dispatches the call under the soft/hard
// timeout budget, retrying exactly once on a retryable failure.
func (r *Router) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	res, rerr := r.resolve(req, req.Image != nil)
	if rerr != nil {
		return nil, rerr
	}

	model := r.modelFor(res.family, req.PreferredModel)
	provider := r.factories[res.family](res.apiKey, model)
	modern := r.modernSet[res.family]

	chatReq := &ChatRequest{
		TraceID:     req.TraceID,
		UserID:      req.UserID,
		Model:       model,
		Messages:    req.Messages,
		Image:       req.Image,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Timeout:     r.cfg.SoftTimeout,
	}

	hardCtx, cancel := context.WithTimeout(ctx, r.cfg.HardTimeout)
	defer cancel()

	cb := r.breakerFor(res.family)
	resp, err := circuitbreaker.CallWithResultTyped[*ChatResponse](cb, hardCtx, func() (*ChatResponse, error) {
		return r.callWithRetry(hardCtx, provider, chatReq)
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyCallsInHalfOpen) {
			return nil, &Error{
				Code:       ErrProviderUnavailable,
				Message:    fmt.Sprintf("%s is temporarily unavailable after repeated failures", res.family),
				HTTPStatus: 503,
				Retryable:  true,
				Provider:   res.family,
			}
		}
		if hardCtx.Err() != nil {
			var asErr *Error
			if !errors.As(err, &asErr) || asErr.Code != ErrLLMTimeout {
				err = &Error{Code: ErrLLMTimeout, Message: "llm call exceeded hard timeout", HTTPStatus: 504, Provider: res.family}
			}
		}
		// A user key rejected by its provider is logged and its error
		// returned; no later resolution step is tried.
		var llmErr *Error
		if errors.As(err, &llmErr) && llmErr.Code == ErrLLMKeyInvalid {
			r.logger.Warn("llm key invalid, not retried at this resolution step",
				zap.String("family", res.family))
		}
		return nil, err
	}

	return &GenerateResult{
		Text:         resp.Text,
		ProviderUsed: res.family,
		ModelUsed:    resp.Model,
		Modern:       modern,
	}, nil
}

// callWithRetry dispatches one completion call, retrying exactly once
// through the shared backoff retryer when the failure is marked
// retryable (never 401/403 — see IsRetryable). Each attempt runs under
// its own soft timeout nested inside ctx's hard deadline.
func (r *Router) callWithRetry(ctx context.Context, provider Provider, req *ChatRequest) (*ChatResponse, error) {
	resp, err := retry.DoWithResultTyped[*ChatResponse](r.retryer, ctx, func() (*ChatResponse, error) {
		softCtx, cancel := context.WithTimeout(ctx, r.cfg.SoftTimeout)
		defer cancel()
		return provider.Completion(softCtx, req)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, &Error{Code: ErrLLMTimeout, Message: "llm call exceeded hard timeout", HTTPStatus: 504, Provider: provider.Name()}
		}
		var llmErr *Error
		if errors.As(err, &llmErr) {
			return nil, llmErr
		}
		return nil, err
	}
	return resp, nil
}
