package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/agentflow/api"
	"github.com/BaSui01/agentflow/store"
	"github.com/BaSui01/agentflow/types"
)

// ProfileHandler serves the authenticated user's profile and per-slot
// API key management endpoints.
type ProfileHandler struct {
	repo   *store.Repository
	logger *zap.Logger
}

// NewProfileHandler wires the handler to the store.
func NewProfileHandler(repo *store.Repository, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{repo: repo, logger: logger}
}

// HandleGetProfile handles GET /api/profile.
func (h *ProfileHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}
	WriteSuccess(w, toUserProfile(user))
}

// HandleSetAPIKeys handles POST /api/api-keys. New slot-numbered field
// names win over the legacy per-provider names on conflict (§6); any
// field left blank leaves that slot untouched.
func (h *ProfileHandler) HandleSetAPIKeys(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}

	var req api.SetAPIKeysRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	slots := [3]string{req.APIKey1, req.APIKey2, req.APIKey3}
	legacy := [3]string{req.GeminiAPIKey, req.OpenAIAPIKey, req.AnthropicAPIKey}
	for i := range slots {
		if slots[i] == "" {
			slots[i] = legacy[i]
		}
	}

	var updated *store.User
	for i, value := range slots {
		if value == "" {
			continue
		}
		var err error
		updated, err = h.repo.SetKeySlot(r.Context(), user.ID, i+1, value)
		if err != nil {
			WriteError(w, asTypesError(err), h.logger)
			return
		}
	}
	if updated == nil {
		updated = user
	}
	WriteSuccess(w, toUserProfile(updated))
}

// HandleQuickGeminiSetup handles POST /api/quick-gemini-setup: a
// one-field convenience alias for setting slot 1 to a Gemini key.
func (h *ProfileHandler) HandleQuickGeminiSetup(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}

	var req api.QuickGeminiSetupRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.APIKey == "" {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "api_key is required").WithHTTPStatus(400), h.logger)
		return
	}

	updated, err := h.repo.SetKeySlot(r.Context(), user.ID, 1, req.APIKey)
	if err != nil {
		WriteError(w, asTypesError(err), h.logger)
		return
	}
	WriteSuccess(w, toUserProfile(updated))
}

// HandleAutoGenerateGeminiKey handles POST /api/auto-generate-gemini-key:
// a demo-mode convenience that issues a clearly-fake key so a user can
// exercise the product without bringing their own credential. It is
// never a real provider key and is never treated as one by the Router
// (system keys remain the only fallback for an unconfigured slot).
func (h *ProfileHandler) HandleAutoGenerateGeminiKey(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}

	suffix := make([]byte, 16)
	if _, err := rand.Read(suffix); err != nil {
		WriteError(w, types.NewError(types.ErrInternalError, "failed to generate demo key").WithCause(err).WithHTTPStatus(500), h.logger)
		return
	}
	demoKey := "AIzaSyDemo_" + hex.EncodeToString(suffix)

	updated, err := h.repo.SetKeySlot(r.Context(), user.ID, 1, demoKey)
	if err != nil {
		WriteError(w, asTypesError(err), h.logger)
		return
	}
	WriteSuccess(w, toUserProfile(updated))
}
