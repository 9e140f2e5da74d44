package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentflow/api"
	"github.com/BaSui01/agentflow/auth"
	"github.com/BaSui01/agentflow/internal/cache"
	"github.com/BaSui01/agentflow/store"
	"github.com/BaSui01/agentflow/types"
)

// RevokedSessionKeyPrefix namespaces revoked-token entries in the
// shared cache so other callers of the same Redis instance can't
// collide with them.
const RevokedSessionKeyPrefix = "docscan:session:revoked:"

// AuthHandler serves the two identity-provider verify endpoints,
// normalizing either into a session token plus a UserProfile.
type AuthHandler struct {
	google   *auth.GoogleVerifier
	telegram *auth.TelegramVerifier
	minter   *auth.SessionMinter
	repo     *store.Repository
	cache    *cache.Manager
	logger   *zap.Logger
}

// NewAuthHandler wires the handler to its already-constructed
// collaborators. google may be nil when no client ID is configured —
// the google endpoint then reports AuthUnconfigured; telegram may be
// nil when no bot secret is configured, with the same result for the
// telegram endpoint. cacheMgr may be
// nil when no Redis address is configured — logout then reports
// success without being able to enforce revocation server-side.
func NewAuthHandler(google *auth.GoogleVerifier, telegram *auth.TelegramVerifier, minter *auth.SessionMinter, repo *store.Repository, cacheMgr *cache.Manager, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{google: google, telegram: telegram, minter: minter, repo: repo, cache: cacheMgr, logger: logger}
}

// HandleGoogleVerify handles POST /api/auth/google/verify.
func (h *AuthHandler) HandleGoogleVerify(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		WriteError(w, types.NewError(types.ErrAuthUnconfigured, "google sign-in is not configured").WithHTTPStatus(500), h.logger)
		return
	}

	var req api.GoogleVerifyRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.Credential == "" {
		WriteError(w, types.NewError(types.ErrAuthInvalidPayload, "missing credential").WithHTTPStatus(400), h.logger)
		return
	}

	googleIdentity, err := h.google.Verify(r.Context(), req.Credential)
	if err != nil {
		writeAuthErr(w, err, h.logger)
		return
	}

	h.finishLogin(w, r, auth.NormalizeGoogle(googleIdentity))
}

// HandleTelegramVerify handles POST /api/auth/telegram/verify.
func (h *AuthHandler) HandleTelegramVerify(w http.ResponseWriter, r *http.Request) {
	if h.telegram == nil {
		WriteError(w, types.NewError(types.ErrAuthUnconfigured, "telegram bot secret not configured").WithHTTPStatus(500), h.logger)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "failed to read request body").WithCause(err), h.logger)
		return
	}

	chatUser, err := h.telegram.Verify(body)
	if err != nil {
		writeAuthErr(w, err, h.logger)
		return
	}

	h.finishLogin(w, r, auth.NormalizeTelegram(chatUser))
}

func (h *AuthHandler) finishLogin(w http.ResponseWriter, r *http.Request, identity *auth.Identity) {
	user, err := h.repo.UpsertUser(r.Context(), &store.User{
		ID:            identity.ID,
		Email:         identity.Email,
		DisplayName:   identity.DisplayName,
		PictureURL:    identity.PictureURL,
		OAuthProvider: store.OAuthProvider(identity.Provider),
	})
	if err != nil {
		WriteError(w, asTypesError(err), h.logger)
		return
	}

	token, err := h.minter.Mint(identity)
	if err != nil {
		WriteError(w, types.NewError(types.ErrInternalError, "failed to mint session token").WithCause(err).WithHTTPStatus(500), h.logger)
		return
	}

	WriteSuccess(w, api.AuthResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		User:        toUserProfile(user),
	})
}

// HandleLogout handles POST /api/auth/logout. It blacklists the
// caller's own bearer token in the revocation cache for the remainder
// of its lifetime, so a stolen-but-logged-out token stops working
// immediately instead of lingering until natural expiry.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		WriteError(w, types.NewError(types.ErrAuthInvalidPayload, "missing bearer token").WithHTTPStatus(400), h.logger)
		return
	}

	claims, err := h.minter.Verify(token)
	if err != nil {
		writeAuthErr(w, err, h.logger)
		return
	}

	if h.cache != nil {
		ttl := time.Until(claims.ExpiresAt.Time)
		if ttl > 0 {
			if err := h.cache.Set(r.Context(), RevokedSessionKeyPrefix+hashToken(token), "1", ttl); err != nil {
				h.logger.Warn("failed to record session revocation", zap.Error(err))
			}
		}
	}

	WriteSuccess(w, map[string]bool{"logged_out": true})
}

// bearerToken strips the "Bearer " prefix from an Authorization header.
func bearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimPrefix(header, prefix)
}

// hashToken keys the revocation cache on a token's digest rather than
// its raw bytes, so the session secret never appears in cache/Redis keys.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func writeAuthErr(w http.ResponseWriter, err error, logger *zap.Logger) {
	if typesErr, ok := err.(*types.Error); ok {
		WriteError(w, typesErr, logger)
		return
	}
	WriteError(w, types.NewError(types.ErrAuthRejected, "authentication failed").WithCause(err).WithHTTPStatus(401), logger)
}

func asTypesError(err error) *types.Error {
	if typesErr, ok := err.(*types.Error); ok {
		return typesErr
	}
	return types.NewError(types.ErrInternalError, "internal error").WithCause(err).WithHTTPStatus(500)
}

func toUserProfile(u *store.User) api.UserProfile {
	return api.UserProfile{
		ID:                u.ID,
		Email:             u.Email,
		DisplayName:       u.DisplayName,
		PictureURL:        u.PictureURL,
		OAuthProvider:     string(u.OAuthProvider),
		PreferredLanguage: string(u.PreferredLanguage),
		HasKeySlot1:       u.KeySlot(1) != "",
		HasKeySlot2:       u.KeySlot(2) != "",
		HasKeySlot3:       u.KeySlot(3) != "",
		KeySlot1Preview:   store.KeyPreview(u.KeySlot(1)),
		KeySlot2Preview:   store.KeyPreview(u.KeySlot(2)),
		KeySlot3Preview:   store.KeyPreview(u.KeySlot(3)),
	}
}
