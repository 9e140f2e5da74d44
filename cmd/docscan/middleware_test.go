package main

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/agentflow/auth"
	"github.com/BaSui01/agentflow/internal/cache"
	"github.com/BaSui01/agentflow/store"
)

func TestSecurityHeaders(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := SecurityHeaders()(inner)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.Equal(t, "1; mode=block", w.Header().Get("X-XSS-Protection"))
	assert.Equal(t, "default-src 'self'", w.Header().Get("Content-Security-Policy"))
}

func TestSecurityHeaders_ChainedWithOtherMiddleware(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	handler := Chain(inner, SecurityHeaders(), RequestID())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/test", nil)
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	// SecurityHeaders should be present
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "default-src 'self'", w.Header().Get("Content-Security-Policy"))
	// RequestID should also be present
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func newTestRepo(t *testing.T) *store.Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&store.User{}, &store.AnalysisRecord{}, &store.LetterRecord{}, &store.AppText{}))
	return store.NewRepository(db, zap.NewNop())
}

func TestSessionAuth_RejectsRevokedToken(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cacheCfg := cache.DefaultConfig()
	cacheCfg.Addr = mr.Addr()
	cacheMgr, err := cache.NewManager(cacheCfg, zap.NewNop())
	require.NoError(t, err)

	repo := newTestRepo(t)
	minter := auth.NewSessionMinter("test-secret", time.Hour)

	ctx := t.Context()
	_, err = repo.UpsertUser(ctx, &store.User{ID: "google_1", OAuthProvider: store.ProviderGoogle})
	require.NoError(t, err)

	token, err := minter.Mint(&auth.Identity{ID: "google_1", Provider: auth.ProviderGoogle})
	require.NoError(t, err)

	sum := sha256.Sum256([]byte(token))
	require.NoError(t, cacheMgr.Set(ctx, "docscan:session:revoked:"+hex.EncodeToString(sum[:]), "1", time.Hour))

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := SessionAuth(minter, repo, cacheMgr, nil, zap.NewNop())(inner)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionAuth_AcceptsLiveToken(t *testing.T) {
	repo := newTestRepo(t)
	minter := auth.NewSessionMinter("test-secret", time.Hour)

	ctx := t.Context()
	_, err := repo.UpsertUser(ctx, &store.User{ID: "google_2", OAuthProvider: store.ProviderGoogle})
	require.NoError(t, err)

	token, err := minter.Mint(&auth.Identity{ID: "google_2", Provider: auth.ProviderGoogle})
	require.NoError(t, err)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := SessionAuth(minter, repo, nil, nil, zap.NewNop())(inner)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
}
