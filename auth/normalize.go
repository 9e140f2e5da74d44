// Package auth validates credentials from the two supported identity
// providers, normalizes them into a uniform user identity, and mints
// bearer session tokens.
package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/BaSui01/agentflow/types"
)

// Provider distinguishes the two accepted identity providers.
type Provider string

const (
	ProviderGoogle   Provider = "GoogleLike"
	ProviderTelegram Provider = "ChatLike"
)

// Identity is the uniform internal user record produced by either
// provider path, before it reaches the store.
type Identity struct {
	ID          string
	Email       string
	DisplayName string
	PictureURL  string
	Provider    Provider
}

// NormalizeGoogle maps a verified GoogleIdentity into the uniform
// internal shape. ID is "google_<sub>".
func NormalizeGoogle(g *GoogleIdentity) *Identity {
	return &Identity{
		ID:          "google_" + g.Sub,
		Email:       g.Email,
		DisplayName: g.Name,
		PictureURL:  g.Picture,
		Provider:    ProviderGoogle,
	}
}

// NormalizeTelegram maps a verified chatUser into the uniform internal
// shape. ID is "telegram_<numeric>"; email is synthesized when the
// provider does not supply one.
func NormalizeTelegram(u *chatUser) *Identity {
	displayName := u.FirstName
	if u.LastName != "" {
		displayName = u.FirstName + " " + u.LastName
	}
	return &Identity{
		ID:          "telegram_" + strconv.FormatInt(u.ID, 10),
		Email:       strconv.FormatInt(u.ID, 10) + "@telegram.local",
		DisplayName: displayName,
		PictureURL:  u.PhotoURL,
		Provider:    ProviderTelegram,
	}
}

// SessionClaims is the session bearer token's claim shape, mirroring
// the user_id/roles claims the teacher's own JWTAuth middleware reads
// off inbound tokens.
type SessionClaims struct {
	UserID   string `json:"user_id"`
	Provider string `json:"oauth_provider"`
	jwt.RegisteredClaims
}

// SessionMinter mints and verifies HS256 bearer session tokens.
type SessionMinter struct {
	secret []byte
	ttl    time.Duration
}

// NewSessionMinter binds a minter to the configured signing secret and
// TTL.
func NewSessionMinter(signingSecret string, ttl time.Duration) *SessionMinter {
	return &SessionMinter{secret: []byte(signingSecret), ttl: ttl}
}

// Mint produces a signed bearer token for the given identity.
func (m *SessionMinter) Mint(identity *Identity) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		UserID:   identity.ID,
		Provider: string(identity.Provider),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			Subject:   identity.ID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify validates a bearer token and returns its claims. Expired or
// tampered tokens are reported as Unauthenticated.
func (m *SessionMinter) Verify(tokenStr string) (*SessionClaims, error) {
	var claims SessionClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Method.Alg())
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, types.NewError(types.ErrUnauthenticated, "invalid or expired session token").WithCause(err).WithHTTPStatus(401)
	}
	return &claims, nil
}
