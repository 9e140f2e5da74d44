package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/BaSui01/agentflow/types"
)

const googleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

// GoogleVerifier validates GoogleLike OIDC ID tokens against the
// provider's published JWKS, caching and auto-refreshing the key set
// so key rotation never requires a restart.
type GoogleVerifier struct {
	clientID string
	cache    *jwk.Cache
	jwksURL  string
}

// NewGoogleVerifier builds a verifier bound to clientID (the expected
// `aud` claim). Returns AuthUnconfigured when clientID is empty.
func NewGoogleVerifier(ctx context.Context, clientID string) (*GoogleVerifier, error) {
	if clientID == "" {
		return nil, types.NewError(types.ErrAuthUnconfigured, "google client id not configured").WithHTTPStatus(500)
	}

	cache := jwk.NewCache(ctx)
	if err := cache.Register(googleJWKSURL, jwk.WithMinRefreshInterval(15*time.Minute)); err != nil {
		return nil, fmt.Errorf("register google jwks: %w", err)
	}
	if _, err := cache.Refresh(ctx, googleJWKSURL); err != nil {
		return nil, fmt.Errorf("fetch google jwks: %w", err)
	}

	return &GoogleVerifier{clientID: clientID, cache: cache, jwksURL: googleJWKSURL}, nil
}

// GoogleIdentity is the {sub, email, name, picture} shape yielded by a
// verified ID token.
type GoogleIdentity struct {
	Sub     string
	Email   string
	Name    string
	Picture string
}

// Verify validates idToken's signature against the cached JWKS, its
// audience against the configured client ID, and extracts the identity
// claims. Any failure is reported as AuthRejected.
func (v *GoogleVerifier) Verify(ctx context.Context, idToken string) (*GoogleIdentity, error) {
	keyset, err := v.cache.Get(ctx, v.jwksURL)
	if err != nil {
		return nil, types.NewError(types.ErrAuthRejected, "could not load verification keys").WithCause(err).WithHTTPStatus(401)
	}

	token, err := jwt.Parse(
		[]byte(idToken),
		jwt.WithKeySet(keyset),
		jwt.WithValidate(true),
		jwt.WithAudience(v.clientID),
	)
	if err != nil {
		return nil, types.NewError(types.ErrAuthRejected, "invalid google id token").WithCause(err).WithHTTPStatus(401)
	}

	identity := &GoogleIdentity{Sub: token.Subject()}
	if email, ok := token.Get("email"); ok {
		identity.Email, _ = email.(string)
	}
	if name, ok := token.Get("name"); ok {
		identity.Name, _ = name.(string)
	}
	if picture, ok := token.Get("picture"); ok {
		identity.Picture, _ = picture.(string)
	}

	if identity.Sub == "" {
		return nil, types.NewError(types.ErrAuthRejected, "id token missing subject claim").WithHTTPStatus(401)
	}
	return identity, nil
}
