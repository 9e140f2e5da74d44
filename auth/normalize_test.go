package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeGoogle(t *testing.T) {
	g := &GoogleIdentity{Sub: "10982374", Email: "a@b.com", Name: "Alex", Picture: "https://img"}
	id := NormalizeGoogle(g)
	assert.Equal(t, "google_10982374", id.ID)
	assert.Equal(t, ProviderGoogle, id.Provider)
	assert.Equal(t, "a@b.com", id.Email)
}

func TestNormalizeTelegram_SynthesizesEmail(t *testing.T) {
	u := &chatUser{ID: 42, FirstName: "Mira"}
	id := NormalizeTelegram(u)
	assert.Equal(t, "telegram_42", id.ID)
	assert.Equal(t, "42@telegram.local", id.Email)
	assert.Equal(t, ProviderTelegram, id.Provider)
}

func TestNormalizeTelegram_CombinesNames(t *testing.T) {
	u := &chatUser{ID: 7, FirstName: "Mira", LastName: "K"}
	id := NormalizeTelegram(u)
	assert.Equal(t, "Mira K", id.DisplayName)
}

func TestSessionMinter_MintAndVerify(t *testing.T) {
	minter := NewSessionMinter("test-signing-secret", time.Hour)
	identity := &Identity{ID: "telegram_42", Provider: ProviderTelegram}

	token, err := minter.Mint(identity)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := minter.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "telegram_42", claims.UserID)
	assert.Equal(t, "ChatLike", claims.Provider)
}

func TestSessionMinter_RejectsExpired(t *testing.T) {
	minter := NewSessionMinter("test-signing-secret", -time.Hour)
	token, err := minter.Mint(&Identity{ID: "u1", Provider: ProviderGoogle})
	require.NoError(t, err)

	_, err = minter.Verify(token)
	require.Error(t, err)
}

func TestSessionMinter_RejectsWrongSecret(t *testing.T) {
	minter := NewSessionMinter("secret-a", time.Hour)
	token, err := minter.Mint(&Identity{ID: "u1", Provider: ProviderGoogle})
	require.NoError(t, err)

	other := NewSessionMinter("secret-b", time.Hour)
	_, err = other.Verify(token)
	require.Error(t, err)
}
