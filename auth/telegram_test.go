package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegramVerifier_Unconfigured(t *testing.T) {
	v := NewTelegramVerifier("")
	_, err := v.Verify([]byte(`{"id":1,"first_name":"A"}`))
	require.Error(t, err)
}

func TestTelegramVerifier_FlatShape(t *testing.T) {
	v := NewTelegramVerifier("secret")
	u, err := v.Verify([]byte(`{"id":42,"first_name":"Mira"}`))
	require.NoError(t, err)
	assert.EqualValues(t, 42, u.ID)
	assert.Equal(t, "Mira", u.FirstName)
}

func TestTelegramVerifier_NestedTelegramUserShape(t *testing.T) {
	v := NewTelegramVerifier("secret")
	u, err := v.Verify([]byte(`{"telegram_user":{"id":7,"first_name":"Jo"}}`))
	require.NoError(t, err)
	assert.EqualValues(t, 7, u.ID)
}

func TestTelegramVerifier_NestedUserShape(t *testing.T) {
	v := NewTelegramVerifier("secret")
	u, err := v.Verify([]byte(`{"user":{"id":9,"first_name":"Li"}}`))
	require.NoError(t, err)
	assert.EqualValues(t, 9, u.ID)
}

func TestTelegramVerifier_MissingRequiredFields(t *testing.T) {
	v := NewTelegramVerifier("secret")
	_, err := v.Verify([]byte(`{"id":0,"first_name":""}`))
	require.Error(t, err)
}

func TestTelegramVerifier_NoRecognizedShape(t *testing.T) {
	v := NewTelegramVerifier("secret")
	_, err := v.Verify([]byte(`{"foo":"bar"}`))
	require.Error(t, err)
}

func buildInitData(t *testing.T, botSecret string, authDate time.Time, userJSON string) string {
	t.Helper()
	values := url.Values{}
	values.Set("auth_date", strconv.FormatInt(authDate.Unix(), 10))
	values.Set("user", userJSON)
	values.Set("query_id", "AAA")

	pairs := make([]string, 0, len(values))
	for k, vs := range values {
		for _, v := range vs {
			pairs = append(pairs, k+"="+v)
		}
	}
	sort.Strings(pairs)
	dataCheckString := strings.Join(pairs, "\n")

	secretKey := hmac.New(sha256.New, []byte("WebAppData"))
	secretKey.Write([]byte(botSecret))
	mac := hmac.New(sha256.New, secretKey.Sum(nil))
	mac.Write([]byte(dataCheckString))
	hash := hex.EncodeToString(mac.Sum(nil))

	values.Set("hash", hash)
	return values.Encode()
}

func TestTelegramVerifier_InitDataValidSignature(t *testing.T) {
	userJSON, err := json.Marshal(chatUser{ID: 99, FirstName: "Zed"})
	require.NoError(t, err)

	initData := buildInitData(t, "bot-secret", time.Now(), string(userJSON))
	payload, err := json.Marshal(map[string]string{"initData": initData})
	require.NoError(t, err)

	v := NewTelegramVerifier("bot-secret")
	u, err := v.Verify(payload)
	require.NoError(t, err)
	assert.EqualValues(t, 99, u.ID)
	assert.Equal(t, "Zed", u.FirstName)
}

func TestTelegramVerifier_InitDataBadSignature(t *testing.T) {
	userJSON, err := json.Marshal(chatUser{ID: 99, FirstName: "Zed"})
	require.NoError(t, err)

	initData := buildInitData(t, "wrong-secret", time.Now(), string(userJSON))
	payload, err := json.Marshal(map[string]string{"initData": initData})
	require.NoError(t, err)

	v := NewTelegramVerifier("bot-secret")
	_, err = v.Verify(payload)
	require.Error(t, err)
}

func TestTelegramVerifier_InitDataStale(t *testing.T) {
	userJSON, err := json.Marshal(chatUser{ID: 99, FirstName: "Zed"})
	require.NoError(t, err)

	initData := buildInitData(t, "bot-secret", time.Now().Add(-48*time.Hour), string(userJSON))
	payload, err := json.Marshal(map[string]string{"initData": initData})
	require.NoError(t, err)

	v := NewTelegramVerifier("bot-secret")
	_, err = v.Verify(payload)
	require.Error(t, err)
}
