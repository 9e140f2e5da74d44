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
	"time"

	"github.com/BaSui01/agentflow/types"
)

// initDataMaxAge bounds how stale a ChatLike initData payload may be
// before it is rejected, even with a valid signature.
const initDataMaxAge = 24 * time.Hour

// chatUser is the flat user object shared by all three accepted
// ChatLike payload shapes.
type chatUser struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	PhotoURL     string `json:"photo_url,omitempty"`
}

// chatLoginPayload is the explicit tagged-variant input type for the
// three accepted request shapes: (a) a flat user object, (b) a nested
// telegram_user/user object, (c) a URL-encoded initData string. Each
// field is optional; extract below picks whichever is present,
// rather than reflectively copying "whatever comes" downstream.
type chatLoginPayload struct {
	ID           *int64  `json:"id"`
	FirstName    *string `json:"first_name"`
	LastName     *string `json:"last_name"`
	Username     *string `json:"username"`
	LanguageCode *string `json:"language_code"`
	PhotoURL     *string `json:"photo_url"`

	TelegramUser *chatUser `json:"telegram_user"`
	User         *chatUser `json:"user"`

	InitData *string `json:"initData"`
}

// TelegramVerifier validates and normalizes ChatLike login payloads.
type TelegramVerifier struct {
	botSecret string
}

// NewTelegramVerifier binds a verifier to the configured bot secret.
func NewTelegramVerifier(botSecret string) *TelegramVerifier {
	return &TelegramVerifier{botSecret: botSecret}
}

// Verify normalizes raw (one of the three accepted JSON shapes) into a
// chatUser, verifying the initData HMAC signature when that shape is
// used. Returns AuthUnconfigured if no bot secret is configured, and
// AuthInvalidPayload when required fields are missing or initData is
// malformed/stale/unsigned correctly.
func (v *TelegramVerifier) Verify(raw []byte) (*chatUser, error) {
	if v.botSecret == "" {
		return nil, types.NewError(types.ErrAuthUnconfigured, "telegram bot secret not configured").WithHTTPStatus(500)
	}

	var payload chatLoginPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, types.NewError(types.ErrAuthInvalidPayload, "malformed request body").WithCause(err).WithHTTPStatus(400)
	}

	user, err := v.extract(payload)
	if err != nil {
		return nil, err
	}

	if user.ID == 0 || user.FirstName == "" {
		return nil, types.NewError(types.ErrAuthInvalidPayload, "missing required id/first_name").WithHTTPStatus(400)
	}
	return user, nil
}

func (v *TelegramVerifier) extract(payload chatLoginPayload) (*chatUser, error) {
	switch {
	case payload.InitData != nil:
		return v.verifyInitData(*payload.InitData)
	case payload.TelegramUser != nil:
		return payload.TelegramUser, nil
	case payload.User != nil:
		return payload.User, nil
	case payload.ID != nil:
		u := &chatUser{ID: *payload.ID}
		if payload.FirstName != nil {
			u.FirstName = *payload.FirstName
		}
		if payload.LastName != nil {
			u.LastName = *payload.LastName
		}
		if payload.Username != nil {
			u.Username = *payload.Username
		}
		if payload.LanguageCode != nil {
			u.LanguageCode = *payload.LanguageCode
		}
		if payload.PhotoURL != nil {
			u.PhotoURL = *payload.PhotoURL
		}
		return u, nil
	default:
		return nil, types.NewError(types.ErrAuthInvalidPayload, "no recognized login shape present").WithHTTPStatus(400)
	}
}

// verifyInitData validates the HMAC-SHA256 signature of a
// URL-encoded initData string per the chat platform's WebApp
// authentication scheme, rejects payloads older than initDataMaxAge,
// and decodes the embedded user object.
func (v *TelegramVerifier) verifyInitData(initData string) (*chatUser, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, types.NewError(types.ErrAuthInvalidPayload, "malformed initData").WithCause(err).WithHTTPStatus(400)
	}

	hash := values.Get("hash")
	if hash == "" {
		return nil, types.NewError(types.ErrAuthInvalidPayload, "initData missing hash").WithHTTPStatus(400)
	}

	pairs := make([]string, 0, len(values))
	for key, vals := range values {
		if key == "hash" {
			continue
		}
		for _, val := range vals {
			pairs = append(pairs, key+"="+val)
		}
	}
	sort.Strings(pairs)
	dataCheckString := strings.Join(pairs, "\n")

	secretKey := hmac.New(sha256.New, []byte("WebAppData"))
	secretKey.Write([]byte(v.botSecret))

	mac := hmac.New(sha256.New, secretKey.Sum(nil))
	mac.Write([]byte(dataCheckString))
	computed := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(computed), []byte(hash)) {
		return nil, types.NewError(types.ErrAuthInvalidPayload, "initData signature mismatch").WithHTTPStatus(400)
	}

	if authDate := values.Get("auth_date"); authDate != "" {
		sec, err := strconv.ParseInt(authDate, 10, 64)
		if err == nil && time.Since(time.Unix(sec, 0)) > initDataMaxAge {
			return nil, types.NewError(types.ErrAuthInvalidPayload, "initData is stale").WithHTTPStatus(400)
		}
	}

	userJSON := values.Get("user")
	if userJSON == "" {
		return nil, types.NewError(types.ErrAuthInvalidPayload, "initData missing user field").WithHTTPStatus(400)
	}
	var u chatUser
	if err := json.Unmarshal([]byte(userJSON), &u); err != nil {
		return nil, types.NewError(types.ErrAuthInvalidPayload, "initData user field malformed").WithCause(err).WithHTTPStatus(400)
	}
	return &u, nil
}

