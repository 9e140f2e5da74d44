// Package store is the durable home for Users, their per-slot API keys,
// Analysis and Letter records, and AppText — the service's sole shared
// mutable resource (config and is-memory caches aside).
package store

import (
	"encoding/json"
	"time"
)

// OAuthProvider distinguishes the two accepted identity providers.
type OAuthProvider string

const (
	ProviderGoogle   OAuthProvider = "GoogleLike"
	ProviderTelegram OAuthProvider = "ChatLike"
)

// Language is one of the four supported analysis/letter languages.
type Language string

const (
	LangEN Language = "en"
	LangRU Language = "ru"
	LangDE Language = "de"
	LangUK Language = "uk"
)

// User is the normalized identity record. ID is stable and
// provider-prefixed ("telegram_<nat>" or "google_<opaque>").
type User struct {
	ID                string `gorm:"primaryKey"`
	Email             string `gorm:"uniqueIndex:idx_email_provider"`
	DisplayName       string
	PictureURL        string
	OAuthProvider     OAuthProvider `gorm:"uniqueIndex:idx_email_provider"`
	PreferredLanguage Language      `gorm:"default:en"`
	APIKeySlot1       *string
	APIKeySlot2       *string
	APIKeySlot3       *string
	CreatedAt         time.Time
	LastLoginAt       time.Time
}

// KeySlot returns the value (or empty string) stored at slot 1..3.
func (u *User) KeySlot(slot int) string {
	var p *string
	switch slot {
	case 1:
		p = u.APIKeySlot1
	case 2:
		p = u.APIKeySlot2
	case 3:
		p = u.APIKeySlot3
	}
	if p == nil {
		return ""
	}
	return *p
}

// SetKeySlot sets or clears the given slot (1..3) in place.
func (u *User) SetKeySlot(slot int, value *string) {
	switch slot {
	case 1:
		u.APIKeySlot1 = value
	case 2:
		u.APIKeySlot2 = value
	case 3:
		u.APIKeySlot3 = value
	}
}

// AnalysisRecord is an immutable record of one analyze-file call.
type AnalysisRecord struct {
	ID                   string `gorm:"primaryKey"`
	UserID               string `gorm:"index"`
	FileName             string
	FileType             string
	AnalysisLanguage     Language
	LLMProviderUsed      string
	LLMModelUsed         string
	ExtractedTextLength  int
	AnalysisSectionsJSON []byte `gorm:"type:text"`
	CreatedAt            time.Time
}

// AnalysisSections returns the decoded section map.
func (a *AnalysisRecord) AnalysisSections() (map[string]string, error) {
	if len(a.AnalysisSectionsJSON) == 0 {
		return map[string]string{}, nil
	}
	var out map[string]string
	if err := json.Unmarshal(a.AnalysisSectionsJSON, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetAnalysisSections encodes sections into the record's JSON column.
func (a *AnalysisRecord) SetAnalysisSections(sections map[string]string) error {
	data, err := json.Marshal(sections)
	if err != nil {
		return err
	}
	a.AnalysisSectionsJSON = data
	return nil
}

// LetterRecord is a saved outgoing letter.
type LetterRecord struct {
	ID                string `gorm:"primaryKey"`
	UserID            string `gorm:"index"`
	RecipientCategory string
	TemplateKey       *string
	Subject           string
	BodyDE            string
	BodyTranslation   *string
	VariablesJSON     []byte `gorm:"type:text"`
	CreatedAt         time.Time
}

// AppText is an admin-editable UI string, treated by the core as an
// opaque keyed map.
type AppText struct {
	Key         string `gorm:"primaryKey"`
	Category    string
	Value       string
	Description string
	UpdatedAt   time.Time
}
