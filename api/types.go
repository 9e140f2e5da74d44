// Package api defines the JSON request/response shapes of the docscan
// HTTP surface, plus the canonical success/error envelope shared by
// every handler.
package api

import "time"

// Response is the canonical envelope every handler writes: either
// Data is populated (Success true) or Error is (Success false).
// @Description Canonical API response envelope
type Response struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// ErrorInfo is the JSON shape of a failed response's error field.
// @Description Structured error details
type ErrorInfo struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable"`
	HTTPStatus int    `json:"http_status,omitempty"`
}

// =============================================================================
// Authentication
// =============================================================================

// GoogleVerifyRequest is the body of POST /api/auth/google/verify.
type GoogleVerifyRequest struct {
	Credential string `json:"credential"`
}

// TelegramVerifyRequest is the body of POST /api/auth/telegram/verify —
// deliberately permissive at the JSON level since the three accepted
// shapes are disambiguated downstream by auth.TelegramVerifier.
type TelegramVerifyRequest = map[string]any

// AuthResponse is the shared shape returned by both verify endpoints.
type AuthResponse struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	User        UserProfile `json:"user"`
}

// UserProfile is the user-facing projection of store.User — api keys
// are never returned verbatim, only presence booleans and previews.
type UserProfile struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	DisplayName      string `json:"display_name"`
	PictureURL       string `json:"picture_url,omitempty"`
	OAuthProvider    string `json:"oauth_provider"`
	PreferredLanguage string `json:"preferred_language"`
	HasKeySlot1      bool   `json:"has_key_slot_1"`
	HasKeySlot2      bool   `json:"has_key_slot_2"`
	HasKeySlot3      bool   `json:"has_key_slot_3"`
	KeySlot1Preview  string `json:"key_slot_1_preview,omitempty"`
	KeySlot2Preview  string `json:"key_slot_2_preview,omitempty"`
	KeySlot3Preview  string `json:"key_slot_3_preview,omitempty"`
}

// =============================================================================
// API keys
// =============================================================================

// SetAPIKeysRequest accepts both the current slot-numbered field names
// and the legacy per-provider names; new names win on conflict (§6).
type SetAPIKeysRequest struct {
	APIKey1 string `json:"api_key_1"`
	APIKey2 string `json:"api_key_2"`
	APIKey3 string `json:"api_key_3"`

	GeminiAPIKey    string `json:"gemini_api_key"`
	OpenAIAPIKey    string `json:"openai_api_key"`
	AnthropicAPIKey string `json:"anthropic_api_key"`
}

// QuickGeminiSetupRequest is the body of POST /api/quick-gemini-setup.
type QuickGeminiSetupRequest struct {
	APIKey string `json:"api_key"`
}

// =============================================================================
// Document analysis
// =============================================================================

// AnalysisSections is the fixed, ordered set of analysis fields
// surfaced by the Formatter.
type AnalysisSections struct {
	Summary          string `json:"summary"`
	SenderInfo       string `json:"sender_info"`
	DocumentType     string `json:"document_type"`
	KeyContent       string `json:"key_content"`
	RequiredActions  string `json:"required_actions"`
	Deadlines        string `json:"deadlines"`
	Consequences     string `json:"consequences"`
	UrgencyLevel     string `json:"urgency_level"`
	ResponseTemplate string `json:"response_template"`
	FullText         string `json:"full_text"`
}

// AnalyzeFileResponse is the response body of POST /api/analyze-file.
type AnalyzeFileResponse struct {
	Analysis            AnalysisSections `json:"analysis"`
	LLMProvider         string           `json:"llm_provider"`
	LLMModel            string           `json:"llm_model"`
	AnalysisLanguage    string           `json:"analysis_language"`
	ExtractedTextLength int              `json:"extracted_text_length"`
	FileName            string           `json:"file_name"`
	FileType            string           `json:"file_type"`
}

// =============================================================================
// Observability
// =============================================================================

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status          string `json:"status"`
	Database        string `json:"database"`
	UsersCount      int64  `json:"users_count"`
	AnalysesCount   int64  `json:"analyses_count"`
	TelegramMiniApp bool   `json:"telegram_mini_app"`
}

// OCRStatusResponse is the body of GET /api/ocr-status.
type OCRStatusResponse struct {
	ServiceName        string       `json:"service_name"`
	PrimaryMethod      string       `json:"primary_method"`
	TesseractAvailable bool         `json:"tesseract_available"`
	TesseractVersion   string       `json:"tesseract_version,omitempty"`
	OptimizedForSpeed  bool         `json:"optimized_for_speed"`
	ProductionReady    bool         `json:"production_ready"`
	Methods            []OCRMethod  `json:"methods"`
	Languages          []string     `json:"languages"`
}

// OCRMethod describes one candidate extraction method's availability.
type OCRMethod struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Available   bool   `json:"available"`
}

// LLMStatusResponse is the body of GET /api/modern-llm-status.
type LLMStatusResponse struct {
	Status    string               `json:"status"`
	Modern    bool                 `json:"modern"`
	Providers []LLMProviderStatus `json:"providers"`
}

// LLMProviderStatus reports one provider family's readiness. Healthy
// reflects a live reachability probe against the system-key-backed
// provider instance and is always false when the family has no system
// key to probe with.
type LLMProviderStatus struct {
	Name         string `json:"name"`
	Modern       bool   `json:"modern"`
	Model        string `json:"model"`
	HasSystemKey bool   `json:"has_system_key"`
	Healthy      bool   `json:"healthy"`
}

// =============================================================================
// Letters
// =============================================================================

// LetterCategoriesResponse is the body of GET /api/letter-categories.
type LetterCategoriesResponse struct {
	Categories []string `json:"categories"`
}

// GenerateLetterTemplateRequest is the body of
// POST /api/generate-letter-template.
type GenerateLetterTemplateRequest struct {
	Category       string            `json:"category"`
	TemplateKey    string            `json:"template_key"`
	Variables      map[string]string `json:"variables"`
	TargetLanguage string            `json:"target_language"`
}

// GenerateLetterRequest is the body of POST /api/generate-letter (the
// free-prompt path).
type GenerateLetterRequest struct {
	Prompt         string `json:"prompt"`
	TargetLanguage string `json:"target_language"`
}

// ImproveLetterRequest is the body of POST /api/improve-letter.
type ImproveLetterRequest struct {
	BodyDE         string `json:"body_de"`
	TargetLanguage string `json:"target_language"`
}

// LetterResponse is the shared shape returned by every letter-drafting
// endpoint.
type LetterResponse struct {
	Subject         string `json:"subject,omitempty"`
	BodyDE          string `json:"body_de"`
	BodyTranslation string `json:"body_translation,omitempty"`
}

// SaveLetterRequest is the body of POST /api/save-letter.
type SaveLetterRequest struct {
	RecipientCategory string            `json:"recipient_category"`
	TemplateKey       string            `json:"template_key,omitempty"`
	Subject           string            `json:"subject"`
	BodyDE            string            `json:"body_de"`
	BodyTranslation   string            `json:"body_translation,omitempty"`
	Variables         map[string]string `json:"variables,omitempty"`
}

// LetterRecordResponse mirrors a persisted store.LetterRecord.
type LetterRecordResponse struct {
	ID                string            `json:"id"`
	RecipientCategory string            `json:"recipient_category"`
	TemplateKey       string            `json:"template_key,omitempty"`
	Subject           string            `json:"subject"`
	BodyDE            string            `json:"body_de"`
	BodyTranslation   string            `json:"body_translation,omitempty"`
	Variables         map[string]string `json:"variables,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}

// UserLettersResponse is the body of GET /api/user-letters and
// GET /api/letter-search.
type UserLettersResponse struct {
	Letters []LetterRecordResponse `json:"letters"`
}
