package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/agentflow/api"
	"github.com/BaSui01/agentflow/letters"
	"github.com/BaSui01/agentflow/llm"
	"github.com/BaSui01/agentflow/store"
	"github.com/BaSui01/agentflow/types"
)

// LettersHandler serves letter template browsing, drafting, saving and
// search.
type LettersHandler struct {
	composer *letters.Composer
	catalog  letters.Catalog
	repo     *store.Repository
	logger   *zap.Logger
}

// NewLettersHandler wires the handler to its collaborators.
func NewLettersHandler(composer *letters.Composer, catalog letters.Catalog, repo *store.Repository, logger *zap.Logger) *LettersHandler {
	return &LettersHandler{composer: composer, catalog: catalog, repo: repo, logger: logger}
}

// HandleCategories handles GET /api/letter-categories.
func (h *LettersHandler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, api.LetterCategoriesResponse{Categories: h.catalog.Categories()})
}

// HandleTemplatesInCategory handles GET /api/letter-templates/{category}.
func (h *LettersHandler) HandleTemplatesInCategory(w http.ResponseWriter, r *http.Request, category string) {
	tpls, err := h.catalog.Templates(category)
	if err != nil {
		WriteError(w, asTypesError(err), h.logger)
		return
	}
	WriteSuccess(w, tpls)
}

// HandleTemplate handles GET /api/letter-template/{category}/{key}.
func (h *LettersHandler) HandleTemplate(w http.ResponseWriter, r *http.Request, category, key string) {
	tpl, err := h.catalog.Template(category, key)
	if err != nil {
		WriteError(w, asTypesError(err), h.logger)
		return
	}
	WriteSuccess(w, tpl)
}

// HandleGenerateLetterTemplate handles POST /api/generate-letter-template.
func (h *LettersHandler) HandleGenerateLetterTemplate(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}
	var req api.GenerateLetterTemplateRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	letter, err := h.composer.ComposeFromTemplate(r.Context(), req.Category, req.TemplateKey, req.Variables, req.TargetLanguage, userKeys(user))
	if err != nil {
		WriteError(w, asTypesError(err), h.logger)
		return
	}
	WriteSuccess(w, letterToResponse(letter))
}

// HandleGenerateLetter handles POST /api/generate-letter (free-prompt path).
func (h *LettersHandler) HandleGenerateLetter(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}
	var req api.GenerateLetterRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "prompt is required").WithHTTPStatus(400), h.logger)
		return
	}

	letter, err := h.composer.ComposeFromPrompt(r.Context(), req.Prompt, req.TargetLanguage, userKeys(user))
	if err != nil {
		WriteError(w, asTypesError(err), h.logger)
		return
	}
	WriteSuccess(w, letterToResponse(letter))
}

// HandleImproveLetter handles POST /api/improve-letter: reuses the
// template path's polish step on caller-supplied German text instead
// of a rendered template.
func (h *LettersHandler) HandleImproveLetter(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}
	var req api.ImproveLetterRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(req.BodyDE) == "" {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "body_de is required").WithHTTPStatus(400), h.logger)
		return
	}

	letter, err := h.composer.ComposeFromPrompt(r.Context(),
		"Improve the grammar and tone of this German letter, preserving its meaning exactly:\n\n"+req.BodyDE,
		req.TargetLanguage, userKeys(user))
	if err != nil {
		WriteError(w, asTypesError(err), h.logger)
		return
	}
	WriteSuccess(w, letterToResponse(letter))
}

// HandleSaveLetter handles POST /api/save-letter.
func (h *LettersHandler) HandleSaveLetter(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}
	var req api.SaveLetterRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.Subject == "" || req.BodyDE == "" {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "subject and body_de are required").WithHTTPStatus(400), h.logger)
		return
	}

	record := &store.LetterRecord{
		UserID:            user.ID,
		RecipientCategory: req.RecipientCategory,
		Subject:           req.Subject,
		BodyDE:            req.BodyDE,
	}
	if req.TemplateKey != "" {
		record.TemplateKey = &req.TemplateKey
	}
	if req.BodyTranslation != "" {
		record.BodyTranslation = &req.BodyTranslation
	}
	if len(req.Variables) > 0 {
		data, err := marshalVariables(req.Variables)
		if err != nil {
			WriteError(w, types.NewError(types.ErrInternalError, "failed to encode variables").WithCause(err).WithHTTPStatus(500), h.logger)
			return
		}
		record.VariablesJSON = data
	}

	saved, err := h.repo.AppendLetter(r.Context(), record)
	if err != nil {
		WriteError(w, asTypesError(err), h.logger)
		return
	}
	WriteSuccess(w, letterRecordToResponse(saved))
}

// HandleUserLetters handles GET /api/user-letters.
func (h *LettersHandler) HandleUserLetters(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}
	h.listLetters(w, r, user.ID, "")
}

// HandleLetterSearch handles GET /api/letter-search?q=....
func (h *LettersHandler) HandleLetterSearch(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}
	h.listLetters(w, r, user.ID, r.URL.Query().Get("q"))
}

func (h *LettersHandler) listLetters(w http.ResponseWriter, r *http.Request, userID, search string) {
	records, err := h.repo.ListLetters(r.Context(), userID, search, 100)
	if err != nil {
		WriteError(w, asTypesError(err), h.logger)
		return
	}
	out := make([]api.LetterRecordResponse, 0, len(records))
	for i := range records {
		out = append(out, letterRecordToResponse(&records[i]))
	}
	WriteSuccess(w, api.UserLettersResponse{Letters: out})
}

func userKeys(u *store.User) llm.UserKeys {
	return llm.UserKeys{Slot1: u.KeySlot(1), Slot2: u.KeySlot(2), Slot3: u.KeySlot(3)}
}

func letterToResponse(l *letters.Letter) api.LetterResponse {
	return api.LetterResponse{Subject: l.Subject, BodyDE: l.BodyDE, BodyTranslation: l.BodyTranslation}
}

func letterRecordToResponse(r *store.LetterRecord) api.LetterRecordResponse {
	resp := api.LetterRecordResponse{
		ID:                r.ID,
		RecipientCategory: r.RecipientCategory,
		Subject:           r.Subject,
		BodyDE:            r.BodyDE,
		CreatedAt:         r.CreatedAt,
	}
	if r.TemplateKey != nil {
		resp.TemplateKey = *r.TemplateKey
	}
	if r.BodyTranslation != nil {
		resp.BodyTranslation = *r.BodyTranslation
	}
	if len(r.VariablesJSON) > 0 {
		resp.Variables, _ = unmarshalVariables(r.VariablesJSON)
	}
	return resp
}
