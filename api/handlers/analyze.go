package handlers

import (
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/agentflow/api"
	"github.com/BaSui01/agentflow/llm"
	"github.com/BaSui01/agentflow/pipeline"
	"github.com/BaSui01/agentflow/types"
)

// AnalyzeHandler serves POST /api/analyze-file.
type AnalyzeHandler struct {
	controller   *pipeline.Controller
	maxSizeBytes int64
	logger       *zap.Logger
}

// NewAnalyzeHandler wires the handler to the pipeline Controller.
func NewAnalyzeHandler(controller *pipeline.Controller, maxSizeBytes int64, logger *zap.Logger) *AnalyzeHandler {
	return &AnalyzeHandler{controller: controller, maxSizeBytes: maxSizeBytes, logger: logger}
}

// HandleAnalyzeFile parses the multipart upload, rejects it up front if
// it is oversize or unsupported, then runs the full pipeline.
func (h *AnalyzeHandler) HandleAnalyzeFile(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxSizeBytes+(1<<20))
	if err := r.ParseMultipartForm(h.maxSizeBytes); err != nil {
		WriteError(w, types.NewError(types.ErrInputTooLarge, "upload exceeds configured maximum size").WithCause(err).WithHTTPStatus(413), h.logger)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "missing file field").WithCause(err).WithHTTPStatus(400), h.logger)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	fileBytes, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "failed to read uploaded file").WithCause(err).WithHTTPStatus(400), h.logger)
		return
	}

	if err := pipeline.ValidateUpload(fileBytes, contentType, h.maxSizeBytes); err != nil {
		WriteError(w, asTypesError(err), h.logger)
		return
	}

	language := r.FormValue("language")
	if language == "" {
		language = string(user.PreferredLanguage)
	}
	if language == "" {
		language = "en"
	}

	result, err := h.controller.Analyze(r.Context(), pipeline.AnalyzeRequest{
		UserID:    user.ID,
		FileName:  header.Filename,
		FileBytes: fileBytes,
		Mime:      contentType,
		Language:  language,
		UserKeys:  llm.UserKeys{Slot1: user.KeySlot(1), Slot2: user.KeySlot(2), Slot3: user.KeySlot(3)},
		TraceID:   requestIDFromContext(w),
	})
	if err != nil {
		WriteError(w, asTypesError(err), h.logger)
		return
	}

	WriteSuccess(w, api.AnalyzeFileResponse{
		Analysis:            sectionsToResponse(result.Analysis),
		LLMProvider:         result.LLMProvider,
		LLMModel:            result.LLMModel,
		AnalysisLanguage:    result.AnalysisLanguage,
		ExtractedTextLength: result.ExtractedTextLength,
		FileName:            result.FileName,
		FileType:            result.FileType,
	})
}

func sectionsToResponse(sections map[string]string) api.AnalysisSections {
	return api.AnalysisSections{
		Summary:          sections["summary"],
		SenderInfo:       sections["sender_info"],
		DocumentType:     sections["document_type"],
		KeyContent:       sections["key_content"],
		RequiredActions:  sections["required_actions"],
		Deadlines:        sections["deadlines"],
		Consequences:     sections["consequences"],
		UrgencyLevel:     sections["urgency_level"],
		ResponseTemplate: sections["response_template"],
		FullText:         sections["full_text"],
	}
}

// requestIDFromContext reads back the X-Request-ID header RequestID
// middleware stamped onto the response, used as the pipeline trace ID.
func requestIDFromContext(w http.ResponseWriter) string {
	return w.Header().Get("X-Request-ID")
}
