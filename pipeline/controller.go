// Package pipeline orchestrates one request end-to-end: identity
// verification, OCR extraction, LLM-backed formatting, and
// persistence. Every step runs under a layered context.Context so a
// timeout at any stage aborts the rest without partial persistence.
package pipeline

import (
	"context"
	"encoding/base64"
	"mime"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentflow/analysis"
	"github.com/BaSui01/agentflow/auth"
	"github.com/BaSui01/agentflow/internal/pool"
	"github.com/BaSui01/agentflow/llm"
	"github.com/BaSui01/agentflow/ocr"
	"github.com/BaSui01/agentflow/store"
	"github.com/BaSui01/agentflow/types"
)

// Budget holds the layered timeouts from §5/§4.7: an end-to-end hard
// cap, plus the OCR stage's own tighter cap.
type Budget struct {
	EndToEnd time.Duration // hard 60s
	OCR      time.Duration // hard 10s
}

// DefaultBudget matches the documented defaults.
func DefaultBudget() Budget {
	return Budget{EndToEnd: 60 * time.Second, OCR: 10 * time.Second}
}

// Controller is the request-scoped orchestrator bound to the
// process-wide collaborators.
type Controller struct {
	ocrEngine *ocr.Engine
	ocrPool   *pool.GoroutinePool
	formatter *analysis.Formatter
	repo      *store.Repository
	budget    Budget
	logger    *zap.Logger
}

// NewController wires a Controller from its already-constructed
// collaborators.
func NewController(ocrEngine *ocr.Engine, ocrPool *pool.GoroutinePool, formatter *analysis.Formatter, repo *store.Repository, budget Budget, logger *zap.Logger) *Controller {
	return &Controller{
		ocrEngine: ocrEngine,
		ocrPool:   ocrPool,
		formatter: formatter,
		repo:      repo,
		budget:    budget,
		logger:    logger,
	}
}

// AnalyzeRequest is the analyze-file request contract.
type AnalyzeRequest struct {
	UserID   string
	FileName string
	FileBytes []byte
	Mime     string
	Language string
	UserKeys llm.UserKeys
	TraceID  string
}

// AnalyzeResponse mirrors the analyze-file API response shape.
type AnalyzeResponse struct {
	Analysis            map[string]string
	FullText             string
	LLMProvider          string
	LLMModel             string
	AnalysisLanguage     string
	ExtractedTextLength  int
	FileName             string
	FileType             string
}

// Analyze runs the full auth->OCR->Formatter->Router->Store pipeline
// for one upload. session has already been verified by the caller
// (the HTTP layer) via auth.SessionMinter.Verify; userID is its
// subject. A 60s end-to-end hard timeout wraps every suspension
// point; on expiry nothing is persisted and AnalysisTimeout is
// returned.
func (c *Controller) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.budget.EndToEnd)
	defer cancel()

	ocrResult, err := c.runOCR(ctx, req.FileBytes, req.Mime)
	if err != nil {
		return nil, translateTimeout(ctx, err)
	}

	analysisResult, err := c.formatter.Analyze(ctx, analysis.Request{
		Language:      req.Language,
		ExtractedText: ocrResult.Text,
		Image:         imageFromUpload(ocrResult.Text, req.FileBytes, req.Mime),
		UserKeys:      req.UserKeys,
		UserID:        req.UserID,
		TraceID:       req.TraceID,
	})
	if err != nil {
		return nil, translateTimeout(ctx, err)
	}

	record := &store.AnalysisRecord{
		UserID:              req.UserID,
		FileName:            req.FileName,
		FileType:            req.Mime,
		AnalysisLanguage:    req.Language,
		LLMProviderUsed:     analysisResult.ProviderUsed,
		LLMModelUsed:        analysisResult.ModelUsed,
		ExtractedTextLength: len(ocrResult.Text),
	}
	if err := record.SetAnalysisSections(analysisResult.Sections); err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to encode analysis sections").WithCause(err).WithHTTPStatus(500)
	}

	if ctx.Err() != nil {
		return nil, types.NewError(types.ErrAnalysisTimeout, "analysis exceeded the end-to-end time budget").WithHTTPStatus(504)
	}

	if _, err := c.repo.AppendAnalysis(ctx, record); err != nil {
		return nil, err
	}

	return &AnalyzeResponse{
		Analysis:            analysisResult.Sections,
		FullText:             analysisResult.FullText,
		LLMProvider:          analysisResult.ProviderUsed,
		LLMModel:             analysisResult.ModelUsed,
		AnalysisLanguage:     req.Language,
		ExtractedTextLength:  len(ocrResult.Text),
		FileName:             req.FileName,
		FileType:             req.Mime,
	}, nil
}

// runOCR dispatches the CPU-bound extraction step onto the bounded
// worker pool, under its own tighter timeout, so it never stalls the
// cooperative I/O scheduler handling other requests.
func (c *Controller) runOCR(ctx context.Context, fileBytes []byte, mimeType string) (*ocr.Result, error) {
	ocrCtx, cancel := context.WithTimeout(ctx, c.budget.OCR)
	defer cancel()

	var result *ocr.Result
	err := c.ocrPool.SubmitWait(ocrCtx, func(taskCtx context.Context) error {
		r, extractErr := c.ocrEngine.Extract(taskCtx, fileBytes, mimeType)
		if extractErr != nil {
			return extractErr
		}
		result = r
		return nil
	})
	if err != nil {
		if ocrCtx.Err() == context.DeadlineExceeded {
			return nil, types.NewError(types.ErrOcrTimeout, "ocr extraction exceeded its time budget").WithHTTPStatus(504).WithCause(err)
		}
		if llmErr, ok := err.(*types.Error); ok {
			return nil, llmErr
		}
		return nil, types.NewError(types.ErrInternalError, "ocr extraction failed").WithCause(err).WithHTTPStatus(500)
	}
	return result, nil
}

// imageFromUpload hands the raw bytes to the Formatter as an inline
// image only when OCR produced no text and the upload is an image the
// Router's vision-capable providers can accept; PDFs never fall back
// to vision (the Formatter's caller decides, per §4.5).
func imageFromUpload(extractedText string, fileBytes []byte, mimeType string) *types.ImageContent {
	if extractedText != "" || ocr.IsPDF(mimeType) || !ocr.IsSupportedImage(mimeType) {
		return nil
	}
	return &types.ImageContent{
		Type: "base64",
		Data: base64.StdEncoding.EncodeToString(fileBytes),
		Mime: mimeType,
	}
}

// translateTimeout maps a context deadline exceeded at any layer to
// AnalysisTimeout per §4.7, without persisting partial work.
func translateTimeout(ctx context.Context, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return types.NewError(types.ErrAnalysisTimeout, "analysis exceeded the end-to-end time budget").WithHTTPStatus(504).WithCause(err)
	}
	return err
}

// AuthenticatedUser resolves a bearer session token into the caller's
// identity, then upserts/loads the backing User record. It is the
// first step of every authenticated endpoint, not just analyze-file.
func AuthenticatedUser(ctx context.Context, minter *auth.SessionMinter, repo *store.Repository, bearerToken string) (*store.User, error) {
	token := strings.TrimPrefix(bearerToken, "Bearer ")
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, types.NewError(types.ErrUnauthenticated, "missing bearer token").WithHTTPStatus(401)
	}

	claims, err := minter.Verify(token)
	if err != nil {
		return nil, err
	}

	user, err := repo.GetUser(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// ValidateUpload rejects an oversize or unsupported-MIME upload
// before any CPU-bound work begins, per §4.7 step 2.
func ValidateUpload(fileBytes []byte, contentType string, maxSizeBytes int64) error {
	if int64(len(fileBytes)) > maxSizeBytes {
		return types.NewError(types.ErrInputTooLarge, "upload exceeds configured maximum size").WithHTTPStatus(413)
	}
	parsedType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		parsedType = contentType
	}
	if !ocr.IsPDF(parsedType) && !ocr.IsSupportedImage(parsedType) {
		return types.NewError(types.ErrUnsupportedMime, "unsupported mime type: "+parsedType).WithHTTPStatus(400)
	}
	return nil
}
