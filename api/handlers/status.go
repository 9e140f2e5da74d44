package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/agentflow/api"
	"github.com/BaSui01/agentflow/config"
	"github.com/BaSui01/agentflow/llm"
	"github.com/BaSui01/agentflow/ocr"
	"github.com/BaSui01/agentflow/store"
)

// StatusHandler serves the docscan-domain observability endpoints —
// distinct from the generic HealthHandler's /health, /healthz,
// /ready, /version, which report process liveness rather than this
// service's domain state.
type StatusHandler struct {
	db             *gorm.DB
	ocrEngine      *ocr.Engine
	ocrAvailable   bool
	ocrVersion     string
	telegramBotSet bool
	llmCfg         config.LLMConfig
	registry       *llm.ProviderRegistry
	logger         *zap.Logger
}

// NewStatusHandler wires the handler to its collaborators. ocrAvailable
// and ocrVersion are sampled once at startup (an external tesseract
// binary's presence does not change while the process runs). registry
// holds the system-key-backed provider instance for each family that
// has one, used to probe live reachability for HandleModernLLMStatus.
func NewStatusHandler(db *gorm.DB, ocrEngine *ocr.Engine, ocrAvailable bool, ocrVersion string, telegramBotSet bool, llmCfg config.LLMConfig, registry *llm.ProviderRegistry, logger *zap.Logger) *StatusHandler {
	return &StatusHandler{
		db:             db,
		ocrEngine:      ocrEngine,
		ocrAvailable:   ocrAvailable,
		ocrVersion:     ocrVersion,
		telegramBotSet: telegramBotSet,
		llmCfg:         llmCfg,
		registry:       registry,
		logger:         logger,
	}
}

// HandleHealth handles GET /api/health.
func (h *StatusHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := "ok"
	dbStatus := "ok"
	sqlDB, err := h.db.DB()
	if err != nil || sqlDB.PingContext(ctx) != nil {
		dbStatus = "unavailable"
		status = "degraded"
	}

	var usersCount, analysesCount int64
	h.db.WithContext(ctx).Model(&store.User{}).Count(&usersCount)
	h.db.WithContext(ctx).Model(&store.AnalysisRecord{}).Count(&analysesCount)

	WriteSuccess(w, api.HealthResponse{
		Status:          status,
		Database:        dbStatus,
		UsersCount:      usersCount,
		AnalysesCount:   analysesCount,
		TelegramMiniApp: h.telegramBotSet,
	})
}

// HandleOCRStatus handles GET /api/ocr-status.
func (h *StatusHandler) HandleOCRStatus(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, api.OCRStatusResponse{
		ServiceName:        "docscan-ocr",
		PrimaryMethod:      string(ocr.MethodTesseract),
		TesseractAvailable: h.ocrAvailable,
		TesseractVersion:   h.ocrVersion,
		OptimizedForSpeed:  true,
		ProductionReady:    h.ocrAvailable,
		Methods: []api.OCRMethod{
			{Name: string(ocr.MethodDirectPDF), Description: "direct text-layer extraction from PDFs", Available: true},
			{Name: string(ocr.MethodTesseract), Description: "tesseract OCR over a single-pass grayscale raster", Available: h.ocrAvailable},
		},
		Languages: ocrLanguageNames(),
	})
}

// HandleModernLLMStatus handles GET /api/modern-llm-status. Each family
// with a system key gets a live reachability probe against its
// registry-held provider instance; families without one are reported
// unhealthy since there is no key to probe with.
func (h *StatusHandler) HandleModernLLMStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	providers := make([]api.LLMProviderStatus, 0, len(h.llmCfg.SlotProviders))
	seen := make(map[string]bool)
	for _, family := range h.llmCfg.SlotProviders {
		if family == "" || seen[family] {
			continue
		}
		seen[family] = true
		providers = append(providers, api.LLMProviderStatus{
			Name:         family,
			Modern:       false,
			Model:        h.llmCfg.DefaultModels[family],
			HasSystemKey: h.llmCfg.SystemKeys[family] != "",
			Healthy:      h.probeFamily(ctx, family),
		})
	}
	WriteSuccess(w, api.LLMStatusResponse{Status: "ok", Modern: false, Providers: providers})
}

func (h *StatusHandler) probeFamily(ctx context.Context, family string) bool {
	if h.registry == nil {
		return false
	}
	provider, ok := h.registry.Get(family)
	if !ok {
		return false
	}
	status, err := provider.HealthCheck(ctx)
	if err != nil {
		h.logger.Warn("llm provider health check failed", zap.String("family", family), zap.Error(err))
		return false
	}
	return status.Healthy
}

func ocrLanguageNames() []string {
	return []string{"deu", "eng", "rus", "ukr"}
}
