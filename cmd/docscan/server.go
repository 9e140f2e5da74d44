// Package main wires docscan's collaborators and HTTP surface together.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/agentflow/analysis"
	"github.com/BaSui01/agentflow/api/handlers"
	"github.com/BaSui01/agentflow/auth"
	"github.com/BaSui01/agentflow/config"
	"github.com/BaSui01/agentflow/internal/cache"
	"github.com/BaSui01/agentflow/internal/metrics"
	"github.com/BaSui01/agentflow/internal/pool"
	"github.com/BaSui01/agentflow/internal/server"
	"github.com/BaSui01/agentflow/letters"
	"github.com/BaSui01/agentflow/llm"
	"github.com/BaSui01/agentflow/ocr"
	"github.com/BaSui01/agentflow/pipeline"
	"github.com/BaSui01/agentflow/providers"
	claude "github.com/BaSui01/agentflow/providers/anthropic"
	"github.com/BaSui01/agentflow/providers/gemini"
	"github.com/BaSui01/agentflow/providers/openai"
	"github.com/BaSui01/agentflow/store"
)

// Server is the docscan process: one immutable config, one HTTP
// listener, one metrics listener, and the pipeline collaborators
// built from that config at startup.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB

	httpManager    *server.Manager
	metricsManager *server.Manager

	healthHandler  *handlers.HealthHandler
	authHandler    *handlers.AuthHandler
	profileHandler *handlers.ProfileHandler
	analyzeHandler *handlers.AnalyzeHandler
	lettersHandler *handlers.LettersHandler
	statusHandler  *handlers.StatusHandler

	sessionMinter *auth.SessionMinter
	repo          *store.Repository
	sessionCache  *cache.Manager

	metricsCollector *metrics.Collector

	wg sync.WaitGroup
}

// NewServer builds a Server bound to an already-loaded config, logger
// and database connection. db may be nil only for commands that never
// call Start (e.g. version/help); Start fails fast otherwise.
func NewServer(cfg *config.Config, logger *zap.Logger, db *gorm.DB) *Server {
	return &Server{cfg: cfg, logger: logger, db: db}
}

// Start wires every collaborator from cfg, then brings up the HTTP
// and metrics listeners. Both listeners run in the background;
// WaitForShutdown blocks until a termination signal arrives.
func (s *Server) Start() error {
	if s.db == nil {
		return fmt.Errorf("database connection is required to start the server")
	}

	s.metricsCollector = metrics.NewCollector("docscan", s.logger)

	if err := s.initHandlers(); err != nil {
		return fmt.Errorf("failed to init handlers: %w", err)
	}

	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("all servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
	)
	return nil
}

// initHandlers constructs the domain collaborators (store, OCR
// engine, LLM router, analysis formatter, letter composer, auth
// verifiers) from cfg and binds the HTTP handlers to them.
func (s *Server) initHandlers() error {
	s.repo = store.NewRepository(s.db, s.logger)

	ocrEngine := ocr.NewEngine(ocr.Config{
		TesseractPath:   s.cfg.OCR.TesseractPath,
		LanguagePackDir: s.cfg.OCR.LanguagePackDir,
		Languages:       s.cfg.OCR.Languages,
		Timeout:         s.cfg.OCR.Timeout,
		MaxUploadBytes:  s.cfg.Upload.MaxSizeBytes,
	})
	tesseract := ocr.NewTesseract(s.cfg.OCR.TesseractPath, s.cfg.OCR.Languages, s.cfg.OCR.Timeout)
	ocrAvailable := tesseract.Available()
	ocrVersion := ""
	if ocrAvailable {
		ocrVersion = tesseract.Version(context.Background())
	}

	ocrPool := pool.NewGoroutinePool(pool.DefaultGoroutinePoolConfig())

	geminiFactory := func(apiKey, model string) llm.Provider {
		return gemini.NewGeminiProvider(providers.GeminiConfig{
			APIKey: apiKey, BaseURL: s.cfg.LLM.Gemini.BaseURL, Model: model,
		}, s.logger)
	}
	openaiFactory := func(apiKey, model string) llm.Provider {
		return openai.NewOpenAIProvider(providers.OpenAIConfig{
			APIKey: apiKey, BaseURL: s.cfg.LLM.OpenAI.BaseURL, Model: model,
		}, s.logger)
	}
	claudeFactory := func(apiKey, model string) llm.Provider {
		return claude.NewClaudeProvider(providers.ClaudeConfig{
			APIKey: apiKey, BaseURL: s.cfg.LLM.Claude.BaseURL, Model: model,
		}, s.logger)
	}

	router := llm.NewRouter(llm.RouterConfig{
		SlotProviders: s.cfg.LLM.SlotProviders,
		SystemKeys:    s.cfg.LLM.SystemKeys,
		DefaultModels: s.cfg.LLM.DefaultModels,
		SoftTimeout:   s.cfg.LLM.SoftTimeout,
		HardTimeout:   s.cfg.LLM.HardTimeout,
	}, map[string]llm.ProviderFactory{
		"gemini": geminiFactory,
		"openai": openaiFactory,
		"claude": claudeFactory,
	}, s.logger)

	// The registry holds one system-key-backed instance per family so
	// /api/modern-llm-status can run a live reachability probe without
	// going through the router's per-request key resolution.
	registry := llm.NewProviderRegistry()
	familyFactories := map[string]llm.ProviderFactory{
		"gemini": geminiFactory,
		"openai": openaiFactory,
		"claude": claudeFactory,
	}
	for _, family := range s.cfg.LLM.SlotProviders {
		systemKey := s.cfg.LLM.SystemKeys[family]
		factory, ok := familyFactories[family]
		if systemKey == "" || !ok {
			continue
		}
		registry.Register(family, factory(systemKey, s.cfg.LLM.DefaultModels[family]))
	}

	formatter := analysis.NewFormatter(router)
	controller := pipeline.NewController(ocrEngine, ocrPool, formatter, s.repo, pipeline.DefaultBudget(), s.logger)

	catalog, err := loadLetterCatalog(s.cfg.Letters)
	if err != nil {
		return fmt.Errorf("failed to load letter catalog: %w", err)
	}
	composer := letters.NewComposer(router, catalog)

	s.sessionMinter = auth.NewSessionMinter(s.cfg.Session.SigningSecret, s.cfg.Session.TTL)

	if s.cfg.Cache.Addr != "" {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.Addr = s.cfg.Cache.Addr
		cacheCfg.Password = s.cfg.Cache.Password
		cacheCfg.DB = s.cfg.Cache.DB
		cacheMgr, err := cache.NewManager(cacheCfg, s.logger)
		if err != nil {
			s.logger.Warn("session revocation cache unavailable", zap.Error(err))
		} else {
			s.sessionCache = cacheMgr
		}
	}

	var googleVerifier *auth.GoogleVerifier
	if s.cfg.Auth.GoogleClientID != "" {
		googleVerifier, err = auth.NewGoogleVerifier(context.Background(), s.cfg.Auth.GoogleClientID)
		if err != nil {
			s.logger.Warn("google sign-in unavailable", zap.Error(err))
			googleVerifier = nil
		}
	}
	var telegramVerifier *auth.TelegramVerifier
	if s.cfg.Auth.TelegramBotSecret != "" {
		telegramVerifier = auth.NewTelegramVerifier(s.cfg.Auth.TelegramBotSecret)
	}

	s.healthHandler = handlers.NewHealthHandler(s.logger)
	s.authHandler = handlers.NewAuthHandler(googleVerifier, telegramVerifier, s.sessionMinter, s.repo, s.sessionCache, s.logger)
	s.profileHandler = handlers.NewProfileHandler(s.repo, s.logger)
	s.analyzeHandler = handlers.NewAnalyzeHandler(controller, s.cfg.Upload.MaxSizeBytes, s.logger)
	s.lettersHandler = handlers.NewLettersHandler(composer, catalog, s.repo, s.logger)
	s.statusHandler = handlers.NewStatusHandler(s.db, ocrEngine, ocrAvailable, ocrVersion, telegramVerifier != nil, s.cfg.LLM, registry, s.logger)

	s.logger.Info("handlers initialized")
	return nil
}

func loadLetterCatalog(cfg config.LettersConfig) (*letters.MapCatalog, error) {
	if cfg.TemplatesPath == "" {
		return letters.LoadDefaultCatalog()
	}
	data, err := os.ReadFile(cfg.TemplatesPath)
	if err != nil {
		return nil, err
	}
	return letters.LoadMapCatalog(data)
}

// startHTTPServer mounts every docscan route on one mux, wraps it in
// the ambient middleware chain, and wraps the authenticated subset in
// SessionAuth — catalog reads, health/status, and the two auth-verify
// endpoints stay open.
func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("/version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	mux.HandleFunc("/api/auth/google/verify", s.authHandler.HandleGoogleVerify)
	mux.HandleFunc("/api/auth/telegram/verify", s.authHandler.HandleTelegramVerify)
	mux.HandleFunc("/api/auth/logout", s.authHandler.HandleLogout)

	mux.HandleFunc("/api/health", s.statusHandler.HandleHealth)
	mux.HandleFunc("/api/ocr-status", s.statusHandler.HandleOCRStatus)
	mux.HandleFunc("/api/modern-llm-status", s.statusHandler.HandleModernLLMStatus)

	mux.HandleFunc("/api/letter-categories", s.lettersHandler.HandleCategories)
	mux.HandleFunc("/api/letter-templates/{category}", func(w http.ResponseWriter, r *http.Request) {
		s.lettersHandler.HandleTemplatesInCategory(w, r, r.PathValue("category"))
	})
	mux.HandleFunc("/api/letter-template/{category}/{key}", func(w http.ResponseWriter, r *http.Request) {
		s.lettersHandler.HandleTemplate(w, r, r.PathValue("category"), r.PathValue("key"))
	})

	mux.HandleFunc("/api/profile", s.profileHandler.HandleGetProfile)
	mux.HandleFunc("/api/api-keys", s.profileHandler.HandleSetAPIKeys)
	mux.HandleFunc("/api/quick-gemini-setup", s.profileHandler.HandleQuickGeminiSetup)
	mux.HandleFunc("/api/auto-generate-gemini-key", s.profileHandler.HandleAutoGenerateGeminiKey)

	mux.HandleFunc("/api/analyze-file", s.analyzeHandler.HandleAnalyzeFile)

	mux.HandleFunc("/api/generate-letter", s.lettersHandler.HandleGenerateLetter)
	mux.HandleFunc("/api/generate-letter-template", s.lettersHandler.HandleGenerateLetterTemplate)
	mux.HandleFunc("/api/improve-letter", s.lettersHandler.HandleImproveLetter)
	mux.HandleFunc("/api/save-letter", s.lettersHandler.HandleSaveLetter)
	mux.HandleFunc("/api/generate-letter-pdf", s.lettersHandler.HandleGenerateLetterPDF)
	mux.HandleFunc("/api/user-letters", s.lettersHandler.HandleUserLetters)
	mux.HandleFunc("/api/letter-search", s.lettersHandler.HandleLetterSearch)

	authSkipPaths := []string{
		"/health", "/healthz", "/ready", "/readyz", "/version",
		"/api/auth/google/verify", "/api/auth/telegram/verify",
		"/api/health", "/api/ocr-status", "/api/modern-llm-status",
		"/api/letter-categories",
		"/api/letter-templates/", "/api/letter-template/",
	}

	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		RequestLogger(s.logger),
		SecurityHeaders(),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		OTelTracing(),
		MetricsMiddleware(s.metricsCollector),
		RateLimiter(context.Background(), s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger),
		SessionAuth(s.sessionMinter, s.repo, s.sessionCache, authSkipPaths, s.logger),
	)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)
	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("http server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// startMetricsServer exposes Prometheus metrics on a separate port so
// scraping is never gated by the API's rate limiter or auth chain.
func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)
	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// WaitForShutdown blocks until the HTTP manager observes a
// termination signal, then runs Shutdown.
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown tears down both listeners and waits for in-flight
// background work tracked on s.wg.
func (s *Server) Shutdown() {
	s.logger.Info("starting graceful shutdown")
	ctx := context.Background()

	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("http server shutdown error", zap.Error(err))
		}
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("metrics server shutdown error", zap.Error(err))
		}
	}
	if s.sessionCache != nil {
		if err := s.sessionCache.Close(); err != nil {
			s.logger.Error("session cache shutdown error", zap.Error(err))
		}
	}

	s.wg.Wait()
	s.logger.Info("graceful shutdown completed")
}
