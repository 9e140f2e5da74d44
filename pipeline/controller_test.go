package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/BaSui01/agentflow/analysis"
	"github.com/BaSui01/agentflow/auth"
	"github.com/BaSui01/agentflow/internal/pool"
	"github.com/BaSui01/agentflow/llm"
	"github.com/BaSui01/agentflow/ocr"
	"github.com/BaSui01/agentflow/store"
	"github.com/BaSui01/agentflow/types"
)

type fakeProvider struct{ text string }

func (p *fakeProvider) Name() string               { return "gemini" }
func (p *fakeProvider) SupportsVision(string) bool { return true }
func (p *fakeProvider) ListModels(context.Context) ([]llm.Model, error) {
	return nil, nil
}
func (p *fakeProvider) HealthCheck(context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true}, nil
}
func (p *fakeProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{Text: p.text, Model: req.Model, Provider: "gemini"}, nil
}

func newTestController(t *testing.T, responseText string) (*Controller, *store.Repository) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&store.User{}, &store.AnalysisRecord{}, &store.LetterRecord{}, &store.AppText{}))
	repo := store.NewRepository(db, zap.NewNop())

	router := llm.NewRouter(llm.RouterConfig{
		SlotProviders: [3]string{"gemini", "openai", "claude"},
		SystemKeys:    map[string]string{"gemini": "system-key"},
		DefaultModels: map[string]string{"gemini": "gemini-2.0-flash"},
		SoftTimeout:   2 * time.Second,
		HardTimeout:   5 * time.Second,
	}, map[string]llm.ProviderFactory{
		"gemini": func(string, string) llm.Provider { return &fakeProvider{text: responseText} },
	}, nil)

	formatter := analysis.NewFormatter(router)
	ocrEngine := ocr.NewEngine(ocr.Config{MaxUploadBytes: 10 << 20})
	ocrPool := pool.NewGoroutinePool(pool.DefaultGoroutinePoolConfig())

	return NewController(ocrEngine, ocrPool, formatter, repo, DefaultBudget(), zap.NewNop()), repo
}

const fakeModelAnswer = `Summary: a routine notice.
Sender Info: the sender is a local authority.
Document Type: official notice.
Key Content: nothing of note.
Required Actions: none.
Deadlines: none.
Consequences: none.
Urgency Level: low
Response Template: no reply required.`

func TestController_Analyze_PDFWithNoTextLayer_ReturnsAbsenceSummary(t *testing.T) {
	controller, repo := newTestController(t, fakeModelAnswer)

	_, err := repo.UpsertUser(context.Background(), &store.User{ID: "google_abc", Email: "a@example.com", OAuthProvider: store.ProviderGoogle})
	require.NoError(t, err)

	resp, err := controller.Analyze(context.Background(), AnalyzeRequest{
		UserID:    "google_abc",
		FileName:  "scan.pdf",
		FileBytes: []byte("not a real pdf"),
		Mime:      "application/pdf",
		Language:  "en",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, resp.ExtractedTextLength)
	assert.Equal(t, "No text could be extracted from the document.", resp.Analysis["summary"])
}

func TestController_Analyze_UnsupportedMime(t *testing.T) {
	controller, _ := newTestController(t, fakeModelAnswer)

	_, err := controller.Analyze(context.Background(), AnalyzeRequest{
		UserID:    "google_abc",
		FileName:  "doc.exe",
		FileBytes: []byte("whatever"),
		Mime:      "application/octet-stream",
		Language:  "en",
	})
	require.Error(t, err)
	analysisErr, ok := err.(*types.Error)
	require.True(t, ok)
	assert.Equal(t, types.ErrUnsupportedMime, analysisErr.Code)
}

func TestController_Analyze_OversizeUpload(t *testing.T) {
	controller, _ := newTestController(t, fakeModelAnswer)
	controller.ocrEngine = ocr.NewEngine(ocr.Config{MaxUploadBytes: 4})

	_, err := controller.Analyze(context.Background(), AnalyzeRequest{
		UserID:    "google_abc",
		FileName:  "scan.pdf",
		FileBytes: []byte("way too big for the configured limit"),
		Mime:      "application/pdf",
		Language:  "en",
	})
	require.Error(t, err)
	analysisErr, ok := err.(*types.Error)
	require.True(t, ok)
	assert.Equal(t, types.ErrInputTooLarge, analysisErr.Code)
}

func TestValidateUpload_RejectsOversize(t *testing.T) {
	err := ValidateUpload(make([]byte, 100), "image/png", 10)
	require.Error(t, err)
	assert.Equal(t, types.ErrInputTooLarge, err.(*types.Error).Code)
}

func TestValidateUpload_RejectsUnsupportedMime(t *testing.T) {
	err := ValidateUpload([]byte("x"), "application/zip", 1000)
	require.Error(t, err)
	assert.Equal(t, types.ErrUnsupportedMime, err.(*types.Error).Code)
}

func TestValidateUpload_AcceptsSupportedImage(t *testing.T) {
	err := ValidateUpload([]byte("x"), "image/png", 1000)
	require.NoError(t, err)
}

func TestAuthenticatedUser_RejectsMissingToken(t *testing.T) {
	minter := auth.NewSessionMinter("secret", time.Hour)
	_, repo := newTestController(t, fakeModelAnswer)

	_, err := AuthenticatedUser(context.Background(), minter, repo, "")
	require.Error(t, err)
	assert.Equal(t, types.ErrUnauthenticated, err.(*types.Error).Code)
}

func TestAuthenticatedUser_ResolvesVerifiedSession(t *testing.T) {
	minter := auth.NewSessionMinter("secret", time.Hour)
	_, repo := newTestController(t, fakeModelAnswer)

	_, err := repo.UpsertUser(context.Background(), &store.User{ID: "google_xyz", Email: "xyz@example.com", OAuthProvider: store.ProviderGoogle})
	require.NoError(t, err)

	token, err := minter.Mint(&auth.Identity{ID: "google_xyz", Email: "xyz@example.com", Provider: auth.ProviderGoogle})
	require.NoError(t, err)

	user, err := AuthenticatedUser(context.Background(), minter, repo, "Bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, "google_xyz", user.ID)
}
