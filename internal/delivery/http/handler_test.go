package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/labelscan/backend/config"
	"github.com/labelscan/backend/internal/domain"
	"github.com/labelscan/backend/internal/infrastructure/ai"
	"github.com/labelscan/backend/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) Initialize(ctx context.Context) error { return nil }

func (f *fakeExtractor) ExtractText(ctx context.Context, image []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func (f *fakeExtractor) ExtractStructured(ctx context.Context, image []byte) (*domain.ExtractedText, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ExtractedText{Text: f.text, Confidence: 0.95}, nil
}

func (f *fakeExtractor) Cleanup() {}

type fakeRegistry struct {
	records []domain.CompoundRecord
}

func (f *fakeRegistry) FetchAll(ctx context.Context) ([]domain.CompoundRecord, error) {
	return f.records, nil
}

type fakeChat struct {
	content string
	err     error
}

func (f *fakeChat) Chat(ctx context.Context, req *ai.ChatRequest) (*ai.ChatResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &ai.ChatResult{Content: f.content}, nil
}

func (f *fakeChat) Configured() bool { return true }

type testEnv struct {
	router  *gin.Engine
	matcher *usecase.Matcher
}

func newTestEnv(t *testing.T, extractor domain.TextExtractor, chat *fakeChat, loadRegistry bool) *testEnv {
	t.Helper()

	matcher := usecase.NewMatcher(&fakeRegistry{records: []domain.CompoundRecord{{
		ID:           "comp-creatine",
		Name:         "Creatine Monohydrate",
		Synonyms:     []string{"creatine"},
		Category:     "supplement",
		SafetyRating: domain.SafetyRatingA,
	}}}, usecase.MatcherConfig{})
	if loadRegistry {
		require.NoError(t, matcher.Load(context.Background()))
	}

	scanner := usecase.NewScanner(
		extractor,
		usecase.NewIngredientParser(nil),
		matcher,
		usecase.NewSafetyAnalyzer(domain.DefaultSafetyPolicy()),
	)

	researcher, err := usecase.NewResearcher(chat, nil, time.Hour)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Server.Environment = "test"
	cfg.Server.AllowedOrigins = []string{"http://localhost:3000"}

	return &testEnv{
		router:  SetupRouter(cfg, NewHandler(scanner, researcher, matcher)),
		matcher: matcher,
	}
}

func multipartImage(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", "label.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("jpeg-bytes"))
	require.NoError(t, err)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())

	return body, writer.FormDataContentType()
}

func TestHealthCheck(t *testing.T) {
	t.Run("healthy once the registry is loaded", func(t *testing.T) {
		env := newTestEnv(t, &fakeExtractor{}, &fakeChat{}, true)

		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "healthy", resp["status"])
		assert.Equal(t, true, resp["registry_loaded"])
	})

	t.Run("degraded without a registry snapshot", func(t *testing.T) {
		env := newTestEnv(t, &fakeExtractor{}, &fakeChat{}, false)

		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "degraded", resp["status"])
	})
}

func TestScanEndpoint(t *testing.T) {
	t.Run("returns a full scan result", func(t *testing.T) {
		env := newTestEnv(t, &fakeExtractor{text: "Creatine Monohydrate 5000mg"}, &fakeChat{}, true)

		body, contentType := multipartImage(t, map[string]string{"scan_type": "supplement"})
		req := httptest.NewRequest("POST", "/api/v1/scan", body)
		req.Header.Set("Content-Type", contentType)

		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var result domain.ScanResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.True(t, strings.HasPrefix(result.ScanID, "scan_"))
		assert.Len(t, result.Ingredients, 1)
		assert.Len(t, result.Matches, 1)
		assert.Equal(t, "Creatine Monohydrate 5000mg", result.ExtractedText)
	})

	t.Run("missing image file is a bad request", func(t *testing.T) {
		env := newTestEnv(t, &fakeExtractor{}, &fakeChat{}, true)

		req := httptest.NewRequest("POST", "/api/v1/scan", strings.NewReader("{}"))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid scan_type is a bad request", func(t *testing.T) {
		env := newTestEnv(t, &fakeExtractor{text: "x"}, &fakeChat{}, true)

		body, contentType := multipartImage(t, map[string]string{"scan_type": "beverage"})
		req := httptest.NewRequest("POST", "/api/v1/scan", body)
		req.Header.Set("Content-Type", contentType)

		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("extraction failure is unprocessable", func(t *testing.T) {
		env := newTestEnv(t, &fakeExtractor{err: errors.New("engine crashed")}, &fakeChat{}, true)

		body, contentType := multipartImage(t, nil)
		req := httptest.NewRequest("POST", "/api/v1/scan", body)
		req.Header.Set("Content-Type", contentType)

		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestResearchEndpoint(t *testing.T) {
	researchJSON := `{"name":"Creatine","category":"supplement","description":"Well studied.","confidence_score":0.9}`

	t.Run("returns a research profile", func(t *testing.T) {
		env := newTestEnv(t, &fakeExtractor{}, &fakeChat{content: researchJSON}, true)

		req := httptest.NewRequest("POST", "/api/v1/research",
			strings.NewReader(`{"name": "Creatine", "known_attributes": {"category": "supplement"}}`))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var result domain.AIResearchResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.Equal(t, "Creatine", result.Name)
		assert.Equal(t, 0.9, result.ConfidenceScore)
	})

	t.Run("missing name is a bad request", func(t *testing.T) {
		env := newTestEnv(t, &fakeExtractor{}, &fakeChat{}, true)

		req := httptest.NewRequest("POST", "/api/v1/research", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("AI error taxonomy maps to HTTP statuses", func(t *testing.T) {
		cases := []struct {
			err  error
			want int
		}{
			{fmt.Errorf("%w: no key", domain.ErrAICredentialMissing), http.StatusUnauthorized},
			{fmt.Errorf("%w: broke", domain.ErrAIQuotaExceeded), http.StatusPaymentRequired},
			{fmt.Errorf("%w: slow down", domain.ErrAIRateLimited), http.StatusTooManyRequests},
			{fmt.Errorf("%w: boom", domain.ErrAIService), http.StatusBadGateway},
		}

		for _, tc := range cases {
			env := newTestEnv(t, &fakeExtractor{}, &fakeChat{err: tc.err}, true)

			req := httptest.NewRequest("POST", "/api/v1/research", strings.NewReader(`{"name": "Creatine"}`))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code, "error %v", tc.err)
		}
	})
}

func TestIsAllowedOrigin(t *testing.T) {
	allowed := []string{"http://localhost:3000", "https://app.labelscan.*"}

	assert.True(t, isAllowedOrigin("http://localhost:3000", allowed))
	assert.True(t, isAllowedOrigin("https://app.labelscan.io", allowed))
	assert.False(t, isAllowedOrigin("https://evil.example.com", allowed))
	assert.False(t, isAllowedOrigin("", allowed))
}
