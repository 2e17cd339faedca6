package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/labelscan/backend/internal/domain"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.mistral.ai/v1"
	defaultModel   = "mistral-ocr-latest"
)

// Config holds configuration for the OCR engine.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	Timeout   time.Duration
	RateLimit float64 // requests per second
}

// Engine wraps the hosted recognition capability behind the TextExtractor
// contract. One engine holds one long-lived recognition session; concurrent
// extractions serialize through it. Callers that need parallel scans hold
// independent engines.
type Engine struct {
	cfg         Config
	httpClient  *http.Client
	rateLimiter *rate.Limiter

	mu          sync.Mutex
	initialized bool
	debug       bool
}

// NewEngine creates an engine handle. The recognition session is not started
// until Initialize (or the first extraction) runs.
func NewEngine(cfg Config) *Engine {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 6.0
	}

	return &Engine{
		cfg:         cfg,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 2),
	}
}

// SetDebug enables or disables debug logging
func (e *Engine) SetDebug(debug bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.debug = debug
}

// Initialize starts the recognition session. Idempotent: a second call while
// already initialized is a no-op.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initializeLocked(ctx)
}

func (e *Engine) initializeLocked(_ context.Context) error {
	if e.initialized {
		return nil
	}

	if e.cfg.APIKey == "" {
		return fmt.Errorf("%w: OCR API key not configured", domain.ErrEngineInit)
	}

	e.httpClient = &http.Client{
		Timeout: e.cfg.Timeout,
	}
	e.initialized = true
	log.Printf("[OCR] engine initialized (model: %s)", e.cfg.Model)
	return nil
}

// Cleanup releases the recognition session and resets initialization state.
// Safe to call multiple times.
func (e *Engine) Cleanup() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return
	}

	e.httpClient.CloseIdleConnections()
	e.httpClient = nil
	e.initialized = false
	log.Printf("[OCR] engine released")
}

// ExtractText extracts the raw text from one label image, initializing the
// engine first if needed.
func (e *Engine) ExtractText(ctx context.Context, image []byte) (string, error) {
	extracted, err := e.ExtractStructured(ctx, image)
	if err != nil {
		return "", err
	}
	return extracted.Text, nil
}

// ExtractStructured extracts text plus word-level boxes and confidence.
func (e *Engine) ExtractStructured(ctx context.Context, image []byte) (*domain.ExtractedText, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.initializeLocked(ctx); err != nil {
		return nil, err
	}

	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty image payload", domain.ErrExtraction)
	}

	reqBody := ocrRequest{
		Model: e.cfg.Model,
		Document: ocrDocument{
			Type: "image_url",
			ImageURL: &ocrImageURL{
				URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(image),
			},
		},
		IncludeWords: true,
	}

	var resp *ocrResponse
	err := retry.Do(
		func() error {
			if err := e.rateLimiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}
			var reqErr error
			resp, reqErr = e.doRequest(ctx, "/ocr", &reqBody)
			return reqErr
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExtraction, err)
	}

	if len(resp.Pages) == 0 {
		return nil, fmt.Errorf("%w: no pages in recognition response", domain.ErrExtraction)
	}

	// A single label image is a single page.
	page := resp.Pages[0]
	extracted := &domain.ExtractedText{
		Text:       page.Text,
		Confidence: clamp01(page.Confidence),
		Words:      make([]domain.WordBox, 0, len(page.Words)),
	}
	for _, w := range page.Words {
		extracted.Words = append(extracted.Words, domain.WordBox{
			Text:       w.Text,
			X:          w.X,
			Y:          w.Y,
			Width:      w.Width,
			Height:     w.Height,
			Confidence: clamp01(w.Confidence),
		})
	}

	if e.debug {
		log.Printf("[OCR] extracted %d chars, %d words (confidence %.2f)",
			len(extracted.Text), len(extracted.Words), extracted.Confidence)
	}

	return extracted, nil
}

// doRequest posts one recognition request
func (e *Engine) doRequest(ctx context.Context, path string, body any) (*ocrResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		msg := string(respBody)
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error.Message != "" {
			msg = errResp.Error.Message
		}
		apiErr := fmt.Errorf("recognition error (status %d): %s", resp.StatusCode, msg)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, apiErr
		}
		return nil, retry.Unrecoverable(apiErr)
	}

	var ocrResp ocrResponse
	if err := json.Unmarshal(respBody, &ocrResp); err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("failed to unmarshal response: %w", err))
	}
	return &ocrResp, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Recognition API wire types

type ocrRequest struct {
	Model        string      `json:"model"`
	Document     ocrDocument `json:"document"`
	IncludeWords bool        `json:"include_words,omitempty"`
}

type ocrDocument struct {
	Type     string       `json:"type"` // "image_url" or "document_url"
	ImageURL *ocrImageURL `json:"image_url,omitempty"`
}

type ocrImageURL struct {
	URL string `json:"url"`
}

type ocrResponse struct {
	Model string    `json:"model"`
	Pages []ocrPage `json:"pages"`
}

type ocrPage struct {
	Index      int       `json:"index"`
	Text       string    `json:"markdown"`
	Confidence float64   `json:"confidence"`
	Words      []ocrWord `json:"words,omitempty"`
}

type ocrWord struct {
	Text       string  `json:"text"`
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Confidence float64 `json:"confidence"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Verify interface
var _ domain.TextExtractor = (*Engine)(nil)
