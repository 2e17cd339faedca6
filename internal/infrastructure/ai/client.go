package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labelscan/backend/internal/domain"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
)

// Config holds configuration for the AI client.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	Timeout   time.Duration
	RateLimit float64 // requests per second
}

// ChatRequest is one structured-output chat call. JSONResponse requests a
// strict JSON-object response from the service.
type ChatRequest struct {
	System       string
	User         string
	Temperature  float64
	MaxTokens    int
	JSONResponse bool
}

// ChatResult is the decoded response content of a chat call.
type ChatResult struct {
	Content string
	Model   string
}

// Client talks to an OpenAI-compatible chat completion API.
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	debug       bool
}

// NewClient creates a new AI client
func NewClient(cfg Config) *Client {
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
		cfg.RateLimit = 2.0
	}

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 4),
	}
}

// SetDebug enables or disables debug logging
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

// Configured reports whether a credential is present. The ingredient parser
// uses this to gate its AI tier before dialing.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Chat sends one chat completion request and returns the message content.
// Failures are wrapped in the AI error taxonomy so callers can distinguish
// credential, rate-limit, quota, and malformed-response conditions.
func (c *Client) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("%w: no API key configured", domain.ErrAICredentialMissing)
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", domain.ErrAIService, err)
	}

	wireReq := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSONResponse {
		wireReq.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(wireReq)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", domain.ErrAIService, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrAIService, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAIService, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", domain.ErrAIService, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(resp.StatusCode, body)
	}

	var wireResp chatCompletionResponse
	if err := json.Unmarshal(body, &wireResp); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAIMalformedResponse, err)
	}
	if len(wireResp.Choices) == 0 || strings.TrimSpace(wireResp.Choices[0].Message.Content) == "" {
		return nil, fmt.Errorf("%w: empty completion", domain.ErrAIMalformedResponse)
	}

	if c.debug {
		log.Printf("[AI] chat completed in %s (model %s, %d prompt / %d completion tokens)",
			time.Since(start).Round(time.Millisecond), wireResp.Model,
			wireResp.Usage.PromptTokens, wireResp.Usage.CompletionTokens)
	}

	return &ChatResult{
		Content: wireResp.Choices[0].Message.Content,
		Model:   wireResp.Model,
	}, nil
}

// statusError maps API status codes onto the domain error taxonomy
func (c *Client) statusError(status int, body []byte) error {
	var errResp apiErrorResponse
	msg := string(body)
	code := ""
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		msg = errResp.Error.Message
		code = errResp.Error.Code
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrAICredentialMissing, msg)
	case status == http.StatusPaymentRequired || code == "insufficient_quota":
		return fmt.Errorf("%w: %s", domain.ErrAIQuotaExceeded, msg)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrAIRateLimited, msg)
	default:
		return fmt.Errorf("%w: status %d: %s", domain.ErrAIService, status, msg)
	}
}

// OpenAI-compatible wire types

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"` // "json_object"
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}
