// Package gemini implements pkg/llm's Provider against Google's Gemini
// generateContent API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/javajedis/legalconnect-ai/pkg/llm"
	"github.com/javajedis/legalconnect-ai/pkg/logger"
)

const (
	// DefaultModel is the default Gemini generation model.
	DefaultModel = "gemini-2.0-flash"

	// DefaultBaseURL is the Gemini API base URL.
	DefaultBaseURL = "https://generativelanguage.googleapis.com"

	// DefaultMaxRetries is the number of retry attempts for failed requests.
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the initial delay between retry attempts.
	DefaultRetryDelay = 1 * time.Second

	// DefaultMaxRetryDelay caps the exponential backoff delay.
	DefaultMaxRetryDelay = 10 * time.Second
)

// Provider wraps Gemini's generateContent API.
type Provider struct {
	baseURL       string
	apiKey        string
	model         string
	maxRetries    int
	retryDelay    time.Duration
	maxRetryDelay time.Duration
	httpClient    *http.Client
	logger        *slog.Logger
}

// Config holds configuration for the Gemini provider.
type Config struct {
	// APIKey authenticates against the Gemini API. Required.
	APIKey string

	// BaseURL overrides the Gemini API URL. Defaults to DefaultBaseURL.
	BaseURL string

	// Model is the generation model. Defaults to DefaultModel.
	Model string

	// MaxRetries is the number of retry attempts for failed requests.
	MaxRetries int

	// RetryDelay is the initial delay between retries, doubled each attempt.
	RetryDelay time.Duration

	// MaxRetryDelay caps the backoff delay.
	MaxRetryDelay time.Duration

	// Logger receives request diagnostics. Defaults to a no-op logger.
	Logger *slog.Logger
}

// New creates a Gemini generation provider.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: api key is required", llm.ErrGeneration)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	maxRetryDelay := cfg.MaxRetryDelay
	if maxRetryDelay <= 0 {
		maxRetryDelay = DefaultMaxRetryDelay
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Provider{
		baseURL:       baseURL,
		apiKey:        cfg.APIKey,
		model:         model,
		maxRetries:    maxRetries,
		retryDelay:    retryDelay,
		maxRetryDelay: maxRetryDelay,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: log,
	}, nil
}

// Generate produces a completion for the request, retrying transient
// failures with exponential backoff.
func (p *Provider) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	body := generateContentRequest{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: req.Prompt}}},
		},
		GenerationConfig: generationConfig{
			Temperature:     req.Temperature,
			TopP:            req.TopP,
			TopK:            req.TopK,
			MaxOutputTokens: req.MaxTokens,
		},
	}
	if req.System != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: req.System}}}
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return llm.Response{}, fmt.Errorf("%w: marshaling request: %v", llm.ErrGeneration, err)
	}

	var lastErr error
	delay := p.retryDelay
	for attempt := 0; attempt < p.maxRetries; attempt++ {
		if attempt > 0 {
			p.logger.Debug("retrying generation request",
				"attempt", attempt+1,
				"delay", delay)
			select {
			case <-ctx.Done():
				return llm.Response{}, fmt.Errorf("%w: %v", llm.ErrGeneration, ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
			if delay > p.maxRetryDelay {
				delay = p.maxRetryDelay
			}
		}

		resp, err := p.generateOnce(ctx, jsonBody)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}

	return llm.Response{}, lastErr
}

func (p *Provider) generateOnce(ctx context.Context, jsonBody []byte) (llm.Response, error) {
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", p.baseURL, p.model)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return llm.Response{}, fmt.Errorf("%w: creating request: %v", llm.ErrGeneration, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return llm.Response{}, fmt.Errorf("%w: sending request: %v", llm.ErrGeneration, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return llm.Response{}, fmt.Errorf("%w: gemini returned status %d: %s", llm.ErrGeneration, resp.StatusCode, string(respBody))
	}

	var genResp generateContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return llm.Response{}, fmt.Errorf("%w: decoding response: %v", llm.ErrGeneration, err)
	}

	if len(genResp.Candidates) == 0 {
		return llm.Response{}, fmt.Errorf("%w: %w", llm.ErrGeneration, llm.ErrEmptyResponse)
	}

	var sb strings.Builder
	for _, prt := range genResp.Candidates[0].Content.Parts {
		sb.WriteString(prt.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return llm.Response{}, fmt.Errorf("%w: %w", llm.ErrGeneration, llm.ErrEmptyResponse)
	}

	return llm.Response{Text: text, Model: p.model}, nil
}

// Close releases resources held by the provider.
func (p *Provider) Close() error {
	return nil
}

var _ llm.Provider = (*Provider)(nil)
