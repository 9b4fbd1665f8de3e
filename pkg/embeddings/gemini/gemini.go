// Package gemini implements pkg/embeddings' Embedder against Google's
// Gemini embedding API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/javajedis/legalconnect-ai/pkg/embeddings"
	"github.com/javajedis/legalconnect-ai/pkg/logger"
)

const (
	// DefaultModel is the default Gemini embedding model.
	DefaultModel = "text-embedding-004"

	// DefaultBaseURL is the Gemini API base URL.
	DefaultBaseURL = "https://generativelanguage.googleapis.com"

	// DefaultDimensions is the vector width of DefaultModel.
	DefaultDimensions = 768

	// DefaultMaxRetries is the number of retry attempts for failed requests.
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the initial delay between retry attempts.
	DefaultRetryDelay = 1 * time.Second

	// DefaultMaxRetryDelay caps the exponential backoff delay.
	DefaultMaxRetryDelay = 10 * time.Second

	// maxInputChars is the largest input the API accepts per item.
	// Longer text is truncated before the request is sent.
	maxInputChars = 8000

	// defaultBatchRate paces sequential batch requests, items per second.
	defaultBatchRate = 10
)

// Embedder wraps Gemini's embedContent API.
type Embedder struct {
	baseURL       string
	apiKey        string
	model         string
	dims          int
	maxRetries    int
	retryDelay    time.Duration
	maxRetryDelay time.Duration
	limiter       *rate.Limiter
	httpClient    *http.Client
	logger        *slog.Logger
}

// Config holds configuration for the Gemini embedder.
type Config struct {
	// APIKey authenticates against the Gemini API. Required.
	APIKey string

	// BaseURL overrides the Gemini API URL. Defaults to DefaultBaseURL.
	BaseURL string

	// Model is the embedding model. Defaults to DefaultModel.
	Model string

	// Dimensions is the vector width of Model. Defaults to DefaultDimensions.
	Dimensions int

	// MaxRetries is the number of retry attempts for failed requests.
	MaxRetries int

	// RetryDelay is the initial delay between retries, doubled each attempt.
	RetryDelay time.Duration

	// MaxRetryDelay caps the backoff delay.
	MaxRetryDelay time.Duration

	// Logger receives request diagnostics. Defaults to a no-op logger.
	Logger *slog.Logger
}

type embedContentRequest struct {
	Model    string  `json:"model"`
	Content  content `json:"content"`
	TaskType string  `json:"taskType,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type embedContentResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// NewEmbedder creates a new embedder using Gemini's embedding API.
func NewEmbedder(cfg Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: api key is required", embeddings.ErrEmbedding)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = DefaultDimensions
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

	return &Embedder{
		baseURL:       baseURL,
		apiKey:        cfg.APIKey,
		model:         model,
		dims:          dims,
		maxRetries:    maxRetries,
		retryDelay:    retryDelay,
		maxRetryDelay: maxRetryDelay,
		limiter:       rate.NewLimiter(rate.Limit(defaultBatchRate), 1),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: log,
	}, nil
}

func taskType(intent embeddings.Intent) string {
	if intent == embeddings.IntentQuery {
		return "RETRIEVAL_QUERY"
	}
	return "RETRIEVAL_DOCUMENT"
}

// Embed converts text into a vector embedding.
func (e *Embedder) Embed(ctx context.Context, text string, intent embeddings.Intent) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: %w", embeddings.ErrEmbedding, embeddings.ErrEmptyText)
	}

	if len(text) > maxInputChars {
		cut := maxInputChars
		// Back off to a rune boundary so the request stays valid UTF-8.
		for cut > 0 && (text[cut]&0xC0) == 0x80 {
			cut--
		}
		e.logger.Warn("truncating oversized embedding input",
			"chars", len(text),
			"limit", maxInputChars)
		text = text[:cut]
	}

	reqBody := embedContentRequest{
		Model:    "models/" + e.model,
		Content:  content{Parts: []part{{Text: text}}},
		TaskType: taskType(intent),
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %v", embeddings.ErrEmbedding, err)
	}

	var lastErr error
	delay := e.retryDelay
	for attempt := 0; attempt < e.maxRetries; attempt++ {
		if attempt > 0 {
			e.logger.Debug("retrying embedding request",
				"attempt", attempt+1,
				"delay", delay)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", embeddings.ErrEmbedding, ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
			if delay > e.maxRetryDelay {
				delay = e.maxRetryDelay
			}
		}

		vec, err := e.embedOnce(ctx, jsonBody)
		if err == nil {
			return vec, nil
		}
		lastErr = err
	}

	return nil, lastErr
}

func (e *Embedder) embedOnce(ctx context.Context, jsonBody []byte) ([]float32, error) {
	url := fmt.Sprintf("%s/v1beta/models/%s:embedContent", e.baseURL, e.model)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", embeddings.ErrEmbedding, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: sending request: %v", embeddings.ErrEmbedding, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: gemini returned status %d: %s", embeddings.ErrEmbedding, resp.StatusCode, string(body))
	}

	var embedResp embedContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", embeddings.ErrEmbedding, err)
	}

	if len(embedResp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", embeddings.ErrEmbedding)
	}

	return embedResp.Embedding.Values, nil
}

// EmbedBatch embeds each text sequentially, pacing requests and
// substituting a zero vector for items that fail after retries.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string, intent embeddings.Intent) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for i, text := range texts {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", embeddings.ErrEmbedding, err)
		}

		vec, err := e.Embed(ctx, text, intent)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", embeddings.ErrEmbedding, ctx.Err())
			}
			e.logger.Warn("batch item failed, substituting zero vector",
				"index", i,
				"error", err)
			vec = embeddings.Zero(e.dims)
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

// Dimensions reports the vector width of the configured model.
func (e *Embedder) Dimensions() int {
	return e.dims
}

// Close releases resources held by the embedder.
func (e *Embedder) Close() error {
	return nil
}

var _ embeddings.Embedder = (*Embedder)(nil)
