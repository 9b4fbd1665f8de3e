// Package ollama implements pkg/embeddings' Embedder client for Ollama's
// embedding APIs.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/javajedis/legalconnect-ai/pkg/embeddings"
	"github.com/javajedis/legalconnect-ai/pkg/logger"
)

const (
	// DefaultModel is the default model used for embeddings.
	DefaultModel = "nomic-embed-text"

	// DefaultBaseURL is the default Ollama API URL.
	DefaultBaseURL = "http://localhost:11434"

	// DefaultDimensions is the vector width of DefaultModel.
	DefaultDimensions = 768

	// DefaultMaxRetries is the number of retry attempts for failed requests.
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the initial delay between retry attempts.
	DefaultRetryDelay = 1 * time.Second

	// DefaultMaxRetryDelay caps the exponential backoff delay.
	DefaultMaxRetryDelay = 10 * time.Second

	// maxInputChars is the largest input sent per item. Longer text is
	// truncated before the request goes out.
	maxInputChars = 8000
)

// Embedder wraps Ollama's embedding API.
type Embedder struct {
	baseURL       string
	model         string
	dims          int
	maxRetries    int
	retryDelay    time.Duration
	maxRetryDelay time.Duration
	httpClient    *http.Client
	logger        *slog.Logger
}

// Config holds configuration for the Ollama embedder.
type Config struct {
	// BaseURL is the Ollama API URL (e.g., "http://localhost:11434").
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// Model is the embedding model to use (e.g., "nomic-embed-text").
	// Defaults to DefaultModel if empty.
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

// embedRequest is the request body for Ollama's embedding API.
// Input is a string or an array of strings.
type embedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

// embedResponse is the response from Ollama's embedding API.
type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewEmbedder creates a new embedder using Ollama's embedding API.
func NewEmbedder(cfg Config) (*Embedder, error) {
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
		model:         model,
		dims:          dims,
		maxRetries:    maxRetries,
		retryDelay:    retryDelay,
		maxRetryDelay: maxRetryDelay,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: log,
	}, nil
}

// prefix marks the input with the nomic-style task prefix so asymmetric
// models embed documents and queries into compatible spaces.
func prefix(text string, intent embeddings.Intent) string {
	if intent == embeddings.IntentQuery {
		return "search_query: " + text
	}
	return "search_document: " + text
}

// truncate bounds the input at maxInputChars, backing off to a rune
// boundary so the request stays valid UTF-8.
func (e *Embedder) truncate(text string) string {
	if len(text) <= maxInputChars {
		return text
	}
	cut := maxInputChars
	for cut > 0 && (text[cut]&0xC0) == 0x80 {
		cut--
	}
	e.logger.Warn("truncating oversized embedding input",
		"chars", len(text),
		"limit", maxInputChars)
	return text[:cut]
}

// Embed converts text into a vector embedding.
func (e *Embedder) Embed(ctx context.Context, text string, intent embeddings.Intent) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: %w", embeddings.ErrEmbedding, embeddings.ErrEmptyText)
	}

	vecs, err := e.embed(ctx, prefix(e.truncate(text), intent))
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds all texts in a single request, substituting a zero
// vector for any input the server could not embed.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string, intent embeddings.Intent) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	inputs := make([]string, len(texts))
	for i, t := range texts {
		inputs[i] = prefix(e.truncate(t), intent)
	}

	vecs, err := e.embed(ctx, inputs)
	if err != nil {
		return nil, err
	}

	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", embeddings.ErrEmbedding, len(vecs), len(texts))
	}

	for i, v := range vecs {
		if len(v) == 0 {
			vecs[i] = embeddings.Zero(e.dims)
		}
	}
	return vecs, nil
}

// embed sends the request with bounded retries and exponential backoff.
func (e *Embedder) embed(ctx context.Context, input any) ([][]float32, error) {
	reqBody := embedRequest{
		Model: e.model,
		Input: input,
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

		vecs, err := e.embedOnce(ctx, jsonBody)
		if err == nil {
			return vecs, nil
		}
		lastErr = err
	}

	return nil, lastErr
}

func (e *Embedder) embedOnce(ctx context.Context, jsonBody []byte) ([][]float32, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+"/api/embed", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", embeddings.ErrEmbedding, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: sending request: %v", embeddings.ErrEmbedding, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: ollama returned status %d: %s", embeddings.ErrEmbedding, resp.StatusCode, string(body))
	}

	var embedResp embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", embeddings.ErrEmbedding, err)
	}

	if len(embedResp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", embeddings.ErrEmbedding)
	}

	return embedResp.Embeddings, nil
}

// Dimensions reports the vector width of the configured model.
func (e *Embedder) Dimensions() int {
	return e.dims
}

// Close releases resources held by the embedder.
func (e *Embedder) Close() error {
	// HTTP client doesn't require explicit cleanup
	return nil
}

var _ embeddings.Embedder = (*Embedder)(nil)
