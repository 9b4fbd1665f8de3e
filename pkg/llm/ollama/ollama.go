// Package ollama implements pkg/llm's Provider client for Ollama's
// generate API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/javajedis/legalconnect-ai/pkg/llm"
)

const (
	// DefaultModel is the default generation model.
	DefaultModel = "llama3.2"

	// DefaultBaseURL is the default Ollama API URL.
	DefaultBaseURL = "http://localhost:11434"
)

// Provider wraps Ollama's generate API.
type Provider struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// Config holds configuration for the Ollama provider.
type Config struct {
	// BaseURL is the Ollama API URL (e.g., "http://localhost:11434").
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// Model is the generation model to use. Defaults to DefaultModel.
	Model string
}

// New creates an Ollama generation provider.
func New(cfg Config) (*Provider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Provider{
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: 300 * time.Second,
		},
	}, nil
}

// Generate produces a completion for the request.
func (p *Provider) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	options := map[string]any{}
	if req.Temperature > 0 {
		options["temperature"] = req.Temperature
	}
	if req.TopP > 0 {
		options["top_p"] = req.TopP
	}
	if req.TopK > 0 {
		options["top_k"] = req.TopK
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}

	reqBody := generateRequest{
		Model:   p.model,
		System:  req.System,
		Prompt:  req.Prompt,
		Stream:  false,
		Options: options,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return llm.Response{}, fmt.Errorf("%w: marshaling request: %v", llm.ErrGeneration, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/api/generate", bytes.NewReader(jsonBody))
	if err != nil {
		return llm.Response{}, fmt.Errorf("%w: creating request: %v", llm.ErrGeneration, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return llm.Response{}, fmt.Errorf("%w: sending request: %v", llm.ErrGeneration, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return llm.Response{}, fmt.Errorf("%w: ollama returned status %d: %s", llm.ErrGeneration, resp.StatusCode, string(body))
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return llm.Response{}, fmt.Errorf("%w: decoding response: %v", llm.ErrGeneration, err)
	}

	text := strings.TrimSpace(genResp.Response)
	if text == "" {
		return llm.Response{}, fmt.Errorf("%w: %w", llm.ErrGeneration, llm.ErrEmptyResponse)
	}

	return llm.Response{Text: text, Model: genResp.Model}, nil
}

// Close releases resources held by the provider.
func (p *Provider) Close() error {
	// HTTP client doesn't require explicit cleanup
	return nil
}

var _ llm.Provider = (*Provider)(nil)
