// Package llmutils is the llm utility package
package llmutils

import (
	"fmt"
	"log/slog"

	"github.com/javajedis/legalconnect-ai/pkg/llm"
	"github.com/javajedis/legalconnect-ai/pkg/llm/gemini"
	"github.com/javajedis/legalconnect-ai/pkg/llm/ollama"
)

type NewProviderOpts struct {
	ProviderType string
	TargetURL    string
	APIKey       string
	Model        string
	Logger       *slog.Logger
}

func NewProvider(o *NewProviderOpts) (llm.Provider, error) {
	switch o.ProviderType {
	case "gemini":
		return gemini.New(gemini.Config{
			APIKey:  o.APIKey,
			BaseURL: o.TargetURL,
			Model:   o.Model,
			Logger:  o.Logger,
		})
	case "ollama":
		return ollama.New(ollama.Config{
			BaseURL: o.TargetURL,
			Model:   o.Model,
		})
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", o.ProviderType)
	}
}
