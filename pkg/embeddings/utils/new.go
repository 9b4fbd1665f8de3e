// Package embeddingutils is the embeddings utility package
package embeddingutils

import (
	"fmt"
	"log/slog"

	"github.com/javajedis/legalconnect-ai/pkg/embeddings"
	"github.com/javajedis/legalconnect-ai/pkg/embeddings/gemini"
	"github.com/javajedis/legalconnect-ai/pkg/embeddings/ollama"
)

type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	APIKey       string
	Model        string
	Dimensions   int
	Logger       *slog.Logger
}

func NewEmbedder(o *NewEmbedderOpts) (embeddings.Embedder, error) {
	switch o.ProviderType {
	case "gemini":
		return gemini.NewEmbedder(gemini.Config{
			APIKey:     o.APIKey,
			BaseURL:    o.TargetURL,
			Model:      o.Model,
			Dimensions: o.Dimensions,
			Logger:     o.Logger,
		})
	case "ollama":
		return ollama.NewEmbedder(ollama.Config{
			BaseURL:    o.TargetURL,
			Model:      o.Model,
			Dimensions: o.Dimensions,
			Logger:     o.Logger,
		})
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", o.ProviderType)
	}
}
