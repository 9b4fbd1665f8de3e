// Package stack assembles the RAG components CLI commands share: the
// embedder, vector store driver, LLM provider, and query pipeline, all
// built from the resolved configuration.
package stack

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/javajedis/legalconnect-ai/pkg/chunker"
	"github.com/javajedis/legalconnect-ai/pkg/config"
	"github.com/javajedis/legalconnect-ai/pkg/credentials"
	"github.com/javajedis/legalconnect-ai/pkg/dotdir"
	"github.com/javajedis/legalconnect-ai/pkg/embeddings"
	embeddingutils "github.com/javajedis/legalconnect-ai/pkg/embeddings/utils"
	"github.com/javajedis/legalconnect-ai/pkg/generator"
	"github.com/javajedis/legalconnect-ai/pkg/ingest"
	"github.com/javajedis/legalconnect-ai/pkg/llm"
	llmutils "github.com/javajedis/legalconnect-ai/pkg/llm/utils"
	"github.com/javajedis/legalconnect-ai/pkg/pipeline"
	"github.com/javajedis/legalconnect-ai/pkg/retriever"
	"github.com/javajedis/legalconnect-ai/pkg/vector"
	vectorutils "github.com/javajedis/legalconnect-ai/pkg/vector/utils"
)

const (
	defaultDBFile     = "legalconnect.db"
	defaultQdrantPort = 6334
)

// Stack holds the assembled RAG components. Close releases the
// underlying embedder, provider, and vector store connections.
type Stack struct {
	Embedder  embeddings.Embedder
	Driver    vector.Driver
	Provider  llm.Provider
	Pipeline  *pipeline.Pipeline
	Processor *ingest.Processor
}

// Build assembles a Stack from the given config. configDir overrides
// the default .legalconnect/ resolution for credentials and the local
// database path.
func Build(ctx context.Context, cfg *config.Config, configDir string, log *slog.Logger) (*Stack, error) {
	apiKey, err := resolveAPIKey(cfg, configDir)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		APIKey:       apiKey,
		Model:        cfg.Embedding.Model,
		Dimensions:   int(cfg.Embedding.Dimensions),
		Logger:       log,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	driver, err := newVectorDriver(ctx, cfg, configDir, log)
	if err != nil {
		embedder.Close()
		return nil, err
	}

	provider, err := llmutils.NewProvider(&llmutils.NewProviderOpts{
		ProviderType: cfg.LLM.Provider,
		TargetURL:    cfg.LLM.Target,
		APIKey:       apiKey,
		Model:        cfg.LLM.Model,
		Logger:       log,
	})
	if err != nil {
		embedder.Close()
		driver.Close()
		return nil, fmt.Errorf("creating llm provider: %w", err)
	}

	r := retriever.New(embedder, driver, log)
	g := generator.New(provider, generator.Config{}, log)

	p := pipeline.New(r, g, NewSessionStore(configDir), pipeline.Config{
		TopK:            int(cfg.Retrieval.TopK),
		ChatThreshold:   float32(cfg.Retrieval.ChatThreshold),
		SearchThreshold: float32(cfg.Retrieval.SearchThreshold),
	}, log)

	ch := chunker.New(
		chunker.WithTargetSize(int(cfg.Chunking.TargetSize)),
		chunker.WithOverlap(int(cfg.Chunking.Overlap)),
	)
	proc := ingest.New(ch, embedder, driver, log)

	return &Stack{
		Embedder:  embedder,
		Driver:    driver,
		Provider:  provider,
		Pipeline:  p,
		Processor: proc,
	}, nil
}

// Close releases all held connections. Errors are collapsed; the first
// one wins.
func (s *Stack) Close() error {
	var first error
	if err := s.Embedder.Close(); err != nil && first == nil {
		first = err
	}
	if err := s.Provider.Close(); err != nil && first == nil {
		first = err
	}
	if err := s.Driver.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

// resolveAPIKey returns the Gemini API key when either the embedding or
// generation provider needs one. Local providers run keyless.
func resolveAPIKey(cfg *config.Config, configDir string) (string, error) {
	if cfg.Embedding.Provider != "gemini" && cfg.LLM.Provider != "gemini" {
		return "", nil
	}

	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return "", fmt.Errorf("loading credentials: %w", err)
	}

	key, err := mgr.ResolveKey("gemini")
	if err != nil {
		return "", fmt.Errorf("resolving gemini credentials: %w", err)
	}
	if key == "" {
		return "", fmt.Errorf("no gemini API key found; run 'legalconnect auth gemini' or set %s",
			credentials.EnvVarForProvider("gemini"))
	}

	return key, nil
}

func newVectorDriver(ctx context.Context, cfg *config.Config, configDir string, log *slog.Logger) (vector.Driver, error) {
	opts := &vectorutils.NewDriverOpts{
		ProviderType: cfg.VectorStore.Provider,
		Collection:   cfg.VectorStore.Collection,
		Dimensions:   cfg.Embedding.Dimensions,
		Logger:       log,
	}

	switch cfg.VectorStore.Provider {
	case "qdrant":
		host, port, err := splitQdrantTarget(cfg.VectorStore.Target)
		if err != nil {
			return nil, err
		}
		opts.Host = host
		opts.Port = port
		opts.APIKey = os.Getenv("QDRANT_API_KEY")

	case "sqlite", "sqlitevec":
		dbPath, err := ResolveDBPath(cfg.VectorStore.Target, configDir)
		if err != nil {
			return nil, err
		}
		opts.DBPath = dbPath

	case "chroma":
		opts.TargetURL = cfg.VectorStore.Target
	}

	driver, err := vectorutils.NewDriver(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("creating vector store: %w", err)
	}

	return driver, nil
}

// splitQdrantTarget parses "host:port" into its parts. A bare host uses
// the default gRPC port.
func splitQdrantTarget(target string) (string, int, error) {
	if target == "" {
		return "localhost", defaultQdrantPort, nil
	}

	if !strings.Contains(target, ":") {
		return target, defaultQdrantPort, nil
	}

	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		return "", 0, fmt.Errorf("invalid qdrant target %q: %w", target, err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid qdrant port %q: %w", portStr, err)
	}

	return host, port, nil
}

// ResolveDBPath returns the sqlite-vec database path.
// Order of precedence is as follows:
//  1. Explicit override (vector_store.target or a flag)
//  2. LEGALCONNECT_SQLITE environment variable
//  3. legalconnect.db in the resolved .legalconnect/ directory
func ResolveDBPath(override, configDir string) (string, error) {
	if override != "" {
		return override, nil
	}

	if envPath := strings.TrimSpace(os.Getenv("LEGALCONNECT_SQLITE")); envPath != "" {
		return envPath, nil
	}

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return "", fmt.Errorf("resolving database directory: %w", err)
	}

	return filepath.Join(target, defaultDBFile), nil
}
