package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent legalconnect configuration stored as
// config.toml in the .legalconnect/ directory. The TOML layout uses sections
// for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	LLM         LLMConfig         `toml:"llm"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Retrieval   RetrievalConfig   `toml:"retrieval"`
	Chunking    ChunkingConfig    `toml:"chunking"`
}

// LLMConfig holds response generation provider settings.
type LLMConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
	Model    string `toml:"model,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// VectorStoreConfig holds vector store settings. For the qdrant provider,
// Target is host:port; for the sqlite provider it is the database file path
// (empty means a default path under the .legalconnect/ directory).
type VectorStoreConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Collection string `toml:"collection,omitempty"`
}

// RetrievalConfig holds query-time retrieval settings.
type RetrievalConfig struct {
	TopK            uint    `toml:"top_k,omitempty"`
	ChatThreshold   float64 `toml:"chat_threshold,omitempty"`
	SearchThreshold float64 `toml:"search_threshold,omitempty"`
}

// ChunkingConfig holds document chunking settings.
type ChunkingConfig struct {
	TargetSize uint `toml:"target_size,omitempty"`
	Overlap    uint `toml:"overlap,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"llm.provider": {
		get: func(c *Config) string { return c.LLM.Provider },
		set: func(c *Config, v string) error { c.LLM.Provider = v; return nil },
	},
	"llm.target": {
		get: func(c *Config) string { return c.LLM.Target },
		set: func(c *Config, v string) error { c.LLM.Target = v; return nil },
	},
	"llm.model": {
		get: func(c *Config) string { return c.LLM.Model },
		set: func(c *Config, v string) error { c.LLM.Model = v; return nil },
	},
	"embedding.provider": {
		get: func(c *Config) string { return c.Embedding.Provider },
		set: func(c *Config, v string) error { c.Embedding.Provider = v; return nil },
	},
	"embedding.target": {
		get: func(c *Config) string { return c.Embedding.Target },
		set: func(c *Config, v string) error { c.Embedding.Target = v; return nil },
	},
	"embedding.model": {
		get: func(c *Config) string { return c.Embedding.Model },
		set: func(c *Config, v string) error { c.Embedding.Model = v; return nil },
	},
	"embedding.dimensions": {
		get: func(c *Config) string {
			if c.Embedding.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Embedding.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.dimensions: %w", err)
			}
			c.Embedding.Dimensions = uint(n)
			return nil
		},
	},
	"vector_store.provider": {
		get: func(c *Config) string { return c.VectorStore.Provider },
		set: func(c *Config, v string) error { c.VectorStore.Provider = v; return nil },
	},
	"vector_store.target": {
		get: func(c *Config) string { return c.VectorStore.Target },
		set: func(c *Config, v string) error { c.VectorStore.Target = v; return nil },
	},
	"vector_store.collection": {
		get: func(c *Config) string { return c.VectorStore.Collection },
		set: func(c *Config, v string) error { c.VectorStore.Collection = v; return nil },
	},
	"retrieval.top_k": {
		get: func(c *Config) string {
			if c.Retrieval.TopK == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Retrieval.TopK), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for retrieval.top_k: %w", err)
			}
			c.Retrieval.TopK = uint(n)
			return nil
		},
	},
	"retrieval.chat_threshold": {
		get: func(c *Config) string { return formatThreshold(c.Retrieval.ChatThreshold) },
		set: func(c *Config, v string) error {
			f, err := parseThreshold(v)
			if err != nil {
				return fmt.Errorf("invalid value for retrieval.chat_threshold: %w", err)
			}
			c.Retrieval.ChatThreshold = f
			return nil
		},
	},
	"retrieval.search_threshold": {
		get: func(c *Config) string { return formatThreshold(c.Retrieval.SearchThreshold) },
		set: func(c *Config, v string) error {
			f, err := parseThreshold(v)
			if err != nil {
				return fmt.Errorf("invalid value for retrieval.search_threshold: %w", err)
			}
			c.Retrieval.SearchThreshold = f
			return nil
		},
	},
	"chunking.target_size": {
		get: func(c *Config) string {
			if c.Chunking.TargetSize == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Chunking.TargetSize), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for chunking.target_size: %w", err)
			}
			c.Chunking.TargetSize = uint(n)
			return nil
		},
	},
	"chunking.overlap": {
		get: func(c *Config) string {
			if c.Chunking.Overlap == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Chunking.Overlap), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for chunking.overlap: %w", err)
			}
			c.Chunking.Overlap = uint(n)
			return nil
		},
	},
}

func formatThreshold(f float64) string {
	if f == 0 {
		return ""
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func parseThreshold(v string) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 || f > 1 {
		return 0, fmt.Errorf("threshold %v outside [0, 1]", f)
	}
	return f, nil
}
