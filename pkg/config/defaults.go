package config

const (
	defaultLLMProvider = "gemini"
	defaultLLMModel    = "gemini-2.0-flash"

	defaultEmbeddingProvider   = "gemini"
	defaultEmbeddingModel      = "text-embedding-004"
	defaultEmbeddingDimensions = 768

	defaultVectorProvider   = "sqlite"
	defaultVectorCollection = "legal_documents"

	defaultTopK            = 8
	defaultChatThreshold   = 0.5
	defaultSearchThreshold = 0.5

	defaultChunkTargetSize = 1000
	defaultChunkOverlap    = 200
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		LLM: LLMConfig{
			Provider: defaultLLMProvider,
			Model:    defaultLLMModel,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		VectorStore: VectorStoreConfig{
			Provider:   defaultVectorProvider,
			Collection: defaultVectorCollection,
		},
		Retrieval: RetrievalConfig{
			TopK:            defaultTopK,
			ChatThreshold:   defaultChatThreshold,
			SearchThreshold: defaultSearchThreshold,
		},
		Chunking: ChunkingConfig{
			TargetSize: defaultChunkTargetSize,
			Overlap:    defaultChunkOverlap,
		},
	}
}
