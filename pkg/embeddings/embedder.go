// Package embeddings defines the embedding provider contract used by the
// retrieval and ingestion pipelines.
package embeddings

import "context"

// Intent tells the provider how the resulting vector will be used.
// Asymmetric models produce different vectors for stored documents and
// for queries searching against them.
type Intent string

const (
	// IntentDocument marks text that will be stored in the vector index.
	IntentDocument Intent = "document"

	// IntentQuery marks text used to search the vector index.
	IntentQuery Intent = "query"
)

// Embedder converts text into dense vectors.
type Embedder interface {
	// Embed converts a single text into a vector embedding.
	Embed(ctx context.Context, text string, intent Intent) ([]float32, error)

	// EmbedBatch converts a batch of texts into vector embeddings.
	// The result has one vector per input, in input order. Providers
	// substitute a zero vector for individual items that fail so a
	// single bad item never sinks the batch.
	EmbedBatch(ctx context.Context, texts []string, intent Intent) ([][]float32, error)

	// Dimensions reports the width of vectors this embedder produces.
	Dimensions() int

	// Close releases any resources held by the embedder.
	Close() error
}

// IsZero reports whether v is a zero vector, the placeholder providers
// emit for items that failed inside a batch.
func IsZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return len(v) > 0
}

// Zero returns a zero vector of the given width.
func Zero(dims int) []float32 {
	return make([]float32, dims)
}
