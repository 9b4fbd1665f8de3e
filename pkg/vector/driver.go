// Package vector provides interfaces and implementations for vector storage
// and similarity search.
package vector

import "context"

// Payload is the metadata stored alongside each point's embedding.
type Payload struct {
	// DocumentID identifies the source document.
	DocumentID string

	// ChunkID identifies the chunk within the document.
	ChunkID string

	// Text is the chunk content the vector was computed from.
	Text string

	// PageNumber is the 1-based page the chunk came from, 0 if unknown.
	PageNumber int

	// DocumentName is the human-readable document title.
	DocumentName string

	// SessionID scopes session-uploaded documents, empty for the
	// general corpus.
	SessionID string

	// DocumentType distinguishes corpus documents from session uploads.
	DocumentType string

	// Metadata carries any additional string fields.
	Metadata map[string]string
}

// Point is a stored embedding with its payload.
type Point struct {
	// ID is a unique identifier for the point.
	ID string

	// Vector is the embedding.
	Vector []float32

	// Payload is the metadata stored with the point.
	Payload Payload
}

// ScoredPoint is a search result with its similarity score.
type ScoredPoint struct {
	// ID is the matched point's identifier.
	ID string

	// Score is the similarity score (higher = more similar).
	Score float32

	// Payload is the matched point's metadata.
	Payload Payload
}

// Filter restricts a search to points whose payload fields equal the
// given values. All entries must match.
type Filter map[string]string

// SearchParams controls a similarity search.
type SearchParams struct {
	// TopK is the maximum number of results to return.
	TopK int

	// ScoreThreshold drops results scoring below it. Zero disables
	// the cut.
	ScoreThreshold float32

	// Filter restricts the search by payload equality, nil matches all.
	Filter Filter
}

// Stats describes the state of the backing index.
type Stats struct {
	// Points is the number of stored points.
	Points uint64

	// Dimensions is the vector width of the index.
	Dimensions uint

	// Status is the backend's health string.
	Status string
}

// Driver handles storage and retrieval of vector embeddings.
type Driver interface {
	// Upsert stores points, replacing any existing point with the
	// same ID.
	Upsert(ctx context.Context, points []Point) error

	// Search finds the most similar points to the given embedding.
	Search(ctx context.Context, embedding []float32, params SearchParams) ([]ScoredPoint, error)

	// Delete removes points by their IDs.
	Delete(ctx context.Context, ids []string) error

	// Stats reports the state of the backing index.
	Stats(ctx context.Context) (Stats, error)

	// Close releases any resources held by the driver.
	Close() error
}

// Field returns the payload field addressed by a filter key, or the
// Metadata entry when no built-in field matches.
func (p Payload) Field(key string) string {
	switch key {
	case "document_id":
		return p.DocumentID
	case "chunk_id":
		return p.ChunkID
	case "session_id":
		return p.SessionID
	case "document_type":
		return p.DocumentType
	case "document_name":
		return p.DocumentName
	default:
		return p.Metadata[key]
	}
}

// Matches reports whether the payload satisfies every filter entry.
func (f Filter) Matches(p Payload) bool {
	for key, want := range f {
		if p.Field(key) != want {
			return false
		}
	}
	return true
}
