package embeddings

import "errors"

var (
	// ErrEmbedding indicates an embedding request failed.
	ErrEmbedding = errors.New("embedding failed")

	// ErrEmptyText indicates the input text was empty after cleaning.
	ErrEmptyText = errors.New("empty text")
)
