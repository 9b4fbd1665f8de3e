package vector

import "errors"

var (
	// ErrNotFound is returned when a point is not found in the vector store.
	ErrNotFound = errors.New("point not found")

	// ErrConnection is returned when the vector store connection fails.
	ErrConnection = errors.New("vector store connection failed")

	// ErrDimensions is returned when a vector's width does not match
	// the index.
	ErrDimensions = errors.New("vector dimensions mismatch")
)
