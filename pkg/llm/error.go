package llm

import "errors"

var (
	// ErrGeneration is returned when a generation request fails.
	ErrGeneration = errors.New("generation failed")

	// ErrEmptyResponse is returned when the provider produced no text.
	ErrEmptyResponse = errors.New("empty response")
)
