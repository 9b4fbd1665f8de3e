// Package llm defines the text generation provider contract used by the
// response generator.
package llm

import "context"

// Message is a single turn of conversation history.
type Message struct {
	// Role is "user" or "assistant".
	Role string

	// Content is the turn's text.
	Content string
}

// Request describes a single generation call.
type Request struct {
	// System is the system instruction, empty for none.
	System string

	// Prompt is the user-facing prompt, already assembled with any
	// retrieved context and history.
	Prompt string

	// MaxTokens caps the generated output length. Zero uses the
	// provider default.
	MaxTokens int

	// Temperature controls sampling randomness. Zero uses the
	// provider default.
	Temperature float64

	// TopP is the nucleus sampling cutoff. Zero uses the provider
	// default.
	TopP float64

	// TopK limits sampling to the K most likely tokens. Zero uses
	// the provider default.
	TopK int
}

// Response is a completed generation.
type Response struct {
	// Text is the generated output.
	Text string

	// Model is the model that produced the output.
	Model string
}

// Provider generates text completions.
type Provider interface {
	// Generate produces a completion for the request.
	Generate(ctx context.Context, req Request) (Response, error)

	// Close releases any resources held by the provider.
	Close() error
}
