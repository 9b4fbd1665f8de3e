// Package generator assembles grounded prompts from composed context and
// produces cited answers.
//
// Generation never fails outward. Provider errors produce an apologetic
// fallback answer with zero confidence so the pipeline always has
// something to return.
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/javajedis/legalconnect-ai/pkg/composer"
	"github.com/javajedis/legalconnect-ai/pkg/llm"
	"github.com/javajedis/legalconnect-ai/pkg/logger"
	"github.com/javajedis/legalconnect-ai/pkg/vector"
)

// DefaultSystemPolicy is the system instruction used when none is
// configured.
const DefaultSystemPolicy = `You are a knowledgeable legal assistant specializing in Bangladesh law.
You help users understand legal documents, laws, and regulations in Bangladesh.

Your responsibilities:
1. Provide accurate legal information based on the provided context
2. Explain complex legal concepts in simple language
3. Reference specific legal documents and sections when applicable
4. Always mention when information is from the provided context
5. Be helpful but remind users to consult qualified lawyers for legal advice

Guidelines:
- Always base your answers on the provided context
- If information is not in the context, clearly state this
- Use both Bengali and English terms when appropriate
- Provide citations and references when possible
- Be respectful and professional
- Never provide definitive legal advice, only information`

// FallbackText is returned when the provider could not produce an answer.
const FallbackText = "I apologize, but I encountered an error while processing your question. Please try again."

const (
	// DefaultHistoryLimit is how many trailing history turns make it
	// into the prompt.
	DefaultHistoryLimit = 5

	// DefaultMaxTokens caps generated output length.
	DefaultMaxTokens = 2048

	// DefaultTemperature is the sampling temperature.
	DefaultTemperature = 0.7

	// DefaultTopP is the nucleus sampling cutoff.
	DefaultTopP = 0.8

	// DefaultTopK limits sampling to the K most likely tokens.
	DefaultTopK = 40
)

// Source is a citation extracted from composed context.
type Source struct {
	// DocumentName is the cited document's title.
	DocumentName string `json:"document_name"`

	// PageNumber is the cited page, 0 if unknown.
	PageNumber int `json:"page_number,omitempty"`

	// SimilarityScore is the retrieval score of the cited chunk.
	SimilarityScore float32 `json:"similarity_score"`
}

// Answer is a completed generation with its citations.
type Answer struct {
	// Text is the generated answer, or FallbackText when degraded.
	Text string

	// Sources cite every context chunk the prompt was grounded on.
	Sources []Source

	// Confidence estimates answer reliability from retrieval scores,
	// in [0, 1].
	Confidence float64

	// Model is the model that produced the answer, empty when degraded.
	Model string

	// Degraded is true when the provider failed and Text is the
	// fallback.
	Degraded bool

	// Reason explains the degradation, empty otherwise.
	Reason string
}

// Config holds generation settings.
type Config struct {
	// System overrides DefaultSystemPolicy when set.
	System string

	// HistoryLimit overrides DefaultHistoryLimit when positive.
	HistoryLimit int

	// MaxTokens overrides DefaultMaxTokens when positive.
	MaxTokens int

	// Temperature overrides DefaultTemperature when positive.
	Temperature float64

	// TopP overrides DefaultTopP when positive.
	TopP float64

	// TopK overrides DefaultTopK when positive.
	TopK int
}

// Generator turns composed context and a query into a cited answer.
type Generator struct {
	provider     llm.Provider
	system       string
	historyLimit int
	maxTokens    int
	temperature  float64
	topP         float64
	topK         int
	logger       *slog.Logger
}

// New creates a generator over the given provider.
func New(provider llm.Provider, cfg Config, log *slog.Logger) *Generator {
	system := cfg.System
	if system == "" {
		system = DefaultSystemPolicy
	}
	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = DefaultTemperature
	}
	topP := cfg.TopP
	if topP <= 0 {
		topP = DefaultTopP
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Generator{
		provider:     provider,
		system:       system,
		historyLimit: historyLimit,
		maxTokens:    maxTokens,
		temperature:  temperature,
		topP:         topP,
		topK:         topK,
		logger:       log,
	}
}

// Generate produces an answer grounded on the composed context. It
// never returns an error: provider failures yield a degraded fallback
// answer instead.
func (g *Generator) Generate(ctx context.Context, query string, contextPoints []vector.ScoredPoint, history []llm.Message) Answer {
	prompt := g.buildPrompt(query, contextPoints, history)

	resp, err := g.provider.Generate(ctx, llm.Request{
		System:      g.system,
		Prompt:      prompt,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
		TopP:        g.topP,
		TopK:        g.topK,
	})
	if err != nil {
		g.logger.Error("generation failed, returning fallback answer",
			"error", err)
		return Answer{
			Text:     FallbackText,
			Degraded: true,
			Reason:   "generation failed",
		}
	}

	return Answer{
		Text:       resp.Text,
		Sources:    ExtractSources(contextPoints),
		Confidence: EstimateConfidence(contextPoints),
		Model:      resp.Model,
	}
}

func (g *Generator) buildPrompt(query string, contextPoints []vector.ScoredPoint, history []llm.Message) string {
	var sb strings.Builder

	if block := formatHistory(history, g.historyLimit); block != "" {
		sb.WriteString(block)
		sb.WriteString("\n")
	}

	sb.WriteString("Context Information:\n")
	sb.WriteString(formatContext(contextPoints))
	sb.WriteString("\n\nUser Question: ")
	sb.WriteString(query)
	sb.WriteString("\n\nPlease provide a helpful and accurate response based on the context information provided. If the context doesn't contain enough information to answer the question, please state that clearly.")

	return sb.String()
}

// formatContext renders each chunk under a provenance tag naming its
// document and page.
func formatContext(points []vector.ScoredPoint) string {
	if len(points) == 0 {
		return "No relevant documents found."
	}

	parts := make([]string, 0, len(points))
	for _, point := range points {
		name := point.Payload.DocumentName
		if name == "" {
			name = "Unknown"
		}

		tag := fmt.Sprintf("[Source: %s]", name)
		if point.Payload.PageNumber > 0 {
			tag = fmt.Sprintf("[Source: %s (Page %d)]", name, point.Payload.PageNumber)
		}

		text := strings.TrimSpace(point.Payload.Text)
		if text == "" {
			continue
		}
		parts = append(parts, tag+"\n"+text+"\n")
	}

	if len(parts) == 0 {
		return "No relevant documents found."
	}
	return strings.Join(parts, "\n")
}

func formatHistory(history []llm.Message, limit int) string {
	if len(history) == 0 {
		return ""
	}
	if len(history) > limit {
		history = history[len(history)-limit:]
	}

	var parts []string
	for _, msg := range history {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		role := msg.Role
		if role != "" {
			role = strings.ToUpper(role[:1]) + role[1:]
		}
		parts = append(parts, role+": "+content)
	}
	if len(parts) == 0 {
		return ""
	}

	return "Previous conversation:\n" + strings.Join(parts, "\n") + "\n"
}

// ExtractSources builds one citation per context chunk, in context
// order.
func ExtractSources(points []vector.ScoredPoint) []Source {
	if len(points) == 0 {
		return nil
	}

	sources := make([]Source, 0, len(points))
	for _, point := range points {
		name := point.Payload.DocumentName
		if name == "" {
			name = "Unknown"
		}
		sources = append(sources, Source{
			DocumentName:    name,
			PageNumber:      point.Payload.PageNumber,
			SimilarityScore: point.Score,
		})
	}
	return sources
}

// EstimateConfidence derives answer confidence from retrieval scores:
// the mean score, boosted 10% when three or more chunks agree, capped
// at 1.
func EstimateConfidence(points []vector.ScoredPoint) float64 {
	if len(points) == 0 {
		return 0
	}

	confidence := composer.AverageScore(points)
	if len(points) >= 3 {
		confidence *= 1.1
	}
	return min(confidence, 1.0)
}

// Summarize produces a concise summary of the given chunks, used for
// document-level previews rather than question answering.
func (g *Generator) Summarize(ctx context.Context, points []vector.ScoredPoint) (string, error) {
	prompt := "Please provide a concise summary of the following legal documents:\n\n" +
		formatContext(points) + "\n\nSummary:"

	resp, err := g.provider.Generate(ctx, llm.Request{
		Prompt:      prompt,
		MaxTokens:   1024,
		Temperature: 0.5,
	})
	if err != nil {
		return "", fmt.Errorf("summarizing documents: %w", err)
	}
	return resp.Text, nil
}
