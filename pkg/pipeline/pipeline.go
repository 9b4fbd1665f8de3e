// Package pipeline orchestrates the full question answering flow:
// retrieval over the general corpus and session uploads, context
// composition, and grounded generation.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/javajedis/legalconnect-ai/pkg/composer"
	"github.com/javajedis/legalconnect-ai/pkg/generator"
	"github.com/javajedis/legalconnect-ai/pkg/llm"
	"github.com/javajedis/legalconnect-ai/pkg/logger"
	"github.com/javajedis/legalconnect-ai/pkg/retriever"
	"github.com/javajedis/legalconnect-ai/pkg/vector"
)

const (
	// DefaultTopK is the context budget when a request does not set
	// one.
	DefaultTopK = 8

	// DefaultChatThreshold is the similarity cut for answer retrieval.
	DefaultChatThreshold = 0.5

	// DefaultSearchThreshold is the similarity cut for document search.
	DefaultSearchThreshold = 0.5

	// snippetLength bounds search result previews, counted in runes
	// so multibyte scripts get the same preview length as ASCII.
	snippetLength = 200
)

// ValidationError reports a rejected request field. It is returned
// before any network call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// SessionStore reports which documents a chat session has uploaded.
// Ownership of the session is the caller's concern; the pipeline
// trusts the session ID it is given.
type SessionStore interface {
	// HasDocuments reports whether the session has uploaded documents.
	HasDocuments(ctx context.Context, sessionID string) (bool, error)
}

// AnswerRequest is a question to answer.
type AnswerRequest struct {
	// Query is the user's question. Required.
	Query string

	// SessionID scopes retrieval to include the session's uploads.
	// Empty queries only the general corpus.
	SessionID string

	// TopK overrides the context budget. Zero uses the configured
	// default.
	TopK int

	// ScoreThreshold overrides the similarity cut for this call.
	// Zero uses the configured default.
	ScoreThreshold float32

	// History is prior conversation turns, oldest first.
	History []llm.Message
}

// Meta describes how an answer was produced.
type Meta struct {
	// RetrievalCount is how many chunks made it into the context.
	RetrievalCount int

	// SessionCount is how many context chunks came from session
	// uploads.
	SessionCount int

	// GeneralCount is how many context chunks came from the general
	// corpus.
	GeneralCount int

	// AvgSimilarity is the mean score of the composed context.
	AvgSimilarity float64

	// Elapsed is the total answer latency.
	Elapsed time.Duration

	// Query echoes the answered question.
	Query string
}

// AnswerResponse is a completed answer with its retrieval metadata.
type AnswerResponse struct {
	Answer generator.Answer
	Meta   Meta
}

// SearchRequest is a document similarity search.
type SearchRequest struct {
	// Query is the search text. Required.
	Query string

	// TopK caps the result count. Zero uses the configured default.
	TopK int

	// ScoreThreshold overrides the similarity cut for this call.
	ScoreThreshold float32

	// DocumentType restricts results to one document type. Empty
	// matches all.
	DocumentType string
}

// SearchResult is one matched chunk.
type SearchResult struct {
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	PageNumber   int     `json:"page_number,omitempty"`
	Snippet      string  `json:"snippet"`
	Score        float64 `json:"score"`
}

// SearchResponse is a completed document search.
type SearchResponse struct {
	// Results are the matched chunks, best first.
	Results []SearchResult

	// Degraded is true when retrieval could not run.
	Degraded bool

	// Reason explains the degradation, empty otherwise.
	Reason string
}

// SummarizeRequest selects material to summarize.
type SummarizeRequest struct {
	// Query is the topic used to pick the chunks. Required.
	Query string

	// DocumentID restricts the summary to one document. Empty
	// summarizes across the corpus.
	DocumentID string

	// TopK caps how many chunks feed the summary. Zero uses the
	// configured default.
	TopK int
}

// SummarizeResponse is a completed summary.
type SummarizeResponse struct {
	// Summary is the generated text.
	Summary string

	// Chunks is how many retrieved chunks fed the summary.
	Chunks int

	// Degraded is true when retrieval found nothing to summarize.
	Degraded bool

	// Reason explains the degradation, empty otherwise.
	Reason string
}

// Config holds pipeline defaults.
type Config struct {
	// TopK overrides DefaultTopK when positive.
	TopK int

	// ChatThreshold overrides DefaultChatThreshold when positive.
	ChatThreshold float32

	// SearchThreshold overrides DefaultSearchThreshold when positive.
	SearchThreshold float32
}

// Pipeline answers questions over the indexed corpus.
type Pipeline struct {
	retriever *retriever.Retriever
	generator *generator.Generator
	sessions  SessionStore

	topK            int
	chatThreshold   float32
	searchThreshold float32

	logger *slog.Logger
}

// New creates a pipeline. sessions may be nil when session uploads are
// not in play.
func New(r *retriever.Retriever, g *generator.Generator, sessions SessionStore, cfg Config, log *slog.Logger) *Pipeline {
	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	chatThreshold := cfg.ChatThreshold
	if chatThreshold <= 0 {
		chatThreshold = DefaultChatThreshold
	}
	searchThreshold := cfg.SearchThreshold
	if searchThreshold <= 0 {
		searchThreshold = DefaultSearchThreshold
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Pipeline{
		retriever:       r,
		generator:       g,
		sessions:        sessions,
		topK:            topK,
		chatThreshold:   chatThreshold,
		searchThreshold: searchThreshold,
		logger:          log,
	}
}

func validateQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return &ValidationError{Field: "query", Reason: "must not be empty"}
	}
	return nil
}

func validateBounds(topK int, threshold float32) error {
	if topK < 0 {
		return &ValidationError{Field: "top_k", Reason: "must not be negative"}
	}
	if threshold < 0 || threshold > 1 {
		return &ValidationError{Field: "score_threshold", Reason: "must be in [0, 1]"}
	}
	return nil
}

// AnswerQuery runs the full retrieval and generation flow for a
// question. Session documents take priority over the general corpus
// when the session has uploads.
func (p *Pipeline) AnswerQuery(ctx context.Context, req AnswerRequest) (*AnswerResponse, error) {
	if err := validateQuery(req.Query); err != nil {
		return nil, err
	}
	if err := validateBounds(req.TopK, req.ScoreThreshold); err != nil {
		return nil, err
	}

	start := time.Now()

	topK := req.TopK
	if topK == 0 {
		topK = p.topK
	}
	threshold := req.ScoreThreshold
	if threshold == 0 {
		threshold = p.chatThreshold
	}

	useSession := false
	if req.SessionID != "" && p.sessions != nil {
		has, err := p.sessions.HasDocuments(ctx, req.SessionID)
		if err != nil {
			return nil, fmt.Errorf("checking session documents: %w", err)
		}
		useSession = has
	}

	var (
		sessionResult retriever.Result
		generalResult retriever.Result
	)

	if useSession {
		// Session retrieval gets half the budget, general retrieval
		// runs at the full budget and the composer hands it whatever
		// the session pool leaves over.
		sessionLimit := max(1, topK/2)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			sessionResult = p.retriever.Retrieve(ctx, req.Query, vector.SearchParams{
				TopK:           sessionLimit,
				ScoreThreshold: threshold,
				Filter:         vector.Filter{"session_id": req.SessionID},
			})
		}()
		go func() {
			defer wg.Done()
			generalResult = p.retriever.Retrieve(ctx, req.Query, vector.SearchParams{
				TopK:           topK,
				ScoreThreshold: threshold,
			})
		}()
		wg.Wait()
	} else {
		generalResult = p.retriever.Retrieve(ctx, req.Query, vector.SearchParams{
			TopK:           topK,
			ScoreThreshold: threshold,
		})
	}

	composed := composer.Compose([]composer.Pool{
		{Name: "session", Candidates: sessionResult.Candidates},
		{Name: "general", Candidates: generalResult.Candidates},
	}, topK)

	sessionCount := 0
	for _, point := range composed {
		if point.Payload.SessionID == req.SessionID && req.SessionID != "" {
			sessionCount++
		}
	}

	answer := p.generator.Generate(ctx, req.Query, composed, req.History)
	if sessionResult.Degraded || generalResult.Degraded {
		answer.Degraded = true
		if answer.Reason == "" {
			answer.Reason = firstNonEmpty(sessionResult.Reason, generalResult.Reason)
		}
	}

	elapsed := time.Since(start)
	p.logger.Info("query answered",
		"query", req.Query,
		"context", len(composed),
		"session_context", sessionCount,
		"degraded", answer.Degraded,
		"elapsed", elapsed,
	)

	return &AnswerResponse{
		Answer: answer,
		Meta: Meta{
			RetrievalCount: len(composed),
			SessionCount:   sessionCount,
			GeneralCount:   len(composed) - sessionCount,
			AvgSimilarity:  composer.AverageScore(composed),
			Elapsed:        elapsed,
			Query:          req.Query,
		},
	}, nil
}

// SearchDocuments runs a similarity search and shapes the matches for
// display: snippets are truncated and scores rounded.
func (p *Pipeline) SearchDocuments(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	if err := validateQuery(req.Query); err != nil {
		return nil, err
	}
	if err := validateBounds(req.TopK, req.ScoreThreshold); err != nil {
		return nil, err
	}

	topK := req.TopK
	if topK == 0 {
		topK = p.topK
	}
	threshold := req.ScoreThreshold
	if threshold == 0 {
		threshold = p.searchThreshold
	}

	params := vector.SearchParams{
		TopK:           topK,
		ScoreThreshold: threshold,
	}
	if req.DocumentType != "" {
		params.Filter = vector.Filter{"document_type": req.DocumentType}
	}

	result := p.retriever.Retrieve(ctx, req.Query, params)
	if result.Degraded {
		return &SearchResponse{Degraded: true, Reason: result.Reason}, nil
	}

	results := make([]SearchResult, 0, len(result.Candidates))
	for _, point := range result.Candidates {
		results = append(results, SearchResult{
			DocumentID:   point.Payload.DocumentID,
			DocumentName: point.Payload.DocumentName,
			PageNumber:   point.Payload.PageNumber,
			Snippet:      snippet(point.Payload.Text),
			Score:        math.Round(float64(point.Score)*1000) / 1000,
		})
	}

	return &SearchResponse{Results: results}, nil
}

// SummarizeDocuments retrieves the chunks matching the request and asks
// the model for a concise summary of them. Retrieval runs without a
// similarity cut so a document summary sees all of its best chunks.
func (p *Pipeline) SummarizeDocuments(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error) {
	if err := validateQuery(req.Query); err != nil {
		return nil, err
	}
	if err := validateBounds(req.TopK, 0); err != nil {
		return nil, err
	}

	topK := req.TopK
	if topK == 0 {
		topK = p.topK
	}

	params := vector.SearchParams{TopK: topK}
	if req.DocumentID != "" {
		params.Filter = vector.Filter{"document_id": req.DocumentID}
	}

	result := p.retriever.Retrieve(ctx, req.Query, params)
	if result.Degraded {
		return &SummarizeResponse{Degraded: true, Reason: result.Reason}, nil
	}
	if len(result.Candidates) == 0 {
		return &SummarizeResponse{Degraded: true, Reason: "no matching documents"}, nil
	}

	summary, err := p.generator.Summarize(ctx, result.Candidates)
	if err != nil {
		return nil, err
	}

	p.logger.Info("documents summarized",
		"query", req.Query,
		"document_id", req.DocumentID,
		"chunks", len(result.Candidates),
	)

	return &SummarizeResponse{
		Summary: summary,
		Chunks:  len(result.Candidates),
	}, nil
}

func snippet(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= snippetLength {
		return text
	}
	return string([]rune(text)[:snippetLength]) + "..."
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
