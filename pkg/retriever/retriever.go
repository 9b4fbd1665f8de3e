// Package retriever turns a natural-language query into scored document
// candidates from the vector index.
//
// Retrieval failures degrade instead of erroring: a pipeline that cannot
// reach the embedder or the index still answers, it just answers without
// context.
package retriever

import (
	"context"
	"log/slog"

	"github.com/javajedis/legalconnect-ai/pkg/embeddings"
	"github.com/javajedis/legalconnect-ai/pkg/logger"
	"github.com/javajedis/legalconnect-ai/pkg/vector"
)

// Result is the outcome of a retrieval pass.
type Result struct {
	// Candidates are the matched points, highest score first.
	Candidates []vector.ScoredPoint

	// Degraded is true when retrieval could not run and Candidates
	// is empty for operational rather than semantic reasons.
	Degraded bool

	// Reason explains the degradation, empty otherwise.
	Reason string
}

// Retriever embeds queries and searches the vector index.
type Retriever struct {
	embedder embeddings.Embedder
	driver   vector.Driver
	logger   *slog.Logger
}

// New creates a retriever over the given embedder and vector driver.
func New(embedder embeddings.Embedder, driver vector.Driver, log *slog.Logger) *Retriever {
	if log == nil {
		log = logger.Nop()
	}
	return &Retriever{
		embedder: embedder,
		driver:   driver,
		logger:   log,
	}
}

// Retrieve embeds the query and searches the index with the given
// parameters. Operational failures produce a degraded empty result,
// never an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, params vector.SearchParams) Result {
	embedding, err := r.embedder.Embed(ctx, query, embeddings.IntentQuery)
	if err != nil {
		r.logger.Warn("query embedding failed, degrading retrieval",
			"error", err)
		return Result{Degraded: true, Reason: "query embedding failed"}
	}

	candidates, err := r.driver.Search(ctx, embedding, params)
	if err != nil {
		r.logger.Warn("vector search failed, degrading retrieval",
			"error", err)
		return Result{Degraded: true, Reason: "vector search failed"}
	}

	r.logger.Debug("retrieval complete",
		"query", query,
		"candidates", len(candidates),
		"top_k", params.TopK,
		"threshold", params.ScoreThreshold,
	)

	return Result{Candidates: candidates}
}
