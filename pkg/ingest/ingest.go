// Package ingest turns documents into chunked, embedded points in the
// vector index.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/javajedis/legalconnect-ai/pkg/chunker"
	"github.com/javajedis/legalconnect-ai/pkg/embeddings"
	"github.com/javajedis/legalconnect-ai/pkg/logger"
	"github.com/javajedis/legalconnect-ai/pkg/vector"
)

// TypeChatUpload marks documents uploaded into a chat session rather
// than the general corpus.
const TypeChatUpload = "chat_upload"

// Page is one page of source text.
type Page struct {
	// Number is the 1-based page number.
	Number int

	// Text is the page's extracted text.
	Text string
}

// Document is a unit of ingestion. Extraction from source file formats
// happens upstream; the processor only sees text.
type Document struct {
	// ID identifies the document. Required.
	ID string

	// Name is the human-readable title.
	Name string

	// Type classifies the document (e.g. "statute", TypeChatUpload).
	Type string

	// SessionID scopes session uploads, empty for the general corpus.
	SessionID string

	// Metadata carries additional string fields into every chunk's
	// payload.
	Metadata map[string]string

	// Pages is the document text, one entry per page.
	Pages []Page
}

// Result reports what an ingestion produced.
type Result struct {
	// DocumentID is the ingested document's ID.
	DocumentID string

	// Chunks is how many chunks were stored.
	Chunks int

	// ZeroVectors counts chunks whose embedding failed and were
	// stored with a zero vector placeholder.
	ZeroVectors int

	// VectorIDs are the stored point IDs, needed to delete the
	// document later.
	VectorIDs []string
}

// Processor chunks, embeds and stores documents.
type Processor struct {
	chunker  *chunker.Chunker
	embedder embeddings.Embedder
	driver   vector.Driver
	logger   *slog.Logger
}

// New creates an ingestion processor.
func New(ch *chunker.Chunker, embedder embeddings.Embedder, driver vector.Driver, log *slog.Logger) *Processor {
	if ch == nil {
		ch = chunker.New()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Processor{
		chunker:  ch,
		embedder: embedder,
		driver:   driver,
		logger:   log,
	}
}

// Ingest chunks every page, embeds the chunks in one batch and upserts
// the resulting points.
func (p *Processor) Ingest(ctx context.Context, doc Document) (Result, error) {
	if doc.ID == "" {
		return Result{}, fmt.Errorf("document ID is required")
	}

	var (
		texts    []string
		payloads []vector.Payload
	)
	for _, page := range doc.Pages {
		for _, chunk := range p.chunker.Chunk(page.Text) {
			texts = append(texts, chunk.Text)
			payloads = append(payloads, vector.Payload{
				DocumentID:   doc.ID,
				ChunkID:      fmt.Sprintf("%s-p%d-c%d", doc.ID, page.Number, chunk.Index),
				Text:         chunk.Text,
				PageNumber:   page.Number,
				DocumentName: doc.Name,
				SessionID:    doc.SessionID,
				DocumentType: doc.Type,
				Metadata:     doc.Metadata,
			})
		}
	}

	if len(texts) == 0 {
		p.logger.Warn("document produced no chunks", "document_id", doc.ID)
		return Result{DocumentID: doc.ID}, nil
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts, embeddings.IntentDocument)
	if err != nil {
		return Result{}, fmt.Errorf("embedding document %s: %w", doc.ID, err)
	}
	if len(vectors) != len(texts) {
		return Result{}, fmt.Errorf("embedding document %s: got %d vectors for %d chunks", doc.ID, len(vectors), len(texts))
	}

	points := make([]vector.Point, len(texts))
	zeroes := 0
	for i := range texts {
		if embeddings.IsZero(vectors[i]) {
			zeroes++
		}
		points[i] = vector.Point{
			ID:      uuid.NewString(),
			Vector:  vectors[i],
			Payload: payloads[i],
		}
	}

	if err := p.driver.Upsert(ctx, points); err != nil {
		return Result{}, fmt.Errorf("storing document %s: %w", doc.ID, err)
	}

	ids := make([]string, len(points))
	for i, point := range points {
		ids[i] = point.ID
	}

	p.logger.Info("document ingested",
		"document_id", doc.ID,
		"chunks", len(points),
		"zero_vectors", zeroes,
	)

	return Result{
		DocumentID:  doc.ID,
		Chunks:      len(points),
		ZeroVectors: zeroes,
		VectorIDs:   ids,
	}, nil
}

// Delete removes a previously ingested document's points by the vector
// IDs its ingestion returned.
func (p *Processor) Delete(ctx context.Context, vectorIDs []string) error {
	if len(vectorIDs) == 0 {
		return nil
	}
	if err := p.driver.Delete(ctx, vectorIDs); err != nil {
		return fmt.Errorf("deleting document vectors: %w", err)
	}
	return nil
}
