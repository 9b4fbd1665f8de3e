// Package chroma provides a vector driver backed by Chroma's REST API.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/javajedis/legalconnect-ai/pkg/vector"
)

const (
	// DefaultCollection is the collection used when none is configured.
	DefaultCollection = "legal_documents"

	defaultMaxRetries    = 3
	defaultRetryDelay    = 1 * time.Second
	defaultMaxRetryDelay = 10 * time.Second
)

// Config holds configuration for the Chroma driver.
type Config struct {
	// URL is the Chroma server URL (e.g., "http://localhost:8000").
	URL string

	// Collection is the collection name. Defaults to DefaultCollection.
	Collection string

	// Dimensions is the expected vector width. Zero skips the check.
	Dimensions uint

	// MaxRetries bounds connection attempts at startup.
	MaxRetries int

	// RetryDelay is the initial backoff between attempts.
	RetryDelay time.Duration

	// MaxRetryDelay caps the backoff.
	MaxRetryDelay time.Duration
}

// Driver implements vector.Driver using Chroma's REST API.
type Driver struct {
	baseURL      string
	collection   string
	collectionID string
	dimensions   uint
	httpClient   *http.Client
	log          *slog.Logger
}

// NewDriver connects to Chroma and ensures the collection exists,
// retrying with exponential backoff while the server starts up.
func NewDriver(ctx context.Context, c Config, log *slog.Logger) (*Driver, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("chroma URL is required")
	}

	collection := c.Collection
	if collection == "" {
		collection = DefaultCollection
	}

	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	retryDelay := c.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}
	maxRetryDelay := c.MaxRetryDelay
	if maxRetryDelay <= 0 {
		maxRetryDelay = defaultMaxRetryDelay
	}

	d := &Driver{
		baseURL:    c.URL,
		collection: collection,
		dimensions: c.Dimensions,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		log: log,
	}

	var collectionID string
	var err error
	delay := retryDelay
	for attempt := 1; attempt <= maxRetries; attempt++ {
		collectionID, err = d.getOrCreateCollection(ctx)
		if err == nil {
			break
		}
		if attempt == maxRetries {
			return nil, fmt.Errorf("connecting to chroma after %d attempts: %w", maxRetries, err)
		}

		log.Debug("chroma not ready, retrying",
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
	d.collectionID = collectionID

	log.Info("connected to chroma",
		"url", c.URL,
		"collection", collection,
		"collection_id", collectionID,
	)

	return d, nil
}

// getOrCreateCollection resolves the collection ID, creating the
// collection with cosine distance when it does not exist.
func (d *Driver) getOrCreateCollection(ctx context.Context) (string, error) {
	url := fmt.Sprintf("%s/api/v2/tenants/default_tenant/databases/default_database/collections/%s", d.baseURL, d.collection)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("creating get request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending get request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		var collection chromaCollection
		if err := json.NewDecoder(resp.Body).Decode(&collection); err != nil {
			return "", fmt.Errorf("decoding collection response: %w", err)
		}
		return collection.ID, nil
	}
	if resp.StatusCode != http.StatusNotFound {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("getting collection: status %d: %s", resp.StatusCode, string(body))
	}

	createURL := fmt.Sprintf("%s/api/v2/tenants/default_tenant/databases/default_database/collections", d.baseURL)
	createBody := map[string]any{
		"name": d.collection,
		// Cosine space so distances convert to scores as 1 - distance.
		"metadata": map[string]any{"hnsw:space": "cosine"},
	}
	jsonBody, err := json.Marshal(createBody)
	if err != nil {
		return "", fmt.Errorf("marshaling create request: %w", err)
	}

	req, err = http.NewRequestWithContext(ctx, "POST", createURL, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("creating create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err = d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending create request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("creating collection: status %d: %s", resp.StatusCode, string(body))
	}

	var collection chromaCollection
	if err := json.NewDecoder(resp.Body).Decode(&collection); err != nil {
		return "", fmt.Errorf("decoding create response: %w", err)
	}

	return collection.ID, nil
}

// Upsert stores points, replacing any existing point with the same ID.
func (d *Driver) Upsert(ctx context.Context, points []vector.Point) error {
	if len(points) == 0 {
		return nil
	}

	ids := make([]string, len(points))
	embeddings := make([][]float32, len(points))
	metadatas := make([]map[string]any, len(points))
	documents := make([]string, len(points))

	for i, pt := range points {
		if d.dimensions > 0 && uint(len(pt.Vector)) != d.dimensions {
			return fmt.Errorf("point %s has %d dimensions, index has %d: %w",
				pt.ID, len(pt.Vector), d.dimensions, vector.ErrDimensions)
		}
		ids[i] = pt.ID
		embeddings[i] = pt.Vector
		metadatas[i] = payloadToMetadata(pt.Payload)
		documents[i] = pt.Payload.Text
	}

	reqBody := chromaUpsertRequest{
		IDs:        ids,
		Embeddings: embeddings,
		Metadatas:  metadatas,
		Documents:  documents,
	}

	if err := d.post(ctx, "upsert", reqBody, nil); err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	d.log.Debug("upserted points to chroma", "count", len(points))
	return nil
}

// Search finds the most similar points to the given embedding.
func (d *Driver) Search(ctx context.Context, embedding []float32, params vector.SearchParams) ([]vector.ScoredPoint, error) {
	topK := params.TopK
	if topK <= 0 {
		topK = 10
	}

	reqBody := chromaQueryRequest{
		QueryEmbeddings: [][]float32{embedding},
		NResults:        topK,
		Include:         []string{"metadatas", "documents", "distances"},
	}
	if len(params.Filter) > 0 {
		reqBody.Where = filterToWhere(params.Filter)
	}

	var queryResp chromaQueryResponse
	if err := d.post(ctx, "query", reqBody, &queryResp); err != nil {
		return nil, fmt.Errorf("querying: %w", err)
	}

	if len(queryResp.IDs) == 0 || len(queryResp.IDs[0]) == 0 {
		return nil, nil
	}

	ids := queryResp.IDs[0]
	distances := queryResp.Distances[0]

	var metadatas []map[string]any
	if len(queryResp.Metadatas) > 0 {
		metadatas = queryResp.Metadatas[0]
	}
	var documents []string
	if len(queryResp.Documents) > 0 {
		documents = queryResp.Documents[0]
	}

	results := make([]vector.ScoredPoint, 0, len(ids))
	for i, id := range ids {
		var score float32
		if i < len(distances) {
			score = 1 - distances[i]
		}
		if params.ScoreThreshold > 0 && score < params.ScoreThreshold {
			continue
		}

		sp := vector.ScoredPoint{ID: id, Score: score}
		if i < len(metadatas) && metadatas[i] != nil {
			sp.Payload = metadataToPayload(metadatas[i])
		}
		if sp.Payload.Text == "" && i < len(documents) {
			sp.Payload.Text = documents[i]
		}
		results = append(results, sp)
	}

	d.log.Debug("queried chroma", "results", len(results))
	return results, nil
}

// Delete removes points by their IDs.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	if err := d.post(ctx, "delete", chromaDeleteRequest{IDs: ids}, nil); err != nil {
		return fmt.Errorf("deleting points: %w", err)
	}

	d.log.Debug("deleted points from chroma", "count", len(ids))
	return nil
}

// Stats reports the state of the backing index.
func (d *Driver) Stats(ctx context.Context) (vector.Stats, error) {
	url := fmt.Sprintf("%s/api/v2/tenants/default_tenant/databases/default_database/collections/%s/count", d.baseURL, d.collectionID)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return vector.Stats{}, fmt.Errorf("creating count request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return vector.Stats{}, fmt.Errorf("sending count request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return vector.Stats{}, fmt.Errorf("counting points: status %d: %s", resp.StatusCode, string(body))
	}

	var count uint64
	if err := json.NewDecoder(resp.Body).Decode(&count); err != nil {
		return vector.Stats{}, fmt.Errorf("decoding count response: %w", err)
	}

	return vector.Stats{
		Points:     count,
		Dimensions: d.dimensions,
		Status:     "green",
	}, nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	// The HTTP client needs no explicit cleanup.
	return nil
}

// post sends a JSON request to a collection endpoint and decodes the
// response into out when non-nil.
func (d *Driver) post(ctx context.Context, endpoint string, body any, out any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v2/tenants/default_tenant/databases/default_database/collections/%s/%s", d.baseURL, d.collectionID, endpoint)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}

func payloadToMetadata(p vector.Payload) map[string]any {
	md := map[string]any{}
	if p.DocumentID != "" {
		md["document_id"] = p.DocumentID
	}
	if p.ChunkID != "" {
		md["chunk_id"] = p.ChunkID
	}
	if p.PageNumber > 0 {
		md["page_number"] = p.PageNumber
	}
	if p.DocumentName != "" {
		md["document_name"] = p.DocumentName
	}
	if p.SessionID != "" {
		md["session_id"] = p.SessionID
	}
	if p.DocumentType != "" {
		md["document_type"] = p.DocumentType
	}
	for k, v := range p.Metadata {
		if _, reserved := md[k]; !reserved {
			md[k] = v
		}
	}
	return md
}

func metadataToPayload(md map[string]any) vector.Payload {
	p := vector.Payload{}
	for k, v := range md {
		switch k {
		case "document_id":
			p.DocumentID, _ = v.(string)
		case "chunk_id":
			p.ChunkID, _ = v.(string)
		case "page_number":
			if f, ok := v.(float64); ok {
				p.PageNumber = int(f)
			}
		case "document_name":
			p.DocumentName, _ = v.(string)
		case "session_id":
			p.SessionID, _ = v.(string)
		case "document_type":
			p.DocumentType, _ = v.(string)
		default:
			s, ok := v.(string)
			if !ok {
				continue
			}
			if p.Metadata == nil {
				p.Metadata = map[string]string{}
			}
			p.Metadata[k] = s
		}
	}
	return p
}

// filterToWhere converts an equality filter into Chroma's where clause.
func filterToWhere(f vector.Filter) map[string]any {
	if len(f) == 1 {
		for k, v := range f {
			return map[string]any{k: v}
		}
	}
	clauses := make([]map[string]any, 0, len(f))
	for k, v := range f {
		clauses = append(clauses, map[string]any{k: v})
	}
	return map[string]any{"$and": clauses}
}
