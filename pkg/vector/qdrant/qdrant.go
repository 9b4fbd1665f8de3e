// Package qdrant provides a Qdrant-backed vector driver using the
// official gRPC client.
package qdrant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/qdrant/go-client/qdrant"

	"github.com/javajedis/legalconnect-ai/pkg/logger"
	"github.com/javajedis/legalconnect-ai/pkg/vector"
)

const (
	// DefaultCollection is the collection used when none is configured.
	DefaultCollection = "legal_documents"

	// DefaultPort is the Qdrant gRPC port.
	DefaultPort = 6334

	// upsertBatchSize caps how many points go into a single upsert call.
	upsertBatchSize = 100
)

// indexedFields get keyword payload indexes so filtered searches stay
// fast as the collection grows.
var indexedFields = []string{"session_id", "document_type", "document_id"}

// Driver implements vector.Driver against a Qdrant collection.
type Driver struct {
	client     *qdrant.Client
	collection string
	dims       uint64
	logger     *slog.Logger
}

// Config holds configuration for the Qdrant driver.
type Config struct {
	// Host is the Qdrant server host. Required.
	Host string

	// Port is the gRPC port. Defaults to DefaultPort.
	Port int

	// APIKey authenticates against Qdrant cloud. Optional.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// Collection is the collection name. Defaults to DefaultCollection.
	Collection string

	// Dimensions is the vector width of the collection. Required.
	Dimensions uint
}

// NewDriver connects to Qdrant and ensures the collection and its
// payload indexes exist.
func NewDriver(ctx context.Context, c Config, log *slog.Logger) (*Driver, error) {
	if c.Host == "" {
		return nil, fmt.Errorf("qdrant host is required")
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("qdrant embedding dimensions cannot be 0, must be configured")
	}

	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	collection := c.Collection
	if collection == "" {
		collection = DefaultCollection
	}
	if log == nil {
		log = logger.Nop()
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   c.Host,
		Port:   port,
		APIKey: c.APIKey,
		UseTLS: c.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to qdrant: %v", vector.ErrConnection, err)
	}

	d := &Driver{
		client:     client,
		collection: collection,
		dims:       uint64(c.Dimensions),
		logger:     log,
	}

	if err := d.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}

	log.Info("qdrant vector driver initialized",
		"host", c.Host,
		"collection", collection,
		"dimensions", c.Dimensions,
	)

	return d, nil
}

func (d *Driver) ensureCollection(ctx context.Context) error {
	exists, err := d.client.CollectionExists(ctx, d.collection)
	if err != nil {
		return fmt.Errorf("%w: checking collection: %v", vector.ErrConnection, err)
	}

	if !exists {
		err := d.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: d.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     d.dims,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("%w: creating collection: %v", vector.ErrConnection, err)
		}
	}

	// Index creation is idempotent.
	for _, field := range indexedFields {
		_, err := d.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: d.collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("creating payload index for %s: %w", field, err)
		}
	}

	return nil
}

func toValueMap(p vector.Payload) map[string]*qdrant.Value {
	fields := map[string]any{
		"document_id":   p.DocumentID,
		"chunk_id":      p.ChunkID,
		"text":          p.Text,
		"page_number":   int64(p.PageNumber),
		"document_name": p.DocumentName,
	}
	if p.SessionID != "" {
		fields["session_id"] = p.SessionID
	}
	if p.DocumentType != "" {
		fields["document_type"] = p.DocumentType
	}
	if len(p.Metadata) > 0 {
		meta := make(map[string]any, len(p.Metadata))
		for k, v := range p.Metadata {
			meta[k] = v
		}
		fields["metadata"] = meta
	}
	return qdrant.NewValueMap(fields)
}

func fromValueMap(values map[string]*qdrant.Value) vector.Payload {
	p := vector.Payload{
		DocumentID:   values["document_id"].GetStringValue(),
		ChunkID:      values["chunk_id"].GetStringValue(),
		Text:         values["text"].GetStringValue(),
		PageNumber:   int(values["page_number"].GetIntegerValue()),
		DocumentName: values["document_name"].GetStringValue(),
		SessionID:    values["session_id"].GetStringValue(),
		DocumentType: values["document_type"].GetStringValue(),
	}

	if meta := values["metadata"].GetStructValue(); meta != nil {
		p.Metadata = make(map[string]string, len(meta.Fields))
		for k, v := range meta.Fields {
			p.Metadata[k] = v.GetStringValue()
		}
	}

	return p
}

// Upsert stores points in batches, replacing any existing point with
// the same ID.
func (d *Driver) Upsert(ctx context.Context, points []vector.Point) error {
	if len(points) == 0 {
		return nil
	}

	for start := 0; start < len(points); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(points))

		batch := make([]*qdrant.PointStruct, 0, end-start)
		for _, point := range points[start:end] {
			if uint64(len(point.Vector)) != d.dims {
				return fmt.Errorf("%w: point %s has %d dimensions, collection has %d",
					vector.ErrDimensions, point.ID, len(point.Vector), d.dims)
			}
			batch = append(batch, &qdrant.PointStruct{
				Id:      qdrant.NewID(point.ID),
				Vectors: qdrant.NewVectors(point.Vector...),
				Payload: toValueMap(point.Payload),
			})
		}

		_, err := d.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: d.collection,
			Points:         batch,
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			return fmt.Errorf("%w: upserting points: %v", vector.ErrConnection, err)
		}
	}

	d.logger.Debug("upserted points to qdrant", "count", len(points))

	return nil
}

// Search finds the most similar points to the given embedding. The
// filter and score threshold are applied server side.
func (d *Driver) Search(ctx context.Context, embedding []float32, params vector.SearchParams) ([]vector.ScoredPoint, error) {
	topK := params.TopK
	if topK <= 0 {
		topK = 10
	}

	query := &qdrant.QueryPoints{
		CollectionName: d.collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if params.ScoreThreshold > 0 {
		query.ScoreThreshold = qdrant.PtrOf(params.ScoreThreshold)
	}
	if len(params.Filter) > 0 {
		conditions := make([]*qdrant.Condition, 0, len(params.Filter))
		for key, value := range params.Filter {
			conditions = append(conditions, qdrant.NewMatch(key, value))
		}
		query.Filter = &qdrant.Filter{Must: conditions}
	}

	scored, err := d.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: querying points: %v", vector.ErrConnection, err)
	}

	results := make([]vector.ScoredPoint, 0, len(scored))
	for _, point := range scored {
		results = append(results, vector.ScoredPoint{
			ID:      point.GetId().GetUuid(),
			Score:   point.GetScore(),
			Payload: fromValueMap(point.GetPayload()),
		})
	}

	d.logger.Debug("queried qdrant", "results", len(results))

	return results, nil
}

// Delete removes points by their IDs.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewID(id))
	}

	_, err := d.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: d.collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("%w: deleting points: %v", vector.ErrConnection, err)
	}

	d.logger.Debug("deleted points from qdrant", "count", len(ids))

	return nil
}

// Stats reports the state of the collection.
func (d *Driver) Stats(ctx context.Context) (vector.Stats, error) {
	info, err := d.client.GetCollectionInfo(ctx, d.collection)
	if err != nil {
		return vector.Stats{}, fmt.Errorf("%w: fetching collection info: %v", vector.ErrConnection, err)
	}

	return vector.Stats{
		Points:     info.GetPointsCount(),
		Dimensions: uint(d.dims),
		Status:     info.GetStatus().String(),
	}, nil
}

// Close releases the gRPC connection.
func (d *Driver) Close() error {
	return d.client.Close()
}

var _ vector.Driver = (*Driver)(nil)
