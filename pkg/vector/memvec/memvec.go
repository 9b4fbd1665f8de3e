// Package memvec provides an in-memory implementation of the vector.Driver
// interface.
//
// Points live in a mutex-guarded map and searches do a brute-force cosine
// scan. This is a local-dev and test story — production deployments use
// the Qdrant or sqlite-vec backends.
package memvec

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/javajedis/legalconnect-ai/pkg/vector"
)

// Config holds configuration for the in-memory driver.
type Config struct {
	// Dimensions is the vector width the driver accepts. Required.
	Dimensions uint
}

// Driver implements vector.Driver using in-process data structures.
type Driver struct {
	dims uint

	mu sync.RWMutex

	// points maps point ID -> stored point.
	points map[string]vector.Point
}

// NewDriver creates an in-memory vector driver.
func NewDriver(c Config) (*Driver, error) {
	if c.Dimensions == 0 {
		return nil, vector.ErrDimensions
	}
	return &Driver{
		dims:   c.Dimensions,
		points: make(map[string]vector.Point),
	}, nil
}

// Upsert stores points, replacing any existing point with the same ID.
func (d *Driver) Upsert(_ context.Context, points []vector.Point) error {
	if len(points) == 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, point := range points {
		if uint(len(point.Vector)) != d.dims {
			return vector.ErrDimensions
		}
		d.points[point.ID] = point
	}

	return nil
}

// Search scans all stored points and returns the topK by cosine
// similarity, after applying the filter and score threshold.
func (d *Driver) Search(_ context.Context, embedding []float32, params vector.SearchParams) ([]vector.ScoredPoint, error) {
	if uint(len(embedding)) != d.dims {
		return nil, vector.ErrDimensions
	}

	topK := params.TopK
	if topK <= 0 {
		topK = 10
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var results []vector.ScoredPoint
	for _, point := range d.points {
		if !params.Filter.Matches(point.Payload) {
			continue
		}

		score := cosine(embedding, point.Vector)
		if params.ScoreThreshold > 0 && score < params.ScoreThreshold {
			continue
		}

		results = append(results, vector.ScoredPoint{
			ID:      point.ID,
			Score:   score,
			Payload: point.Payload,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > topK {
		results = results[:topK]
	}

	return results, nil
}

// Delete removes points by their IDs.
func (d *Driver) Delete(_ context.Context, ids []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, id := range ids {
		delete(d.points, id)
	}

	return nil
}

// Stats reports the state of the store.
func (d *Driver) Stats(_ context.Context) (vector.Stats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return vector.Stats{
		Points:     uint64(len(d.points)),
		Dimensions: d.dims,
		Status:     "ok",
	}, nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}

func cosine(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

var _ vector.Driver = (*Driver)(nil)
