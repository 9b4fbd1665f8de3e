// Package composer merges retrieval pools into a bounded context window.
//
// Pools are consumed in priority order: earlier pools fill the budget
// first, later pools get whatever remains. Within a pool, higher scores
// win.
package composer

import (
	"sort"

	"github.com/javajedis/legalconnect-ai/pkg/vector"
)

// Pool is a named group of candidates sharing a priority level.
type Pool struct {
	// Name labels the pool for diagnostics.
	Name string

	// Candidates are the pool's scored points, any order.
	Candidates []vector.ScoredPoint
}

// Compose selects at most budget candidates across the pools,
// exhausting each pool before moving to the next. A non-positive
// budget yields nothing.
func Compose(pools []Pool, budget int) []vector.ScoredPoint {
	if budget <= 0 {
		return nil
	}

	var composed []vector.ScoredPoint
	for _, pool := range pools {
		remaining := budget - len(composed)
		if remaining <= 0 {
			break
		}

		candidates := make([]vector.ScoredPoint, len(pool.Candidates))
		copy(candidates, pool.Candidates)
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Score > candidates[j].Score
		})

		if len(candidates) > remaining {
			candidates = candidates[:remaining]
		}
		composed = append(composed, candidates...)
	}

	return composed
}

// AverageScore returns the mean score of the points, 0 for none.
func AverageScore(points []vector.ScoredPoint) float64 {
	if len(points) == 0 {
		return 0
	}
	var sum float64
	for _, p := range points {
		sum += float64(p.Score)
	}
	return sum / float64(len(points))
}
