package composer_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/javajedis/legalconnect-ai/pkg/composer"
	"github.com/javajedis/legalconnect-ai/pkg/vector"
)

func point(id string, score float32) vector.ScoredPoint {
	return vector.ScoredPoint{ID: id, Score: score}
}

var _ = Describe("Compose", func() {
	It("should return nothing for an empty budget", func() {
		pools := []composer.Pool{
			{Name: "general", Candidates: []vector.ScoredPoint{point("a", 0.9)}},
		}
		Expect(composer.Compose(pools, 0)).To(BeNil())
	})

	It("should sort candidates within a pool by score", func() {
		pools := []composer.Pool{
			{Name: "general", Candidates: []vector.ScoredPoint{
				point("low", 0.3), point("high", 0.9), point("mid", 0.6),
			}},
		}
		composed := composer.Compose(pools, 10)
		Expect(composed).To(HaveLen(3))
		Expect(composed[0].ID).To(Equal("high"))
		Expect(composed[1].ID).To(Equal("mid"))
		Expect(composed[2].ID).To(Equal("low"))
	})

	It("should give earlier pools priority over later ones", func() {
		pools := []composer.Pool{
			{Name: "session", Candidates: []vector.ScoredPoint{
				point("s1", 0.4), point("s2", 0.3),
			}},
			{Name: "general", Candidates: []vector.ScoredPoint{
				point("g1", 0.95), point("g2", 0.9),
			}},
		}
		composed := composer.Compose(pools, 3)
		Expect(composed).To(HaveLen(3))
		// Session documents come first even at lower scores.
		Expect(composed[0].ID).To(Equal("s1"))
		Expect(composed[1].ID).To(Equal("s2"))
		Expect(composed[2].ID).To(Equal("g1"))
	})

	It("should let later pools take the remainder", func() {
		pools := []composer.Pool{
			{Name: "session", Candidates: []vector.ScoredPoint{
				point("s1", 0.5), point("s2", 0.4),
			}},
			{Name: "general", Candidates: []vector.ScoredPoint{
				point("g1", 0.9), point("g2", 0.8), point("g3", 0.7),
				point("g4", 0.6), point("g5", 0.5),
			}},
		}
		composed := composer.Compose(pools, 6)
		Expect(composed).To(HaveLen(6))
		Expect(composed[0].ID).To(Equal("s1"))
		Expect(composed[1].ID).To(Equal("s2"))
		Expect(composed[2].ID).To(Equal("g1"))
		Expect(composed[5].ID).To(Equal("g4"))
	})

	It("should never exceed the budget", func() {
		pools := []composer.Pool{
			{Name: "session", Candidates: []vector.ScoredPoint{
				point("s1", 0.5), point("s2", 0.4), point("s3", 0.3),
			}},
			{Name: "general", Candidates: []vector.ScoredPoint{
				point("g1", 0.9),
			}},
		}
		composed := composer.Compose(pools, 2)
		Expect(composed).To(HaveLen(2))
		Expect(composed[0].ID).To(Equal("s1"))
		Expect(composed[1].ID).To(Equal("s2"))
	})

	It("should handle empty pools", func() {
		pools := []composer.Pool{
			{Name: "session"},
			{Name: "general", Candidates: []vector.ScoredPoint{point("g1", 0.9)}},
		}
		composed := composer.Compose(pools, 5)
		Expect(composed).To(HaveLen(1))
		Expect(composed[0].ID).To(Equal("g1"))
	})

	It("should not mutate the caller's pools", func() {
		candidates := []vector.ScoredPoint{point("low", 0.1), point("high", 0.9)}
		pools := []composer.Pool{{Name: "general", Candidates: candidates}}
		composer.Compose(pools, 5)
		Expect(candidates[0].ID).To(Equal("low"))
	})
})

var _ = Describe("AverageScore", func() {
	It("should return 0 for no points", func() {
		Expect(composer.AverageScore(nil)).To(BeZero())
	})

	It("should return the mean score", func() {
		points := []vector.ScoredPoint{point("a", 0.4), point("b", 0.8)}
		Expect(composer.AverageScore(points)).To(BeNumerically("~", 0.6, 0.0001))
	})
})
