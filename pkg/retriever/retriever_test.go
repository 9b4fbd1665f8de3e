package retriever_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/javajedis/legalconnect-ai/pkg/embeddings"
	"github.com/javajedis/legalconnect-ai/pkg/retriever"
	"github.com/javajedis/legalconnect-ai/pkg/vector"
	"github.com/javajedis/legalconnect-ai/pkg/vector/memvec"
)

// fakeEmbedder returns a fixed vector, or an error when broken.
type fakeEmbedder struct {
	vec    []float32
	broken bool
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string, _ embeddings.Intent) ([]float32, error) {
	if f.broken {
		return nil, errors.New("provider down")
	}
	return f.vec, nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string, _ embeddings.Intent) ([][]float32, error) {
	if f.broken {
		return nil, errors.New("provider down")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return len(f.vec) }
func (f *fakeEmbedder) Close() error    { return nil }

// failingDriver errors on every call.
type failingDriver struct{}

func (failingDriver) Upsert(context.Context, []vector.Point) error { return errors.New("down") }
func (failingDriver) Search(context.Context, []float32, vector.SearchParams) ([]vector.ScoredPoint, error) {
	return nil, errors.New("down")
}
func (failingDriver) Delete(context.Context, []string) error       { return errors.New("down") }
func (failingDriver) Stats(context.Context) (vector.Stats, error)  { return vector.Stats{}, errors.New("down") }
func (failingDriver) Close() error                                 { return nil }

var _ = Describe("Retriever", func() {
	var driver *memvec.Driver

	BeforeEach(func() {
		var err error
		driver, err = memvec.NewDriver(memvec.Config{Dimensions: 3})
		Expect(err).NotTo(HaveOccurred())

		err = driver.Upsert(context.Background(), []vector.Point{
			{ID: "pt-1", Vector: []float32{1, 0, 0}, Payload: vector.Payload{DocumentName: "Penal Code"}},
			{ID: "pt-2", Vector: []float32{0.9, 0.1, 0}, Payload: vector.Payload{DocumentName: "Evidence Act", SessionID: "s1"}},
			{ID: "pt-3", Vector: []float32{0, 1, 0}, Payload: vector.Payload{DocumentName: "Contract Act"}},
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("should return candidates ranked by score", func() {
		r := retriever.New(&fakeEmbedder{vec: []float32{1, 0, 0}}, driver, nil)
		result := r.Retrieve(context.Background(), "penal code", vector.SearchParams{TopK: 2})
		Expect(result.Degraded).To(BeFalse())
		Expect(result.Candidates).To(HaveLen(2))
		Expect(result.Candidates[0].Payload.DocumentName).To(Equal("Penal Code"))
	})

	It("should pass the filter through to the index", func() {
		r := retriever.New(&fakeEmbedder{vec: []float32{1, 0, 0}}, driver, nil)
		result := r.Retrieve(context.Background(), "penal code", vector.SearchParams{
			TopK:   5,
			Filter: vector.Filter{"session_id": "s1"},
		})
		Expect(result.Candidates).To(HaveLen(1))
		Expect(result.Candidates[0].ID).To(Equal("pt-2"))
	})

	It("should degrade when the embedder fails", func() {
		r := retriever.New(&fakeEmbedder{broken: true}, driver, nil)
		result := r.Retrieve(context.Background(), "penal code", vector.SearchParams{TopK: 5})
		Expect(result.Degraded).To(BeTrue())
		Expect(result.Reason).To(ContainSubstring("embedding"))
		Expect(result.Candidates).To(BeEmpty())
	})

	It("should degrade when the index is unreachable", func() {
		r := retriever.New(&fakeEmbedder{vec: []float32{1, 0, 0}}, failingDriver{}, nil)
		result := r.Retrieve(context.Background(), "penal code", vector.SearchParams{TopK: 5})
		Expect(result.Degraded).To(BeTrue())
		Expect(result.Reason).To(ContainSubstring("search"))
	})

	It("should return an empty non-degraded result when nothing clears the threshold", func() {
		r := retriever.New(&fakeEmbedder{vec: []float32{0, 0, 1}}, driver, nil)
		result := r.Retrieve(context.Background(), "unrelated", vector.SearchParams{
			TopK:           5,
			ScoreThreshold: 0.9,
		})
		Expect(result.Degraded).To(BeFalse())
		Expect(result.Candidates).To(BeEmpty())
	})
})
