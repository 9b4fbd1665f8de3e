package chroma_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/javajedis/legalconnect-ai/pkg/logger"
	"github.com/javajedis/legalconnect-ai/pkg/vector"
	"github.com/javajedis/legalconnect-ai/pkg/vector/chroma"
)

// fakeChroma serves just enough of the Chroma v2 REST surface for the
// driver to operate against.
type fakeChroma struct {
	queryResponse  map[string]any
	lastQueryBody  map[string]any
	lastUpsertBody map[string]any
	deletedIDs     []string
	count          uint64
}

func (f *fakeChroma) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == "GET" && strings.HasSuffix(r.URL.Path, "/collections/legal_documents"):
			json.NewEncoder(w).Encode(map[string]string{"id": "col-1", "name": "legal_documents"})
		case r.Method == "GET" && strings.HasSuffix(r.URL.Path, "/count"):
			json.NewEncoder(w).Encode(f.count)
		case strings.HasSuffix(r.URL.Path, "/upsert"):
			json.NewDecoder(r.Body).Decode(&f.lastUpsertBody)
			w.WriteHeader(http.StatusCreated)
		case strings.HasSuffix(r.URL.Path, "/query"):
			json.NewDecoder(r.Body).Decode(&f.lastQueryBody)
			json.NewEncoder(w).Encode(f.queryResponse)
		case strings.HasSuffix(r.URL.Path, "/delete"):
			var body map[string][]string
			json.NewDecoder(r.Body).Decode(&body)
			f.deletedIDs = body["ids"]
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	})
}

var _ = Describe("Driver", func() {
	var (
		log    *slog.Logger
		fake   *fakeChroma
		server *httptest.Server
		driver *chroma.Driver
	)

	BeforeEach(func() {
		log = logger.Nop()
		fake = &fakeChroma{count: 42}
		server = httptest.NewServer(fake.handler())
		DeferCleanup(server.Close)

		var err error
		driver, err = chroma.NewDriver(context.Background(), chroma.Config{
			URL:        server.URL,
			Collection: "legal_documents",
			Dimensions: 3,
		}, log)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewDriver", func() {
		It("returns an error when URL is empty", func() {
			_, err := chroma.NewDriver(context.Background(), chroma.Config{}, log)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("chroma URL is required"))
		})

		It("succeeds after retrying when chroma becomes available", func() {
			var attempts atomic.Int32

			flaky := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if attempts.Add(1) <= 2 {
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
					return
				}
				json.NewEncoder(w).Encode(map[string]string{"id": "col-1", "name": "legal_documents"})
			}))
			defer flaky.Close()

			d, err := chroma.NewDriver(context.Background(), chroma.Config{
				URL:           flaky.URL,
				MaxRetries:    5,
				RetryDelay:    10 * time.Millisecond,
				MaxRetryDelay: 50 * time.Millisecond,
			}, log)
			Expect(err).NotTo(HaveOccurred())
			Expect(d).NotTo(BeNil())
			Expect(attempts.Load()).To(BeNumerically(">=", int32(3)))
		})

		It("returns an error after exhausting all retries", func() {
			down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			}))
			defer down.Close()

			_, err := chroma.NewDriver(context.Background(), chroma.Config{
				URL:           down.URL,
				MaxRetries:    3,
				RetryDelay:    10 * time.Millisecond,
				MaxRetryDelay: 50 * time.Millisecond,
			}, log)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("after 3 attempts"))
		})
	})

	Describe("Upsert", func() {
		It("sends ids, embeddings, metadata and documents", func() {
			err := driver.Upsert(context.Background(), []vector.Point{
				{
					ID:     "pt-1",
					Vector: []float32{1, 0, 0},
					Payload: vector.Payload{
						DocumentID:   "doc-a",
						DocumentName: "Penal Code",
						DocumentType: "statute",
						PageNumber:   3,
						Text:         "Section 420",
					},
				},
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(fake.lastUpsertBody["ids"]).To(ConsistOf("pt-1"))
			Expect(fake.lastUpsertBody["documents"]).To(ConsistOf("Section 420"))
			metadatas := fake.lastUpsertBody["metadatas"].([]any)
			md := metadatas[0].(map[string]any)
			Expect(md["document_id"]).To(Equal("doc-a"))
			Expect(md["document_type"]).To(Equal("statute"))
			Expect(md["page_number"]).To(BeNumerically("==", 3))
		})

		It("rejects vectors with the wrong width", func() {
			err := driver.Upsert(context.Background(), []vector.Point{
				{ID: "pt-1", Vector: []float32{1, 0}},
			})
			Expect(err).To(MatchError(vector.ErrDimensions))
		})

		It("is a no-op for an empty batch", func() {
			Expect(driver.Upsert(context.Background(), nil)).To(Succeed())
			Expect(fake.lastUpsertBody).To(BeNil())
		})
	})

	Describe("Search", func() {
		BeforeEach(func() {
			fake.queryResponse = map[string]any{
				"ids":       [][]string{{"pt-1", "pt-2"}},
				"distances": [][]float32{{0.1, 0.6}},
				"metadatas": [][]map[string]any{{
					{"document_id": "doc-a", "document_name": "Penal Code"},
					{"document_id": "doc-b"},
				}},
				"documents": [][]string{{"Section 420", "Section 421"}},
			}
		})

		It("converts distances to similarity scores", func() {
			results, err := driver.Search(context.Background(), []float32{1, 0, 0}, vector.SearchParams{TopK: 5})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			Expect(results[0].Score).To(BeNumerically("~", 0.9, 0.001))
			Expect(results[0].Payload.DocumentName).To(Equal("Penal Code"))
			Expect(results[0].Payload.Text).To(Equal("Section 420"))
		})

		It("drops results below the score threshold", func() {
			results, err := driver.Search(context.Background(), []float32{1, 0, 0}, vector.SearchParams{
				TopK:           5,
				ScoreThreshold: 0.5,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].ID).To(Equal("pt-1"))
		})

		It("sends an equality where clause for filters", func() {
			_, err := driver.Search(context.Background(), []float32{1, 0, 0}, vector.SearchParams{
				TopK:   5,
				Filter: vector.Filter{"session_id": "sess-1"},
			})
			Expect(err).NotTo(HaveOccurred())

			where := fake.lastQueryBody["where"].(map[string]any)
			Expect(where["session_id"]).To(Equal("sess-1"))
		})
	})

	Describe("Delete", func() {
		It("removes points by id", func() {
			err := driver.Delete(context.Background(), []string{"pt-1", "pt-2"})
			Expect(err).NotTo(HaveOccurred())
			Expect(fake.deletedIDs).To(ConsistOf("pt-1", "pt-2"))
		})
	})

	Describe("Stats", func() {
		It("reports the point count", func() {
			stats, err := driver.Stats(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Points).To(Equal(uint64(42)))
			Expect(stats.Dimensions).To(Equal(uint(3)))
		})
	})

	It("implements vector.Driver", func() {
		var _ vector.Driver = (*chroma.Driver)(nil)
	})
})
