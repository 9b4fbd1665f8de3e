package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/javajedis/legalconnect-ai/pkg/embeddings"
	"github.com/javajedis/legalconnect-ai/pkg/embeddings/ollama"
)

var _ = Describe("Embedder", func() {
	var (
		server   *httptest.Server
		requests []map[string]any
		respond  func() [][]float32
	)

	BeforeEach(func() {
		requests = nil
		respond = func() [][]float32 { return [][]float32{{0.1, 0.2}} }
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			requests = append(requests, body)
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{"embeddings": respond()})
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	newEmbedder := func() *ollama.Embedder {
		e, err := ollama.NewEmbedder(ollama.Config{BaseURL: server.URL, Dimensions: 2})
		Expect(err).NotTo(HaveOccurred())
		return e
	}

	Describe("Embed", func() {
		It("should prefix document inputs with the nomic document marker", func() {
			e := newEmbedder()
			vec, err := e.Embed(context.Background(), "contract law", embeddings.IntentDocument)
			Expect(err).NotTo(HaveOccurred())
			Expect(vec).To(Equal([]float32{0.1, 0.2}))
			Expect(requests[0]["input"]).To(Equal("search_document: contract law"))
		})

		It("should prefix query inputs with the nomic query marker", func() {
			e := newEmbedder()
			_, err := e.Embed(context.Background(), "what is bail", embeddings.IntentQuery)
			Expect(err).NotTo(HaveOccurred())
			Expect(requests[0]["input"]).To(Equal("search_query: what is bail"))
		})

		It("should reject empty text", func() {
			e := newEmbedder()
			_, err := e.Embed(context.Background(), "", embeddings.IntentQuery)
			Expect(err).To(MatchError(embeddings.ErrEmptyText))
			Expect(requests).To(BeEmpty())
		})

		It("should truncate oversized inputs at a rune boundary", func() {
			e := newEmbedder()
			// Three bytes per rune, so the byte limit lands mid-rune.
			_, err := e.Embed(context.Background(), strings.Repeat("আ", 7000), embeddings.IntentDocument)
			Expect(err).NotTo(HaveOccurred())

			input := requests[0]["input"].(string)
			text := strings.TrimPrefix(input, "search_document: ")
			Expect(len(text)).To(BeNumerically("<=", 8000))
			Expect(utf8.ValidString(text)).To(BeTrue())
			Expect(text).NotTo(ContainSubstring("�"))
		})

		It("should succeed after retrying transient failures", func() {
			var attempts atomic.Int32
			flaky := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if attempts.Add(1) == 1 {
					http.Error(w, "loading model", http.StatusInternalServerError)
					return
				}
				json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{{0.5, 0.5}}})
			}))
			defer flaky.Close()

			e, err := ollama.NewEmbedder(ollama.Config{
				BaseURL:       flaky.URL,
				Dimensions:    2,
				MaxRetries:    3,
				RetryDelay:    5 * time.Millisecond,
				MaxRetryDelay: 20 * time.Millisecond,
			})
			Expect(err).NotTo(HaveOccurred())

			vec, err := e.Embed(context.Background(), "contract law", embeddings.IntentDocument)
			Expect(err).NotTo(HaveOccurred())
			Expect(vec).To(Equal([]float32{0.5, 0.5}))
			Expect(attempts.Load()).To(Equal(int32(2)))
		})

		It("should return an error after exhausting all retries", func() {
			var attempts atomic.Int32
			down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				attempts.Add(1)
				http.Error(w, "overloaded", http.StatusInternalServerError)
			}))
			defer down.Close()

			e, err := ollama.NewEmbedder(ollama.Config{
				BaseURL:       down.URL,
				Dimensions:    2,
				MaxRetries:    3,
				RetryDelay:    5 * time.Millisecond,
				MaxRetryDelay: 20 * time.Millisecond,
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = e.Embed(context.Background(), "contract law", embeddings.IntentDocument)
			Expect(err).To(MatchError(embeddings.ErrEmbedding))
			Expect(attempts.Load()).To(Equal(int32(3)))
		})
	})

	Describe("EmbedBatch", func() {
		It("should send all inputs in one request", func() {
			respond = func() [][]float32 { return [][]float32{{1, 0}, {0, 1}} }
			e := newEmbedder()
			vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b"}, embeddings.IntentDocument)
			Expect(err).NotTo(HaveOccurred())
			Expect(vecs).To(HaveLen(2))
			Expect(requests).To(HaveLen(1))

			inputs := requests[0]["input"].([]any)
			Expect(inputs).To(Equal([]any{"search_document: a", "search_document: b"}))
		})

		It("should substitute a zero vector for empty embeddings", func() {
			respond = func() [][]float32 { return [][]float32{{1, 0}, {}} }
			e := newEmbedder()
			vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b"}, embeddings.IntentDocument)
			Expect(err).NotTo(HaveOccurred())
			Expect(embeddings.IsZero(vecs[1])).To(BeTrue())
			Expect(vecs[1]).To(HaveLen(2))
		})

		It("should error when the count does not match the inputs", func() {
			respond = func() [][]float32 { return [][]float32{{1, 0}} }
			e := newEmbedder()
			_, err := e.EmbedBatch(context.Background(), []string{"a", "b"}, embeddings.IntentDocument)
			Expect(err).To(MatchError(embeddings.ErrEmbedding))
		})

		It("should return nothing for an empty batch", func() {
			e := newEmbedder()
			vecs, err := e.EmbedBatch(context.Background(), nil, embeddings.IntentDocument)
			Expect(err).NotTo(HaveOccurred())
			Expect(vecs).To(BeNil())
			Expect(requests).To(BeEmpty())
		})
	})

	Describe("Interface compliance", func() {
		It("should implement embeddings.Embedder", func() {
			var _ embeddings.Embedder = (*ollama.Embedder)(nil)
		})
	})
})
