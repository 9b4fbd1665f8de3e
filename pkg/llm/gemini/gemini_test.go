package gemini_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/javajedis/legalconnect-ai/pkg/llm"
	"github.com/javajedis/legalconnect-ai/pkg/llm/gemini"
	"github.com/javajedis/legalconnect-ai/pkg/logger"
)

func generateHandler(capture *[]map[string]any, text string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if capture != nil {
			*capture = append(*capture, body)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{
					"content": map[string]any{
						"role":  "model",
						"parts": []map[string]any{{"text": text}},
					},
					"finishReason": "STOP",
				},
			},
		})
	}
}

var _ = Describe("Provider", func() {
	Describe("New", func() {
		It("should return an error when the API key is missing", func() {
			_, err := gemini.New(gemini.Config{})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("api key is required"))
		})
	})

	Describe("Generate", func() {
		It("should pass the system instruction and sampling options", func() {
			var requests []map[string]any
			server := httptest.NewServer(generateHandler(&requests, "the act provides bail"))
			defer server.Close()

			p, err := gemini.New(gemini.Config{
				APIKey:  "k",
				BaseURL: server.URL,
				Logger:  logger.Nop(),
			})
			Expect(err).NotTo(HaveOccurred())

			resp, err := p.Generate(context.Background(), llm.Request{
				System:      "You are a legal assistant.",
				Prompt:      "What is bail?",
				Temperature: 0.7,
				TopP:        0.8,
				TopK:        40,
				MaxTokens:   2048,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Text).To(Equal("the act provides bail"))

			system := requests[0]["systemInstruction"].(map[string]any)
			parts := system["parts"].([]any)
			Expect(parts[0].(map[string]any)["text"]).To(Equal("You are a legal assistant."))

			cfg := requests[0]["generationConfig"].(map[string]any)
			Expect(cfg["temperature"]).To(BeNumerically("~", 0.7, 0.0001))
			Expect(cfg["topK"]).To(BeNumerically("==", 40))
			Expect(cfg["maxOutputTokens"]).To(BeNumerically("==", 2048))
		})

		It("should join multiple response parts", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{
					"candidates": []map[string]any{
						{"content": map[string]any{"parts": []map[string]any{
							{"text": "part one "},
							{"text": "part two"},
						}}},
					},
				})
			}))
			defer server.Close()

			p, _ := gemini.New(gemini.Config{APIKey: "k", BaseURL: server.URL, Logger: logger.Nop()})
			resp, err := p.Generate(context.Background(), llm.Request{Prompt: "q"})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Text).To(Equal("part one part two"))
		})

		It("should error on an empty candidate list", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
			}))
			defer server.Close()

			p, _ := gemini.New(gemini.Config{
				APIKey:        "k",
				BaseURL:       server.URL,
				MaxRetries:    1,
				RetryDelay:    time.Millisecond,
				MaxRetryDelay: time.Millisecond,
				Logger:        logger.Nop(),
			})
			_, err := p.Generate(context.Background(), llm.Request{Prompt: "q"})
			Expect(err).To(MatchError(llm.ErrEmptyResponse))
		})

		It("should retry transient failures before succeeding", func() {
			var attempts atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if attempts.Add(1) <= 2 {
					http.Error(w, "overloaded", http.StatusServiceUnavailable)
					return
				}
				generateHandler(nil, "recovered")(w, r)
			}))
			defer server.Close()

			p, _ := gemini.New(gemini.Config{
				APIKey:        "k",
				BaseURL:       server.URL,
				MaxRetries:    3,
				RetryDelay:    time.Millisecond,
				MaxRetryDelay: 5 * time.Millisecond,
				Logger:        logger.Nop(),
			})

			resp, err := p.Generate(context.Background(), llm.Request{Prompt: "q"})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Text).To(Equal("recovered"))
			Expect(attempts.Load()).To(Equal(int32(3)))
		})

		It("should give up after exhausting retries", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "overloaded", http.StatusServiceUnavailable)
			}))
			defer server.Close()

			p, _ := gemini.New(gemini.Config{
				APIKey:        "k",
				BaseURL:       server.URL,
				MaxRetries:    2,
				RetryDelay:    time.Millisecond,
				MaxRetryDelay: 5 * time.Millisecond,
				Logger:        logger.Nop(),
			})

			_, err := p.Generate(context.Background(), llm.Request{Prompt: "q"})
			Expect(err).To(MatchError(llm.ErrGeneration))
		})
	})

	Describe("Interface compliance", func() {
		It("should implement llm.Provider", func() {
			var _ llm.Provider = (*gemini.Provider)(nil)
		})
	})
})
