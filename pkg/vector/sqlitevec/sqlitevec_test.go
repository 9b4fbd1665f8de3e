package sqlitevec_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/javajedis/legalconnect-ai/pkg/logger"
	"github.com/javajedis/legalconnect-ai/pkg/vector"
	"github.com/javajedis/legalconnect-ai/pkg/vector/sqlitevec"
)

var _ = Describe("Driver", func() {
	newDriver := func() *sqlitevec.Driver {
		driver, err := sqlitevec.NewDriver(sqlitevec.Config{
			DBPath:     ":memory:",
			Dimensions: 4,
		}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		return driver
	}

	seedPoints := []vector.Point{
		{
			ID:     "pt-1",
			Vector: []float32{1, 0, 0, 0},
			Payload: vector.Payload{
				DocumentID:   "doc-a",
				ChunkID:      "doc-a-0",
				Text:         "the penal code applies",
				PageNumber:   1,
				DocumentName: "Penal Code",
				DocumentType: "statute",
			},
		},
		{
			ID:     "pt-2",
			Vector: []float32{0, 1, 0, 0},
			Payload: vector.Payload{
				DocumentID:   "doc-b",
				ChunkID:      "doc-b-0",
				Text:         "contract formation requires offer",
				PageNumber:   3,
				DocumentName: "Contract Act",
				DocumentType: "statute",
			},
		},
		{
			ID:     "pt-3",
			Vector: []float32{0.9, 0.1, 0, 0},
			Payload: vector.Payload{
				DocumentID:   "doc-c",
				ChunkID:      "doc-c-0",
				Text:         "uploaded clause about penalties",
				PageNumber:   1,
				DocumentName: "uploaded.pdf",
				SessionID:    "session-1",
				DocumentType: "chat_upload",
			},
		},
	}

	Describe("NewDriver", func() {
		It("should return an error when DBPath is empty", func() {
			_, err := sqlitevec.NewDriver(sqlitevec.Config{DBPath: ""}, logger.Nop())
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("database path is required"))
		})

		It("should create a driver with an in-memory database", func() {
			driver := newDriver()
			Expect(driver.Close()).To(Succeed())
		})

		It("should error when dimensions are not specified", func() {
			_, err := sqlitevec.NewDriver(sqlitevec.Config{DBPath: ":memory:"}, logger.Nop())
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Interface compliance", func() {
		It("should implement vector.Driver interface", func() {
			var _ vector.Driver = (*sqlitevec.Driver)(nil)
		})
	})

	Describe("Upsert", func() {
		var driver *sqlitevec.Driver

		BeforeEach(func() {
			driver = newDriver()
		})

		AfterEach(func() {
			Expect(driver.Close()).To(Succeed())
		})

		It("should do nothing when given no points", func() {
			Expect(driver.Upsert(context.Background(), nil)).To(Succeed())
		})

		It("should store points with their payloads", func() {
			Expect(driver.Upsert(context.Background(), seedPoints)).To(Succeed())

			stats, err := driver.Stats(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Points).To(Equal(uint64(3)))
		})

		It("should replace an existing point with the same ID", func() {
			Expect(driver.Upsert(context.Background(), seedPoints[:1])).To(Succeed())

			updated := seedPoints[0]
			updated.Vector = []float32{0, 0, 1, 0}
			updated.Payload.Text = "amended text"
			Expect(driver.Upsert(context.Background(), []vector.Point{updated})).To(Succeed())

			stats, err := driver.Stats(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Points).To(Equal(uint64(1)))

			results, err := driver.Search(context.Background(), []float32{0, 0, 1, 0}, vector.SearchParams{TopK: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].Payload.Text).To(Equal("amended text"))
		})

		It("should reject a vector with the wrong width", func() {
			err := driver.Upsert(context.Background(), []vector.Point{
				{ID: "bad", Vector: []float32{1, 0}},
			})
			Expect(err).To(MatchError(vector.ErrDimensions))
		})
	})

	Describe("Search", func() {
		var driver *sqlitevec.Driver

		BeforeEach(func() {
			driver = newDriver()
			Expect(driver.Upsert(context.Background(), seedPoints)).To(Succeed())
		})

		AfterEach(func() {
			Expect(driver.Close()).To(Succeed())
		})

		It("should return the closest points first", func() {
			results, err := driver.Search(context.Background(), []float32{1, 0, 0, 0}, vector.SearchParams{TopK: 3})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(3))
			Expect(results[0].ID).To(Equal("pt-1"))
			Expect(results[1].ID).To(Equal("pt-3"))
			Expect(results[0].Payload.DocumentName).To(Equal("Penal Code"))
		})

		It("should respect the topK limit", func() {
			results, err := driver.Search(context.Background(), []float32{1, 0, 0, 0}, vector.SearchParams{TopK: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
		})

		It("should drop results below the score threshold", func() {
			results, err := driver.Search(context.Background(), []float32{1, 0, 0, 0}, vector.SearchParams{
				TopK:           10,
				ScoreThreshold: 0.5,
			})
			Expect(err).NotTo(HaveOccurred())
			// pt-2 is orthogonal to the query and scores ~0.
			Expect(results).To(HaveLen(2))
			for _, r := range results {
				Expect(r.Score).To(BeNumerically(">=", 0.5))
			}
		})

		It("should restrict results by payload filter", func() {
			results, err := driver.Search(context.Background(), []float32{1, 0, 0, 0}, vector.SearchParams{
				TopK:   10,
				Filter: vector.Filter{"session_id": "session-1"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].ID).To(Equal("pt-3"))
		})

		It("should return scores in descending order", func() {
			results, err := driver.Search(context.Background(), []float32{0.7, 0.3, 0, 0}, vector.SearchParams{TopK: 3})
			Expect(err).NotTo(HaveOccurred())
			for i := 1; i < len(results); i++ {
				Expect(results[i-1].Score).To(BeNumerically(">=", results[i].Score))
			}
		})
	})

	Describe("Delete", func() {
		var driver *sqlitevec.Driver

		BeforeEach(func() {
			driver = newDriver()
			Expect(driver.Upsert(context.Background(), seedPoints)).To(Succeed())
		})

		AfterEach(func() {
			Expect(driver.Close()).To(Succeed())
		})

		It("should do nothing when given no IDs", func() {
			Expect(driver.Delete(context.Background(), nil)).To(Succeed())
		})

		It("should remove deleted points from search results", func() {
			Expect(driver.Delete(context.Background(), []string{"pt-1"})).To(Succeed())

			results, err := driver.Search(context.Background(), []float32{1, 0, 0, 0}, vector.SearchParams{TopK: 10})
			Expect(err).NotTo(HaveOccurred())
			for _, r := range results {
				Expect(r.ID).NotTo(Equal("pt-1"))
			}

			stats, err := driver.Stats(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Points).To(Equal(uint64(2)))
		})

		It("should not error when deleting non-existent IDs", func() {
			Expect(driver.Delete(context.Background(), []string{"nonexistent"})).To(Succeed())
		})
	})

	Describe("Stats", func() {
		It("should report the configured dimensions", func() {
			driver := newDriver()
			defer driver.Close()

			stats, err := driver.Stats(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Dimensions).To(Equal(uint(4)))
			Expect(stats.Points).To(Equal(uint64(0)))
		})
	})
})
