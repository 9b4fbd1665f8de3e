package chunker_test

import (
	"fmt"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/javajedis/legalconnect-ai/pkg/chunker"
)

// sentence builds a deterministic sentence of exactly n bytes including
// the trailing period.
func sentence(i, n int) string {
	prefix := fmt.Sprintf("s%02d ", i)
	return prefix + strings.Repeat("x", n-len(prefix)-1) + "."
}

var _ = Describe("Clean", func() {
	It("collapses whitespace runs", func() {
		Expect(chunker.Clean("a  b\t\nc")).To(Equal("a b c"))
	})

	It("strips disallowed characters", func() {
		Expect(chunker.Clean("penal @@ code §")).To(Equal("penal code"))
	})

	It("keeps Bengali text and the danda", func() {
		Expect(chunker.Clean("ধারা ১। আইন")).To(Equal("ধারা ১। আইন"))
	})

	It("keeps basic punctuation", func() {
		Expect(chunker.Clean("section 12(b), part 3: done.")).To(Equal("section 12(b), part 3: done."))
	})

	It("returns empty string for empty input", func() {
		Expect(chunker.Clean("")).To(Equal(""))
	})
})

var _ = Describe("Chunker", func() {
	Describe("empty input", func() {
		It("returns no chunks for empty text", func() {
			c := chunker.New()
			Expect(c.Chunk("")).To(BeNil())
		})

		It("returns no chunks for whitespace-only text", func() {
			c := chunker.New()
			Expect(c.Chunk("   \n\t  ")).To(BeNil())
		})
	})

	Describe("small input", func() {
		It("emits a single chunk below target size", func() {
			c := chunker.New()
			chunks := c.Chunk("The court held that the contract was void. The appeal was dismissed.")
			Expect(chunks).To(HaveLen(1))
			Expect(chunks[0].Index).To(Equal(0))
			Expect(chunks[0].Length).To(Equal(len(chunks[0].Text)))
		})

		It("emits a single long sentence whole even above target size", func() {
			c := chunker.New(chunker.WithTargetSize(50), chunker.WithOverlap(10))
			long := strings.Repeat("word ", 30) + "end."
			chunks := c.Chunk(long)
			Expect(chunks).To(HaveLen(1))
			Expect(chunks[0].Length).To(BeNumerically(">", 50))
		})
	})

	Describe("sentence alignment", func() {
		It("splits on Bengali danda terminators", func() {
			c := chunker.New(chunker.WithTargetSize(40), chunker.WithOverlap(0))
			text := "ধারা এক প্রযোজ্য। ধারা দুই প্রযোজ্য। ধারা তিন প্রযোজ্য।"
			chunks := c.Chunk(text)
			Expect(len(chunks)).To(BeNumerically(">=", 2))
			for _, ch := range chunks {
				Expect(strings.HasSuffix(ch.Text, "।")).To(BeTrue(),
					"chunk should end at a danda boundary: %q", ch.Text)
			}
		})

		It("assigns sequential indexes starting at zero", func() {
			c := chunker.New(chunker.WithTargetSize(120), chunker.WithOverlap(0))
			var sb strings.Builder
			for i := range 10 {
				sb.WriteString(sentence(i, 60))
				sb.WriteString(" ")
			}
			chunks := c.Chunk(sb.String())
			Expect(len(chunks)).To(BeNumerically(">", 1))
			for i, ch := range chunks {
				Expect(ch.Index).To(Equal(i))
			}
		})
	})

	Describe("overlap", func() {
		It("produces exactly three chunks from a 2400-character document", func() {
			var sb strings.Builder
			for i := range 24 {
				if i > 0 {
					sb.WriteString(" ")
				}
				sb.WriteString(sentence(i, 100))
			}
			text := sb.String()
			Expect(len(text)).To(BeNumerically("~", 2400, 50))

			c := chunker.New(chunker.WithTargetSize(1000), chunker.WithOverlap(200))
			chunks := c.Chunk(text)
			Expect(chunks).To(HaveLen(3))
		})

		It("seeds each chunk with the tail of its predecessor", func() {
			var sb strings.Builder
			for i := range 24 {
				if i > 0 {
					sb.WriteString(" ")
				}
				sb.WriteString(sentence(i, 100))
			}

			c := chunker.New(chunker.WithTargetSize(1000), chunker.WithOverlap(200))
			chunks := c.Chunk(sb.String())
			Expect(len(chunks)).To(BeNumerically(">=", 2))

			for i := 1; i < len(chunks); i++ {
				prev := chunks[i-1].Text
				tail := prev
				if len(prev) > 200 {
					tail = prev[len(prev)-200:]
				}
				seed := chunks[i].Text
				if len(seed) > 80 {
					seed = seed[:80]
				}
				Expect(tail).To(ContainSubstring(seed),
					"chunk %d should start with content from the tail of chunk %d", i, i-1)
			}
		})

		It("carries no overlap when configured to zero", func() {
			var sb strings.Builder
			for i := range 8 {
				if i > 0 {
					sb.WriteString(" ")
				}
				sb.WriteString(sentence(i, 50))
			}

			c := chunker.New(chunker.WithTargetSize(120), chunker.WithOverlap(0))
			chunks := c.Chunk(sb.String())
			Expect(len(chunks)).To(BeNumerically(">", 1))

			// With zero overlap every sentence appears exactly once.
			joined := ""
			for _, ch := range chunks {
				joined += ch.Text + " "
			}
			for i := range 8 {
				marker := fmt.Sprintf("s%02d ", i)
				Expect(strings.Count(joined, marker)).To(Equal(1))
			}
		})
	})

	Describe("coverage", func() {
		It("covers every sentence of the cleaned input", func() {
			var sb strings.Builder
			for i := range 30 {
				if i > 0 {
					sb.WriteString(" ")
				}
				sb.WriteString(sentence(i, 80))
			}

			c := chunker.New(chunker.WithTargetSize(400), chunker.WithOverlap(100))
			chunks := c.Chunk(sb.String())

			joined := ""
			for _, ch := range chunks {
				joined += ch.Text + " "
			}
			for i := range 30 {
				Expect(joined).To(ContainSubstring(fmt.Sprintf("s%02d ", i)))
			}
		})

		It("respects the target size away from the long-sentence edge case", func() {
			var sb strings.Builder
			for i := range 40 {
				if i > 0 {
					sb.WriteString(" ")
				}
				sb.WriteString(sentence(i, 50))
			}

			c := chunker.New(chunker.WithTargetSize(300), chunker.WithOverlap(60))
			for _, ch := range c.Chunk(sb.String()) {
				Expect(ch.Length).To(BeNumerically("<=", 300+60+1))
			}
		})
	})
})
