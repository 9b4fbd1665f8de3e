// Package chunker splits legal document text into overlapping,
// sentence-aligned chunks suitable for embedding and retrieval.
//
// Text is cleaned first (whitespace collapsed, characters outside the
// allowed scripts stripped), then split on sentence terminators. Both
// Latin terminators (. ! ?) and the Bengali danda (U+0964) are
// recognized so Bangladeshi statutes chunk along real sentence
// boundaries. Sentences are never split: a single sentence longer than
// the target size is emitted as one oversized chunk rather than broken
// mid-citation.
package chunker

import (
	"regexp"
	"strings"
)

const (
	// DefaultTargetSize is the default chunk size in characters.
	DefaultTargetSize = 1000

	// DefaultOverlap is the default number of trailing characters carried
	// into the next chunk.
	DefaultOverlap = 200
)

// Allowed characters: ASCII word characters, whitespace, Bengali and
// Arabic script ranges, the danda terminators, and basic punctuation.
// Everything else is replaced with a space during cleaning.
var (
	disallowedRe = regexp.MustCompile(`[^\w\s\x{0964}\x{0965}\x{0980}-\x{09FF}\x{0660}-\x{06FF}\x{0750}-\x{077F}.,;:!?()-]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	terminatorRe = regexp.MustCompile(`[.!?\x{0964}\x{0965}]+`)
	sentenceRe   = regexp.MustCompile(`[^.!?\x{0964}\x{0965}]+[.!?\x{0964}\x{0965}]*`)
)

// Chunk is a bounded contiguous span of cleaned document text. Index is
// assigned sequentially starting at 0 per input text.
type Chunk struct {
	Text   string
	Index  int
	Length int
}

// Chunker splits text into overlapping sentence-aligned chunks.
type Chunker struct {
	targetSize int
	overlap    int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithTargetSize sets the target chunk size in characters.
func WithTargetSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.targetSize = size
		}
	}
}

// WithOverlap sets the overlap between adjacent chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a Chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		targetSize: DefaultTargetSize,
		overlap:    DefaultOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.targetSize {
		c.overlap = c.targetSize / 4
	}
	return c
}

// Clean normalizes raw text: strips characters outside the allowed set
// and collapses whitespace runs into single spaces.
func Clean(text string) string {
	if text == "" {
		return ""
	}
	text = disallowedRe.ReplaceAllString(text, " ")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Chunk cleans the input and splits it into overlapping chunks.
// Empty or whitespace-only input yields a nil slice, not an error.
func (c *Chunker) Chunk(text string) []Chunk {
	cleaned := Clean(text)
	if cleaned == "" {
		return nil
	}

	sentences := splitSentences(cleaned)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []Chunk
	var current strings.Builder
	index := 0

	flush := func() {
		body := strings.TrimSpace(current.String())
		if body == "" {
			return
		}
		chunks = append(chunks, Chunk{
			Text:   body,
			Index:  index,
			Length: len(body),
		})
		index++
	}

	for _, sentence := range sentences {
		// Close the current chunk when appending would overflow the
		// target and there is already content buffered. A lone sentence
		// longer than targetSize is emitted whole.
		if current.Len() > 0 && current.Len()+len(sentence)+1 > c.targetSize {
			closed := strings.TrimSpace(current.String())
			flush()

			current.Reset()
			if c.overlap > 0 {
				overlap := overlapTail(closed, c.overlap)
				if overlap != "" {
					current.WriteString(overlap)
					current.WriteString(" ")
				}
			}
			current.WriteString(sentence)
			continue
		}

		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
	}

	flush()

	return chunks
}

// splitSentences splits cleaned text into sentences with their
// terminators attached. Trailing text without a terminator forms its own
// sentence.
func splitSentences(text string) []string {
	parts := sentenceRe.FindAllString(text, -1)
	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			sentences = append(sentences, p)
		}
	}
	return sentences
}

// overlapTail returns the trailing overlap window of a closed chunk,
// trimmed to start just past the first sentence terminator when one
// exists within the window. A chunk shorter than the window recurs in
// full.
func overlapTail(text string, overlap int) string {
	if len(text) <= overlap {
		return text
	}

	// Avoid slicing mid-rune; back off to a rune boundary.
	start := len(text) - overlap
	for start < len(text) && !isRuneStart(text[start]) {
		start++
	}
	window := text[start:]

	if loc := terminatorRe.FindStringIndex(window); loc != nil {
		tail := strings.TrimSpace(window[loc[1]:])
		if tail != "" {
			return tail
		}
	}

	return window
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
