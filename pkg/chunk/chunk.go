// Package chunk splits raw text into ordered, token-bounded chunks for
// extraction prompts. Chunk boundaries follow sentence boundaries; adjacent
// chunks may share trailing sentences up to the configured overlap budget.
package chunk

import (
	"fmt"
	"strings"
	"unicode"

	"graphrag/pkg/common"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the tiktoken encoding used to measure chunk sizes.
const DefaultEncoding = "o200k_base"

// Chunk is one ordered span of the source text. Start and End are sentence
// indexes into the split source.
type Chunk struct {
	ID    string
	Index int
	Start int
	End   int
	Text  string
}

// Splitter produces token-bounded chunks from raw text. ChunkSize and
// Overlap are measured in tokens of the configured encoding.
type Splitter struct {
	chunkSize int
	overlap   int
	encoder   *tiktoken.Tiktoken
}

// NewSplitter validates the chunking parameters and returns a Splitter.
// Overlap must be non-negative and strictly smaller than chunkSize.
func NewSplitter(chunkSize, overlap int, encoding string) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", common.ErrInvalidInput, chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", common.ErrInvalidInput, overlap, chunkSize)
	}
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load token encoding %q: %w", encoding, err)
	}
	return &Splitter{
		chunkSize: chunkSize,
		overlap:   overlap,
		encoder:   enc,
	}, nil
}

// Split produces the full chunk sequence for text, in source order. It is a
// pure function of its inputs. Empty or whitespace-only text is rejected
// with an invalid-input error.
func (s *Splitter) Split(text string) ([]Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is empty", common.ErrInvalidInput)
	}

	sentences := splitIntoSentences(text)
	if len(sentences) == 0 {
		return nil, fmt.Errorf("%w: text has no sentences", common.ErrInvalidInput)
	}

	tokenCounts := make([]int, len(sentences))
	for i, sentence := range sentences {
		tokenCounts[i] = len(s.encoder.Encode(sentence, nil, nil))
	}

	var chunks []Chunk
	start := 0
	for start < len(sentences) {
		end := start
		tokens := 0
		for end < len(sentences) {
			next := tokens + tokenCounts[end]
			// A single oversized sentence still forms a chunk on its own.
			if next > s.chunkSize && end > start {
				break
			}
			tokens = next
			end++
		}

		id, err := gonanoid.New()
		if err != nil {
			return nil, fmt.Errorf("failed to generate chunk ID: %w", err)
		}
		chunks = append(chunks, Chunk{
			ID:    id,
			Index: len(chunks),
			Start: start,
			End:   end,
			Text:  strings.Join(sentences[start:end], " "),
		})

		if end >= len(sentences) {
			break
		}
		next := s.overlapStart(end, tokenCounts)
		// The next chunk must always advance past the previous start.
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks, nil
}

// overlapStart walks backwards from the next chunk boundary, carrying whole
// trailing sentences into the next chunk while they fit the overlap budget.
func (s *Splitter) overlapStart(boundary int, tokenCounts []int) int {
	start := boundary
	carried := 0
	for start > 0 {
		carried += tokenCounts[start-1]
		if carried > s.overlap {
			break
		}
		start--
	}
	return start
}

func splitIntoSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	flush := func() {
		sentence := strings.TrimSpace(current.String())
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		current.Reset()
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}
		for _, part := range splitLineIntoSentences(trimmed) {
			if current.Len() > 0 {
				current.WriteString(" ")
			}
			current.WriteString(part)
			if endsSentence(part) {
				flush()
			}
		}
	}
	flush()

	return sentences
}

func endsSentence(s string) bool {
	s = strings.TrimRight(s, `"')]}`)
	return strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?")
}

func splitLineIntoSentences(line string) []string {
	var sentences []string
	var current strings.Builder

	for i := 0; i < len(line); i++ {
		current.WriteByte(line[i])

		if line[i] == '.' || line[i] == '!' || line[i] == '?' {
			// "1. item" style numeric listings do not end a sentence.
			if i > 0 && unicode.IsDigit(rune(line[i-1])) && i+1 < len(line) && line[i+1] == ' ' {
				continue
			}
			j := i + 1
			for j < len(line) && (line[j] == '.' || line[j] == '!' || line[j] == '?') {
				current.WriteByte(line[j])
				j++
			}
			for j < len(line) && (line[j] == '"' || line[j] == '\'' || line[j] == ')' ||
				line[j] == ']' || line[j] == '}') {
				current.WriteByte(line[j])
				j++
			}
			sentence := strings.TrimSpace(current.String())
			if sentence != "" {
				sentences = append(sentences, sentence)
			}
			current.Reset()
			i = j - 1
		}
	}

	remaining := strings.TrimSpace(current.String())
	if remaining != "" {
		sentences = append(sentences, remaining)
	}

	return sentences
}
