package chunk

import (
	"errors"
	"strings"
	"testing"

	"graphrag/pkg/common"
)

func TestNewSplitter_RejectsBadParams(t *testing.T) {
	cases := []struct {
		name      string
		chunkSize int
		overlap   int
	}{
		{"zero chunk size", 0, 0},
		{"negative overlap", 100, -1},
		{"overlap equals size", 100, 100},
		{"overlap above size", 100, 150},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSplitter(tc.chunkSize, tc.overlap, "")
			if !errors.Is(err, common.ErrInvalidInput) {
				t.Fatalf("expected invalid input error, got %v", err)
			}
		})
	}
}

func TestSplit_EmptyText(t *testing.T) {
	s, err := NewSplitter(128, 16, "")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	for _, text := range []string{"", "   \n\t  "} {
		_, err := s.Split(text)
		if !errors.Is(err, common.ErrInvalidInput) {
			t.Fatalf("expected invalid input error for %q, got %v", text, err)
		}
	}
}

func TestSplit_SingleChunk(t *testing.T) {
	s, err := NewSplitter(512, 32, "")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	chunks, err := s.Split("Adam works at Microsoft. Microsoft produces Word.")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Index != 0 {
		t.Fatalf("expected index 0, got %d", chunks[0].Index)
	}
	if !strings.Contains(chunks[0].Text, "Adam works at Microsoft.") {
		t.Fatalf("chunk text missing sentence: %q", chunks[0].Text)
	}
}

func TestSplit_OrderAndBounds(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 120; i++ {
		b.WriteString("The quick brown fox jumps over the lazy dog near the river bank. ")
	}

	s, err := NewSplitter(64, 8, "")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	chunks, err := s.Split(b.String())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Fatalf("expected index %d, got %d", i, c.Index)
		}
		if c.Start >= c.End {
			t.Fatalf("chunk %d has invalid bounds [%d, %d)", i, c.Start, c.End)
		}
		if c.ID == "" {
			t.Fatalf("chunk %d has empty ID", i)
		}
		if i > 0 && c.Start >= chunks[i-1].End {
			continue
		}
	}
	// Chunks cover the source in order.
	for i := 1; i < len(chunks); i++ {
		if chunks[i].Start <= chunks[i-1].Start {
			t.Fatalf("chunk %d does not advance: start %d after %d", i, chunks[i].Start, chunks[i-1].Start)
		}
	}
	if chunks[len(chunks)-1].End != 120 {
		t.Fatalf("expected last chunk to end at 120, got %d", chunks[len(chunks)-1].End)
	}
}

func TestSplit_OverlapCarriesSentences(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("Quantum mechanics describes nature at the smallest scales of atoms. ")
	}

	s, err := NewSplitter(64, 24, "")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	chunks, err := s.Split(b.String())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	overlapped := false
	for i := 1; i < len(chunks); i++ {
		if chunks[i].Start < chunks[i-1].End {
			overlapped = true
		}
	}
	if !overlapped {
		t.Fatal("expected at least one pair of overlapping chunks")
	}
}

func TestSplit_Deterministic(t *testing.T) {
	s, err := NewSplitter(64, 8, "")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	text := "Planck introduced quantized energy in 1900. Einstein explained the photoelectric effect. Bohr proposed his model of the atom in 1913."

	a, err := s.Split(text)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	b, err := s.Split(text)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("expected identical chunk counts, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Text != b[i].Text || a[i].Start != b[i].Start || a[i].End != b[i].End {
			t.Fatalf("chunk %d differs between runs", i)
		}
	}
}
