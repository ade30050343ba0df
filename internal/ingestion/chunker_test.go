package ingestion

import (
	"context"
	"strings"
	"testing"

	"github.com/lexrag/lexrag/internal/repository"
)

func TestNewChunker_Defaults(t *testing.T) {
	chunker := NewChunker(repository.ChunkerConfig{})

	// Should apply defaults
	if chunker.config.TargetSize != 256 {
		t.Errorf("expected default TargetSize 256, got %d", chunker.config.TargetSize)
	}
	if chunker.config.MaxSize != 512 {
		t.Errorf("expected default MaxSize 512, got %d", chunker.config.MaxSize)
	}
	if chunker.config.Method != "heading" {
		t.Errorf("expected default Method 'heading', got %s", chunker.config.Method)
	}
}

func TestChunker_EmptyContent(t *testing.T) {
	chunker := NewChunker(repository.ChunkerConfig{Method: "fixed"})

	chunks := chunker.Chunk("")
	if chunks != nil {
		t.Errorf("expected nil for empty content, got %v", chunks)
	}

	chunks = chunker.Chunk("   ")
	if chunks != nil {
		t.Errorf("expected nil for whitespace content, got %v", chunks)
	}
}

func TestChunker_FixedMethod(t *testing.T) {
	chunker := NewChunker(repository.ChunkerConfig{
		Method:     "fixed",
		TargetSize: 10, // 10 words per chunk
		MaxSize:    20,
		Overlap:    2,
	})

	// Create content with 25 words
	words := make([]string, 25)
	for i := range words {
		words[i] = "word"
	}
	content := strings.Join(words, " ")

	chunks := chunker.Chunk(content)

	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}

	for i, chunk := range chunks {
		if chunk.Index != i {
			t.Errorf("chunk %d has wrong index %d", i, chunk.Index)
		}
		if chunk.Metadata["method"] != "fixed" {
			t.Errorf("chunk %d has wrong method %s", i, chunk.Metadata["method"])
		}
		if chunk.Content == "" {
			t.Errorf("chunk %d has empty content", i)
		}
		if got := len(strings.Fields(chunk.Content)); got > 10 {
			t.Errorf("chunk %d has %d words, want <= 10", i, got)
		}
	}
}

func TestChunker_SentenceMethod(t *testing.T) {
	chunker := NewChunker(repository.ChunkerConfig{
		Method:     "sentence",
		TargetSize: 20,
		MaxSize:    50,
		Overlap:    5,
	})

	content := "This is the first sentence. This is the second sentence. This is the third sentence."

	chunks := chunker.Chunk(content)

	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}

	for _, chunk := range chunks {
		if chunk.Metadata["method"] != "sentence" {
			t.Errorf("expected method 'sentence', got %s", chunk.Metadata["method"])
		}
	}
}

func TestChunker_SentenceMethod_LongSentenceSplit(t *testing.T) {
	chunker := NewChunker(repository.ChunkerConfig{
		Method:     "sentence",
		TargetSize: 5,
		MaxSize:    8,
		Overlap:    0,
	})

	// One run-on sentence of 20 words with no terminator
	content := strings.Repeat("word ", 20)

	chunks := chunker.Chunk(content)
	if len(chunks) < 2 {
		t.Fatalf("expected the long sentence to be split, got %d chunks", len(chunks))
	}
	for _, chunk := range chunks {
		if chunk.Metadata["split"] != "true" {
			t.Errorf("expected split marker on word-split chunk")
		}
	}
}

func TestChunker_HeadingMethod(t *testing.T) {
	chunker := NewChunker(repository.ChunkerConfig{
		Method:     "heading",
		TargetSize: 50,
		MaxSize:    100,
	})

	content := `Article 14
The State shall not deny to any person equality before the law.

Article 21
No person shall be deprived of his life or personal liberty except according to procedure established by law.`

	chunks := chunker.Chunk(content)

	if len(chunks) != 2 {
		t.Fatalf("expected 2 section chunks, got %d", len(chunks))
	}
	if chunks[0].Heading != "Article 14" {
		t.Errorf("expected heading 'Article 14', got %q", chunks[0].Heading)
	}
	if chunks[1].Heading != "Article 21" {
		t.Errorf("expected heading 'Article 21', got %q", chunks[1].Heading)
	}
	if strings.Contains(chunks[0].Content, "personal liberty") {
		t.Errorf("section boundary leaked content across headings")
	}
}

func TestChunker_HeadingMethod_MarkdownHeaders(t *testing.T) {
	chunker := NewChunker(repository.ChunkerConfig{Method: "heading"})

	content := "## Right to Equality\nbody text under the header."

	chunks := chunker.Chunk(content)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Heading != "Right to Equality" {
		t.Errorf("markdown marker should be stripped, got %q", chunks[0].Heading)
	}
}

func TestChunker_HeadingMethod_OversizedSection(t *testing.T) {
	chunker := NewChunker(repository.ChunkerConfig{
		Method:     "heading",
		TargetSize: 10,
		MaxSize:    15,
		Overlap:    0,
	})

	var sentences []string
	for i := 0; i < 10; i++ {
		sentences = append(sentences, "this sentence has exactly six words.")
	}
	content := "Section 12\n" + strings.Join(sentences, " ")

	chunks := chunker.Chunk(content)
	if len(chunks) < 2 {
		t.Fatalf("expected oversized section to be split, got %d chunks", len(chunks))
	}
	for i, chunk := range chunks {
		if chunk.Heading != "Section 12" {
			t.Errorf("chunk %d lost its section heading: %q", i, chunk.Heading)
		}
		if chunk.Index != i {
			t.Errorf("chunk %d has wrong index %d", i, chunk.Index)
		}
	}
}

func TestPipeline_Process(t *testing.T) {
	p := NewPipeline(PipelineConfig{
		Chunker:         repository.ChunkerConfig{Method: "sentence", TargetSize: 20, MaxSize: 50},
		DefaultMetadata: map[string]string{"corpus": "statutes"},
	})

	result, err := p.Process(context.Background(), "First sentence here. Second sentence here.", map[string]string{"source": "inline"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.ContentHash == "" {
		t.Error("expected a content hash")
	}
	if result.Stats.ChunkCount != len(result.Chunks) {
		t.Errorf("stats chunk count %d != %d", result.Stats.ChunkCount, len(result.Chunks))
	}
	for _, chunk := range result.Chunks {
		if chunk.Metadata["corpus"] != "statutes" {
			t.Errorf("default metadata not applied")
		}
		if chunk.Metadata["source"] != "inline" {
			t.Errorf("provided metadata not applied")
		}
		if chunk.Metadata["document_id"] != result.DocumentID.String() {
			t.Errorf("document_id not stamped on chunk")
		}
	}

	// Same content always hashes the same.
	again, _ := p.Process(context.Background(), "First sentence here. Second sentence here.", nil)
	if again.ContentHash != result.ContentHash {
		t.Errorf("content hash not deterministic")
	}
}

func TestPipeline_EmptyContent(t *testing.T) {
	p := NewPipeline(PipelineConfig{})

	if _, err := p.Process(context.Background(), "   ", nil); err == nil {
		t.Error("expected error for empty content")
	}
}
