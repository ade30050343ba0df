package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lexrag/lexrag/internal/repository"
)

// PipelineConfig holds configuration for the ingestion pipeline
type PipelineConfig struct {
	// Chunker configuration
	Chunker repository.ChunkerConfig

	// Additional metadata to include in all chunks
	DefaultMetadata map[string]string
}

// PipelineResult holds the result of processing content through the pipeline
type PipelineResult struct {
	// DocumentID is a unique identifier for this ingestion
	DocumentID uuid.UUID

	// ContentHash is the SHA-256 hash of the original content
	ContentHash string

	// Chunks contains all generated chunks
	Chunks []Chunk

	// Stats contains processing statistics
	Stats PipelineStats
}

// PipelineStats contains statistics about the pipeline execution
type PipelineStats struct {
	OriginalWordCount int
	ChunkCount        int
	TotalChunkWords   int
	ProcessingTime    time.Duration
}

// Pipeline orchestrates the ingestion process
type Pipeline struct {
	config  PipelineConfig
	chunker *Chunker
}

// NewPipeline creates a new ingestion pipeline
func NewPipeline(config PipelineConfig) *Pipeline {
	return &Pipeline{
		config:  config,
		chunker: NewChunker(config.Chunker),
	}
}

// Process chunks content and stamps every chunk with document identity and
// any configured default metadata.
func (p *Pipeline) Process(ctx context.Context, content string, metadata map[string]string) (*PipelineResult, error) {
	startTime := time.Now()

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("content cannot be empty")
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	documentID := uuid.New()
	contentHash := hashContent(content)

	chunks := p.chunker.Chunk(content)

	totalWords := 0
	for i := range chunks {
		if chunks[i].Metadata == nil {
			chunks[i].Metadata = make(map[string]string)
		}

		// Priority: chunk metadata > provided metadata > default metadata.
		for k, v := range p.config.DefaultMetadata {
			if _, exists := chunks[i].Metadata[k]; !exists {
				chunks[i].Metadata[k] = v
			}
		}
		for k, v := range metadata {
			if _, exists := chunks[i].Metadata[k]; !exists {
				chunks[i].Metadata[k] = v
			}
		}
		chunks[i].Metadata["document_id"] = documentID.String()

		totalWords += len(strings.Fields(chunks[i].Content))
	}

	return &PipelineResult{
		DocumentID:  documentID,
		ContentHash: contentHash,
		Chunks:      chunks,
		Stats: PipelineStats{
			OriginalWordCount: len(strings.Fields(content)),
			ChunkCount:        len(chunks),
			TotalChunkWords:   totalWords,
			ProcessingTime:    time.Since(startTime),
		},
	}, nil
}

// hashContent returns the hex SHA-256 of content.
func hashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
