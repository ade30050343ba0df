// Package vectorstore provides interfaces and implementations for vector similarity search.
package vectorstore

import (
	"context"
)

// SparseVector represents a sparse vector with indices and values
type SparseVector struct {
	Indices []uint32
	Values  []float32
}

// Passage represents an indexed passage with its embedding
type Passage struct {
	ID           string
	DocumentID   string
	Content      string
	Title        string
	Heading      string
	Vector       []float32     // Dense vector from embedding model
	SparseVector *SparseVector // Optional sparse vector for keyword search
	Metadata     map[string]string
}

// SearchResult represents a search result from the vector store
type SearchResult struct {
	ID         string
	DocumentID string
	Content    string
	Title      string
	Heading    string
	Score      float32
	Metadata   map[string]string
}

// VectorStore defines the interface for vector storage operations
type VectorStore interface {
	// EnsureCollection creates the passage collection if it does not exist.
	// The collection supports both dense and sparse vectors.
	EnsureCollection(ctx context.Context, dimension int) error

	// Upsert inserts or updates passages in the vector store
	Upsert(ctx context.Context, passages []Passage) error

	// Search performs similarity search using dense vectors only
	Search(ctx context.Context, vector []float32, topK int, minScore float32) ([]SearchResult, error)

	// HybridSearch performs hybrid search combining dense and sparse vectors with RRF fusion
	HybridSearch(ctx context.Context, denseVector []float32, sparseVector *SparseVector, topK int, minScore float32) ([]SearchResult, error)

	// DeleteByDocument removes all passages belonging to a document
	DeleteByDocument(ctx context.Context, documentID string) error
}
