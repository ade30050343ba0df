package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lexrag/lexrag/internal/crawler"
	"github.com/lexrag/lexrag/internal/embedder"
	"github.com/lexrag/lexrag/internal/ingestion"
	"github.com/lexrag/lexrag/internal/repository"
	"github.com/lexrag/lexrag/internal/retrieval"
	"github.com/lexrag/lexrag/internal/vectorstore"
)

// sourceInline marks documents ingested from request bodies rather than URLs.
const sourceInline = "inline"

var (
	// ErrEmptyDocument is returned when an ingest request has neither
	// content nor a URL.
	ErrEmptyDocument = errors.New("either content or url is required")
	// ErrAmbiguousSource is returned when an ingest request has both
	// content and a URL.
	ErrAmbiguousSource = errors.New("content and url are mutually exclusive")
)

// IngestRequest describes a document to index.
type IngestRequest struct {
	Content  string            `json:"content,omitempty"`
	URL      string            `json:"url,omitempty"`
	Title    string            `json:"title,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// IngestResponse reports the outcome of an ingest.
type IngestResponse struct {
	DocumentID uuid.UUID `json:"document_id"`
	ChunkCount int       `json:"chunk_count"`
	Duplicate  bool      `json:"duplicate"`
}

// DocumentService ingests, lists, and deletes documents. Ingested content
// is chunked, embedded, and indexed in both the vector store and postgres.
type DocumentService struct {
	repo     repository.DocumentRepository
	pipeline *ingestion.Pipeline
	embedder embedder.Embedder
	store    vectorstore.VectorStore
	sparse   retrieval.SparseVectorizer
	fetcher  crawler.Fetcher
	logger   *slog.Logger
}

// NewDocumentService creates a document service. The fetcher may be nil if
// URL ingestion is not needed; the sparse vectorizer may be nil to index
// dense vectors only.
func NewDocumentService(
	repo repository.DocumentRepository,
	pipeline *ingestion.Pipeline,
	emb embedder.Embedder,
	store vectorstore.VectorStore,
	sparse retrieval.SparseVectorizer,
	fetcher crawler.Fetcher,
	logger *slog.Logger,
) *DocumentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentService{
		repo:     repo,
		pipeline: pipeline,
		embedder: emb,
		store:    store,
		sparse:   sparse,
		fetcher:  fetcher,
		logger:   logger,
	}
}

// Ingest chunks, embeds, and indexes a document. Content already indexed
// (matched by hash) is not re-ingested.
func (s *DocumentService) Ingest(ctx context.Context, req IngestRequest) (*IngestResponse, error) {
	content := req.Content
	title := req.Title
	source := sourceInline

	switch {
	case req.Content == "" && req.URL == "":
		return nil, ErrEmptyDocument
	case req.Content != "" && req.URL != "":
		return nil, ErrAmbiguousSource
	case req.URL != "":
		if s.fetcher == nil {
			return nil, errors.New("url ingestion is not configured")
		}
		page, err := s.fetcher.Fetch(ctx, req.URL)
		if err != nil {
			return nil, fmt.Errorf("fetching document: %w", err)
		}
		content = page.Text
		source = req.URL
		if title == "" {
			title = page.Title
		}
	}

	result, err := s.pipeline.Process(ctx, content, req.Metadata)
	if err != nil {
		return nil, fmt.Errorf("chunking document: %w", err)
	}

	if existing, err := s.repo.GetByHash(ctx, result.ContentHash); err == nil {
		s.logger.Info("skipping duplicate document", "document_id", existing.ID, "hash", result.ContentHash)
		return &IngestResponse{
			DocumentID: existing.ID,
			ChunkCount: existing.ChunkCount,
			Duplicate:  true,
		}, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("checking for duplicate: %w", err)
	}

	doc := &repository.Document{
		ID:          result.DocumentID,
		Source:      source,
		Title:       title,
		ContentHash: result.ContentHash,
		ChunkCount:  len(result.Chunks),
		Status:      repository.StatusPending,
		Metadata:    req.Metadata,
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("creating document record: %w", err)
	}

	if err := s.index(ctx, doc, title, result.Chunks); err != nil {
		doc.Status = repository.StatusFailed
		doc.ErrorMessage = err.Error()
		if updateErr := s.repo.Update(ctx, doc); updateErr != nil {
			s.logger.Error("recording indexing failure", "document_id", doc.ID, "error", updateErr)
		}
		return nil, err
	}

	doc.Status = repository.StatusIndexed
	if err := s.repo.Update(ctx, doc); err != nil {
		return nil, fmt.Errorf("updating document status: %w", err)
	}

	s.logger.Info("document indexed",
		"document_id", doc.ID,
		"source", source,
		"chunks", len(result.Chunks),
	)

	return &IngestResponse{
		DocumentID: doc.ID,
		ChunkCount: len(result.Chunks),
	}, nil
}

// index embeds chunks and writes them to the vector store and postgres.
func (s *DocumentService) index(ctx context.Context, doc *repository.Document, title string, chunks []ingestion.Chunk) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: got %d for %d chunks", len(vectors), len(chunks))
	}

	passages := make([]vectorstore.Passage, len(chunks))
	records := make([]*repository.DocumentChunk, len(chunks))
	for i, c := range chunks {
		chunkID := uuid.New()

		var sparse *vectorstore.SparseVector
		if s.sparse != nil {
			sparse = s.sparse.Vectorize(c.Content)
		}

		passages[i] = vectorstore.Passage{
			ID:           chunkID.String(),
			DocumentID:   doc.ID.String(),
			Content:      c.Content,
			Title:        title,
			Heading:      c.Heading,
			Vector:       vectors[i],
			SparseVector: sparse,
			Metadata:     c.Metadata,
		}
		records[i] = &repository.DocumentChunk{
			ID:         chunkID,
			DocumentID: doc.ID,
			ChunkIndex: c.Index,
			Content:    c.Content,
			Heading:    c.Heading,
			Metadata:   c.Metadata,
		}
	}

	if err := s.store.Upsert(ctx, passages); err != nil {
		return fmt.Errorf("indexing passages: %w", err)
	}
	if err := s.repo.CreateChunks(ctx, records); err != nil {
		return fmt.Errorf("storing chunks: %w", err)
	}

	return nil
}

// Get returns a document by ID.
func (s *DocumentService) Get(ctx context.Context, id uuid.UUID) (*repository.Document, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns documents filtered by status (empty for all) with the total
// count.
func (s *DocumentService) List(ctx context.Context, status string, limit, offset int) ([]*repository.Document, int, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.List(ctx, status, limit, offset)
}

// Delete removes a document from the vector store and postgres.
func (s *DocumentService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}

	if err := s.store.DeleteByDocument(ctx, id.String()); err != nil {
		return fmt.Errorf("removing passages: %w", err)
	}
	if err := s.repo.DeleteChunks(ctx, id); err != nil {
		return fmt.Errorf("removing chunks: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("removing document: %w", err)
	}

	s.logger.Info("document deleted", "document_id", id)
	return nil
}
