// Package service implements the search, answer, and document operations
// behind the HTTP API.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lexrag/lexrag/internal/rerank"
)

var (
	// ErrEmptyQuery is returned when a request carries no query text.
	ErrEmptyQuery = errors.New("query is required")
	// ErrNegativeDepth is returned when a request carries a negative
	// retrieval size.
	ErrNegativeDepth = errors.New("pre_k, mmr_k, and top_n must be non-negative")
)

// Retriever fetches diversified candidate passages for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, preK, mmrK int) ([]*rerank.Candidate, error)
}

// CandidateReranker orders candidates by relevance to the query.
type CandidateReranker interface {
	Rerank(ctx context.Context, query string, candidates []*rerank.Candidate, topN int, threshold *float64) ([]*rerank.Candidate, error)
}

// SearchDefaults are the retrieval depths used when a request leaves them
// unset.
type SearchDefaults struct {
	TopN int
	PreK int
	MMRK int
}

// SearchRequest is a reranked retrieval request. Zero sizes fall back to
// the service defaults.
type SearchRequest struct {
	Query     string   `json:"query"`
	PreK      int      `json:"pre_k,omitempty"`
	MMRK      int      `json:"mmr_k,omitempty"`
	TopN      int      `json:"top_n,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

// SearchResponse holds reranked passages for a query.
type SearchResponse struct {
	Results     []*rerank.Candidate `json:"results"`
	RetrievalMs int64               `json:"retrieval_ms"`
	RerankMs    int64               `json:"rerank_ms"`
}

// SearchService retrieves candidates and reranks them.
type SearchService struct {
	retriever Retriever
	reranker  CandidateReranker
	defaults  SearchDefaults
	logger    *slog.Logger
}

// NewSearchService creates a search service.
func NewSearchService(retriever Retriever, reranker CandidateReranker, defaults SearchDefaults, logger *slog.Logger) *SearchService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchService{
		retriever: retriever,
		reranker:  reranker,
		defaults:  defaults,
		logger:    logger,
	}
}

// Search retrieves candidates for the query, reranks them, and returns the
// top results. Threshold filtering happens before truncation, so a strict
// threshold can return fewer than TopN results.
func (s *SearchService) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	if req.Query == "" {
		return nil, ErrEmptyQuery
	}
	if req.PreK < 0 || req.MMRK < 0 || req.TopN < 0 {
		return nil, ErrNegativeDepth
	}

	topN := req.TopN
	if topN == 0 {
		topN = s.defaults.TopN
	}
	preK := req.PreK
	if preK == 0 {
		preK = s.defaults.PreK
	}
	mmrK := req.MMRK
	if mmrK == 0 {
		mmrK = s.defaults.MMRK
	}

	retrievalStart := time.Now()
	candidates, err := s.retriever.Retrieve(ctx, req.Query, preK, mmrK)
	if err != nil {
		return nil, err
	}
	retrievalMs := time.Since(retrievalStart).Milliseconds()

	rerankStart := time.Now()
	ranked, err := s.reranker.Rerank(ctx, req.Query, candidates, topN, req.Threshold)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("search completed",
		"query_len", len(req.Query),
		"retrieved", len(candidates),
		"returned", len(ranked),
	)

	return &SearchResponse{
		Results:     ranked,
		RetrievalMs: retrievalMs,
		RerankMs:    time.Since(rerankStart).Milliseconds(),
	}, nil
}
