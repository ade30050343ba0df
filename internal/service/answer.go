package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lexrag/lexrag/internal/llm"
	"github.com/lexrag/lexrag/internal/rerank"
)

// passageCharLimit caps each passage's contribution to the prompt.
const passageCharLimit = 1200

// defaultSystemPrompt instructs the model to stay on the provided passages.
const defaultSystemPrompt = `You are a legal research assistant specialising in Indian constitutional law. Answer strictly from the numbered passages provided. Cite passages by their number, like [1] or [3]. If the passages do not contain the answer, say so plainly instead of speculating.`

// WebSearcher provides supplementary context from the public web. It
// degrades to empty output rather than returning errors.
type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int) (string, []rerank.Candidate)
}

// AnswerRequest is a grounded question-answering request.
type AnswerRequest struct {
	Query     string   `json:"query"`
	TopN      int      `json:"top_n,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

// Citation identifies a passage the answer may reference.
type Citation struct {
	Index   int     `json:"index"`
	ID      string  `json:"id"`
	Title   string  `json:"title,omitempty"`
	Heading string  `json:"heading,omitempty"`
	URL     string  `json:"url,omitempty"`
	Score   float64 `json:"score"`
}

// AnswerResponse holds a generated answer with its supporting citations.
type AnswerResponse struct {
	Answer       string     `json:"answer"`
	Citations    []Citation `json:"citations"`
	WebUsed      bool       `json:"web_used"`
	RetrievalMs  int64      `json:"retrieval_ms"`
	GenerationMs int64      `json:"generation_ms"`
}

// AnswerService generates grounded answers from reranked passages, falling
// back to web search when local retrieval is too weak.
type AnswerService struct {
	retriever     Retriever
	reranker      CandidateReranker
	web           WebSearcher
	llmClient     llm.LLM
	model         string
	defaults      SearchDefaults
	webFallbackAt float64
	webMaxResults int
	logger        *slog.Logger
}

// AnswerConfig configures an AnswerService.
type AnswerConfig struct {
	Model         string
	Defaults      SearchDefaults
	WebFallbackAt float64
	WebMaxResults int
}

// NewAnswerService creates an answer service. The web searcher may be nil,
// in which case weak retrieval proceeds without supplementary context.
func NewAnswerService(retriever Retriever, reranker CandidateReranker, web WebSearcher, llmClient llm.LLM, cfg AnswerConfig, logger *slog.Logger) *AnswerService {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.WebMaxResults <= 0 {
		cfg.WebMaxResults = 5
	}
	return &AnswerService{
		retriever:     retriever,
		reranker:      reranker,
		web:           web,
		llmClient:     llmClient,
		model:         cfg.Model,
		defaults:      cfg.Defaults,
		webFallbackAt: cfg.WebFallbackAt,
		webMaxResults: cfg.WebMaxResults,
		logger:        logger,
	}
}

// Answer retrieves and reranks passages for the query, supplements them
// with web results when the best rerank score falls below the fallback
// threshold, and generates a cited answer.
func (s *AnswerService) Answer(ctx context.Context, req AnswerRequest) (*AnswerResponse, error) {
	if req.Query == "" {
		return nil, ErrEmptyQuery
	}
	if req.TopN < 0 {
		return nil, ErrNegativeDepth
	}

	topN := req.TopN
	if topN == 0 {
		topN = s.defaults.TopN
	}

	retrievalStart := time.Now()
	candidates, err := s.retriever.Retrieve(ctx, req.Query, s.defaults.PreK, s.defaults.MMRK)
	if err != nil {
		return nil, err
	}

	ranked, err := s.reranker.Rerank(ctx, req.Query, candidates, topN, req.Threshold)
	if err != nil {
		return nil, err
	}
	retrievalMs := time.Since(retrievalStart).Milliseconds()

	var webContext string
	var webResults []rerank.Candidate
	if s.web != nil && s.shouldFallBack(ranked) {
		webContext, webResults = s.web.Search(ctx, req.Query, s.webMaxResults)
		if webContext != "" {
			s.logger.Info("supplementing weak retrieval with web results",
				"local_passages", len(ranked),
				"web_results", len(webResults),
			)
		}
	}

	prompt := buildAnswerPrompt(req.Query, ranked, webContext)

	generationStart := time.Now()
	answer, err := s.llmClient.Generate(ctx, prompt, llm.GenerateOptions{
		Model:        s.model,
		SystemPrompt: defaultSystemPrompt,
		Temperature:  0,
	})
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	citations := make([]Citation, 0, len(ranked)+len(webResults))
	for i, c := range ranked {
		citations = append(citations, Citation{
			Index:   i + 1,
			ID:      c.ID,
			Title:   c.Title,
			Heading: c.Heading,
			URL:     c.URL,
			Score:   c.RerankScore,
		})
	}
	for _, c := range webResults {
		citations = append(citations, Citation{
			Index: len(citations) + 1,
			ID:    c.ID,
			Title: c.Title,
			URL:   c.URL,
		})
	}

	return &AnswerResponse{
		Answer:       answer,
		Citations:    citations,
		WebUsed:      webContext != "",
		RetrievalMs:  retrievalMs,
		GenerationMs: time.Since(generationStart).Milliseconds(),
	}, nil
}

// shouldFallBack reports whether local retrieval is too weak to answer
// from. Either nothing survived reranking, or the best passage scored below
// the fallback threshold.
func (s *AnswerService) shouldFallBack(ranked []*rerank.Candidate) bool {
	if len(ranked) == 0 {
		return true
	}
	return ranked[0].RerankScore < s.webFallbackAt
}

// buildAnswerPrompt assembles numbered passages, optional web context, and
// the question.
func buildAnswerPrompt(query string, passages []*rerank.Candidate, webContext string) string {
	var sb strings.Builder

	sb.WriteString("## Passages\n\n")
	if len(passages) == 0 {
		sb.WriteString("(no indexed passages matched the question)\n\n")
	}
	for i, p := range passages {
		sb.WriteString(fmt.Sprintf("[%d]", i+1))
		if p.Title != "" {
			sb.WriteString(fmt.Sprintf(" (%s)", p.Title))
		}
		if p.Heading != "" {
			sb.WriteString(" " + p.Heading)
		}
		sb.WriteString("\n")
		sb.WriteString(truncatePassage(p.Text))
		sb.WriteString("\n\n")
	}

	if webContext != "" {
		sb.WriteString("## Web Results\n\n")
		sb.WriteString(webContext)
		sb.WriteString("\n\n")
	}

	sb.WriteString("## Question\n")
	sb.WriteString(query)
	sb.WriteString("\n\n## Answer (cite passage numbers)\n")

	return sb.String()
}

// truncatePassage caps passage text at passageCharLimit bytes, preferring a
// word boundary and never splitting a multi-byte rune.
func truncatePassage(text string) string {
	if len(text) <= passageCharLimit {
		return text
	}
	limit := passageCharLimit
	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	cut := text[:limit]
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "..."
}
