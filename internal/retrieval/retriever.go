// Package retrieval generates the raw candidate list for reranking.
//
// Retrieval over-fetches from the vector store (hybrid dense + sparse with
// RRF fusion when a sparse vectorizer is wired), then diversifies the pool
// down with a lexical MMR pass so near-duplicate passages do not crowd out
// distinct material before the reranker sees them.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/lexrag/lexrag/internal/embedder"
	"github.com/lexrag/lexrag/internal/rerank"
	"github.com/lexrag/lexrag/internal/vectorstore"
)

// mmrLambda weighs relevance against novelty during diversification.
// Higher favors the retrieval score, lower favors diversity.
const mmrLambda = 0.7

// SparseVectorizer converts text to sparse vectors for hybrid search.
type SparseVectorizer interface {
	Vectorize(text string) *vectorstore.SparseVector
}

// Retriever produces diversified retrieval candidates for a query.
type Retriever struct {
	embedder    embedder.Embedder
	store       vectorstore.VectorStore
	sparseModel SparseVectorizer // optional; enables hybrid search
}

// Option is a functional option for configuring Retriever.
type Option func(*Retriever)

// WithSparseVectorizer enables hybrid dense+sparse search.
func WithSparseVectorizer(sv SparseVectorizer) Option {
	return func(r *Retriever) {
		r.sparseModel = sv
	}
}

// NewRetriever creates a retriever over the given embedder and vector store.
func NewRetriever(emb embedder.Embedder, store vectorstore.VectorStore, opts ...Option) *Retriever {
	r := &Retriever{
		embedder: emb,
		store:    store,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Retrieve over-fetches preK passages for the query and diversifies them
// down to at most mmrK candidates.
func (r *Retriever) Retrieve(ctx context.Context, query string, preK, mmrK int) ([]*rerank.Candidate, error) {
	if preK <= 0 || mmrK <= 0 {
		return []*rerank.Candidate{}, nil
	}

	queryVector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	var results []vectorstore.SearchResult
	if r.sparseModel != nil {
		sparse := r.sparseModel.Vectorize(query)
		results, err = r.store.HybridSearch(ctx, queryVector, sparse, preK, 0)
	} else {
		results, err = r.store.Search(ctx, queryVector, preK, 0)
	}
	if err != nil {
		return nil, fmt.Errorf("searching passages: %w", err)
	}

	selected := Diversify(results, mmrK)

	candidates := make([]*rerank.Candidate, len(selected))
	for i, result := range selected {
		candidates[i] = &rerank.Candidate{
			ID:        result.ID,
			Text:      result.Content,
			SearchHit: result.Metadata["search_hit"],
			Title:     result.Title,
			Heading:   result.Heading,
			Metadata:  result.Metadata,
		}
	}

	return candidates, nil
}

// Diversify runs maximal-marginal-relevance selection over the results using
// token-set Jaccard similarity as the redundancy measure. Results are
// assumed sorted by retrieval score descending; the top result is always
// kept. Returns at most k results.
func Diversify(results []vectorstore.SearchResult, k int) []vectorstore.SearchResult {
	if k <= 0 {
		return nil
	}
	if len(results) <= k {
		// Everything gets selected anyway; keep retrieval order.
		return results
	}
	if k == 1 {
		return results[:1]
	}

	tokens := make([]map[string]struct{}, len(results))
	for i, result := range results {
		tokens[i] = tokenize(result.Content)
	}

	selected := make([]vectorstore.SearchResult, 0, k)
	selectedTokens := make([]map[string]struct{}, 0, k)
	used := make([]bool, len(results))

	// Seed with the highest-scored result.
	selected = append(selected, results[0])
	selectedTokens = append(selectedTokens, tokens[0])
	used[0] = true

	for len(selected) < k {
		bestIdx := -1
		bestScore := float64(-1 << 30)

		for i, result := range results {
			if used[i] {
				continue
			}

			// Max similarity against anything already selected.
			maxSim := 0.0
			for _, st := range selectedTokens {
				if sim := jaccardSimilarity(tokens[i], st); sim > maxSim {
					maxSim = sim
				}
			}

			score := mmrLambda*float64(result.Score) - (1-mmrLambda)*maxSim
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}

		if bestIdx < 0 {
			break
		}
		selected = append(selected, results[bestIdx])
		selectedTokens = append(selectedTokens, tokens[bestIdx])
		used[bestIdx] = true
	}

	return selected
}

// tokenize converts content into a set of lowercase words for similarity comparison.
func tokenize(content string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(content))
	wordSet := make(map[string]struct{}, len(words))
	for _, word := range words {
		// Remove common punctuation
		word = strings.Trim(word, ".,!?;:\"'()[]{}=<>")
		if len(word) > 2 { // Skip very short tokens
			wordSet[word] = struct{}{}
		}
	}
	return wordSet
}

// jaccardSimilarity computes the Jaccard similarity between two word sets.
// Returns a value between 0 (no overlap) and 1 (identical).
func jaccardSimilarity(set1, set2 map[string]struct{}) float64 {
	if len(set1) == 0 && len(set2) == 0 {
		return 1.0
	}
	if len(set1) == 0 || len(set2) == 0 {
		return 0.0
	}

	intersection := 0
	for word := range set1 {
		if _, exists := set2[word]; exists {
			intersection++
		}
	}

	union := len(set1) + len(set2) - intersection

	return float64(intersection) / float64(union)
}
