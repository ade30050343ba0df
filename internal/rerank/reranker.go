package rerank

import (
	"context"
	"fmt"
	"sort"
)

// Reranker orders a candidate batch by relevance to a query.
//
// It attaches normalized scores in place, sorts descending, drops candidates
// below an optional threshold, and truncates to a bounded result size. The
// scorer is injected at construction; swapping implementations needs no
// change here.
type Reranker struct {
	scorer ScoreProvider
}

// NewReranker creates a Reranker using the given score provider.
func NewReranker(scorer ScoreProvider) *Reranker {
	return &Reranker{scorer: scorer}
}

// Rerank scores candidates against the query and returns them ordered by
// RerankScore descending, filtered by threshold (when non-nil) and truncated
// to topN. Filtering happens before truncation, so the result never includes
// a below-threshold candidate. A negative topN disables truncation and
// returns every surviving candidate; callers exposing topN to untrusted
// input must validate it first, as the HTTP layer does.
//
// Candidates are mutated in place: RerankScore and RawScore are set. Ties
// keep their relative input order (stable sort), preserving the
// retrieval-stage ranking among equal scores.
//
// An empty batch returns an empty result without invoking the scorer. A
// scorer failure is fatal for the call and wraps ErrScorerUnavailable;
// there is no silent fallback mid-call.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []*Candidate, topN int, threshold *float64) ([]*Candidate, error) {
	if len(candidates) == 0 {
		return []*Candidate{}, nil
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = ComposeScoringText(c)
	}

	scores, err := r.scorer.ScoreBatch(ctx, query, texts)
	if err != nil {
		return nil, fmt.Errorf("scoring %d candidates: %w", len(candidates), err)
	}
	if len(scores) != len(candidates) {
		return nil, fmt.Errorf("%w: got %d scores for %d candidates", ErrScorerUnavailable, len(scores), len(candidates))
	}

	for i, c := range candidates {
		c.RerankScore = scores[i].Value
		c.RawScore = scores[i].Raw
	}

	ranked := make([]*Candidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RerankScore > ranked[j].RerankScore
	})

	if threshold != nil {
		filtered := ranked[:0]
		for _, c := range ranked {
			if c.RerankScore >= *threshold {
				filtered = append(filtered, c)
			}
		}
		ranked = filtered
	}

	if topN >= 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}

	return ranked, nil
}
