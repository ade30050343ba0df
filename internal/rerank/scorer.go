package rerank

import (
	"context"
	"errors"
	"math"
	"strings"
)

// ErrScorerUnavailable wraps failures of the learned scorer: model endpoint
// unreachable, inference error, or malformed response. It is fatal for the
// rerank call that hit it; callers that need resilience decide the recovery
// policy themselves.
var ErrScorerUnavailable = errors.New("rerank: scorer unavailable")

// Score is a single candidate's relevance to the query.
type Score struct {
	// Raw is the unbounded scorer output (a cross-encoder logit).
	Raw float64

	// Value is Raw normalized into [0, 1].
	Value float64
}

// ScoreProvider computes relevance scores for a batch of texts against one
// query. The i-th output score corresponds to the i-th input text and the
// output length equals the input length.
type ScoreProvider interface {
	ScoreBatch(ctx context.Context, query string, texts []string) ([]Score, error)
}

// Sigmoid maps an unbounded logit to (0, 1) via the logistic transform.
// Raw cross-encoder logits are not comparable across model versions or with
// the lexical scorer; normalizing makes the downstream threshold portable.
func Sigmoid(raw float64) float64 {
	return 1.0 / (1.0 + math.Exp(-raw))
}

// JaccardScorer scores by token-set overlap between query and text. It is a
// pure function of its inputs, requires no model, and naturally produces
// values in [0, 1], which makes it suitable for offline evaluation and
// exact-match tests.
type JaccardScorer struct{}

// NewJaccardScorer creates the deterministic lexical fallback scorer.
func NewJaccardScorer() *JaccardScorer {
	return &JaccardScorer{}
}

// ScoreBatch computes Jaccard similarity for each text. Raw equals Value
// since no normalization is needed.
func (s *JaccardScorer) ScoreBatch(_ context.Context, query string, texts []string) ([]Score, error) {
	queryTokens := tokenSet(query)

	scores := make([]Score, len(texts))
	for i, text := range texts {
		sim := jaccard(queryTokens, tokenSet(text))
		scores[i] = Score{Raw: sim, Value: sim}
	}
	return scores, nil
}

// tokenSet lowercases and splits on whitespace into a set of tokens.
func tokenSet(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// jaccard returns |intersection| / |union|, and 0 when either set is empty.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	intersection := 0
	for token := range a {
		if _, ok := b[token]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection

	return float64(intersection) / float64(union)
}

// Ensure JaccardScorer implements ScoreProvider.
var _ ScoreProvider = (*JaccardScorer)(nil)
