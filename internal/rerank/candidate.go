// Package rerank scores retrieval candidates against a query and narrows
// them to a small, high-precision set.
//
// Scoring uses a cross-encoder model that evaluates (query, passage) pairs
// jointly, or a deterministic lexical scorer when no model is available.
// Scores are normalized to [0, 1] so that threshold configuration stays
// meaningful across scorer implementations and model versions.
package rerank

import "strings"

// WebCandidateID marks candidates that came from web search rather than the
// local corpus, so downstream consumers can distinguish provenance.
const WebCandidateID = "web"

// Candidate is a retrieved unit of text plus metadata, subject to reranking.
//
// Text holds the primary retrieved body, which may be a broader parent
// passage. SearchHit, when present, is the narrower span that actually
// matched the query and is preferred for scoring.
type Candidate struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	SearchHit string            `json:"search_hit,omitempty"`
	Title     string            `json:"title,omitempty"`
	Heading   string            `json:"heading,omitempty"`
	URL       string            `json:"url,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`

	// RerankScore is attached by Reranker.Rerank and is always in [0, 1].
	RerankScore float64 `json:"rerank_score"`

	// RawScore is the pre-normalization scorer output, kept for diagnostics.
	// For the lexical scorer it equals RerankScore.
	RawScore float64 `json:"raw_score,omitempty"`
}

// ComposeScoringText builds the exact text scored for a candidate.
//
// The narrow matching span is preferred over the broad body because it is
// the unit that satisfied the original retrieval match and gives a tighter
// scoring signal. Structural context is prepended as
// "title > heading: body" with empty segments omitted. The candidate is
// never mutated.
func ComposeScoringText(c *Candidate) string {
	body := c.SearchHit
	if body == "" {
		body = c.Text
	}

	var prefix string
	switch {
	case c.Title != "" && c.Heading != "":
		prefix = c.Title + " > " + c.Heading
	case c.Title != "":
		prefix = c.Title
	case c.Heading != "":
		prefix = c.Heading
	}

	if prefix != "" && body != "" {
		return strings.TrimSpace(prefix + ": " + body)
	}
	if prefix != "" {
		return strings.TrimSpace(prefix)
	}
	return strings.TrimSpace(body)
}
