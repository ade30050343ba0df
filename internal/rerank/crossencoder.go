package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultCrossEncoderBaseURL is the default rerank inference endpoint.
	DefaultCrossEncoderBaseURL = "http://localhost:8880"

	// DefaultCrossEncoderModel is the default cross-encoder model.
	DefaultCrossEncoderModel = "cross-encoder/ms-marco-MiniLM-L-6-v2"
)

// CrossEncoderScorer scores (query, text) pairs with a learned cross-encoder
// model served over HTTP (a text-embeddings-inference style /rerank API).
// The server returns raw logits; Value is the sigmoid of the logit.
type CrossEncoderScorer struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// CrossEncoderOption is a functional option for configuring CrossEncoderScorer.
type CrossEncoderOption func(*CrossEncoderScorer)

// WithBaseURL sets a custom base URL for the rerank API.
func WithBaseURL(url string) CrossEncoderOption {
	return func(s *CrossEncoderScorer) {
		s.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithModel sets the cross-encoder model identifier.
func WithModel(model string) CrossEncoderOption {
	return func(s *CrossEncoderScorer) {
		s.model = model
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) CrossEncoderOption {
	return func(s *CrossEncoderScorer) {
		s.httpClient = client
	}
}

// NewCrossEncoderScorer creates a scorer backed by a remote cross-encoder.
func NewCrossEncoderScorer(opts ...CrossEncoderOption) *CrossEncoderScorer {
	s := &CrossEncoderScorer{
		baseURL: DefaultCrossEncoderBaseURL,
		model:   DefaultCrossEncoderModel,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// rerankRequest is the request body for the /rerank API.
type rerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Texts     []string `json:"texts"`
	RawScores bool     `json:"raw_scores"`
}

// rerankResult is one scored entry in the /rerank response.
type rerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// ScoreBatch submits all pairs in a single call and returns one Score per
// input text, in input order. Any transport, status, or payload problem is
// reported as ErrScorerUnavailable.
func (s *CrossEncoderScorer) ScoreBatch(ctx context.Context, query string, texts []string) ([]Score, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(rerankRequest{
		Model:     s.model,
		Query:     query,
		Texts:     texts,
		RawScores: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %v", ErrScorerUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", ErrScorerUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: executing request: %v", ErrScorerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: rerank API status %d: %s", ErrScorerUnavailable, resp.StatusCode, string(respBody))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrScorerUnavailable, err)
	}

	logits, err := parseLogits(raw, len(texts))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScorerUnavailable, err)
	}

	scores := make([]Score, len(logits))
	for i, logit := range logits {
		scores[i] = Score{Raw: logit, Value: Sigmoid(logit)}
	}
	return scores, nil
}

// parseLogits decodes the response into one logit per input text. Some
// servers collapse a singleton batch into a single object rather than a
// one-element array; that case is normalized back to length 1.
func parseLogits(raw []byte, n int) ([]float64, error) {
	var results []rerankResult
	if err := json.Unmarshal(raw, &results); err != nil {
		var single rerankResult
		var scalar float64
		switch {
		case n == 1 && json.Unmarshal(raw, &single) == nil:
			results = []rerankResult{single}
		case n == 1 && json.Unmarshal(raw, &scalar) == nil:
			results = []rerankResult{{Index: 0, Score: scalar}}
		default:
			return nil, fmt.Errorf("decoding response: %v", err)
		}
	}

	if len(results) != n {
		return nil, fmt.Errorf("got %d scores for %d texts", len(results), n)
	}

	// Results may come back sorted by score; restore input order by index.
	logits := make([]float64, n)
	seen := make([]bool, n)
	for _, r := range results {
		if r.Index < 0 || r.Index >= n {
			return nil, fmt.Errorf("score index %d out of range", r.Index)
		}
		logits[r.Index] = r.Score
		seen[r.Index] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("missing score for text %d", i)
		}
	}
	return logits, nil
}

// Ensure CrossEncoderScorer implements ScoreProvider.
var _ ScoreProvider = (*CrossEncoderScorer)(nil)
