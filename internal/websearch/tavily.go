// Package websearch supplements corpus retrieval with external web results.
//
// Web search is strictly additive: any failure, including a missing API
// credential, degrades to an empty result rather than aborting the answer
// flow. Callers that only need "do I have web context" cannot distinguish
// a disabled searcher from an empty result set; that collapse is
// intentional.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lexrag/lexrag/internal/rerank"
)

const (
	// DefaultBaseURL is the Tavily search API endpoint.
	DefaultBaseURL = "https://api.tavily.com"

	// querySuffix biases the search engine toward case law and statute
	// sections from authoritative sources.
	querySuffix = "Indian Constitutional Law Supreme Court judgments sections"

	// previewLength bounds the candidate text preview built from scraped
	// page content.
	previewLength = 200

	// blockSeparator joins per-result context blocks.
	blockSeparator = "\n---\n"
)

// DefaultDomains is the default allow-list of source domains.
var DefaultDomains = []string{
	"indiankanoon.org",
	"legalserviceindia.com",
	"scconline.com",
	"livelaw.in",
	"barandbench.com",
	"sci.gov.in",
}

// Searcher queries an external web-search provider with a domain-restricted,
// intent-augmented query and repackages results into retrieval candidates.
type Searcher struct {
	apiKey     string
	baseURL    string
	domains    []string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option is a functional option for configuring Searcher.
type Option func(*Searcher)

// WithBaseURL sets a custom provider endpoint.
func WithBaseURL(url string) Option {
	return func(s *Searcher) {
		s.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithDomains overrides the source-domain allow-list.
func WithDomains(domains []string) Option {
	return func(s *Searcher) {
		if len(domains) > 0 {
			s.domains = domains
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Searcher) {
		s.httpClient = client
	}
}

// WithLogger sets the logger used for degrade events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) {
		s.logger = logger
	}
}

// NewSearcher creates a web searcher. An empty apiKey disables searching:
// Search then returns empty results without any network call.
func NewSearcher(apiKey string, opts ...Option) *Searcher {
	s := &Searcher{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		domains: DefaultDomains,
		httpClient: &http.Client{
			Timeout: 60 * time.Second, // advanced depth scrapes full pages
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.apiKey == "" {
		s.logger.Warn("web search API key not configured, web search disabled")
	}

	return s
}

// searchRequest is the request body for the provider's search API.
type searchRequest struct {
	APIKey         string   `json:"api_key"`
	Query          string   `json:"query"`
	SearchDepth    string   `json:"search_depth"`
	MaxResults     int      `json:"max_results"`
	IncludeDomains []string `json:"include_domains,omitempty"`
}

// searchResponse is the provider's response payload.
type searchResponse struct {
	Results []searchResult `json:"results"`
}

// searchResult is one raw web result.
type searchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Search queries the web for passages relevant to the query and returns a
// context block for the LLM plus candidate-shaped sources for citation.
//
// The raw query is augmented with a fixed domain-intent suffix, restricted
// to the allow-listed domains, and run at the provider's deepest extraction
// mode so the pipeline gets substantive text rather than snippets. Every
// failure path returns ("", nil).
func (s *Searcher) Search(ctx context.Context, query string, maxResults int) (string, []rerank.Candidate) {
	if s.apiKey == "" {
		return "", nil
	}

	results, err := s.doSearch(ctx, query+" "+querySuffix, maxResults)
	if err != nil {
		s.logger.Warn("web search failed", "error", err)
		return "", nil
	}

	var contextBlocks []string
	var sources []rerank.Candidate

	for _, result := range results {
		title := result.Title
		if title == "" {
			title = "Unknown Source"
		}

		contextBlocks = append(contextBlocks, fmt.Sprintf(
			"SOURCE: %s\nURL: %s\nCONTENT:\n%s\n", title, result.URL, result.Content))

		sources = append(sources, rerank.Candidate{
			ID:    rerank.WebCandidateID,
			Title: title,
			URL:   result.URL,
			Text:  preview(result.Content),
		})
	}

	return strings.Join(contextBlocks, blockSeparator), sources
}

// doSearch performs the provider call and decodes the response.
func (s *Searcher) doSearch(ctx context.Context, query string, maxResults int) ([]searchResult, error) {
	body, err := json.Marshal(searchRequest{
		APIKey:         s.apiKey,
		Query:          query,
		SearchDepth:    "advanced",
		MaxResults:     maxResults,
		IncludeDomains: s.domains,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("search API status %d: %s", resp.StatusCode, string(respBody))
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return result.Results, nil
}

// preview bounds content to previewLength runes, appending a marker when
// the content was cut. Scraped pages carry Devanagari and other multi-byte
// text, so the cut counts runes, never bytes.
func preview(content string) string {
	if len(content) <= previewLength {
		return content
	}
	runes := []rune(content)
	if len(runes) <= previewLength {
		return content
	}
	return string(runes[:previewLength]) + "..."
}
