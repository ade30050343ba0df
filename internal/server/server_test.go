package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lexrag/lexrag/internal/auth"
	"github.com/lexrag/lexrag/internal/llm"
	"github.com/lexrag/lexrag/internal/rerank"
	"github.com/lexrag/lexrag/internal/service"
)

type stubRetriever struct {
	candidates []*rerank.Candidate
	err        error
}

func (s *stubRetriever) Retrieve(ctx context.Context, query string, preK, mmrK int) ([]*rerank.Candidate, error) {
	return s.candidates, s.err
}

type stubReranker struct {
	err error
}

func (s *stubReranker) Rerank(ctx context.Context, query string, candidates []*rerank.Candidate, topN int, threshold *float64) ([]*rerank.Candidate, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(candidates) > topN {
		candidates = candidates[:topN]
	}
	return candidates, nil
}

type stubLLM struct {
	response string
}

func (s *stubLLM) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	return s.response, nil
}

const testAPIKey = "test-api-key"

func newTestServer(t *testing.T, retriever service.Retriever, reranker service.CandidateReranker) *Server {
	t.Helper()

	jwtManager := auth.NewJWTManager(auth.DefaultJWTConfig("test-secret"))
	defaults := service.SearchDefaults{TopN: 8, PreK: 50, MMRK: 10}

	return New(Config{
		Port:       0,
		APIKey:     testAPIKey,
		JWTManager: jwtManager,
		Search:     service.NewSearchService(retriever, reranker, defaults, nil),
		Answer: service.NewAnswerService(retriever, reranker, nil, &stubLLM{response: "answer"},
			service.AnswerConfig{Defaults: defaults, WebFallbackAt: 0.35}, nil),
	})
}

func issueTestToken(t *testing.T, srv *Server) string {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/token", strings.NewReader(`{"client_name":"test"}`))
	req.Header.Set("X-API-Key", testAPIKey)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("token issuance failed: %d %s", rec.Code, rec.Body.String())
	}

	var resp tokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding token response: %v", err)
	}
	return resp.Token
}

func TestIssueToken_RejectsBadKey(t *testing.T) {
	srv := newTestServer(t, &stubRetriever{}, &stubReranker{})

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/token", strings.NewReader(`{"client_name":"test"}`))
	req.Header.Set("X-API-Key", "wrong-key")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestIssueToken_RequiresClientName(t *testing.T) {
	srv := newTestServer(t, &stubRetriever{}, &stubReranker{})

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/token", strings.NewReader(`{}`))
	req.Header.Set("X-API-Key", testAPIKey)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSearch_RequiresAuth(t *testing.T) {
	srv := newTestServer(t, &stubRetriever{}, &stubReranker{})

	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(`{"query":"article 14"}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestSearch_ReturnsResults(t *testing.T) {
	retriever := &stubRetriever{candidates: []*rerank.Candidate{
		{ID: "c1", Text: "Article 14 guarantees equality.", RerankScore: 0.9},
	}}
	srv := newTestServer(t, retriever, &stubReranker{})
	token := issueTestToken(t, srv)

	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(`{"query":"article 14"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp service.SearchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != "c1" {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestSearch_EmptyQueryIsBadRequest(t *testing.T) {
	srv := newTestServer(t, &stubRetriever{}, &stubReranker{})
	token := issueTestToken(t, srv)

	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(`{"query":""}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSearch_ScorerOutageIsBadGateway(t *testing.T) {
	srv := newTestServer(t, &stubRetriever{candidates: []*rerank.Candidate{{ID: "c1", Text: "x"}}},
		&stubReranker{err: rerank.ErrScorerUnavailable})
	token := issueTestToken(t, srv)

	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(`{"query":"q"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}

	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding error response: %v", err)
	}
	if resp.Error != "scorer_unavailable" {
		t.Errorf("error code = %q, want scorer_unavailable", resp.Error)
	}
}

func TestAnswer_ReturnsGeneratedAnswer(t *testing.T) {
	retriever := &stubRetriever{candidates: []*rerank.Candidate{
		{ID: "c1", Text: "Article 14 guarantees equality.", RerankScore: 0.9},
	}}
	srv := newTestServer(t, retriever, &stubReranker{})
	token := issueTestToken(t, srv)

	req := httptest.NewRequest(http.MethodPost, "/v1/answer", strings.NewReader(`{"query":"what does article 14 say"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp service.AnswerResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Answer != "answer" {
		t.Errorf("answer = %q", resp.Answer)
	}
	if len(resp.Citations) != 1 {
		t.Errorf("citations = %d, want 1", len(resp.Citations))
	}
}

func TestGetDocument_InvalidID(t *testing.T) {
	srv := newTestServer(t, &stubRetriever{}, &stubReranker{})
	token := issueTestToken(t, srv)

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/not-a-uuid", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHealthEndpointsAreOpen(t *testing.T) {
	srv := newTestServer(t, &stubRetriever{}, &stubReranker{})

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
	}
}
