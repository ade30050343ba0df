package retrieval

import (
	"context"
	"testing"

	"github.com/lexrag/lexrag/internal/vectorstore"
)

// fakeEmbedder returns a fixed vector for any input.
type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (f fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i], _ = f.Embed(ctx, texts[i])
	}
	return out, nil
}

func (fakeEmbedder) Dimension() int    { return 3 }
func (fakeEmbedder) ModelName() string { return "fake" }

// fakeStore records search parameters and returns canned results.
type fakeStore struct {
	results    []vectorstore.SearchResult
	lastTopK   int
	hybridUsed bool
}

func (s *fakeStore) EnsureCollection(context.Context, int) error { return nil }
func (s *fakeStore) Upsert(context.Context, []vectorstore.Passage) error {
	return nil
}
func (s *fakeStore) DeleteByDocument(context.Context, string) error { return nil }

func (s *fakeStore) Search(_ context.Context, _ []float32, topK int, _ float32) ([]vectorstore.SearchResult, error) {
	s.lastTopK = topK
	return s.results, nil
}

func (s *fakeStore) HybridSearch(_ context.Context, _ []float32, _ *vectorstore.SparseVector, topK int, _ float32) ([]vectorstore.SearchResult, error) {
	s.hybridUsed = true
	s.lastTopK = topK
	return s.results, nil
}

func TestRetrieve_OverfetchesThenDiversifies(t *testing.T) {
	store := &fakeStore{results: []vectorstore.SearchResult{
		{ID: "a", Content: "the right to equality before law", Title: "Art 14", Score: 0.9},
		{ID: "b", Content: "the right to equality before law", Score: 0.89}, // near-duplicate of a
		{ID: "c", Content: "freedom of speech and expression rules", Score: 0.5},
	}}

	r := NewRetriever(fakeEmbedder{}, store)

	candidates, err := r.Retrieve(context.Background(), "equality", 50, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if store.lastTopK != 50 {
		t.Errorf("expected pre_k over-fetch of 50, got %d", store.lastTopK)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 diversified candidates, got %d", len(candidates))
	}
	if candidates[0].ID != "a" {
		t.Errorf("top retrieval result must survive diversification, got %s", candidates[0].ID)
	}
	if candidates[1].ID != "c" {
		t.Errorf("expected the duplicate to be displaced by distinct content, got %s", candidates[1].ID)
	}
	if candidates[0].Title != "Art 14" {
		t.Errorf("title not carried onto candidate")
	}
}

func TestRetrieve_HybridWhenSparseWired(t *testing.T) {
	store := &fakeStore{}
	r := NewRetriever(fakeEmbedder{}, store, WithSparseVectorizer(NewHashedBoW()))

	if _, err := r.Retrieve(context.Background(), "query text", 10, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !store.hybridUsed {
		t.Errorf("expected hybrid search when a sparse vectorizer is wired")
	}
}

func TestDiversify_Bounds(t *testing.T) {
	results := []vectorstore.SearchResult{
		{ID: "1", Content: "alpha material", Score: 0.9},
		{ID: "2", Content: "beta material", Score: 0.8},
	}

	if got := Diversify(results, 0); len(got) != 0 {
		t.Errorf("k=0: expected empty, got %d", len(got))
	}
	if got := Diversify(results, 5); len(got) != 2 {
		t.Errorf("k>n: expected all results, got %d", len(got))
	}
	if got := Diversify(results, 1); len(got) != 1 || got[0].ID != "1" {
		t.Errorf("k=1: expected just the top result")
	}
}

func TestHashedBoW_Vectorize(t *testing.T) {
	v := NewHashedBoW()

	sparse := v.Vectorize("equality equality before law")
	if sparse == nil {
		t.Fatal("expected a sparse vector")
	}
	if len(sparse.Indices) != len(sparse.Values) {
		t.Fatalf("indices/values length mismatch")
	}
	// "equality" twice, "before" and "law" once each.
	var foundTwo bool
	for _, val := range sparse.Values {
		if val == 2 {
			foundTwo = true
		}
	}
	if !foundTwo {
		t.Errorf("expected a term frequency of 2 for the repeated token")
	}

	// Deterministic.
	again := v.Vectorize("equality equality before law")
	if len(again.Indices) != len(sparse.Indices) {
		t.Errorf("vectorizer not deterministic")
	}
	for i := range again.Indices {
		if again.Indices[i] != sparse.Indices[i] || again.Values[i] != sparse.Values[i] {
			t.Errorf("vectorizer not deterministic at %d", i)
		}
	}

	if v.Vectorize("a an it") != nil {
		t.Errorf("expected nil for text with only short tokens")
	}
}
