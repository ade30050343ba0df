package retrieval

import (
	"hash/fnv"
	"sort"
	"strings"

	"github.com/lexrag/lexrag/internal/vectorstore"
)

// DefaultSparseDimensions is the hash space size for the bag-of-words
// vectorizer. Large enough to keep collisions rare on legal vocabulary.
const DefaultSparseDimensions = 1 << 20

// HashedBoW is a hashed bag-of-words sparse vectorizer: each token is
// FNV-1a hashed into a fixed index space and weighted by term frequency.
// It needs no vocabulary file and is fully deterministic.
type HashedBoW struct {
	dimensions uint32
}

// NewHashedBoW creates a sparse vectorizer with the default hash space.
func NewHashedBoW() *HashedBoW {
	return &HashedBoW{dimensions: DefaultSparseDimensions}
}

// Vectorize converts text into a sparse term-frequency vector. Returns nil
// for text with no usable tokens.
func (h *HashedBoW) Vectorize(text string) *vectorstore.SparseVector {
	counts := make(map[uint32]float32)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:\"'()[]{}=<>")
		if len(word) <= 2 {
			continue
		}
		counts[h.hash(word)]++
	}

	if len(counts) == 0 {
		return nil
	}

	indices := make([]uint32, 0, len(counts))
	for idx := range counts {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	values := make([]float32, len(indices))
	for i, idx := range indices {
		values[i] = counts[idx]
	}

	return &vectorstore.SparseVector{Indices: indices, Values: values}
}

func (h *HashedBoW) hash(word string) uint32 {
	f := fnv.New32a()
	f.Write([]byte(word))
	return f.Sum32() % h.dimensions
}

// Ensure HashedBoW implements SparseVectorizer.
var _ SparseVectorizer = (*HashedBoW)(nil)
