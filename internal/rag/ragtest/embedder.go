// Package ragtest provides deterministic in-process collaborators for tests
// that exercise the embedding index without a provider.
package ragtest

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"
)

// Dims is the vector size produced by HashEmbedder.
const Dims = 64

// HashEmbedder embeds text as a normalized bag of hashed lowercase words.
// Identical texts always yield identical vectors, so a query copied from a
// passage is its own nearest neighbour.
type HashEmbedder struct {
	mu    sync.Mutex
	calls int
}

// Embed implements rag.Embedder.
func (e *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = vector(t)
	}
	return out, nil
}

// Calls returns how many times Embed was invoked.
func (e *HashEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func vector(text string) []float32 {
	v := make([]float32, Dims)
	// The bias dimension keeps empty text off the zero vector.
	v[Dims-1] = 1
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		v[h.Sum32()%(Dims-1)]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v
}
