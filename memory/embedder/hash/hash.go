// Package hash provides a deterministic, dependency free embedder based on
// feature hashing of lower-cased word tokens. Texts sharing words land close
// together, which makes it usable for offline runs and tests.
package hash

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultDimensions is the vector size used by New.
const DefaultDimensions = 256

// Embedder hashes tokens into a fixed size vector.
type Embedder struct {
	dimensions int
}

// New creates a hashing embedder with DefaultDimensions.
func New() *Embedder {
	return NewWithDimensions(DefaultDimensions)
}

// NewWithDimensions creates a hashing embedder of the given size (minimum 8).
func NewWithDimensions(dims int) *Embedder {
	if dims < 8 {
		dims = 8
	}

	return &Embedder{dimensions: dims}
}

// Embed creates a deterministic unit vector from text.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dimensions)

	for _, tok := range Tokenize(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()

		idx := int(sum % uint64(e.dimensions))
		sign := float32(1)
		if (sum>>63)&1 == 1 {
			sign = -1
		}
		vec[idx] += sign
	}

	return normalize(vec), nil
}

// Dimensions returns the embedding size.
func (e *Embedder) Dimensions() int { return e.dimensions }

// Tokenize splits text into lower-cased letter/digit runs.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// normalize converts vec to a unit vector. The zero vector maps to the first
// basis vector so downstream cosine math never divides by zero.
func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}

	if norm == 0 {
		vec[0] = 1
		return vec
	}

	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}

	return vec
}
