package semcache

import (
	"hash/fnv"
	"math"

	"github.com/xiaot623/gogo/convo/internal/classifier"
)

// DefaultDim is the embedding width. Every entry and every query must use
// the same width for cosine similarity to be meaningful.
const DefaultDim = 256

// Embed hashes the words of text into a dim-wide vector (signed feature
// hashing) and L2-normalizes it. Empty text yields the zero vector.
func Embed(text string, dim int) []float64 {
	if dim <= 0 {
		dim = DefaultDim
	}
	vec := make([]float64, dim)
	for _, w := range classifier.Tokenize(classifier.Normalize(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		sum := h.Sum32()
		sign := 1.0
		if sum&(1<<31) != 0 {
			sign = -1.0
		}
		vec[int(sum%uint32(dim))] += sign
	}
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// Cosine returns the cosine similarity of a and b. Mismatched or zero
// vectors have similarity 0.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
