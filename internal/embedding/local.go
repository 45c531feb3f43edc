package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultLocalDimension is the vector size of the hashing embedder.
const DefaultLocalDimension = 256

// Local is a model-free embedder: each word hashes into a bucket of a
// fixed-size vector, which is then L2-normalized. Identical texts always
// produce identical vectors, and lexically similar texts land near each
// other, which is enough for coarse similarity search without a model.
type Local struct {
	dimension int
}

var _ Embedder = (*Local)(nil)

// NewLocal returns the hashing embedder. A dimension of 0 selects the
// default.
func NewLocal(dimension int) *Local {
	if dimension <= 0 {
		dimension = DefaultLocalDimension
	}
	return &Local{dimension: dimension}
}

// Model returns the provider identifier.
func (l *Local) Model() string { return "hashing-v1" }

// Dimension returns the vector size.
func (l *Local) Dimension() int { return l.dimension }

// Embed generates one vector.
func (l *Local) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vector := make([]float32, l.dimension)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, word := range words {
		hasher := fnv.New64a()
		_, _ = hasher.Write([]byte(word))
		sum := hasher.Sum64()
		bucket := int(sum % uint64(l.dimension))
		// The next hash bit decides sign so buckets do not only grow.
		if sum&(1<<63) != 0 {
			vector[bucket]--
		} else {
			vector[bucket]++
		}
	}

	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vector {
			vector[i] *= scale
		}
	}
	return vector, nil
}

// EmbedBatch generates vectors for multiple texts.
func (l *Local) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vector, err := l.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vector
	}
	return vectors, nil
}
