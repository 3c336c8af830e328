package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// HashEncoder is a local, dependency-free encoder: an L2-normalized
// feature-hashed bag of character trigrams. It is fully deterministic and
// serves as the offline fallback when no embedding service is configured,
// and as the encoder in tests. Similar names land close in cosine space,
// though far less discriminating than a learned model.
type HashEncoder struct {
	dim int
}

// HashModelVersion identifies the hashing scheme in run provenance.
const HashModelVersion = "hash-trigram-v1"

// NewHashEncoder creates a hash encoder with the given dimensionality.
func NewHashEncoder(dim int) *HashEncoder {
	if dim <= 0 {
		dim = 128
	}
	return &HashEncoder{dim: dim}
}

// Encode embeds each text independently; never fails.
func (e *HashEncoder) Encode(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = e.encodeOne(text)
	}
	return vectors, nil
}

// ModelVersion implements Encoder.
func (e *HashEncoder) ModelVersion() string {
	return HashModelVersion
}

func (e *HashEncoder) encodeOne(text string) []float32 {
	v := make([]float32, e.dim)

	compact := make([]rune, 0, len(text))
	for _, r := range text {
		if r != ' ' {
			compact = append(compact, r)
		}
	}
	for i := 0; i+3 <= len(compact); i++ {
		h := fnv.New32a()
		_, _ = h.Write([]byte(string(compact[i : i+3])))
		v[h.Sum32()%uint32(e.dim)]++
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range v {
			v[i] *= inv
		}
	}
	return v
}
