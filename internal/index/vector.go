package index

import (
	"fmt"
	"math"
)

// Vector is a brute-force cosine similarity index. It is immutable once built.
type Vector struct {
	chunks    []Chunk
	norms     []float64
	dimension int
}

// NewVector builds a vector index. All embeddings must share one dimension.
func NewVector(chunks []Chunk) (*Vector, error) {
	v := &Vector{chunks: chunks, norms: make([]float64, len(chunks))}
	for i, c := range chunks {
		if len(c.Embedding) == 0 {
			return nil, fmt.Errorf("chunk %s has no embedding", c.ID)
		}
		if v.dimension == 0 {
			v.dimension = len(c.Embedding)
		} else if len(c.Embedding) != v.dimension {
			return nil, fmt.Errorf("vector dimension mismatch: chunk %s has %d, index has %d", c.ID, len(c.Embedding), v.dimension)
		}
		v.norms[i] = norm(c.Embedding)
	}
	return v, nil
}

// Dimension returns the embedding width, or 0 for an empty index.
func (v *Vector) Dimension() int {
	return v.dimension
}

func (v *Vector) Len() int {
	return len(v.chunks)
}

// Search returns up to topK chunks ordered by cosine similarity to query.
func (v *Vector) Search(query []float32, topK int) ([]Hit, error) {
	if len(v.chunks) == 0 {
		return nil, nil
	}
	if len(query) != v.dimension {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(query), v.dimension)
	}
	qn := norm(query)
	if qn == 0 {
		return nil, nil
	}

	scores := make([]float64, len(v.chunks))
	for i, c := range v.chunks {
		if v.norms[i] == 0 {
			scores[i] = math.Inf(-1)
			continue
		}
		scores[i] = dot(c.Embedding, query) / (v.norms[i] * qn)
	}
	return rankHits(v.chunks, scores, func(s float64) bool { return !math.IsInf(s, -1) }, topK), nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func norm(a []float32) float64 {
	return math.Sqrt(dot(a, a))
}
