package vector

import (
	"fmt"
	"math"

	"github.com/viant/vec/search"
)

// CosineSimilarity computes the cosine similarity between two vectors. It
// returns an error if the vectors have different lengths or if either vector
// has zero magnitude.
func CosineSimilarity(a, b []float32) (float64, error) {
	if err := sameDim(a, b, "cosine similarity"); err != nil {
		return 0, err
	}
	var dot, na2, nb2 float64
	for i := range a {
		va := float64(a[i])
		vb := float64(b[i])
		dot += va * vb
		na2 += va * va
		nb2 += vb * vb
	}
	if na2 == 0 || nb2 == 0 {
		return 0, fmt.Errorf("vector: cosine similarity with zero-magnitude vector")
	}
	return dot / (math.Sqrt(na2) * math.Sqrt(nb2)), nil
}

// CosineDistance returns 1 - cosine similarity, the metric duplicate
// thresholds are expressed in: 0 for identical directions, 2 for opposite.
func CosineDistance(a, b []float32) (float64, error) {
	if err := sameDim(a, b, "cosine distance"); err != nil {
		return 0, err
	}
	if Magnitude(a) == 0 || Magnitude(b) == 0 {
		return 0, fmt.Errorf("vector: cosine distance with zero-magnitude vector")
	}
	d := float64(search.Float32s(a).CosineDistance(b))
	if d < 0 {
		// float32 rounding on near-identical vectors
		d = 0
	}
	return d, nil
}

// L2Distance computes the Euclidean (L2) distance between two vectors. It
// returns an error if the vectors have different lengths.
func L2Distance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector: L2 distance dimension mismatch: %d vs %d", len(a), len(b))
	}
	return float64(search.Float32s(a).EuclideanDistance(b)), nil
}

// Magnitude returns the Euclidean norm of v.
func Magnitude(v []float32) float32 {
	if len(v) == 0 {
		return 0
	}
	return search.Float32s(v).Magnitude()
}

func sameDim(a, b []float32, op string) error {
	if len(a) != len(b) {
		return fmt.Errorf("vector: %s dimension mismatch: %d vs %d", op, len(a), len(b))
	}
	if len(a) == 0 {
		return fmt.Errorf("vector: %s on empty vectors", op)
	}
	return nil
}
