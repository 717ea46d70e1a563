package fingerprint

import (
	"gonum.org/v1/gonum/floats"
)

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns a value between -1 and 1, where 1 means identical direction.
// Two zero vectors are identical (1). A zero vector against a non-zero one,
// or mismatched or empty vectors, give 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	x, y := toFloat64(a), toFloat64(b)
	normA, normB := floats.Norm(x, 2), floats.Norm(y, 2)
	switch {
	case normA == 0 && normB == 0:
		// A flat image has an all-zero mean hash; equal hashes must be at distance 0.
		return 1
	case normA == 0 || normB == 0:
		return 0
	}
	sim := floats.Dot(x, y) / (normA * normB)
	return max(-1, min(1, sim))
}

// CosineDistance is 1 - CosineSimilarity, in [0, 2].
// Mismatched or empty vectors are at the maximum distance 2.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2
	}
	return 1 - CosineSimilarity(a, b)
}

// EuclideanDistance returns the L2 distance, or -1 for vectors of different length.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return -1
	}
	return floats.Distance(toFloat64(a), toFloat64(b), 2)
}

// DotProduct returns the inner product, or 0 for vectors of different length.
func DotProduct(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	return floats.Dot(toFloat64(a), toFloat64(b))
}

// NormalizedDistance returns |a-b| / (|a| + |b|), which lies in [0, 1].
// Two zero vectors are at distance 0.
func NormalizedDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return 1
	}
	x, y := toFloat64(a), toFloat64(b)
	denom := floats.Norm(x, 2) + floats.Norm(y, 2)
	if denom == 0 {
		return 0
	}
	return floats.Distance(x, y, 2) / denom
}

// Similar returns true if two vectors have cosine similarity at or above threshold.
func Similar(a, b []float32, threshold float64) bool {
	return CosineSimilarity(a, b) >= threshold
}
