package database

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/photo-fingerprint/internal/fingerprint"
)

// Metric selects the distance used for nearest-neighbour search.
type Metric string

const (
	MetricCosine    Metric = "cosine"
	MetricEuclidean Metric = "euclidean"
	MetricDot       Metric = "dot"
)

// ErrUnknownMetric is returned for an unsupported metric name.
var ErrUnknownMetric = errors.New("unknown metric")

// Graph distance functions are registered by name so exported graphs can be
// imported again.
func init() {
	hnsw.RegisterDistanceFunc("fingerprint-cosine", cosineGraphDistance)
	hnsw.RegisterDistanceFunc("fingerprint-dot", negativeDot)
}

// Metrics returns the supported metrics.
func Metrics() []Metric {
	return []Metric{MetricCosine, MetricEuclidean, MetricDot}
}

// ParseMetric resolves a case-insensitive metric name.
func ParseMetric(name string) (Metric, error) {
	m := Metric(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Metrics() {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMetric, name)
}

// hnswDistance returns the graph distance function for the metric.
func (m Metric) hnswDistance() hnsw.DistanceFunc {
	switch m {
	case MetricEuclidean:
		return hnsw.EuclideanDistance
	case MetricDot:
		return negativeDot
	default:
		return cosineGraphDistance
	}
}

// Distance computes the metric distance between two vectors. Smaller is closer.
// Vectors of different length are infinitely far apart.
func (m Metric) Distance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	switch m {
	case MetricEuclidean:
		return fingerprint.EuclideanDistance(a, b)
	case MetricDot:
		return -fingerprint.DotProduct(a, b)
	default:
		return fingerprint.CosineDistance(a, b)
	}
}

// Similarity converts a distance into a score where larger is closer.
// For cosine it is the cosine similarity, otherwise the negated distance.
func (m Metric) Similarity(distance float64) float64 {
	if m == MetricCosine {
		return 1 - distance
	}
	return -distance
}

// cosineGraphDistance is fingerprint.CosineDistance for the graph. Unlike
// hnsw.CosineDistance it is defined for all-zero vectors, which the mean
// hash produces for flat images.
func cosineGraphDistance(a, b []float32) float32 {
	return float32(fingerprint.CosineDistance(a, b))
}

func negativeDot(a, b []float32) float32 {
	return float32(-fingerprint.DotProduct(a, b))
}
