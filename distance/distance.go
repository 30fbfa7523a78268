package distance

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// Dot calculates the dot product of two vectors using the active kernel.
// It panics if the vectors have different lengths.
func Dot(a, b []float32) float32 {
	mustSameLen(a, b)
	return active.dot(a, b)
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
// It panics if the vectors have different lengths.
func SquaredL2(a, b []float32) float32 {
	mustSameLen(a, b)
	return active.squaredL2(a, b)
}

// L2 calculates the Euclidean distance between two vectors.
func L2(a, b []float32) float32 {
	return float32(math.Sqrt(float64(SquaredL2(a, b))))
}

// L1 calculates the Manhattan distance between two vectors.
// It panics if the vectors have different lengths.
func L1(a, b []float32) float32 {
	mustSameLen(a, b)
	return active.l1(a, b)
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false if v has zero L2 norm.
func NormalizeL2InPlace(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	norm2 := active.dot(v, v)
	if norm2 == 0 {
		return false
	}
	inv := float32(1 / math.Sqrt(float64(norm2)))
	for i := range v {
		v[i] *= inv
	}
	return true
}

// NormalizeL2Copy returns a normalized copy of src.
// Returns false if src has zero L2 norm.
func NormalizeL2Copy(src []float32) ([]float32, bool) {
	dst := slices.Clone(src)
	if !NormalizeL2InPlace(dst) {
		return nil, false
	}
	return dst, true
}

func mustSameLen(a, b []float32) {
	if len(a) != len(b) {
		panic(fmt.Sprintf("distance: vector length mismatch: %d != %d", len(a), len(b)))
	}
}

// Metric represents the distance metric used for vector comparison.
type Metric int

const (
	MetricEuclidean Metric = iota
	MetricCosine
	MetricDot
	MetricManhattan
)

func (m Metric) String() string {
	switch m {
	case MetricEuclidean:
		return "Euclidean"
	case MetricCosine:
		return "Cosine"
	case MetricDot:
		return "Dot"
	case MetricManhattan:
		return "Manhattan"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// Valid reports whether m is a known metric.
func (m Metric) Valid() bool {
	return m >= MetricEuclidean && m <= MetricManhattan
}

// ParseMetric parses a metric name as used in configuration files.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "euclidean", "l2":
		return MetricEuclidean, nil
	case "cosine":
		return MetricCosine, nil
	case "dot", "dotproduct", "inner":
		return MetricDot, nil
	case "manhattan", "l1":
		return MetricManhattan, nil
	default:
		return 0, fmt.Errorf("unknown metric %q", s)
	}
}

// Func is a function type for distance calculation.
type Func func(a, b []float32) float32
