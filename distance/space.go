package distance

import (
	"fmt"
	"math"
)

// Space binds a metric to a kernel set. It is selected once per index and
// used for every distance computation of that index.
type Space interface {
	// Metric returns the metric implemented by the space.
	Metric() Metric
	// Distance returns the raw distance between a and b. Smaller is closer.
	// Both vectors must have been passed through Prepare.
	Distance(a, b []float32) float32
	// Score converts a raw distance into the value reported to callers.
	// Similarity metrics report higher-is-better values.
	Score(d float32) float32
	// HigherIsBetter reports the ordering of Score.
	HigherIsBetter() bool
	// Prepare returns the representation stored in the graph. It never
	// aliases v when a transformation is needed.
	Prepare(v []float32) []float32
}

// NewSpace returns the space for metric m using kernel k.
func NewSpace(m Metric, k Kernel) (Space, error) {
	ks := kernelsFor(k)
	switch m {
	case MetricEuclidean:
		return euclidean{ks}, nil
	case MetricCosine:
		return cosine{ks}, nil
	case MetricDot:
		return dotProduct{ks}, nil
	case MetricManhattan:
		return manhattan{ks}, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %v", m)
	}
}

type euclidean struct{ k kernels }

func (euclidean) Metric() Metric { return MetricEuclidean }

func (s euclidean) Distance(a, b []float32) float32 {
	mustSameLen(a, b)
	return float32(math.Sqrt(float64(s.k.squaredL2(a, b))))
}

func (euclidean) Score(d float32) float32       { return d }
func (euclidean) HigherIsBetter() bool          { return false }
func (euclidean) Prepare(v []float32) []float32 { return v }

// cosine stores unit vectors so the distance reduces to 1 - dot.
type cosine struct{ k kernels }

func (cosine) Metric() Metric { return MetricCosine }

func (s cosine) Distance(a, b []float32) float32 {
	mustSameLen(a, b)
	return 1 - s.k.dot(a, b)
}

func (cosine) Score(d float32) float32 { return 1 - d }
func (cosine) HigherIsBetter() bool    { return true }

// Prepare returns a normalized copy. A zero vector stays zero.
func (s cosine) Prepare(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	norm2 := s.k.dot(out, out)
	if norm2 == 0 {
		return out
	}
	inv := float32(1 / math.Sqrt(float64(norm2)))
	for i := range out {
		out[i] *= inv
	}
	return out
}

type dotProduct struct{ k kernels }

func (dotProduct) Metric() Metric { return MetricDot }

func (s dotProduct) Distance(a, b []float32) float32 {
	mustSameLen(a, b)
	return -s.k.dot(a, b)
}

func (dotProduct) Score(d float32) float32       { return -d }
func (dotProduct) HigherIsBetter() bool          { return true }
func (dotProduct) Prepare(v []float32) []float32 { return v }

type manhattan struct{ k kernels }

func (manhattan) Metric() Metric { return MetricManhattan }

func (s manhattan) Distance(a, b []float32) float32 {
	mustSameLen(a, b)
	return s.k.l1(a, b)
}

func (manhattan) Score(d float32) float32       { return d }
func (manhattan) HigherIsBetter() bool          { return false }
func (manhattan) Prepare(v []float32) []float32 { return v }
