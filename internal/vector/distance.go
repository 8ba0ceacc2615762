package vector

import (
	"fmt"
	"math"
	"strings"

	"github.com/hyperjump/devflow/internal/models"
)

// Metric is the distance function an index uses for its whole lifetime.
type Metric uint8

const (
	// MetricCosine is 1 - cos(a, b). Ranges over [0, 2].
	MetricCosine Metric = iota + 1
	// MetricL2 is the squared Euclidean distance.
	MetricL2
)

// String returns the configuration name of the metric.
func (m Metric) String() string {
	switch m {
	case MetricCosine:
		return "cosine"
	case MetricL2:
		return "l2"
	default:
		return fmt.Sprintf("metric(%d)", uint8(m))
	}
}

// ParseMetric maps a configuration name to a Metric. Empty selects cosine.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cosine", "cos":
		return MetricCosine, nil
	case "l2", "euclidean", "euclid":
		return MetricL2, nil
	default:
		return 0, fmt.Errorf("%w: unknown metric %q (supported: cosine, l2)", models.ErrConfiguration, s)
	}
}

func (m Metric) valid() bool {
	return m == MetricCosine || m == MetricL2
}

// Distance returns the distance between a and b under m. Vectors must have equal length.
func (m Metric) Distance(a, b []float32) float64 {
	if m == MetricL2 {
		return SquaredL2(a, b)
	}
	return CosineDistance(a, b)
}

// InnerProduct returns the inner product of two vectors (for normalized vectors equals cosine similarity).
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// SquaredL2 returns the squared Euclidean distance.
func SquaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// CosineDistance returns 1 - cos(a, b). A zero vector is at distance 1 from everything.
func CosineDistance(a, b []float32) float64 {
	na, nb := L2Norm(a), L2Norm(b)
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - InnerProduct(a, b)/(na*nb)
}
