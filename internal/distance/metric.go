// Package distance provides point distance metrics.
package distance

import (
	"fmt"
	"math"

	"geneclust/internal/model"
)

// Metric computes a distance between two points of equal dimension.
type Metric[T model.Coord] interface {
	Compute(a, b model.Point[T]) float64
}

// Euclidean is the L2 metric.
type Euclidean[T model.Coord] struct{}

func (Euclidean[T]) Compute(a, b model.Point[T]) float64 {
	return math.Sqrt(SquaredL2(a, b))
}

// SquaredL2 returns the squared Euclidean distance. It panics when the
// dimensions differ.
func SquaredL2[T model.Coord](a, b model.Point[T]) float64 {
	if len(a) != len(b) {
		panic(fmt.Sprintf("distance: dimension mismatch %d != %d", len(a), len(b)))
	}
	sum := 0.0
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
