// Package mutation perturbs centroid coordinates during evolution.
package mutation

import (
	"math/rand"

	"geneclust/internal/model"
)

const (
	DefaultSigma     = 0.1
	DefaultMaxChange = 3
)

// Operator mutates a point in place.
type Operator[T model.Coord] interface {
	Name() string
	Mutate(p model.Point[T], rng *rand.Rand)
}

// Gaussian adds N(0, Sigma) noise to each coordinate with probability Rate.
type Gaussian[T model.Coord] struct {
	Rate  float64
	Sigma float64
}

func (Gaussian[T]) Name() string {
	return "gaussian"
}

func (g Gaussian[T]) Mutate(p model.Point[T], rng *rand.Rand) {
	for i := range p {
		if rng.Float64() < g.Rate {
			p[i] += T(rng.NormFloat64() * g.Sigma)
		}
	}
}

// Integer adds a uniform offset in [-MaxChange, MaxChange] to each coordinate
// with probability Rate.
type Integer[T model.Coord] struct {
	Rate      float64
	MaxChange int
}

func (Integer[T]) Name() string {
	return "integer"
}

func (m Integer[T]) Mutate(p model.Point[T], rng *rand.Rand) {
	span := 2*m.MaxChange + 1
	for i := range p {
		if rng.Float64() < m.Rate {
			delta := rng.Intn(span) - m.MaxChange
			p[i] = T(float64(p[i]) + float64(delta))
		}
	}
}

// ForCoord picks the operator matching T: integer coordinates get bounded
// integer jitter, floating coordinates get gaussian noise.
func ForCoord[T model.Coord](rate float64) Operator[T] {
	if model.IsInteger[T]() {
		return Integer[T]{Rate: rate, MaxChange: DefaultMaxChange}
	}
	return Gaussian[T]{Rate: rate, Sigma: DefaultSigma}
}
