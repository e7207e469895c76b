package evo

import (
	"errors"
	"fmt"
	"math/rand"

	"geneclust/internal/cluster"
	"geneclust/internal/model"
)

var ErrCrossoverTooFewClusters = errors.New("crossover requires at least two clusters")

// SinglePointCrossover recombines the centroid lists of two parents at a
// point drawn uniformly from [1, k-1].
func SinglePointCrossover[T model.Coord](rng *rand.Rand, parent1, parent2 cluster.Individual[T]) (cluster.Individual[T], cluster.Individual[T], error) {
	k := len(parent1.Centroids)
	if k < 2 {
		return cluster.Individual[T]{}, cluster.Individual[T]{}, fmt.Errorf("%w: k=%d", ErrCrossoverTooFewClusters, k)
	}
	return CrossoverAt(parent1, parent2, 1+rng.Intn(k-1))
}

// CrossoverAt builds child1 = parent1[:point] + parent2[point:] and child2 as
// its complement. Centroids are copied; labels are left for re-evaluation.
func CrossoverAt[T model.Coord](parent1, parent2 cluster.Individual[T], point int) (cluster.Individual[T], cluster.Individual[T], error) {
	k := len(parent1.Centroids)
	if k < 2 {
		return cluster.Individual[T]{}, cluster.Individual[T]{}, fmt.Errorf("%w: k=%d", ErrCrossoverTooFewClusters, k)
	}
	if len(parent2.Centroids) != k {
		return cluster.Individual[T]{}, cluster.Individual[T]{}, fmt.Errorf("parent centroid count mismatch: %d != %d", k, len(parent2.Centroids))
	}
	if point < 1 || point > k-1 {
		return cluster.Individual[T]{}, cluster.Individual[T]{}, fmt.Errorf("crossover point %d outside [1, %d]", point, k-1)
	}

	child1 := cluster.Individual[T]{Centroids: make([]model.Point[T], 0, k)}
	child2 := cluster.Individual[T]{Centroids: make([]model.Point[T], 0, k)}
	for i := 0; i < k; i++ {
		if i < point {
			child1.Centroids = append(child1.Centroids, parent1.Centroids[i].Clone())
			child2.Centroids = append(child2.Centroids, parent2.Centroids[i].Clone())
		} else {
			child1.Centroids = append(child1.Centroids, parent2.Centroids[i].Clone())
			child2.Centroids = append(child2.Centroids, parent1.Centroids[i].Clone())
		}
	}
	return child1, child2, nil
}
