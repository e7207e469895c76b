package evo

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"

	"geneclust/internal/cluster"
	"geneclust/internal/distance"
	"geneclust/internal/model"
)

// Diversity is the mean distance between same-index centroids over every
// pair of individuals. Populations with fewer than two members have zero
// diversity.
func Diversity[T model.Coord](population []cluster.Individual[T], metric distance.Metric[T]) float64 {
	total := 0.0
	terms := 0
	for i := 0; i < len(population); i++ {
		for j := i + 1; j < len(population); j++ {
			a, b := population[i].Centroids, population[j].Centroids
			for c := range a {
				total += metric.Compute(a[c], b[c])
				terms++
			}
		}
	}
	if terms == 0 {
		return 0
	}
	return total / float64(terms)
}

// Fingerprint hashes the centroid coordinates of an individual.
func Fingerprint[T model.Coord](ind cluster.Individual[T]) uint64 {
	d := xxhash.New()
	var buf [8]byte
	for _, centroid := range ind.Centroids {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(centroid)))
		_, _ = d.Write(buf[:])
		for _, v := range centroid {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(float64(v)))
			_, _ = d.Write(buf[:])
		}
	}
	return d.Sum64()
}

// DistinctSolutions counts individuals with distinct centroid fingerprints.
func DistinctSolutions[T model.Coord](population []cluster.Individual[T]) int {
	seen := make(map[uint64]struct{}, len(population))
	for _, ind := range population {
		seen[Fingerprint(ind)] = struct{}{}
	}
	return len(seen)
}
