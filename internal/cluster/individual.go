// Package cluster holds the candidate clustering solution evolved by the engine.
package cluster

import (
	"math/rand"

	"geneclust/internal/distance"
	"geneclust/internal/model"
)

// Individual is one clustering hypothesis: k centroids, the nearest-centroid
// label of every data point and a fitness score (higher is better).
//
// Labels are only refreshed by UpdateLabels; after a centroid edit they are
// stale until the next fitness evaluation.
type Individual[T model.Coord] struct {
	Centroids []model.Point[T]
	Labels    []int
	Fitness   float64
}

// Initialize samples k data points with replacement as centroids and labels
// the data against them.
func (ind *Individual[T]) Initialize(k int, data []model.Point[T], rng *rand.Rand, metric distance.Metric[T]) {
	ind.Centroids = make([]model.Point[T], 0, k)
	for i := 0; i < k; i++ {
		ind.Centroids = append(ind.Centroids, data[rng.Intn(len(data))].Clone())
	}
	ind.UpdateLabels(data, metric)
}

// UpdateLabels assigns each point to its nearest centroid. Ties resolve to the
// lowest centroid index.
func (ind *Individual[T]) UpdateLabels(data []model.Point[T], metric distance.Metric[T]) {
	ind.Labels = make([]int, len(data))
	for i, p := range data {
		best := 0
		bestDist := 0.0
		for c, centroid := range ind.Centroids {
			d := metric.Compute(p, centroid)
			if c == 0 || d < bestDist {
				best = c
				bestDist = d
			}
		}
		ind.Labels[i] = best
	}
}

// UpdateCentroids moves each centroid to the mean of the points currently
// labeled to it. Labels are used as-is. A centroid with no members keeps its
// previous position.
func (ind *Individual[T]) UpdateCentroids(data []model.Point[T]) {
	if len(ind.Centroids) == 0 || len(data) == 0 {
		return
	}
	dim := data[0].Dimension()
	sums := make([][]float64, len(ind.Centroids))
	counts := make([]int, len(ind.Centroids))
	for c := range sums {
		sums[c] = make([]float64, dim)
	}
	for i, p := range data {
		c := ind.Labels[i]
		for d, v := range p {
			sums[c][d] += float64(v)
		}
		counts[c]++
	}
	for c, count := range counts {
		if count == 0 {
			continue
		}
		centroid := make(model.Point[T], dim)
		for d := range centroid {
			centroid[d] = T(sums[c][d] / float64(count))
		}
		ind.Centroids[c] = centroid
	}
}

// TotalDistance sums the distance of every point to its labeled centroid.
func (ind *Individual[T]) TotalDistance(data []model.Point[T], metric distance.Metric[T]) float64 {
	total := 0.0
	for i, p := range data {
		total += metric.Compute(p, ind.Centroids[ind.Labels[i]])
	}
	return total
}

// WCSS is the within-cluster sum of squared Euclidean distances for the
// current labels.
func (ind *Individual[T]) WCSS(data []model.Point[T]) float64 {
	total := 0.0
	for i, p := range data {
		total += distance.SquaredL2(p, ind.Centroids[ind.Labels[i]])
	}
	return total
}

func (ind Individual[T]) Clone() Individual[T] {
	out := Individual[T]{
		Centroids: model.ClonePoints(ind.Centroids),
		Fitness:   ind.Fitness,
	}
	if ind.Labels != nil {
		out.Labels = append([]int(nil), ind.Labels...)
	}
	return out
}

func (ind Individual[T]) K() int {
	return len(ind.Centroids)
}
