package model

import (
	"time"

	"golang.org/x/exp/constraints"
)

// Coord is the numeric type of a point coordinate.
type Coord interface {
	constraints.Integer | constraints.Float
}

// IsInteger reports whether T truncates fractions.
func IsInteger[T Coord]() bool {
	var one T = 1
	return one/2 == 0
}

// CoordName is "int" for integer coordinate types and "float" otherwise.
func CoordName[T Coord]() string {
	if IsInteger[T]() {
		return "int"
	}
	return "float"
}

// Point is an ordered, fixed-length coordinate vector.
type Point[T Coord] []T

func (p Point[T]) Dimension() int {
	return len(p)
}

func (p Point[T]) Clone() Point[T] {
	if p == nil {
		return nil
	}
	out := make(Point[T], len(p))
	copy(out, p)
	return out
}

// Float64s widens the coordinates for storage and reporting.
func (p Point[T]) Float64s() []float64 {
	out := make([]float64, len(p))
	for i, v := range p {
		out[i] = float64(v)
	}
	return out
}

// ClonePoints deep-copies a point list.
func ClonePoints[T Coord](points []Point[T]) []Point[T] {
	if points == nil {
		return nil
	}
	out := make([]Point[T], len(points))
	for i, p := range points {
		out[i] = p.Clone()
	}
	return out
}

type GenerationDiagnostics struct {
	Generation           int     `json:"generation"`
	BestFitness          float64 `json:"best_fitness"`
	MeanFitness          float64 `json:"mean_fitness"`
	MinFitness           float64 `json:"min_fitness"`
	BestWCSS             float64 `json:"best_wcss"`
	Diversity            float64 `json:"diversity"`
	NoImprovement        int     `json:"no_improvement"`
	FingerprintDiversity int     `json:"fingerprint_diversity"`
}

// RunRecord summarizes one engine run for persistence.
type RunRecord struct {
	ID                 string    `json:"id"`
	SweepID            string    `json:"sweep_id,omitempty"`
	CreatedAtUTC       time.Time `json:"created_at_utc"`
	CoordType          string    `json:"coord_type"`
	Points             int       `json:"points"`
	Dimension          int       `json:"dimension"`
	K                  int       `json:"k"`
	PopulationSize     int       `json:"population_size"`
	MaxGenerations     int       `json:"max_generations"`
	CrossoverRate      float64   `json:"crossover_rate"`
	MutationRate       float64   `json:"mutation_rate"`
	MaxNoImprovement   int       `json:"max_no_improvement"`
	DiversityThreshold float64   `json:"diversity_threshold"`
	TargetFitness      float64   `json:"target_fitness"`
	Seed               int64     `json:"seed"`
	Generations        int       `json:"generations"`
	StopReason         string    `json:"stop_reason"`
	BestFitness        float64   `json:"best_fitness"`
	BestWCSS           float64   `json:"best_wcss"`
	DurationMS         int64     `json:"duration_ms"`
}

// SolutionRecord is the best clustering of a run, widened to float64.
type SolutionRecord struct {
	RunID     string      `json:"run_id"`
	K         int         `json:"k"`
	Centroids [][]float64 `json:"centroids"`
	Labels    []int       `json:"labels"`
	Fitness   float64     `json:"fitness"`
	WCSS      float64     `json:"wcss"`
}
