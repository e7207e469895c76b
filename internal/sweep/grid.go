package sweep

import (
	"errors"
	"fmt"
	"math/rand"

	"geneclust/internal/evo"
)

// Grid is the hyperparameter space swept by Run. Every combination of Ks,
// PopulationSizes, CrossoverRates and MutationRates is evolved Runs times.
type Grid struct {
	Ks                 []int     `json:"ks"`
	PopulationSizes    []int     `json:"population_sizes"`
	CrossoverRates     []float64 `json:"crossover_rates"`
	MutationRates      []float64 `json:"mutation_rates"`
	Runs               int       `json:"runs"`
	MaxGenerations     int       `json:"max_generations"`
	MaxNoImprovement   int       `json:"max_no_improvement"`
	DiversityThreshold float64   `json:"diversity_threshold"`
	TargetFitness      float64   `json:"target_fitness"`
	// Seed 0 lets every engine seed from the clock.
	Seed int64 `json:"seed"`
}

func DefaultGrid() Grid {
	return Grid{
		Ks:                 []int{2, 3, 4, 5, 6},
		PopulationSizes:    []int{50, 100, 200},
		CrossoverRates:     []float64{0.7, 0.8, 0.9},
		MutationRates:      []float64{0.01, 0.05, 0.1},
		Runs:               10,
		MaxGenerations:     100,
		MaxNoImprovement:   20,
		DiversityThreshold: 0.01,
	}
}

// Combination is one point of the grid.
type Combination struct {
	K              int     `json:"k"`
	PopulationSize int     `json:"population_size"`
	CrossoverRate  float64 `json:"crossover_rate"`
	MutationRate   float64 `json:"mutation_rate"`
}

func (c Combination) String() string {
	return fmt.Sprintf("k=%d pop=%d cx=%g mut=%g", c.K, c.PopulationSize, c.CrossoverRate, c.MutationRate)
}

// Validate rejects grids with an empty axis or no runs. Per-combination
// settings are validated by the engine.
func (g Grid) Validate() error {
	switch {
	case len(g.Ks) == 0:
		return errors.New("grid has no k values")
	case len(g.PopulationSizes) == 0:
		return errors.New("grid has no population sizes")
	case len(g.CrossoverRates) == 0:
		return errors.New("grid has no crossover rates")
	case len(g.MutationRates) == 0:
		return errors.New("grid has no mutation rates")
	case g.Runs <= 0:
		return fmt.Errorf("grid runs must be positive, got %d", g.Runs)
	}
	return nil
}

// Combinations lists the grid in k, population, crossover, mutation order.
func (g Grid) Combinations() []Combination {
	out := make([]Combination, 0, len(g.Ks)*len(g.PopulationSizes)*len(g.CrossoverRates)*len(g.MutationRates))
	for _, k := range g.Ks {
		for _, pop := range g.PopulationSizes {
			for _, cx := range g.CrossoverRates {
				for _, mut := range g.MutationRates {
					out = append(out, Combination{K: k, PopulationSize: pop, CrossoverRate: cx, MutationRate: mut})
				}
			}
		}
	}
	return out
}

// Config builds the engine configuration for c with the given seed.
func (g Grid) Config(c Combination, seed int64) evo.Config {
	return evo.Config{
		PopulationSize:     c.PopulationSize,
		MaxGenerations:     g.MaxGenerations,
		CrossoverRate:      c.CrossoverRate,
		MutationRate:       c.MutationRate,
		K:                  c.K,
		MaxNoImprovement:   g.MaxNoImprovement,
		DiversityThreshold: g.DiversityThreshold,
		TargetFitness:      g.TargetFitness,
		Seed:               seed,
	}
}

// seeds derives n non-zero run seeds from the grid seed. A zero grid seed
// yields zeros so each engine seeds itself.
func (g Grid) seeds(n int) []int64 {
	out := make([]int64, n)
	if g.Seed == 0 {
		return out
	}
	src := rand.New(rand.NewSource(g.Seed))
	for i := range out {
		for out[i] == 0 {
			out[i] = src.Int63()
		}
	}
	return out
}
