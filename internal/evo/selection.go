package evo

import (
	"fmt"
	"math/rand"

	"geneclust/internal/cluster"
	"geneclust/internal/model"
)

const DefaultTournamentSize = 3

// Selector chooses a parent index from the current population.
type Selector[T model.Coord] interface {
	Name() string
	PickParent(rng *rand.Rand, population []cluster.Individual[T]) (int, error)
}

// TournamentSelector samples TournamentSize members with replacement and keeps
// the fittest. The first sampled member wins ties.
type TournamentSelector[T model.Coord] struct {
	TournamentSize int
}

func (TournamentSelector[T]) Name() string {
	return "tournament"
}

func (s TournamentSelector[T]) PickParent(rng *rand.Rand, population []cluster.Individual[T]) (int, error) {
	if rng == nil {
		return 0, fmt.Errorf("random source is required")
	}
	if len(population) == 0 {
		return 0, fmt.Errorf("population is empty")
	}

	tournamentSize := s.TournamentSize
	if tournamentSize <= 0 {
		tournamentSize = DefaultTournamentSize
	}

	best := rng.Intn(len(population))
	for i := 1; i < tournamentSize; i++ {
		candidate := rng.Intn(len(population))
		if population[candidate].Fitness > population[best].Fitness {
			best = candidate
		}
	}
	return best, nil
}

// bestIndex returns the index of the fittest individual, first wins ties.
func bestIndex[T model.Coord](population []cluster.Individual[T]) int {
	best := 0
	for i := 1; i < len(population); i++ {
		if population[i].Fitness > population[best].Fitness {
			best = i
		}
	}
	return best
}
