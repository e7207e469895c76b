// Package sweep searches the engine hyperparameter grid and keeps the lowest
// WCSS clustering found for each cluster count.
package sweep

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"geneclust/internal/cluster"
	"geneclust/internal/evo"
	"geneclust/internal/logging"
	"geneclust/internal/metrics"
	"geneclust/internal/model"
)

type Options[T model.Coord] struct {
	Logger *slog.Logger
	// Recorder, when set, receives every finished run.
	Recorder Recorder
	// Workers bounds concurrent engine runs; values below one mean one.
	Workers int
	// EngineOptions are passed to every engine.
	EngineOptions []evo.Option[T]
}

// CombinationResult aggregates the runs of one grid combination.
type CombinationResult[T model.Coord] struct {
	Combination
	Runs      int
	BestRunID string
	BestWCSS  float64
	MeanWCSS  float64
	Best      cluster.Individual[T]
}

type Result[T model.Coord] struct {
	SweepID      string
	Combinations []CombinationResult[T]
	// BestByK holds the lowest-WCSS combination for each k.
	BestByK map[int]CombinationResult[T]
	Elapsed time.Duration
}

// Ks returns the cluster counts in BestByK in ascending order.
func (r Result[T]) Ks() []int {
	ks := make([]int, 0, len(r.BestByK))
	for k := range r.BestByK {
		ks = append(ks, k)
	}
	slices.Sort(ks)
	return ks
}

type job struct {
	combo int
	run   int
	seed  int64
}

// Run evolves every grid combination grid.Runs times. Results are aggregated
// in grid order, so a seeded sweep is reproducible regardless of Workers.
func Run[T model.Coord](ctx context.Context, data []model.Point[T], grid Grid, opts Options[T]) (Result[T], error) {
	if err := grid.Validate(); err != nil {
		return Result[T]{}, err
	}
	logger := logging.OrDiscard(opts.Logger)
	sweepID := uuid.NewString()
	logger = logger.With("sweep_id", sweepID)

	combos := grid.Combinations()
	seeds := grid.seeds(len(combos) * grid.Runs)
	jobs := make([]job, 0, len(seeds))
	for c := range combos {
		for r := 0; r < grid.Runs; r++ {
			jobs = append(jobs, job{combo: c, run: r, seed: seeds[len(jobs)]})
		}
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	logger.Info("sweep started", "combinations", len(combos), "runs", len(jobs), "workers", workers)

	start := time.Now()
	outcomes := make([]Outcome[T], len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, j := range jobs {
		g.Go(func() error {
			combo := combos[j.combo]
			out, err := FitOnce(gctx, data, grid.Config(combo, j.seed), logger.With("combination", combo.String(), "run", j.run), opts.EngineOptions...)
			if err != nil {
				return err
			}
			if opts.Recorder != nil {
				if err := opts.Recorder.Record(gctx, out.Report(sweepID, data, time.Now())); err != nil {
					return err
				}
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result[T]{}, err
	}

	result := aggregate(sweepID, combos, grid.Runs, outcomes)
	result.Elapsed = time.Since(start)
	for _, k := range result.Ks() {
		best := result.BestByK[k]
		metrics.SetBestWCSS(k, best.BestWCSS)
		logger.Info("best for k", "k", k, "wcss", best.BestWCSS, "combination", best.Combination.String(), "run_id", best.BestRunID)
	}
	logger.Info("sweep finished", "runs", len(jobs), "elapsed", result.Elapsed)
	return result, nil
}

// aggregate folds outcomes, laid out combination by combination, into per
// combination and per k bests. Earlier runs win ties.
func aggregate[T model.Coord](sweepID string, combos []Combination, runs int, outcomes []Outcome[T]) Result[T] {
	result := Result[T]{
		SweepID:      sweepID,
		Combinations: make([]CombinationResult[T], 0, len(combos)),
		BestByK:      make(map[int]CombinationResult[T]),
	}
	for c, combo := range combos {
		cr := CombinationResult[T]{Combination: combo, Runs: runs}
		total := 0.0
		for r := 0; r < runs; r++ {
			out := outcomes[c*runs+r]
			total += out.WCSS
			if r == 0 || out.WCSS < cr.BestWCSS {
				cr.BestWCSS = out.WCSS
				cr.BestRunID = out.RunID
				cr.Best = out.Best
			}
		}
		cr.MeanWCSS = total / float64(runs)
		result.Combinations = append(result.Combinations, cr)

		if prev, ok := result.BestByK[combo.K]; !ok || cr.BestWCSS < prev.BestWCSS {
			result.BestByK[combo.K] = cr
		}
	}
	return result
}
