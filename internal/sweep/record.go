package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"geneclust/internal/cluster"
	"geneclust/internal/evo"
	"geneclust/internal/logging"
	"geneclust/internal/metrics"
	"geneclust/internal/model"
	"geneclust/internal/storage"
)

// Outcome is one finished engine run.
type Outcome[T model.Coord] struct {
	RunID   string
	Config  evo.Config
	Result  evo.RunResult
	Best    cluster.Individual[T]
	WCSS    float64
	Elapsed time.Duration
}

// FitOnce evolves a single engine over data and captures its best solution.
func FitOnce[T model.Coord](ctx context.Context, data []model.Point[T], cfg evo.Config, logger *slog.Logger, opts ...evo.Option[T]) (Outcome[T], error) {
	runID := uuid.NewString()
	logger = logging.OrDiscard(logger).With("run_id", runID)

	opts = append([]evo.Option[T]{evo.WithLogger[T](logger)}, opts...)
	engine, err := evo.NewEngine(cfg, opts...)
	if err != nil {
		return Outcome[T]{}, err
	}

	start := time.Now()
	result, err := engine.Fit(ctx, data)
	if err != nil {
		metrics.ObserveRunError()
		return Outcome[T]{}, fmt.Errorf("run %s: %w", runID, err)
	}
	elapsed := time.Since(start)

	best, err := engine.BestSolution()
	if err != nil {
		return Outcome[T]{}, err
	}
	wcss, err := engine.ComputeWCSS(best)
	if err != nil {
		return Outcome[T]{}, err
	}
	metrics.ObserveRun(string(result.StopReason), result.Generations, elapsed)

	cfg.Seed = result.Seed
	return Outcome[T]{
		RunID:   runID,
		Config:  cfg,
		Result:  result,
		Best:    best,
		WCSS:    wcss,
		Elapsed: elapsed,
	}, nil
}

// RunReport is the persisted form of an Outcome.
type RunReport struct {
	Run         model.RunRecord
	Diagnostics []model.GenerationDiagnostics
	Solution    model.SolutionRecord
}

// Report widens o to float64 records tagged with sweepID.
func (o Outcome[T]) Report(sweepID string, data []model.Point[T], createdAt time.Time) RunReport {
	centroids := make([][]float64, len(o.Best.Centroids))
	for i, c := range o.Best.Centroids {
		centroids[i] = c.Float64s()
	}
	dim := 0
	if len(data) > 0 {
		dim = data[0].Dimension()
	}
	return RunReport{
		Run: model.RunRecord{
			ID:                 o.RunID,
			SweepID:            sweepID,
			CreatedAtUTC:       createdAt.UTC(),
			CoordType:          model.CoordName[T](),
			Points:             len(data),
			Dimension:          dim,
			K:                  o.Config.K,
			PopulationSize:     o.Config.PopulationSize,
			MaxGenerations:     o.Config.MaxGenerations,
			CrossoverRate:      o.Config.CrossoverRate,
			MutationRate:       o.Config.MutationRate,
			MaxNoImprovement:   o.Config.MaxNoImprovement,
			DiversityThreshold: o.Config.DiversityThreshold,
			TargetFitness:      o.Config.TargetFitness,
			Seed:               o.Result.Seed,
			Generations:        o.Result.Generations,
			StopReason:         string(o.Result.StopReason),
			BestFitness:        o.Best.Fitness,
			BestWCSS:           o.WCSS,
			DurationMS:         o.Elapsed.Milliseconds(),
		},
		Diagnostics: o.Result.Diagnostics,
		Solution: model.SolutionRecord{
			RunID:     o.RunID,
			K:         o.Config.K,
			Centroids: centroids,
			Labels:    append([]int(nil), o.Best.Labels...),
			Fitness:   o.Best.Fitness,
			WCSS:      o.WCSS,
		},
	}
}

// Recorder receives every finished run. Implementations must be safe for
// concurrent use when a sweep runs with more than one worker.
type Recorder interface {
	Record(ctx context.Context, report RunReport) error
}

// StoreRecorder persists reports into a storage.Store.
type StoreRecorder struct {
	Store storage.Store
}

func (r StoreRecorder) Record(ctx context.Context, report RunReport) error {
	if err := r.Store.SaveRun(ctx, report.Run); err != nil {
		return fmt.Errorf("save run %s: %w", report.Run.ID, err)
	}
	if err := r.Store.SaveGenerationDiagnostics(ctx, report.Run.ID, report.Diagnostics); err != nil {
		return fmt.Errorf("save diagnostics %s: %w", report.Run.ID, err)
	}
	if err := r.Store.SaveSolution(ctx, report.Solution); err != nil {
		return fmt.Errorf("save solution %s: %w", report.Run.ID, err)
	}
	return nil
}
