package evo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"geneclust/internal/cluster"
	"geneclust/internal/distance"
	"geneclust/internal/logging"
	"geneclust/internal/model"
	"geneclust/internal/mutation"
)

// ImprovementEpsilon is the smallest elite fitness gain that resets the
// no-improvement counter.
const ImprovementEpsilon = 1e-6

var (
	ErrEmptyDataset      = errors.New("dataset is empty")
	ErrDimensionMismatch = errors.New("point dimension mismatch")
	ErrNotIdle           = errors.New("engine is not idle")
	ErrNotFitted         = errors.New("engine has no population")
)

type State int

const (
	StateIdle State = iota
	StateInitialized
	StateEvolving
	StateConverged
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitialized:
		return "initialized"
	case StateEvolving:
		return "evolving"
	case StateConverged:
		return "converged"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type StopReason string

const (
	StopNone           StopReason = ""
	StopMaxGenerations StopReason = "max_generations"
	StopNoImprovement  StopReason = "no_improvement"
	StopLowDiversity   StopReason = "low_diversity"
	StopTargetFitness  StopReason = "target_fitness"
	StopCanceled       StopReason = "canceled"
)

// Config holds the engine hyperparameters. A zero stopping field disables
// that rule.
type Config struct {
	PopulationSize     int     `json:"population_size"`
	MaxGenerations     int     `json:"max_generations"`
	CrossoverRate      float64 `json:"crossover_rate"`
	MutationRate       float64 `json:"mutation_rate"`
	K                  int     `json:"k"`
	MaxNoImprovement   int     `json:"max_no_improvement"`
	DiversityThreshold float64 `json:"diversity_threshold"`
	TargetFitness      float64 `json:"target_fitness"`
	// Seed 0 seeds from the clock.
	Seed int64 `json:"seed"`
}

func (c Config) validate() error {
	if c.PopulationSize <= 0 {
		return fmt.Errorf("population size must be > 0")
	}
	if c.K <= 0 {
		return fmt.Errorf("cluster count must be > 0")
	}
	if c.CrossoverRate < 0 || c.CrossoverRate > 1 {
		return fmt.Errorf("crossover rate must be in [0, 1]")
	}
	if c.MutationRate < 0 || c.MutationRate > 1 {
		return fmt.Errorf("mutation rate must be in [0, 1]")
	}
	if c.CrossoverRate > 0 && c.K < 2 {
		return fmt.Errorf("%w: k=%d with crossover rate %v", ErrCrossoverTooFewClusters, c.K, c.CrossoverRate)
	}
	return c.validateStopConditions()
}

func (c Config) validateStopConditions() error {
	if c.MaxGenerations < 0 {
		return fmt.Errorf("max generations must be >= 0")
	}
	if c.MaxNoImprovement < 0 {
		return fmt.Errorf("max no-improvement generations must be >= 0")
	}
	if c.DiversityThreshold < 0 {
		return fmt.Errorf("diversity threshold must be >= 0")
	}
	if c.MaxGenerations == 0 && c.MaxNoImprovement == 0 && c.DiversityThreshold == 0 && c.TargetFitness == 0 {
		return fmt.Errorf("at least one stopping rule is required")
	}
	return nil
}

// RunResult describes a finished Fit call.
type RunResult struct {
	Seed               int64
	Generations        int
	StopReason         StopReason
	InitialBestFitness float64
	BestByGeneration   []float64
	Diagnostics        []model.GenerationDiagnostics
}

type Option[T model.Coord] func(*Engine[T])

// WithMetric replaces the Euclidean metric used for labels and fitness.
// Population diversity stays Euclidean.
func WithMetric[T model.Coord](metric distance.Metric[T]) Option[T] {
	return func(e *Engine[T]) {
		if metric != nil {
			e.metric = metric
		}
	}
}

// WithMutation replaces the coordinate-type default mutation operator.
func WithMutation[T model.Coord](op mutation.Operator[T]) Option[T] {
	return func(e *Engine[T]) {
		if op != nil {
			e.mutation = op
		}
	}
}

func WithSelector[T model.Coord](selector Selector[T]) Option[T] {
	return func(e *Engine[T]) {
		if selector != nil {
			e.selector = selector
		}
	}
}

func WithLogger[T model.Coord](logger *slog.Logger) Option[T] {
	return func(e *Engine[T]) {
		e.logger = logging.OrDiscard(logger)
	}
}

// WithGenerationHook is called after every generation with its diagnostics.
func WithGenerationHook[T model.Coord](hook func(model.GenerationDiagnostics)) Option[T] {
	return func(e *Engine[T]) {
		e.hook = hook
	}
}

// Engine evolves a population of centroid sets toward low total
// point-to-centroid distance. It is not safe for concurrent use.
type Engine[T model.Coord] struct {
	cfg      Config
	seed     int64
	rng      *rand.Rand
	metric   distance.Metric[T]
	mutation mutation.Operator[T]
	selector Selector[T]
	logger   *slog.Logger
	hook     func(model.GenerationDiagnostics)

	state      State
	data       []model.Point[T]
	population []cluster.Individual[T]
	generation int
}

func NewEngine[T model.Coord](cfg Config, opts ...Option[T]) (*Engine[T], error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	e := &Engine[T]{
		cfg:      cfg,
		seed:     seed,
		rng:      rand.New(rand.NewSource(seed)),
		metric:   distance.Euclidean[T]{},
		mutation: mutation.ForCoord[T](cfg.MutationRate),
		selector: TournamentSelector[T]{TournamentSize: DefaultTournamentSize},
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// SetStopConditions reconfigures the stopping rules. It is rejected while a
// fit is in progress.
func (e *Engine[T]) SetStopConditions(maxGenerations, maxNoImprovement int, diversityThreshold, targetFitness float64) error {
	if e.state == StateInitialized || e.state == StateEvolving {
		return fmt.Errorf("cannot reconfigure engine in state %s", e.state)
	}
	next := e.cfg
	next.MaxGenerations = maxGenerations
	next.MaxNoImprovement = maxNoImprovement
	next.DiversityThreshold = diversityThreshold
	next.TargetFitness = targetFitness
	if err := next.validateStopConditions(); err != nil {
		return err
	}
	e.cfg = next
	return nil
}

func (e *Engine[T]) Config() Config {
	return e.cfg
}

func (e *Engine[T]) Seed() int64 {
	return e.seed
}

func (e *Engine[T]) State() State {
	return e.state
}

func (e *Engine[T]) CurrentGeneration() int {
	return e.generation
}

func (e *Engine[T]) CurrentDiversity() float64 {
	return Diversity(e.population, distance.Euclidean[T]{})
}

// Population returns a deep copy of the current population.
func (e *Engine[T]) Population() []cluster.Individual[T] {
	out := make([]cluster.Individual[T], len(e.population))
	for i, ind := range e.population {
		out[i] = ind.Clone()
	}
	return out
}

// Fit runs the generational loop over data until a stopping rule fires or ctx
// is done. The engine keeps a reference to data; callers must not modify it
// while Fit runs.
func (e *Engine[T]) Fit(ctx context.Context, data []model.Point[T]) (RunResult, error) {
	if e.state != StateIdle {
		return RunResult{}, fmt.Errorf("%w: state=%s", ErrNotIdle, e.state)
	}
	if err := validateDataset(data); err != nil {
		return RunResult{}, err
	}

	e.data = data
	e.population = make([]cluster.Individual[T], e.cfg.PopulationSize)
	for i := range e.population {
		e.population[i].Initialize(e.cfg.K, data, e.rng, e.metric)
		e.evaluate(&e.population[i])
	}
	e.state = StateInitialized

	prevBest := e.population[bestIndex(e.population)].Fitness
	result := RunResult{
		Seed:               e.seed,
		InitialBestFitness: prevBest,
		BestByGeneration:   make([]float64, 0, historyCapacity(e.cfg.MaxGenerations)),
		Diagnostics:        make([]model.GenerationDiagnostics, 0, historyCapacity(e.cfg.MaxGenerations)),
	}
	e.logger.Info("fit started",
		"points", len(data),
		"dimension", data[0].Dimension(),
		"k", e.cfg.K,
		"population", e.cfg.PopulationSize,
		"mutation", e.mutation.Name(),
		"seed", e.seed,
	)

	e.state = StateEvolving
	noImprovement := 0
	for {
		if err := ctx.Err(); err != nil {
			e.state = StateDone
			result.Generations = e.generation
			result.StopReason = StopCanceled
			return result, err
		}

		if err := e.nextGeneration(); err != nil {
			e.state = StateDone
			result.Generations = e.generation
			return result, err
		}
		e.generation++

		best := e.population[bestIndex(e.population)]
		if best.Fitness-prevBest > ImprovementEpsilon {
			noImprovement = 0
		} else {
			noImprovement++
		}
		prevBest = best.Fitness

		diag := e.summarizeGeneration(best, noImprovement)
		result.BestByGeneration = append(result.BestByGeneration, best.Fitness)
		result.Diagnostics = append(result.Diagnostics, diag)
		e.logger.Debug("generation",
			"generation", diag.Generation,
			"best_fitness", diag.BestFitness,
			"best_wcss", diag.BestWCSS,
			"diversity", diag.Diversity,
			"no_improvement", noImprovement,
		)
		if e.hook != nil {
			e.hook(diag)
		}

		if reason := e.shouldStop(noImprovement, diag.Diversity, best.Fitness); reason != StopNone {
			e.state = StateConverged
			result.StopReason = reason
			break
		}
	}

	result.Generations = e.generation
	e.logger.Info("fit finished",
		"generations", e.generation,
		"stop_reason", string(result.StopReason),
		"best_fitness", prevBest,
	)
	e.state = StateDone
	return result, nil
}

// maxHistoryPrealloc bounds the per-generation history reserved up front;
// MaxGenerations is only a cap and most runs stop earlier.
const maxHistoryPrealloc = 1024

func historyCapacity(maxGenerations int) int {
	return min(maxGenerations, maxHistoryPrealloc)
}

func validateDataset[T model.Coord](data []model.Point[T]) error {
	if len(data) == 0 {
		return ErrEmptyDataset
	}
	dim := data[0].Dimension()
	if dim == 0 {
		return fmt.Errorf("%w: point 0 has no coordinates", ErrDimensionMismatch)
	}
	for i, p := range data {
		if p.Dimension() != dim {
			return fmt.Errorf("%w: point %d has dimension %d, want %d", ErrDimensionMismatch, i, p.Dimension(), dim)
		}
	}
	return nil
}

func (e *Engine[T]) nextGeneration() error {
	next := make([]cluster.Individual[T], 0, e.cfg.PopulationSize)
	next = append(next, e.population[bestIndex(e.population)].Clone())

	for len(next) < e.cfg.PopulationSize {
		i1, err := e.selector.PickParent(e.rng, e.population)
		if err != nil {
			return err
		}
		i2, err := e.selector.PickParent(e.rng, e.population)
		if err != nil {
			return err
		}
		parent1, parent2 := e.population[i1], e.population[i2]

		var child1, child2 cluster.Individual[T]
		if e.rng.Float64() < e.cfg.CrossoverRate {
			child1, child2, err = SinglePointCrossover(e.rng, parent1, parent2)
			if err != nil {
				return err
			}
		} else {
			child1, child2 = parent1.Clone(), parent2.Clone()
		}

		e.mutate(&child1)
		e.mutate(&child2)
		e.evaluate(&child1)
		e.evaluate(&child2)

		next = append(next, child1)
		if len(next) < e.cfg.PopulationSize {
			next = append(next, child2)
		}
	}

	e.population = next
	return nil
}

func (e *Engine[T]) mutate(ind *cluster.Individual[T]) {
	for _, centroid := range ind.Centroids {
		e.mutation.Mutate(centroid, e.rng)
	}
}

// evaluate relabels the individual and sets fitness = 1 / (1 + total distance).
func (e *Engine[T]) evaluate(ind *cluster.Individual[T]) {
	ind.UpdateLabels(e.data, e.metric)
	ind.Fitness = 1 / (1 + ind.TotalDistance(e.data, e.metric))
}

func (e *Engine[T]) shouldStop(noImprovement int, diversity, bestFitness float64) StopReason {
	if e.cfg.MaxGenerations != 0 && e.generation >= e.cfg.MaxGenerations {
		return StopMaxGenerations
	}
	if e.cfg.MaxNoImprovement != 0 && noImprovement >= e.cfg.MaxNoImprovement {
		return StopNoImprovement
	}
	if e.cfg.DiversityThreshold != 0 && diversity < e.cfg.DiversityThreshold {
		return StopLowDiversity
	}
	if e.cfg.TargetFitness != 0 && bestFitness >= e.cfg.TargetFitness {
		return StopTargetFitness
	}
	return StopNone
}

func (e *Engine[T]) summarizeGeneration(best cluster.Individual[T], noImprovement int) model.GenerationDiagnostics {
	total := 0.0
	minFitness := e.population[0].Fitness
	for _, ind := range e.population {
		total += ind.Fitness
		if ind.Fitness < minFitness {
			minFitness = ind.Fitness
		}
	}
	return model.GenerationDiagnostics{
		Generation:           e.generation,
		BestFitness:          best.Fitness,
		MeanFitness:          total / float64(len(e.population)),
		MinFitness:           minFitness,
		BestWCSS:             best.WCSS(e.data),
		Diversity:            Diversity(e.population, distance.Euclidean[T]{}),
		NoImprovement:        noImprovement,
		FingerprintDiversity: DistinctSolutions(e.population),
	}
}

// BestSolution returns a copy of the fittest individual, first wins ties.
func (e *Engine[T]) BestSolution() (cluster.Individual[T], error) {
	if len(e.population) == 0 {
		return cluster.Individual[T]{}, ErrNotFitted
	}
	return e.population[bestIndex(e.population)].Clone(), nil
}

// BestWCSS is ComputeWCSS of BestSolution.
func (e *Engine[T]) BestWCSS() (float64, error) {
	best, err := e.BestSolution()
	if err != nil {
		return 0, err
	}
	return e.ComputeWCSS(best)
}

// ComputeWCSS sums squared distances from each fitted point to the centroid
// its label names. This is the clustering objective; fitness uses unsquared
// distances.
func (e *Engine[T]) ComputeWCSS(ind cluster.Individual[T]) (float64, error) {
	if len(e.data) == 0 {
		return 0, ErrNotFitted
	}
	if len(ind.Labels) != len(e.data) {
		return 0, fmt.Errorf("labels cover %d points, dataset has %d", len(ind.Labels), len(e.data))
	}
	return ind.WCSS(e.data), nil
}
