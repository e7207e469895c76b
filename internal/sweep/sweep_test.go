package sweep

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geneclust/internal/cluster"
	"geneclust/internal/model"
	"geneclust/internal/storage"
)

func blobs() []model.Point[float64] {
	return []model.Point[float64]{
		{0, 0}, {0, 1}, {1, 0}, {1, 1},
		{10, 10}, {10, 11}, {11, 10}, {11, 11},
	}
}

func smallGrid() Grid {
	return Grid{
		Ks:               []int{2, 3},
		PopulationSizes:  []int{10},
		CrossoverRates:   []float64{0.8},
		MutationRates:    []float64{0.05},
		Runs:             2,
		MaxGenerations:   5,
		MaxNoImprovement: 3,
		Seed:             42,
	}
}

func TestDefaultGridMatchesSearchSpace(t *testing.T) {
	grid := DefaultGrid()
	require.NoError(t, grid.Validate())
	assert.Len(t, grid.Combinations(), 5*3*3*3)
	assert.Equal(t, 10, grid.Runs)
	assert.Equal(t, 100, grid.MaxGenerations)
	assert.Equal(t, 20, grid.MaxNoImprovement)
	assert.Equal(t, 0.01, grid.DiversityThreshold)
	assert.Zero(t, grid.TargetFitness)
}

func TestGridValidate(t *testing.T) {
	cases := map[string]func(*Grid){
		"no ks":         func(g *Grid) { g.Ks = nil },
		"no population": func(g *Grid) { g.PopulationSizes = nil },
		"no crossover":  func(g *Grid) { g.CrossoverRates = nil },
		"no mutation":   func(g *Grid) { g.MutationRates = nil },
		"no runs":       func(g *Grid) { g.Runs = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			grid := smallGrid()
			mutate(&grid)
			assert.Error(t, grid.Validate())
		})
	}
}

func TestCombinationsOrder(t *testing.T) {
	grid := Grid{Ks: []int{2, 3}, PopulationSizes: []int{5}, CrossoverRates: []float64{0.7, 0.9}, MutationRates: []float64{0.1}}
	combos := grid.Combinations()
	require.Len(t, combos, 4)
	assert.Equal(t, Combination{K: 2, PopulationSize: 5, CrossoverRate: 0.7, MutationRate: 0.1}, combos[0])
	assert.Equal(t, Combination{K: 2, PopulationSize: 5, CrossoverRate: 0.9, MutationRate: 0.1}, combos[1])
	assert.Equal(t, 3, combos[2].K)
	assert.Equal(t, "k=2 pop=5 cx=0.7 mut=0.1", combos[0].String())
}

func TestSeedsAreDeterministicAndNonZero(t *testing.T) {
	grid := smallGrid()
	a := grid.seeds(20)
	b := grid.seeds(20)
	assert.Equal(t, a, b)
	for _, s := range a {
		assert.NotZero(t, s)
	}

	grid.Seed = 0
	for _, s := range grid.seeds(5) {
		assert.Zero(t, s)
	}
}

func TestRunRecordsEveryRunAndKeepsBestPerK(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Init(ctx))

	result, err := Run(ctx, blobs(), smallGrid(), Options[float64]{Recorder: StoreRecorder{Store: store}})
	require.NoError(t, err)

	require.Len(t, result.Combinations, 2)
	assert.Equal(t, []int{2, 3}, result.Ks())

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 4)
	for _, run := range runs {
		assert.Equal(t, result.SweepID, run.SweepID)
		assert.Equal(t, "float", run.CoordType)
		assert.Equal(t, 8, run.Points)
		assert.Equal(t, 2, run.Dimension)

		solution, ok, err := store.GetSolution(ctx, run.ID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Len(t, solution.Labels, 8)
		assert.Len(t, solution.Centroids, run.K)
		assert.Equal(t, run.BestWCSS, solution.WCSS)

		diagnostics, ok, err := store.GetGenerationDiagnostics(ctx, run.ID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Len(t, diagnostics, run.Generations)
	}

	for _, cr := range result.Combinations {
		best := result.BestByK[cr.K]
		assert.LessOrEqual(t, best.BestWCSS, cr.BestWCSS)
		assert.LessOrEqual(t, cr.BestWCSS, cr.MeanWCSS)
		assert.Len(t, cr.Best.Centroids, cr.K)
		assert.NotEmpty(t, cr.BestRunID)
	}
}

func TestRunIsReproducibleAcrossWorkerCounts(t *testing.T) {
	ctx := context.Background()
	serial, err := Run(ctx, blobs(), smallGrid(), Options[float64]{Workers: 1})
	require.NoError(t, err)
	parallel, err := Run(ctx, blobs(), smallGrid(), Options[float64]{Workers: 4})
	require.NoError(t, err)

	require.Len(t, parallel.Combinations, len(serial.Combinations))
	for i := range serial.Combinations {
		assert.Equal(t, serial.Combinations[i].BestWCSS, parallel.Combinations[i].BestWCSS)
		assert.Equal(t, serial.Combinations[i].Best.Centroids, parallel.Combinations[i].Best.Centroids)
	}
	assert.NotEqual(t, serial.SweepID, parallel.SweepID)
}

func TestRunIntegerCoordinates(t *testing.T) {
	data := []model.Point[int]{{0, 0}, {0, 2}, {20, 20}, {20, 22}}
	result, err := Run(context.Background(), data, smallGrid(), Options[int]{})
	require.NoError(t, err)
	for _, k := range result.Ks() {
		assert.Len(t, result.BestByK[k].Best.Labels, len(data))
	}
}

type failingRecorder struct {
	mu    sync.Mutex
	calls int
}

var errRecord = errors.New("record failed")

func (r *failingRecorder) Record(context.Context, RunReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return errRecord
}

func TestRunStopsOnRecorderError(t *testing.T) {
	rec := &failingRecorder{}
	_, err := Run(context.Background(), blobs(), smallGrid(), Options[float64]{Recorder: rec})
	require.ErrorIs(t, err, errRecord)
	assert.Equal(t, 1, rec.calls)
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, blobs(), smallGrid(), Options[float64]{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunRejectsInvalidCombination(t *testing.T) {
	grid := smallGrid()
	grid.Ks = []int{1}
	_, err := Run(context.Background(), blobs(), grid, Options[float64]{})
	require.Error(t, err)
}

func TestAggregateEarlierRunWinsTies(t *testing.T) {
	combos := []Combination{{K: 2, PopulationSize: 4}, {K: 2, PopulationSize: 8}}
	outcomes := []Outcome[float64]{
		{RunID: "a", WCSS: 3},
		{RunID: "b", WCSS: 1},
		{RunID: "c", WCSS: 1, Best: cluster.Individual[float64]{Fitness: 0.5}},
		{RunID: "d", WCSS: 1},
	}
	result := aggregate("s", combos, 2, outcomes)

	require.Len(t, result.Combinations, 2)
	assert.Equal(t, "b", result.Combinations[0].BestRunID)
	assert.Equal(t, 2.0, result.Combinations[0].MeanWCSS)
	assert.Equal(t, "c", result.Combinations[1].BestRunID)
	assert.Equal(t, "b", result.BestByK[2].BestRunID)
}
