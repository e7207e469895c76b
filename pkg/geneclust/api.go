package geneclust

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"geneclust/internal/evo"
	"geneclust/internal/logging"
	"geneclust/internal/model"
	"geneclust/internal/pointio"
	"geneclust/internal/storage"
	"geneclust/internal/sweep"
)

const (
	defaultDBPath = "geneclust.db"

	CoordFloat = "float"
	CoordInt   = "int"
)

// BestReportName is the file written for the best clustering of k.
func BestReportName(k int) string {
	return strconv.Itoa(k) + "_clustering_best.txt"
}

type Options struct {
	StoreKind string
	DBPath    string
	Logger    *slog.Logger
}

type Client struct {
	store  storage.Store
	logger *slog.Logger

	mu          sync.Mutex
	initialized bool
}

type FitRequest struct {
	InputPath string
	// CoordType is "float" (default) or "int".
	CoordType          string
	K                  int
	Population         int
	Generations        int
	CrossoverRate      float64
	MutationRate       float64
	MaxNoImprovement   int
	DiversityThreshold float64
	TargetFitness      float64
	Seed               int64
	// OutputPath, when set, receives the grouped cluster report.
	OutputPath string
}

type FitSummary struct {
	RunID            string
	K                int
	Seed             int64
	Generations      int
	StopReason       string
	BestFitness      float64
	WCSS             float64
	BestByGeneration []float64
	Elapsed          time.Duration
	OutputPath       string
}

type SweepRequest struct {
	InputPath string
	CoordType string
	// Grid defaults to sweep.DefaultGrid when it has no k values and no runs.
	Grid    sweep.Grid
	Workers int
	// OutputDir, when set, receives one report per k.
	OutputDir string
}

type SweepBest struct {
	K           int
	Combination sweep.Combination
	RunID       string
	WCSS        float64
	MeanWCSS    float64
	ReportPath  string
}

type SweepSummary struct {
	SweepID string
	Runs    int
	Best    []SweepBest
	Elapsed time.Duration
}

type RunsRequest struct {
	Limit int
}

type DiagnosticsRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type BestRequest struct {
	RunID  string
	Latest bool
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:  store,
		logger: logging.OrDiscard(opts.Logger),
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

// Reset drops every stored run.
func (c *Client) Reset(ctx context.Context) error {
	if err := c.ensureInit(ctx); err != nil {
		return err
	}
	return c.store.Reset(ctx)
}

func (c *Client) Fit(ctx context.Context, req FitRequest) (FitSummary, error) {
	if req.InputPath == "" {
		return FitSummary{}, errors.New("fit requires an input path")
	}
	if req.K <= 0 {
		req.K = 3
	}
	if req.Population <= 0 {
		req.Population = 100
	}
	if req.Generations < 0 {
		return FitSummary{}, errors.New("generations must be >= 0")
	}
	if err := c.ensureInit(ctx); err != nil {
		return FitSummary{}, err
	}

	switch req.CoordType {
	case "", CoordFloat:
		return fitTyped[float64](ctx, c, req)
	case CoordInt:
		return fitTyped[int](ctx, c, req)
	default:
		return FitSummary{}, fmt.Errorf("unsupported coordinate type: %s", req.CoordType)
	}
}

func fitTyped[T model.Coord](ctx context.Context, c *Client, req FitRequest) (FitSummary, error) {
	data, err := pointio.ReadFile[T](req.InputPath, c.logger)
	if err != nil {
		return FitSummary{}, err
	}

	cfg := evo.Config{
		PopulationSize:     req.Population,
		MaxGenerations:     req.Generations,
		CrossoverRate:      req.CrossoverRate,
		MutationRate:       req.MutationRate,
		K:                  req.K,
		MaxNoImprovement:   req.MaxNoImprovement,
		DiversityThreshold: req.DiversityThreshold,
		TargetFitness:      req.TargetFitness,
		Seed:               req.Seed,
	}
	out, err := sweep.FitOnce(ctx, data, cfg, c.logger)
	if err != nil {
		return FitSummary{}, err
	}

	recorder := sweep.StoreRecorder{Store: c.store}
	if err := recorder.Record(ctx, out.Report("", data, time.Now())); err != nil {
		return FitSummary{}, err
	}

	if req.OutputPath != "" {
		if err := pointio.WriteReport(req.OutputPath, pointio.Report[T]{
			Points:    data,
			Labels:    out.Best.Labels,
			Centroids: out.Best.Centroids,
			K:         out.Config.K,
			WCSS:      out.WCSS,
		}); err != nil {
			return FitSummary{}, err
		}
	}

	return FitSummary{
		RunID:            out.RunID,
		K:                out.Config.K,
		Seed:             out.Result.Seed,
		Generations:      out.Result.Generations,
		StopReason:       string(out.Result.StopReason),
		BestFitness:      out.Best.Fitness,
		WCSS:             out.WCSS,
		BestByGeneration: append([]float64(nil), out.Result.BestByGeneration...),
		Elapsed:          out.Elapsed,
		OutputPath:       req.OutputPath,
	}, nil
}

func (c *Client) Sweep(ctx context.Context, req SweepRequest) (SweepSummary, error) {
	if req.InputPath == "" {
		return SweepSummary{}, errors.New("sweep requires an input path")
	}
	if len(req.Grid.Ks) == 0 && req.Grid.Runs == 0 {
		seed := req.Grid.Seed
		req.Grid = sweep.DefaultGrid()
		req.Grid.Seed = seed
	}
	if err := c.ensureInit(ctx); err != nil {
		return SweepSummary{}, err
	}

	switch req.CoordType {
	case "", CoordFloat:
		return sweepTyped[float64](ctx, c, req)
	case CoordInt:
		return sweepTyped[int](ctx, c, req)
	default:
		return SweepSummary{}, fmt.Errorf("unsupported coordinate type: %s", req.CoordType)
	}
}

func sweepTyped[T model.Coord](ctx context.Context, c *Client, req SweepRequest) (SweepSummary, error) {
	data, err := pointio.ReadFile[T](req.InputPath, c.logger)
	if err != nil {
		return SweepSummary{}, err
	}

	result, err := sweep.Run(ctx, data, req.Grid, sweep.Options[T]{
		Logger:   c.logger,
		Recorder: sweep.StoreRecorder{Store: c.store},
		Workers:  req.Workers,
	})
	if err != nil {
		return SweepSummary{}, err
	}

	summary := SweepSummary{
		SweepID: result.SweepID,
		Runs:    len(result.Combinations) * req.Grid.Runs,
		Elapsed: result.Elapsed,
	}
	for _, k := range result.Ks() {
		best := result.BestByK[k]
		item := SweepBest{
			K:           k,
			Combination: best.Combination,
			RunID:       best.BestRunID,
			WCSS:        best.BestWCSS,
			MeanWCSS:    best.MeanWCSS,
		}
		if req.OutputDir != "" {
			item.ReportPath = filepath.Join(req.OutputDir, BestReportName(k))
			if err := pointio.WriteReport(item.ReportPath, pointio.Report[T]{
				Points:    data,
				Labels:    best.Best.Labels,
				Centroids: best.Best.Centroids,
				K:         k,
				WCSS:      best.BestWCSS,
			}); err != nil {
				return SweepSummary{}, err
			}
		}
		summary.Best = append(summary.Best, item)
	}
	return summary, nil
}

func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]model.RunRecord, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	if err := c.ensureInit(ctx); err != nil {
		return nil, err
	}
	return c.store.ListRuns(ctx, req.Limit)
}

func (c *Client) Diagnostics(ctx context.Context, req DiagnosticsRequest) ([]model.GenerationDiagnostics, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}

	diagnostics, ok, err := c.store.GetGenerationDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("diagnostics not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(diagnostics) > req.Limit {
		diagnostics = diagnostics[:req.Limit]
	}
	out := make([]model.GenerationDiagnostics, len(diagnostics))
	copy(out, diagnostics)
	return out, nil
}

func (c *Client) Best(ctx context.Context, req BestRequest) (model.SolutionRecord, error) {
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return model.SolutionRecord{}, err
	}

	solution, ok, err := c.store.GetSolution(ctx, runID)
	if err != nil {
		return model.SolutionRecord{}, err
	}
	if !ok {
		return model.SolutionRecord{}, fmt.Errorf("solution not found for run id: %s", runID)
	}
	return solution, nil
}

func (c *Client) resolveRunID(ctx context.Context, runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if err := c.ensureInit(ctx); err != nil {
		return "", err
	}
	if latest {
		runs, err := c.store.ListRuns(ctx, 1)
		if err != nil {
			return "", err
		}
		if len(runs) == 0 {
			return "", errors.New("no runs available")
		}
		return runs[0].ID, nil
	}
	if runID == "" {
		return "", errors.New("run id or latest is required")
	}
	return runID, nil
}

func (c *Client) ensureInit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}
