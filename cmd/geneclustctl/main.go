package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"

	"geneclust/internal/logging"
	"geneclust/internal/metrics"
	"geneclust/internal/storage"
	api "geneclust/pkg/geneclust"
)

var stdout io.Writer = os.Stdout

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "fit":
		return runFit(ctx, args[1:])
	case "sweep":
		return runSweep(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "diagnostics":
		return runDiagnostics(ctx, args[1:])
	case "best":
		return runBest(ctx, args[1:])
	case "reset":
		return runReset(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

type commonFlags struct {
	storeKind *string
	dbPath    *string
	logLevel  *string
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		storeKind: fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite"),
		dbPath:    fs.String("db-path", "geneclust.db", "sqlite database path"),
		logLevel:  fs.String("log-level", "info", "log level: debug|info|warn|error"),
	}
}

func (f commonFlags) client() (*api.Client, error) {
	level, ok := logging.ParseLevel(*f.logLevel)
	if !ok {
		return nil, fmt.Errorf("unknown log level: %s", *f.logLevel)
	}
	return api.New(api.Options{
		StoreKind: *f.storeKind,
		DBPath:    *f.dbPath,
		Logger:    logging.New(os.Stderr, level),
	})
}

func runFit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fit", flag.ContinueOnError)
	common := addCommonFlags(fs)
	input := fs.String("input", "", "input points file (.zst supported)")
	output := fs.String("output", "", "optional cluster report path (.zst supported)")
	coordType := fs.String("coord", api.CoordFloat, "coordinate type: float|int")
	k := fs.Int("k", 3, "number of clusters")
	population := fs.Int("pop", 100, "population size")
	generations := fs.Int("gens", 100, "maximum generations (0 disables)")
	crossover := fs.Float64("cx", 0.8, "crossover rate")
	mutationRate := fs.Float64("mut", 0.05, "per-coordinate mutation rate")
	noImprovement := fs.Int("no-improve", 20, "stop after N generations without improvement (0 disables)")
	diversity := fs.Float64("diversity", 0.01, "stop when population diversity drops below this (0 disables)")
	target := fs.Float64("target", 0, "stop when best fitness reaches this (0 disables)")
	seed := fs.Int64("seed", 0, "rng seed (0 seeds from the clock)")
	jsonOut := fs.Bool("json", false, "emit summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *input == "" {
		return errors.New("fit requires -input")
	}

	client, err := common.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Fit(ctx, api.FitRequest{
		InputPath:          *input,
		CoordType:          *coordType,
		K:                  *k,
		Population:         *population,
		Generations:        *generations,
		CrossoverRate:      *crossover,
		MutationRate:       *mutationRate,
		MaxNoImprovement:   *noImprovement,
		DiversityThreshold: *diversity,
		TargetFitness:      *target,
		Seed:               *seed,
		OutputPath:         *output,
	})
	if err != nil {
		return err
	}

	if *jsonOut {
		return writeJSON(summary)
	}
	fmt.Fprintf(stdout, "run_id=%s k=%d seed=%d generations=%s stop=%s best_fitness=%.6f wcss=%.6f elapsed=%s\n",
		summary.RunID,
		summary.K,
		summary.Seed,
		humanize.Comma(int64(summary.Generations)),
		summary.StopReason,
		summary.BestFitness,
		summary.WCSS,
		summary.Elapsed.Round(time.Millisecond),
	)
	if summary.OutputPath != "" {
		fmt.Fprintf(stdout, "report=%s\n", summary.OutputPath)
	}
	return nil
}

func runSweep(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	common := addCommonFlags(fs)
	configPath := fs.String("config", "", "optional sweep config JSON path")
	input := fs.String("input", "", "input points file (.zst supported)")
	outDir := fs.String("out-dir", ".", "directory for <k>_clustering_best.txt reports (empty disables)")
	coordType := fs.String("coord", api.CoordFloat, "coordinate type: float|int")
	ks := fs.String("ks", "", "comma-separated cluster counts")
	pops := fs.String("pops", "", "comma-separated population sizes")
	crossovers := fs.String("cx", "", "comma-separated crossover rates")
	mutations := fs.String("mut", "", "comma-separated mutation rates")
	runs := fs.Int("runs", 0, "runs per combination")
	generations := fs.Int("gens", 0, "maximum generations")
	noImprovement := fs.Int("no-improve", 0, "stop after N generations without improvement")
	diversity := fs.Float64("diversity", 0, "stop when population diversity drops below this")
	target := fs.Float64("target", 0, "stop when best fitness reaches this")
	seed := fs.Int64("seed", 0, "sweep seed (0 seeds every run from the clock)")
	workers := fs.Int("workers", 1, "concurrent engine runs")
	metricsPath := fs.String("metrics-textfile", "", "optional Prometheus textfile output path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *input == "" {
		return errors.New("sweep requires -input")
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	cfg, err := loadSweepConfig(*configPath)
	if err != nil {
		return err
	}
	if err := applySweepFlags(&cfg, setFlags, sweepFlagValues{
		ks: *ks, pops: *pops, crossovers: *crossovers, mutations: *mutations,
		runs: *runs, generations: *generations, noImprovement: *noImprovement,
		diversity: *diversity, target: *target, seed: *seed,
		coordType: *coordType, workers: *workers,
	}); err != nil {
		return err
	}

	client, err := common.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if *outDir != "" {
		if err := os.MkdirAll(*outDir, 0o755); err != nil {
			return err
		}
	}
	summary, err := client.Sweep(ctx, api.SweepRequest{
		InputPath: *input,
		CoordType: cfg.CoordType,
		Grid:      cfg.Grid,
		Workers:   cfg.Workers,
		OutputDir: *outDir,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "sweep_id=%s runs=%s elapsed=%s\n",
		summary.SweepID,
		humanize.Comma(int64(summary.Runs)),
		summary.Elapsed.Round(time.Millisecond),
	)
	for _, best := range summary.Best {
		fmt.Fprintf(stdout, "k=%d best_wcss=%.6f mean_wcss=%.6f %s run_id=%s",
			best.K, best.WCSS, best.MeanWCSS, best.Combination, best.RunID)
		if best.ReportPath != "" {
			fmt.Fprintf(stdout, " report=%s", best.ReportPath)
		}
		fmt.Fprintln(stdout)
	}

	if *metricsPath != "" {
		if err := metrics.WriteTextfile(*metricsPath); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

type sweepFlagValues struct {
	ks, pops, crossovers, mutations string
	runs, generations, noImprovement int
	diversity, target                float64
	seed                             int64
	coordType                        string
	workers                          int
}

// applySweepFlags overlays explicitly set flags on the loaded config.
func applySweepFlags(cfg *sweepConfig, set map[string]bool, v sweepFlagValues) error {
	var err error
	if set["ks"] {
		if cfg.Grid.Ks, err = parseIntList(v.ks); err != nil {
			return err
		}
	}
	if set["pops"] {
		if cfg.Grid.PopulationSizes, err = parseIntList(v.pops); err != nil {
			return err
		}
	}
	if set["cx"] {
		if cfg.Grid.CrossoverRates, err = parseFloatList(v.crossovers); err != nil {
			return err
		}
	}
	if set["mut"] {
		if cfg.Grid.MutationRates, err = parseFloatList(v.mutations); err != nil {
			return err
		}
	}
	if set["runs"] {
		cfg.Grid.Runs = v.runs
	}
	if set["gens"] {
		cfg.Grid.MaxGenerations = v.generations
	}
	if set["no-improve"] {
		cfg.Grid.MaxNoImprovement = v.noImprovement
	}
	if set["diversity"] {
		cfg.Grid.DiversityThreshold = v.diversity
	}
	if set["target"] {
		cfg.Grid.TargetFitness = v.target
	}
	if set["seed"] {
		cfg.Grid.Seed = v.seed
	}
	if set["coord"] || cfg.CoordType == "" {
		cfg.CoordType = v.coordType
	}
	if set["workers"] || cfg.Workers == 0 {
		cfg.Workers = v.workers
	}
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	common := addCommonFlags(fs)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := common.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, api.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(stdout, "no runs found")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(stdout, "run_id=%s created=%s coord=%s points=%s k=%d pop=%d generations=%d stop=%s best_wcss=%.6f\n",
			r.ID,
			humanize.Time(r.CreatedAtUTC),
			r.CoordType,
			humanize.Comma(int64(r.Points)),
			r.K,
			r.PopulationSize,
			r.Generations,
			r.StopReason,
			r.BestWCSS,
		)
	}
	return nil
}

func runDiagnostics(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("diagnostics", flag.ContinueOnError)
	common := addCommonFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	limit := fs.Int("limit", 0, "max generations to show (0 shows all)")
	jsonOut := fs.Bool("json", false, "emit diagnostics as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := common.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	diagnostics, err := client.Diagnostics(ctx, api.DiagnosticsRequest{RunID: *runID, Latest: *latest, Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(diagnostics)
	}
	for _, d := range diagnostics {
		fmt.Fprintf(stdout, "generation=%d best=%.6f mean=%.6f min=%.6f wcss=%.6f diversity=%.6f no_improvement=%d distinct=%d\n",
			d.Generation,
			d.BestFitness,
			d.MeanFitness,
			d.MinFitness,
			d.BestWCSS,
			d.Diversity,
			d.NoImprovement,
			d.FingerprintDiversity,
		)
	}
	return nil
}

func runBest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("best", flag.ContinueOnError)
	common := addCommonFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	jsonOut := fs.Bool("json", false, "emit solution as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := common.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	solution, err := client.Best(ctx, api.BestRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(solution)
	}
	fmt.Fprintf(stdout, "run_id=%s k=%d fitness=%.6f wcss=%.6f\n", solution.RunID, solution.K, solution.Fitness, solution.WCSS)
	sizes := make([]int, solution.K)
	for _, label := range solution.Labels {
		if label >= 0 && label < len(sizes) {
			sizes[label]++
		}
	}
	for i, c := range solution.Centroids {
		fmt.Fprintf(stdout, "cluster=%d size=%s centroid=%v\n", i, humanize.Comma(int64(sizes[i])), c)
	}
	return nil
}

func runReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	common := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := common.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Reset(ctx); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "reset store=%s\n", *common.storeKind)
	return nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: geneclustctl <fit|sweep|runs|diagnostics|best|reset> [flags]", msg)
}
