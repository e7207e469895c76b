package geneclust

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"geneclust/internal/sweep"
)

const twoBlobs = "0 0\n0 1\n1 0\n1 1\n10 10\n10 11\n11 10\n11 11\n"

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(Options{StoreKind: "memory"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func writeInput(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "points.txt")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return path
}

func TestClientFitRunsDiagnosticsAndBest(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	input := writeInput(t, twoBlobs)
	output := filepath.Join(t.TempDir(), "report.txt")

	summary, err := client.Fit(ctx, FitRequest{
		InputPath:        input,
		K:                2,
		Population:       20,
		Generations:      15,
		CrossoverRate:    0.8,
		MutationRate:     0.05,
		MaxNoImprovement: 10,
		Seed:             7,
		OutputPath:       output,
	})
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if summary.RunID == "" || summary.K != 2 || summary.Seed != 7 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.Generations == 0 || len(summary.BestByGeneration) != summary.Generations {
		t.Fatalf("expected one best fitness per generation, got %+v", summary)
	}

	report, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(report), "WCSS is ") || !strings.Contains(string(report), "# Cluster 1") {
		t.Fatalf("unexpected report:\n%s", report)
	}

	runs, err := client.Runs(ctx, RunsRequest{})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != summary.RunID || runs[0].CoordType != CoordFloat {
		t.Fatalf("unexpected runs: %+v", runs)
	}

	diagnostics, err := client.Diagnostics(ctx, DiagnosticsRequest{Latest: true, Limit: 2})
	if err != nil {
		t.Fatalf("diagnostics: %v", err)
	}
	if len(diagnostics) != 2 || diagnostics[0].Generation != 1 {
		t.Fatalf("unexpected diagnostics: %+v", diagnostics)
	}

	best, err := client.Best(ctx, BestRequest{RunID: summary.RunID})
	if err != nil {
		t.Fatalf("best: %v", err)
	}
	if best.WCSS != summary.WCSS || len(best.Labels) != 8 || len(best.Centroids) != 2 {
		t.Fatalf("unexpected best solution: %+v", best)
	}
}

func TestClientFitIntegerCoordinates(t *testing.T) {
	client := newTestClient(t)
	input := writeInput(t, "0 0\n0 2\n20 20\n20 22\n")

	summary, err := client.Fit(context.Background(), FitRequest{
		InputPath:     input,
		CoordType:     CoordInt,
		K:             2,
		Population:    10,
		Generations:   5,
		CrossoverRate: 0.8,
		MutationRate:  0.1,
		Seed:          3,
	})
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	runs, err := client.Runs(context.Background(), RunsRequest{Limit: 1})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].CoordType != CoordInt || runs[0].ID != summary.RunID {
		t.Fatalf("unexpected runs: %+v", runs)
	}
}

func TestClientFitValidation(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	input := writeInput(t, twoBlobs)

	if _, err := client.Fit(ctx, FitRequest{}); err == nil {
		t.Fatal("expected missing input error")
	}
	if _, err := client.Fit(ctx, FitRequest{InputPath: input, CoordType: "complex", Generations: 1}); err == nil {
		t.Fatal("expected coordinate type error")
	}
	if _, err := client.Fit(ctx, FitRequest{InputPath: input, K: 2}); err == nil {
		t.Fatal("expected error without stopping rules")
	}
	if _, err := client.Fit(ctx, FitRequest{InputPath: filepath.Join(t.TempDir(), "missing.txt"), Generations: 1}); err == nil {
		t.Fatal("expected missing file error")
	}
}

func TestClientSweepWritesBestPerK(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	input := writeInput(t, twoBlobs)
	outDir := t.TempDir()

	summary, err := client.Sweep(ctx, SweepRequest{
		InputPath: input,
		Grid: sweep.Grid{
			Ks:               []int{2, 3},
			PopulationSizes:  []int{10},
			CrossoverRates:   []float64{0.8},
			MutationRates:    []float64{0.05},
			Runs:             2,
			MaxGenerations:   5,
			MaxNoImprovement: 3,
			Seed:             11,
		},
		Workers:   2,
		OutputDir: outDir,
	})
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if summary.Runs != 4 || len(summary.Best) != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	for _, best := range summary.Best {
		want := filepath.Join(outDir, BestReportName(best.K))
		if best.ReportPath != want {
			t.Fatalf("report path = %s, want %s", best.ReportPath, want)
		}
		if _, err := os.Stat(want); err != nil {
			t.Fatalf("missing report for k=%d: %v", best.K, err)
		}
	}

	runs, err := client.Runs(ctx, RunsRequest{})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 4 {
		t.Fatalf("expected 4 stored runs, got %d", len(runs))
	}
	for _, run := range runs {
		if run.SweepID != summary.SweepID {
			t.Fatalf("run %s has sweep id %q, want %q", run.ID, run.SweepID, summary.SweepID)
		}
	}
}

func TestBestReportName(t *testing.T) {
	if got := BestReportName(4); got != "4_clustering_best.txt" {
		t.Fatalf("BestReportName(4) = %q", got)
	}
}

func TestClientLookupErrors(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	if _, err := client.Diagnostics(ctx, DiagnosticsRequest{RunID: "x", Latest: true}); err == nil {
		t.Fatal("expected run id/latest conflict")
	}
	if _, err := client.Diagnostics(ctx, DiagnosticsRequest{Latest: true}); err == nil {
		t.Fatal("expected no runs error")
	}
	if _, err := client.Best(ctx, BestRequest{}); err == nil {
		t.Fatal("expected missing run id error")
	}
	if _, err := client.Best(ctx, BestRequest{RunID: "missing"}); err == nil {
		t.Fatal("expected not found error")
	}
	if _, err := client.Runs(ctx, RunsRequest{Limit: -1}); err == nil {
		t.Fatal("expected negative limit error")
	}
}

func TestClientReset(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	input := writeInput(t, twoBlobs)

	if _, err := client.Fit(ctx, FitRequest{InputPath: input, K: 2, Population: 5, Generations: 2, Seed: 1}); err != nil {
		t.Fatalf("fit: %v", err)
	}
	if err := client.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	runs, err := client.Runs(ctx, RunsRequest{})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("expected no runs after reset, got %d", len(runs))
	}
}

func TestNewRejectsUnknownStore(t *testing.T) {
	if _, err := New(Options{StoreKind: "cassandra"}); err == nil {
		t.Fatal("expected unsupported store error")
	}
}
