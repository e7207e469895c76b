package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"geneclust/internal/model"
	"geneclust/internal/pointio"
)

const twoBlobs = "0 0\n0 1\n1 0\n1 1\n10 10\n10 11\n11 10\n11 11\n"

func captureStdout(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := stdout
	stdout = &buf
	t.Cleanup(func() {
		stdout = prev
	})
	return &buf
}

func writeInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "points.txt")
	if err := os.WriteFile(path, []byte(twoBlobs), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return path
}

func TestRunRejectsMissingAndUnknownCommands(t *testing.T) {
	if err := run(context.Background(), nil); err == nil || !strings.Contains(err.Error(), "usage:") {
		t.Fatalf("expected usage error, got %v", err)
	}
	if err := run(context.Background(), []string{"evolve"}); err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestFitCommandWritesReport(t *testing.T) {
	out := captureStdout(t)
	input := writeInput(t)
	report := filepath.Join(t.TempDir(), "report.txt")

	err := run(context.Background(), []string{
		"fit",
		"-input", input,
		"-output", report,
		"-k", "2",
		"-pop", "10",
		"-gens", "5",
		"-seed", "3",
		"-log-level", "error",
	})
	if err != nil {
		t.Fatalf("fit command: %v", err)
	}
	if !strings.Contains(out.String(), "run_id=") || !strings.Contains(out.String(), "report="+report) {
		t.Fatalf("unexpected output: %s", out.String())
	}
	data, err := os.ReadFile(report)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.HasPrefix(string(data), "# Cluster grouping | Format: coord1 coord2 | cluster_id\n") {
		t.Fatalf("unexpected report header:\n%s", data)
	}
}

func TestFitCommandJSON(t *testing.T) {
	out := captureStdout(t)
	input := writeInput(t)

	err := run(context.Background(), []string{
		"fit", "-input", input, "-k", "2", "-pop", "6", "-gens", "3", "-seed", "5",
		"-no-improve", "0", "-diversity", "0", "-json", "-log-level", "error",
	})
	if err != nil {
		t.Fatalf("fit command: %v", err)
	}
	var summary struct {
		RunID       string
		Generations int
	}
	if err := json.Unmarshal(out.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v (%s)", err, out.String())
	}
	if summary.RunID == "" || summary.Generations != 3 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestFitCommandValidation(t *testing.T) {
	captureStdout(t)
	if err := run(context.Background(), []string{"fit"}); err == nil {
		t.Fatal("expected missing input error")
	}
	input := writeInput(t)
	if err := run(context.Background(), []string{"fit", "-input", input, "-log-level", "loud"}); err == nil {
		t.Fatal("expected log level error")
	}
	if err := run(context.Background(), []string{"fit", "-input", input, "-store", "cassandra"}); err == nil {
		t.Fatal("expected store error")
	}
}

func TestSweepCommandWritesBestReportsAndMetrics(t *testing.T) {
	out := captureStdout(t)
	input := writeInput(t)
	dir := t.TempDir()
	configPath := filepath.Join(dir, "sweep.json")
	config := map[string]any{
		"ks":                 []int{2, 3, 4},
		"population_sizes":   []int{8},
		"crossover_rates":    []float64{0.8},
		"mutation_rates":     []float64{0.05},
		"runs":               2,
		"max_generations":    4,
		"max_no_improvement": 3,
		"seed":               9,
	}
	data, err := json.Marshal(config)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	outDir := filepath.Join(dir, "reports")
	metricsPath := filepath.Join(dir, "geneclust.prom")

	err = run(context.Background(), []string{
		"sweep",
		"-config", configPath,
		"-input", input,
		"-ks", "2,3",
		"-out-dir", outDir,
		"-workers", "2",
		"-metrics-textfile", metricsPath,
		"-log-level", "error",
	})
	if err != nil {
		t.Fatalf("sweep command: %v", err)
	}

	for _, name := range []string{"2_clustering_best.txt", "3_clustering_best.txt"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(outDir, "4_clustering_best.txt")); !os.IsNotExist(err) {
		t.Fatalf("k=4 was overridden by -ks and must not be written, stat err=%v", err)
	}
	if !strings.Contains(out.String(), "runs=4") {
		t.Fatalf("unexpected output: %s", out.String())
	}

	prom, err := os.ReadFile(metricsPath)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(prom), "geneclust_runs_total") {
		t.Fatalf("metrics textfile missing runs_total:\n%s", prom)
	}
}

func TestSweepCommandCompressedInput(t *testing.T) {
	captureStdout(t)
	dir := t.TempDir()
	input := filepath.Join(dir, "points.txt.zst")
	points := []model.Point[float64]{{0, 0}, {0, 1}, {10, 10}, {10, 11}}
	if err := pointio.WritePoints(input, points); err != nil {
		t.Fatalf("write compressed input: %v", err)
	}

	err := run(context.Background(), []string{
		"sweep", "-input", input, "-ks", "2", "-pops", "6", "-cx", "0.9", "-mut", "0.1",
		"-runs", "1", "-gens", "3", "-seed", "1", "-out-dir", "", "-log-level", "error",
	})
	if err != nil {
		t.Fatalf("sweep command: %v", err)
	}
}

func TestRunsCommandOnEmptyMemoryStore(t *testing.T) {
	out := captureStdout(t)
	if err := run(context.Background(), []string{"runs"}); err != nil {
		t.Fatalf("runs command: %v", err)
	}
	if strings.TrimSpace(out.String()) != "no runs found" {
		t.Fatalf("unexpected output: %q", out.String())
	}
	if err := run(context.Background(), []string{"runs", "-limit", "0"}); err == nil {
		t.Fatal("expected limit error")
	}
}

func TestLookupCommandsRequireRun(t *testing.T) {
	captureStdout(t)
	if err := run(context.Background(), []string{"best"}); err == nil {
		t.Fatal("expected best to require a run id")
	}
	if err := run(context.Background(), []string{"diagnostics", "-latest"}); err == nil {
		t.Fatal("expected diagnostics to fail without runs")
	}
}

func TestResetCommand(t *testing.T) {
	out := captureStdout(t)
	if err := run(context.Background(), []string{"reset"}); err != nil {
		t.Fatalf("reset command: %v", err)
	}
	if !strings.Contains(out.String(), "reset store=memory") {
		t.Fatalf("unexpected output: %s", out.String())
	}
}
