package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"geneclust/internal/sweep"
)

// sweepConfig is the -config file for the sweep command.
type sweepConfig struct {
	Grid      sweep.Grid
	CoordType string
	Workers   int
}

func loadSweepConfig(path string) (sweepConfig, error) {
	cfg := sweepConfig{Grid: sweep.DefaultGrid()}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return sweepConfig{}, fmt.Errorf("load config: %w", err)
	}
	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return sweepConfig{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return sweepConfig{}, fmt.Errorf("load config %s: trailing data after object", path)
	}

	if v, ok := asIntSlice(raw["ks"]); ok {
		cfg.Grid.Ks = v
	}
	if v, ok := asIntSlice(raw["population_sizes"]); ok {
		cfg.Grid.PopulationSizes = v
	}
	if v, ok := asFloat64Slice(raw["crossover_rates"]); ok {
		cfg.Grid.CrossoverRates = v
	}
	if v, ok := asFloat64Slice(raw["mutation_rates"]); ok {
		cfg.Grid.MutationRates = v
	}
	if v, ok := asInt(raw["runs"]); ok {
		cfg.Grid.Runs = v
	}
	if v, ok := asInt(raw["max_generations"]); ok {
		cfg.Grid.MaxGenerations = v
	}
	if v, ok := asInt(raw["max_no_improvement"]); ok {
		cfg.Grid.MaxNoImprovement = v
	}
	if v, ok := asFloat64(raw["diversity_threshold"]); ok {
		cfg.Grid.DiversityThreshold = v
	}
	if v, ok := asFloat64(raw["target_fitness"]); ok {
		cfg.Grid.TargetFitness = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		cfg.Grid.Seed = v
	}
	if v, ok := asString(raw["coord_type"]); ok {
		cfg.CoordType = v
	}
	if v, ok := asInt(raw["workers"]); ok {
		cfg.Workers = v
	}
	return cfg, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asFloat64(v any) (float64, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	f, err := n.Float64()
	return f, err == nil
}

func asInt(v any) (int, bool) {
	n, ok := asInt64(v)
	if !ok || n < math.MinInt || n > math.MaxInt {
		return 0, false
	}
	return int(n), true
}

// asInt64 accepts integral numbers exactly, including ones written as 2.0.
func asInt64(v any) (int64, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	if i, err := n.Int64(); err == nil {
		return i, true
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func asIntSlice(v any) ([]int, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]int, 0, len(items))
	for _, item := range items {
		n, ok := asInt(item)
		if !ok {
			return nil, false
		}
		out = append(out, n)
	}
	return out, true
}

func asFloat64Slice(v any) ([]float64, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]float64, 0, len(items))
	for _, item := range items {
		f, ok := asFloat64(item)
		if !ok {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}

func parseIntList(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid integer list %q: %w", s, err)
		}
		out = append(out, n)
	}
	return out, nil
}

func parseFloatList(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number list %q: %w", s, err)
		}
		out = append(out, f)
	}
	return out, nil
}
