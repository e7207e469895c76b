package storage

import (
	"encoding/json"
	"sort"

	"geneclust/internal/model"
)

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodeGenerationDiagnostics(diagnostics []model.GenerationDiagnostics) ([]byte, error) {
	return json.Marshal(diagnostics)
}

func DecodeGenerationDiagnostics(data []byte) ([]model.GenerationDiagnostics, error) {
	var diagnostics []model.GenerationDiagnostics
	if err := json.Unmarshal(data, &diagnostics); err != nil {
		return nil, err
	}
	return diagnostics, nil
}

func EncodeSolution(s model.SolutionRecord) ([]byte, error) {
	return json.Marshal(s)
}

func DecodeSolution(data []byte) (model.SolutionRecord, error) {
	var solution model.SolutionRecord
	if err := json.Unmarshal(data, &solution); err != nil {
		return model.SolutionRecord{}, err
	}
	return solution, nil
}

// sortRunsNewestFirst orders by creation time, then id for stability.
func sortRunsNewestFirst(runs []model.RunRecord) {
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].CreatedAtUTC.Equal(runs[j].CreatedAtUTC) {
			return runs[i].ID > runs[j].ID
		}
		return runs[i].CreatedAtUTC.After(runs[j].CreatedAtUTC)
	})
}
