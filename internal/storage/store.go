package storage

import (
	"context"

	"geneclust/internal/model"
)

// Store persists fit and sweep results.
type Store interface {
	Init(ctx context.Context) error
	Reset(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	// ListRuns returns runs newest first; limit <= 0 returns all.
	ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error)
	SaveGenerationDiagnostics(ctx context.Context, runID string, diagnostics []model.GenerationDiagnostics) error
	GetGenerationDiagnostics(ctx context.Context, runID string) ([]model.GenerationDiagnostics, bool, error)
	SaveSolution(ctx context.Context, solution model.SolutionRecord) error
	GetSolution(ctx context.Context, runID string) (model.SolutionRecord, bool, error)
}
