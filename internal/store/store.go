package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/prototyp33/barcelona-housing-demographics-analyzer-sub003/internal/model"
)

// ErrRunNotFound is returned by GetRun when no run exists with the given ID,
// regardless of backend. Callers check it with errors.Is.
var ErrRunNotFound = eris.New("run not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Decision model.Decision `json:"decision,omitempty"`
	Limit    int            `json:"limit,omitempty"`
	Offset   int            `json:"offset,omitempty"`
}

// Store defines the persistence interface for linkage runs. One run row
// carries the decision and metrics; the matched batch and the checkpoint
// artifact hang off it.
type Store interface {
	// Runs
	SaveRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Matched batch
	SaveMatches(ctx context.Context, runID string, matches []model.MatchedRecord) error
	ListMatches(ctx context.Context, runID string, limit int) ([]model.MatchedRecord, error)

	// Checkpoint artifact
	SaveCheckpoint(ctx context.Context, runID string, res *model.CheckpointResult) error
	GetCheckpoint(ctx context.Context, runID string) (*model.CheckpointResult, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
